package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"fleetmon/pkg/auth"
	"fleetmon/pkg/configmgr"
	"fleetmon/pkg/database"
	"fleetmon/pkg/devsync"
	"fleetmon/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DeviceHandler serves the device-facing API.
type DeviceHandler struct {
	authenticator *auth.Authenticator
	coordinator   *devsync.Coordinator
	configs       *configmgr.Manager
	db            *gorm.DB
	devices       *database.GormRepository[models.Device]
	maxImageBytes int64
}

func NewDeviceHandler(
	authenticator *auth.Authenticator,
	coordinator *devsync.Coordinator,
	configs *configmgr.Manager,
	db *gorm.DB,
	maxImageBytes int64,
) *DeviceHandler {
	return &DeviceHandler{
		authenticator: authenticator,
		coordinator:   coordinator,
		configs:       configs,
		db:            db,
		devices:       database.NewGormRepository[models.Device](db),
		maxImageBytes: maxImageBytes,
	}
}

// Register creates a device identity. The master registration secret must
// be supplied in the body; the response carries the plaintext device
// secret exactly once.
func (handler *DeviceHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := handler.authenticator.Register(c.Request.Context(), &req)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Authenticate validates credentials and issues a bearer token.
func (handler *DeviceHandler) Authenticate(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, err := handler.authenticator.Authenticate(c.Request.Context(), req.DeviceID, req.Secret)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Token: token, ExpiresAt: expiresAt})
}

// Heartbeat bumps last-contact and optionally updates status and address.
// The body is optional; an empty heartbeat just proves liveness.
func (handler *DeviceHandler) Heartbeat(c *gin.Context) {
	claims := deviceClaims(c)

	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]any{
		"last_contact": time.Now(),
		"status":       models.DeviceOnline,
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.NetworkAddress != "" {
		updates["network_address"] = req.NetworkAddress
	}

	result := handler.db.WithContext(c.Request.Context()).Model(&models.Device{}).
		Where("device_id = ?", claims.DeviceID).
		Updates(updates)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "device not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// SubmitBatch receives one sync batch. Partial success is reported with
// 207 and both the assignment map and the per-event error list; an
// all-failed batch returns 400 with the same result attached.
func (handler *DeviceHandler) SubmitBatch(c *gin.Context) {
	claims := deviceClaims(c)

	var req models.BatchSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := handler.coordinator.SubmitBatch(c.Request.Context(), claims.DeviceID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	switch result.Status {
	case models.BatchCompleted:
		c.JSON(http.StatusOK, result)
	case models.BatchPartial:
		c.JSON(http.StatusMultiStatus, result)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"message": "no events accepted",
				"status":  http.StatusBadRequest,
			},
			"result": result,
		})
	}
}

// UploadEventImage attaches the multipart image to a synced event.
func (handler *DeviceHandler) UploadEventImage(c *gin.Context) {
	claims := deviceClaims(c)

	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid event id")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "image file required")
		return
	}
	if handler.maxImageBytes > 0 && fileHeader.Size > handler.maxImageBytes {
		respondError(c, http.StatusBadRequest, "image too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image upload")
		return
	}

	rel, err := handler.coordinator.UploadEventImage(c.Request.Context(), claims.DeviceID, eventID, fileHeader.Filename, data)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_path": rel})
}

// ConfirmBatch flips the device back to online once a batch completed.
func (handler *DeviceHandler) ConfirmBatch(c *gin.Context) {
	claims := deviceClaims(c)

	if err := handler.coordinator.ConfirmBatch(c.Request.Context(), claims.DeviceID, c.Param("batchId")); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "confirmed"})
}

// Status returns the device+machine+stats snapshot.
func (handler *DeviceHandler) Status(c *gin.Context) {
	claims := deviceClaims(c)
	ctx := c.Request.Context()

	device, err := handler.devices.GetByField(ctx, "device_id", claims.DeviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "device not found")
		} else {
			respondError(c, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := models.DeviceStatusResponse{Device: device}

	if device.MachineID != nil {
		var machine models.Machine
		if err := handler.db.WithContext(ctx).First(&machine, *device.MachineID).Error; err == nil {
			resp.Machine = &machine
		}
	}

	handler.db.WithContext(ctx).Model(&models.Event{}).
		Where("device_id = ?", device.ID).Count(&resp.Stats.TotalEvents)
	handler.db.WithContext(ctx).Model(&models.Event{}).
		Where("device_id = ? AND image_path = ?", device.ID, models.ImagePending).
		Count(&resp.Stats.PendingImages)

	var lastBatch models.SyncBatch
	err = handler.db.WithContext(ctx).
		Where("device_id = ?", device.ID).
		Order("started_at DESC").
		First(&lastBatch).Error
	if err == nil {
		resp.Stats.LastBatchStatus = lastBatch.Status
	}

	c.JSON(http.StatusOK, resp)
}

// GetConfig serves the device's newest configuration version.
func (handler *DeviceHandler) GetConfig(c *gin.Context) {
	claims := deviceClaims(c)
	ctx := c.Request.Context()

	device, err := handler.devices.GetByField(ctx, "device_id", claims.DeviceID)
	if err != nil {
		respondError(c, http.StatusNotFound, "device not found")
		return
	}

	cfg, err := handler.configs.GetDeviceConfig(ctx, device.ID)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ConfirmConfig acknowledges a successfully applied configuration version.
func (handler *DeviceHandler) ConfirmConfig(c *gin.Context) {
	claims := deviceClaims(c)
	ctx := c.Request.Context()

	var req models.ConfigConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	device, err := handler.devices.GetByField(ctx, "device_id", claims.DeviceID)
	if err != nil {
		respondError(c, http.StatusNotFound, "device not found")
		return
	}
	if err := handler.configs.ConfirmApplied(ctx, device.ID, req.Version); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "confirmed"})
}

// ReportConfigError records a device-side configuration apply failure.
func (handler *DeviceHandler) ReportConfigError(c *gin.Context) {
	claims := deviceClaims(c)
	ctx := c.Request.Context()

	var req models.ConfigErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	device, err := handler.devices.GetByField(ctx, "device_id", claims.DeviceID)
	if err != nil {
		respondError(c, http.StatusNotFound, "device not found")
		return
	}
	if err := handler.configs.ReportError(ctx, device.ID, req.Version, req.Error); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recorded"})
}
