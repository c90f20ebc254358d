package devsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/models"

	"gorm.io/gorm"
)

// allowedImageExts is the upload allow-list. Extension is matched
// case-insensitively on the client-supplied filename.
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UploadEventImage attaches image bytes to a previously synced event.
// The event must belong to the calling device. On success the event's
// image path flips from the pending sentinel to the stored relative path
// in a single update, so no reader ever observes both.
func (coordinator *Coordinator) UploadEventImage(ctx context.Context, deviceID string, eventID int64, filename string, data []byte) (string, error) {
	device, err := coordinator.lookupDevice(ctx, deviceID)
	if err != nil {
		return "", err
	}

	event, err := coordinator.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("event %d: %w", eventID, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if event.DeviceID != device.ID {
		return "", fmt.Errorf("event %d belongs to another device: %w", eventID, apperr.ErrForbidden)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("image extension %q not allowed: %w", ext, apperr.ErrValidation)
	}
	if coordinator.maxImageBytes > 0 && int64(len(data)) > coordinator.maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes: %w", coordinator.maxImageBytes, apperr.ErrValidation)
	}

	rel, err := coordinator.media.SaveBytes("events", event.EventType, event.DeviceTime, ext, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	if err := coordinator.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("image_path", rel).Error; err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	slog.Info("Event image stored", "component", "SyncCoordinator",
		"event_id", eventID, "device_id", deviceID, "path", rel)
	return rel, nil
}
