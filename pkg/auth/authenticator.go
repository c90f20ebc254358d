package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/audit"
	"fleetmon/pkg/database"
	"fleetmon/pkg/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Authenticator validates device credentials and registers new devices.
type Authenticator struct {
	devices            *database.GormRepository[models.Device]
	tokens             *TokenService
	registrationSecret []byte
	syslog             *audit.Logger
}

func NewAuthenticator(db *gorm.DB, tokens *TokenService, registrationSecret string, syslog *audit.Logger) *Authenticator {
	return &Authenticator{
		devices:            database.NewGormRepository[models.Device](db),
		tokens:             tokens,
		registrationSecret: []byte(registrationSecret),
		syslog:             syslog,
	}
}

// Authenticate validates a device's credentials and mints a bearer token.
// The device's last-contact timestamp is bumped on success.
func (authenticator *Authenticator) Authenticate(ctx context.Context, deviceID, secret string) (string, time.Time, error) {
	device, err := authenticator.devices.GetByField(ctx, "device_id", deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, fmt.Errorf("device %q: %w", deviceID, apperr.ErrNotFound)
		}
		return "", time.Time{}, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	// bcrypt comparison is constant-time for equal-cost hashes
	if err := bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(secret)); err != nil {
		return "", time.Time{}, apperr.ErrInvalidSecret
	}

	token, expiresAt, err := authenticator.tokens.Issue(device)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	if err := authenticator.devices.DB().WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", device.ID).
		Update("last_contact", now).Error; err != nil {
		slog.Warn("Failed to update last contact", "component", "Authenticator", "device_id", deviceID, "error", err)
	}

	slog.Info("Device authenticated", "component", "Authenticator", "device_id", deviceID)
	return token, expiresAt, nil
}

// Register creates a new device identity. The generated secret is returned
// in plaintext exactly once; only its bcrypt hash is stored.
func (authenticator *Authenticator) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if subtle.ConstantTimeCompare(authenticator.registrationSecret, []byte(req.RegistrationSecret)) != 1 {
		return nil, fmt.Errorf("registration secret mismatch: %w", apperr.ErrForbidden)
	}

	if _, err := authenticator.devices.GetByField(ctx, "device_id", req.DeviceID); err == nil {
		return nil, fmt.Errorf("device %q already registered: %w", req.DeviceID, apperr.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate device secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash device secret: %w", err)
	}

	device := models.Device{
		DeviceID:       req.DeviceID,
		SecretHash:     string(hash),
		DeviceClass:    req.DeviceClass,
		MachineID:      req.MachineID,
		NetworkAddress: req.NetworkAddress,
		Status:         models.DeviceOffline,
	}
	if _, err := authenticator.devices.Create(ctx, &device); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("device %q already registered: %w", req.DeviceID, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	authenticator.syslog.Log(ctx, "info", fmt.Sprintf("device %s registered", req.DeviceID), req.MachineID, "")
	return &models.RegisterResponse{DeviceID: req.DeviceID, Secret: secret}, nil
}

// generateSecret returns a 64-char hex string from 32 random bytes.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
