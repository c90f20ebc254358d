// Package configmgr is the device-configuration collaborator surface.
// Versioning and authoring live in the administrative subsystem; this core
// only serves the current config to devices and records apply outcomes.
package configmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/models"

	"gorm.io/gorm"
)

// Manager serves per-device configuration.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDeviceConfig returns the newest config version for the device.
func (manager *Manager) GetDeviceConfig(ctx context.Context, deviceID int64) (*models.DeviceConfig, error) {
	var cfg models.DeviceConfig
	err := manager.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("version DESC").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no config for device %d: %w", deviceID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &cfg, nil
}

// ConfirmApplied records that the device applied the given version.
func (manager *Manager) ConfirmApplied(ctx context.Context, deviceID int64, version int) error {
	now := time.Now()
	result := manager.db.WithContext(ctx).Model(&models.DeviceConfig{}).
		Where("device_id = ? AND version = ?", deviceID, version).
		Updates(map[string]any{"applied_at": now, "last_error": ""})
	if result.Error != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("config version %d for device %d: %w", version, deviceID, apperr.ErrNotFound)
	}
	return nil
}

// ReportError records a device-side apply failure for the given version.
func (manager *Manager) ReportError(ctx context.Context, deviceID int64, version int, message string) error {
	result := manager.db.WithContext(ctx).Model(&models.DeviceConfig{}).
		Where("device_id = ? AND version = ?", deviceID, version).
		Update("last_error", message)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("config version %d for device %d: %w", version, deviceID, apperr.ErrNotFound)
	}
	return nil
}
