// Package liveness reconciles device online/offline state from raw
// last-contact timestamps. The sweep is level-triggered: every run
// recomputes status from scratch, so missed or doubled runs are harmless.
package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fleetmon/pkg/audit"
	"fleetmon/pkg/models"

	"gorm.io/gorm"
)

// Monitor runs the periodic device liveness sweep.
type Monitor struct {
	db           *gorm.DB
	syslog       *audit.Logger
	offlineAfter time.Duration
	errorAfter   time.Duration
	interval     time.Duration
}

func NewMonitor(db *gorm.DB, syslog *audit.Logger, offlineAfterMin, errorAfterMin, intervalSec int) *Monitor {
	return &Monitor{
		db:           db,
		syslog:       syslog,
		offlineAfter: time.Duration(offlineAfterMin) * time.Minute,
		errorAfter:   time.Duration(errorAfterMin) * time.Minute,
		interval:     time.Duration(intervalSec) * time.Second,
	}
}

// Run starts the recurring sweep loop.
func (monitor *Monitor) Run(ctx context.Context) {
	slog.Info("Starting liveness monitor", "component", "LivenessMonitor",
		"interval", monitor.interval.String(), "offline_after", monitor.offlineAfter.String())
	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping liveness monitor", "component", "LivenessMonitor")
			return
		case <-ticker.C:
			if err := monitor.Sweep(ctx); err != nil {
				slog.Error("Liveness sweep failed", "component", "LivenessMonitor", "error", err)
			}
		}
	}
}

// Sweep reconciles every device once. Per-device failures are logged and
// skipped; one broken row never blocks reconciliation of the rest.
func (monitor *Monitor) Sweep(ctx context.Context) error {
	now := time.Now()

	var devices []*models.Device
	if err := monitor.db.WithContext(ctx).
		Where("status <> ?", models.DeviceInactive).
		Find(&devices).Error; err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	for _, device := range devices {
		if err := monitor.reconcile(ctx, device, now); err != nil {
			slog.Error("Failed to reconcile device", "component", "LivenessMonitor",
				"device_id", device.DeviceID, "error", err)
		}
	}

	// Recovery pass: a device that reported in during this sweep must not
	// be re-marked offline by the stale state loaded above, so recovery
	// reads fresh rows after the per-device loop.
	return monitor.recoverOnline(ctx, now)
}

func (monitor *Monitor) reconcile(ctx context.Context, device *models.Device, now time.Time) error {
	if device.LastContact == nil {
		if device.Status != models.DeviceOffline {
			return monitor.setStatus(ctx, device, models.DeviceOffline, "never contacted", now)
		}
		return nil
	}

	silence := now.Sub(*device.LastContact)
	if silence > monitor.offlineAfter && device.Status != models.DeviceOffline {
		msg := fmt.Sprintf("silent for %dm", int(silence.Minutes()))
		if err := monitor.setStatus(ctx, device, models.DeviceOffline, msg, now); err != nil {
			return err
		}
	}

	if silence > monitor.errorAfter {
		if err := monitor.ensureDisconnectAlert(ctx, device, now, silence); err != nil {
			return err
		}
	}
	return nil
}

func (monitor *Monitor) setStatus(ctx context.Context, device *models.Device, status, reason string, now time.Time) error {
	if err := monitor.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", device.ID).
		Update("status", status).Error; err != nil {
		return err
	}
	monitor.syslog.Log(ctx, "warning",
		fmt.Sprintf("device %s marked %s (%s)", device.DeviceID, status, reason),
		device.MachineID, "")
	return nil
}

// ensureDisconnectAlert raises at most one open disconnect alert per device
// per rolling hour.
func (monitor *Monitor) ensureDisconnectAlert(ctx context.Context, device *models.Device, now time.Time, silence time.Duration) error {
	var open int64
	err := monitor.db.WithContext(ctx).Model(&models.Alert{}).
		Where("device_id = ? AND alert_type = ? AND acknowledged = ? AND created_at > ?",
			device.ID, models.AlertDeviceError, false, now.Add(-time.Hour)).
		Count(&open).Error
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}

	alert := models.Alert{
		AlertType: models.AlertDeviceError,
		DeviceID:  &device.ID,
		MachineID: device.MachineID,
		Timestamp: now,
		Details:   fmt.Sprintf("device %s unreachable for %d minutes", device.DeviceID, int(silence.Minutes())),
	}
	if err := monitor.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return err
	}
	slog.Warn("Disconnect alert raised", "component", "LivenessMonitor",
		"device_id", device.DeviceID, "silent_minutes", int(silence.Minutes()))
	return nil
}

// recoverOnline flips back any offline device whose last contact is within
// the offline threshold.
func (monitor *Monitor) recoverOnline(ctx context.Context, now time.Time) error {
	result := monitor.db.WithContext(ctx).Model(&models.Device{}).
		Where("status = ? AND last_contact IS NOT NULL AND last_contact > ?",
			models.DeviceOffline, now.Add(-monitor.offlineAfter)).
		Update("status", models.DeviceOnline)
	if result.Error != nil {
		return fmt.Errorf("recovery pass failed: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		slog.Info("Devices recovered to online", "component", "LivenessMonitor", "count", result.RowsAffected)
	}
	return nil
}
