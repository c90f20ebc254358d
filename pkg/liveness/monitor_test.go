package liveness

import (
	"context"
	"testing"
	"time"

	"fleetmon/pkg/audit"
	"fleetmon/pkg/database"
	"fleetmon/pkg/models"

	"gorm.io/gorm"
)

func newTestMonitor(t *testing.T) (*Monitor, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return NewMonitor(db, audit.NewLogger(db), 5, 15, 60), db
}

func seedDevice(t *testing.T, db *gorm.DB, deviceID, status string, lastContact *time.Time) *models.Device {
	t.Helper()
	device := models.Device{
		DeviceID:    deviceID,
		SecretHash:  "x",
		DeviceClass: models.ClassCamera,
		Status:      status,
		LastContact: lastContact,
	}
	if err := db.Create(&device).Error; err != nil {
		t.Fatalf("failed to seed device: %v", err)
	}
	return &device
}

func deviceStatus(t *testing.T, db *gorm.DB, id int64) string {
	t.Helper()
	var device models.Device
	if err := db.First(&device, id).Error; err != nil {
		t.Fatalf("device reload failed: %v", err)
	}
	return device.Status
}

func alertCount(t *testing.T, db *gorm.DB, deviceID int64) int64 {
	t.Helper()
	var count int64
	db.Model(&models.Alert{}).
		Where("device_id = ? AND alert_type = ?", deviceID, models.AlertDeviceError).
		Count(&count)
	return count
}

func TestSweepMarksSilentDeviceOffline(t *testing.T) {
	monitor, db := newTestMonitor(t)
	contact := time.Now().Add(-6 * time.Minute)
	device := seedDevice(t, db, "cam-1", models.DeviceOnline, &contact)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := deviceStatus(t, db, device.ID); got != models.DeviceOffline {
		t.Errorf("expected offline, got %s", got)
	}
	if n := alertCount(t, db, device.ID); n != 0 {
		t.Errorf("expected no disconnect alert at 6 minutes, got %d", n)
	}
}

func TestSweepRaisesDisconnectAlertOnce(t *testing.T) {
	monitor, db := newTestMonitor(t)
	contact := time.Now().Add(-16 * time.Minute)
	device := seedDevice(t, db, "cam-1", models.DeviceOnline, &contact)
	ctx := context.Background()

	if err := monitor.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := deviceStatus(t, db, device.ID); got != models.DeviceOffline {
		t.Errorf("expected offline, got %s", got)
	}
	if n := alertCount(t, db, device.ID); n != 1 {
		t.Fatalf("expected exactly one disconnect alert, got %d", n)
	}

	// Second sweep within the rolling hour must not raise another.
	if err := monitor.Sweep(ctx); err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if n := alertCount(t, db, device.ID); n != 1 {
		t.Errorf("expected dedup to hold one alert, got %d", n)
	}
}

func TestSweepAlertsAgainAfterAcknowledgement(t *testing.T) {
	monitor, db := newTestMonitor(t)
	contact := time.Now().Add(-16 * time.Minute)
	device := seedDevice(t, db, "cam-1", models.DeviceOnline, &contact)
	ctx := context.Background()

	if err := monitor.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	db.Model(&models.Alert{}).Where("device_id = ?", device.ID).Update("acknowledged", true)

	if err := monitor.Sweep(ctx); err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if n := alertCount(t, db, device.ID); n != 2 {
		t.Errorf("expected a fresh alert after acknowledgement, got %d", n)
	}
}

func TestSweepForcesNeverContactedOffline(t *testing.T) {
	monitor, db := newTestMonitor(t)
	device := seedDevice(t, db, "cam-1", models.DeviceError, nil)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := deviceStatus(t, db, device.ID); got != models.DeviceOffline {
		t.Errorf("expected offline for never-contacted device, got %s", got)
	}
}

func TestSweepRecoversFreshDevice(t *testing.T) {
	monitor, db := newTestMonitor(t)
	contact := time.Now().Add(-1 * time.Minute)
	device := seedDevice(t, db, "cam-1", models.DeviceOffline, &contact)

	if err := monitor.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := deviceStatus(t, db, device.ID); got != models.DeviceOnline {
		t.Errorf("expected recovery to online, got %s", got)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	monitor, db := newTestMonitor(t)
	contact := time.Now().Add(-6 * time.Minute)
	device := seedDevice(t, db, "cam-1", models.DeviceOnline, &contact)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := monitor.Sweep(ctx); err != nil {
			t.Fatalf("Sweep %d failed: %v", i, err)
		}
	}
	if got := deviceStatus(t, db, device.ID); got != models.DeviceOffline {
		t.Errorf("expected stable offline, got %s", got)
	}
}
