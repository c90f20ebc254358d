package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetmon/pkg/audit"
	"fleetmon/pkg/database"
	"fleetmon/pkg/models"
	"fleetmon/pkg/storage"

	"gorm.io/gorm"
)

func newTestPipeline(t *testing.T) (*Pipeline, *gorm.DB, string, string) {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	dropDir := t.TempDir()
	mediaRoot := t.TempDir()
	media := storage.NewMediaStore(mediaRoot)
	pipeline := NewPipeline(db, media, audit.NewLogger(db), dropDir, 10, 30)
	return pipeline, db, dropDir, mediaRoot
}

func seedOperator(t *testing.T, db *gorm.DB, nationalID string) *models.Operator {
	t.Helper()
	operator := models.Operator{NationalID: nationalID, Name: "Test Operator"}
	if err := db.Create(&operator).Error; err != nil {
		t.Fatalf("failed to seed operator: %v", err)
	}
	return &operator
}

func dropPair(t *testing.T, dropDir, base, details string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dropDir, base+".jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dropDir, base+".txt"), []byte(details), 0o644); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}
}

func TestSweepProcessesValidPair(t *testing.T) {
	pipeline, db, dropDir, mediaRoot := newTestPipeline(t)
	operator := seedOperator(t, db, "12345678")
	dropPair(t, dropDir, "12345678_fatigue_20240115_083000", "eyes closed 2.1s")

	summary, err := pipeline.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("expected 1 processed / 0 failed, got %d/%d", summary.Processed, summary.Failed)
	}

	var alert models.Alert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("expected one alert: %v", err)
	}
	if alert.AlertType != models.AlertFatigue {
		t.Errorf("expected fatigue, got %s", alert.AlertType)
	}
	want := time.Date(2024, 1, 15, 8, 30, 0, 0, time.Local)
	if !alert.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, alert.Timestamp)
	}
	if alert.OperatorID == nil || *alert.OperatorID != operator.ID {
		t.Errorf("alert not attributed to operator %d", operator.ID)
	}
	if alert.Details != "eyes closed 2.1s" {
		t.Errorf("sidecar text not stored verbatim: %q", alert.Details)
	}

	// Durable copy exists, originals moved into processed/.
	if _, err := os.Stat(filepath.Join(mediaRoot, alert.ImagePath)); err != nil {
		t.Errorf("durable image copy missing: %v", err)
	}
	for _, ext := range []string{".jpg", ".txt"} {
		name := "12345678_fatigue_20240115_083000" + ext
		if _, err := os.Stat(filepath.Join(dropDir, name)); !os.IsNotExist(err) {
			t.Errorf("original %s still in drop dir", name)
		}
		if _, err := os.Stat(filepath.Join(dropDir, processedDir, name)); err != nil {
			t.Errorf("original %s not filed under processed: %v", name, err)
		}
	}
}

func TestSweepQuarantinesUnknownOperator(t *testing.T) {
	pipeline, db, dropDir, _ := newTestPipeline(t)
	dropPair(t, dropDir, "99999999_fatigue_20240115_083000", "details")

	summary, err := pipeline.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Processed != 0 || summary.Failed != 1 {
		t.Fatalf("expected 0 processed / 1 failed, got %d/%d", summary.Processed, summary.Failed)
	}

	var count int64
	db.Model(&models.Alert{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no alerts, got %d", count)
	}
	for _, ext := range []string{".jpg", ".txt"} {
		name := "99999999_fatigue_20240115_083000" + ext
		if _, err := os.Stat(filepath.Join(dropDir, failedDir, name)); err != nil {
			t.Errorf("original %s not quarantined under failed: %v", name, err)
		}
	}
}

func TestSweepDefersPairWithoutSidecar(t *testing.T) {
	pipeline, db, dropDir, _ := newTestPipeline(t)
	seedOperator(t, db, "12345678")
	if err := os.WriteFile(filepath.Join(dropDir, "12345678_fatigue_20240115_083000.jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	summary, err := pipeline.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Processed != 0 || summary.Failed != 0 {
		t.Fatalf("lonely image must not count as processed or failed, got %d/%d", summary.Processed, summary.Failed)
	}
	// Still in place for the next sweep.
	if _, err := os.Stat(filepath.Join(dropDir, "12345678_fatigue_20240115_083000.jpg")); err != nil {
		t.Errorf("image should remain in drop dir: %v", err)
	}
}

func TestSweepResolvesActiveMachineAssignment(t *testing.T) {
	pipeline, db, dropDir, _ := newTestPipeline(t)
	operator := seedOperator(t, db, "12345678")

	machine := models.Machine{Name: "press-4"}
	if err := db.Create(&machine).Error; err != nil {
		t.Fatalf("failed to seed machine: %v", err)
	}
	assignment := models.MachineAssignment{OperatorID: operator.ID, MachineID: machine.ID, Active: true, AssignedAt: time.Now()}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}

	dropPair(t, dropDir, "12345678_phone_20240115_083000", "details")
	if _, err := pipeline.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	var alert models.Alert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("expected one alert: %v", err)
	}
	if alert.MachineID == nil || *alert.MachineID != machine.ID {
		t.Errorf("expected machine %d on alert, got %v", machine.ID, alert.MachineID)
	}
}

func TestSweepContinuesPastBadPair(t *testing.T) {
	pipeline, db, dropDir, _ := newTestPipeline(t)
	seedOperator(t, db, "12345678")
	dropPair(t, dropDir, "badname", "broken")
	dropPair(t, dropDir, "12345678_smoking_20240115_083000", "cigarette detected")

	summary, err := pipeline.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 1 {
		t.Errorf("expected 1 processed / 1 failed, got %d/%d", summary.Processed, summary.Failed)
	}

	var count int64
	db.Model(&models.Alert{}).Count(&count)
	if count != 1 {
		t.Errorf("expected one alert from the good pair, got %d", count)
	}
}
