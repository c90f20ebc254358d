// Package ingest reconciles dropped report file pairs (.jpg image plus
// .txt sidecar) into Alert records. The drop directory is polled, not
// watched: a sweep enumerates pairs, files each one under processed/ or
// failed/, and reports per-sweep counts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fleetmon/pkg/audit"
	"fleetmon/pkg/models"
	"fleetmon/pkg/storage"

	"gorm.io/gorm"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Pipeline is the report ingestion sweep.
type Pipeline struct {
	db       *gorm.DB
	media    *storage.MediaStore
	syslog   *audit.Logger
	dropDir  string
	grace    time.Duration
	interval time.Duration
}

func NewPipeline(db *gorm.DB, media *storage.MediaStore, syslog *audit.Logger, dropDir string, graceMs, intervalSec int) *Pipeline {
	return &Pipeline{
		db:       db,
		media:    media,
		syslog:   syslog,
		dropDir:  dropDir,
		grace:    time.Duration(graceMs) * time.Millisecond,
		interval: time.Duration(intervalSec) * time.Second,
	}
}

// Run starts the recurring sweep loop.
func (pipeline *Pipeline) Run(ctx context.Context) {
	slog.Info("Starting ingestion pipeline", "component", "IngestPipeline",
		"drop_dir", pipeline.dropDir, "interval", pipeline.interval.String())
	ticker := time.NewTicker(pipeline.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping ingestion pipeline", "component", "IngestPipeline")
			return
		case <-ticker.C:
			summary, err := pipeline.Sweep(ctx)
			if err != nil {
				slog.Error("Ingestion sweep failed", "component", "IngestPipeline", "error", err)
				continue
			}
			if summary.Processed > 0 || summary.Failed > 0 {
				slog.Info("Ingestion sweep finished", "component", "IngestPipeline",
					"processed", summary.Processed, "failed", summary.Failed)
			}
		}
	}
}

// Sweep enumerates the drop directory once. One corrupt pair never halts
// the sweep: its files are quarantined under failed/ and the loop moves on.
func (pipeline *Pipeline) Sweep(ctx context.Context) (models.SweepSummary, error) {
	var summary models.SweepSummary

	entries, err := os.ReadDir(pipeline.dropDir)
	if err != nil {
		return summary, fmt.Errorf("failed to read drop dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue // skips processed/ and failed/
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue // sidecars are picked up with their image
		}

		imagePath := filepath.Join(pipeline.dropDir, entry.Name())
		sidecarPath, ok := pipeline.awaitSidecar(imagePath)
		if !ok {
			// Not-yet-ready, not a failure: the sidecar may still be
			// mid-upload. The next sweep will retry the pair.
			continue
		}

		if err := pipeline.processPair(ctx, imagePath, sidecarPath); err != nil {
			slog.Error("Report pair failed", "component", "IngestPipeline",
				"file", entry.Name(), "error", err)
			pipeline.syslog.Log(ctx, "error",
				fmt.Sprintf("report %s rejected: %v", entry.Name(), err), nil, "")
			pipeline.quarantine(imagePath, sidecarPath)
			summary.Failed++
			continue
		}
		summary.Processed++
	}
	return summary, nil
}

// awaitSidecar looks for the sibling .txt, allowing one grace retry.
func (pipeline *Pipeline) awaitSidecar(imagePath string) (string, bool) {
	sidecarPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
	if _, err := os.Stat(sidecarPath); err == nil {
		return sidecarPath, true
	}
	time.Sleep(pipeline.grace)
	if _, err := os.Stat(sidecarPath); err == nil {
		return sidecarPath, true
	}
	return "", false
}

// processPair drives one pair through parse, resolve, relocate and record.
func (pipeline *Pipeline) processPair(ctx context.Context, imagePath, sidecarPath string) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	name, err := ParseReportName(base, info.ModTime())
	if err != nil {
		return err
	}

	details, err := os.ReadFile(sidecarPath)
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}

	operator, machineID, err := pipeline.resolveSubject(ctx, name.SubjectID)
	if err != nil {
		return err
	}

	// Copy into durable storage first, move the originals only after the
	// alert row lands: a crash in between leaves the sources in place for
	// the next sweep instead of losing them.
	imageRel, err := pipeline.media.ImportFile("alerts", name.AlertType, name.Timestamp, imagePath)
	if err != nil {
		return fmt.Errorf("relocate image: %w", err)
	}
	if _, err := pipeline.media.ImportFile("alerts", name.AlertType, name.Timestamp, sidecarPath); err != nil {
		return fmt.Errorf("relocate sidecar: %w", err)
	}

	alert := models.Alert{
		AlertType:  name.AlertType,
		OperatorID: &operator.ID,
		MachineID:  machineID,
		Timestamp:  name.Timestamp,
		Details:    string(details),
		ImagePath:  imageRel,
	}
	if err := pipeline.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	pipeline.fileAway(imagePath, sidecarPath, processedDir)
	return nil
}

// resolveSubject maps the filename's subject id to an operator (required)
// and their actively assigned machine (optional).
func (pipeline *Pipeline) resolveSubject(ctx context.Context, subjectID string) (*models.Operator, *int64, error) {
	var operator models.Operator
	err := pipeline.db.WithContext(ctx).
		Where("national_id = ?", subjectID).
		First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("no operator with id %s", subjectID)
		}
		return nil, nil, fmt.Errorf("operator lookup: %w", err)
	}

	var assignment models.MachineAssignment
	err = pipeline.db.WithContext(ctx).
		Where("operator_id = ? AND active = ?", operator.ID, true).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &operator, nil, nil // unassigned operators are fine
		}
		return nil, nil, fmt.Errorf("assignment lookup: %w", err)
	}
	return &operator, &assignment.MachineID, nil
}

// fileAway claims both originals into the named quarantine subfolder. The
// rename-based claim is atomic, so a concurrent sweep racing on the same
// pair loses cleanly instead of double-filing.
func (pipeline *Pipeline) fileAway(imagePath, sidecarPath, subdir string) {
	dst := filepath.Join(pipeline.dropDir, subdir)
	for _, src := range []string{imagePath, sidecarPath} {
		_, claimed, err := storage.ClaimFileToDir(src, dst)
		if err != nil {
			slog.Warn("Failed to file report source", "component", "IngestPipeline",
				"file", src, "dest", subdir, "error", err)
		} else if !claimed {
			slog.Debug("Report source already claimed", "component", "IngestPipeline", "file", src)
		}
	}
}

// quarantine moves whichever of the pair still exists into failed/.
// Best-effort: a relocation failure here is logged, never raised.
func (pipeline *Pipeline) quarantine(imagePath, sidecarPath string) {
	pipeline.fileAway(imagePath, sidecarPath, failedDir)
}
