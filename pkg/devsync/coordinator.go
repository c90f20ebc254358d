// Package devsync implements the batch event-sync coordinator: bounded
// batch uploads with partial-failure tracking, follow-up image attachment
// and batch confirmation.
package devsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/database"
	"fleetmon/pkg/models"
	"fleetmon/pkg/storage"

	"gorm.io/gorm"
)

// Coordinator owns the Event and SyncBatch write paths.
type Coordinator struct {
	db            *gorm.DB
	devices       *database.GormRepository[models.Device]
	events        *database.GormRepository[models.Event]
	batches       *database.GormRepository[models.SyncBatch]
	media         *storage.MediaStore
	maxBatchSize  int
	maxImageBytes int64
}

func NewCoordinator(db *gorm.DB, media *storage.MediaStore, maxBatchSize int, maxImageBytes int64) *Coordinator {
	return &Coordinator{
		db:            db,
		devices:       database.NewGormRepository[models.Device](db),
		events:        database.NewGormRepository[models.Event](db),
		batches:       database.NewGormRepository[models.SyncBatch](db),
		media:         media,
		maxBatchSize:  maxBatchSize,
		maxImageBytes: maxImageBytes,
	}
}

// SubmitBatch persists one device's batch of events. Per-event failures are
// recorded in the result rather than raised; only batch-level problems
// (duplicate batch id, unknown device, storage loss) return an error.
//
// Terminal batch statuses: completed (all events ok), partial (some ok),
// failed (none ok). A batch is never left in processing once this returns.
func (coordinator *Coordinator) SubmitBatch(ctx context.Context, deviceID string, req *models.BatchSubmitRequest) (*models.BatchResult, error) {
	device, err := coordinator.lookupDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if len(req.Events) == 0 {
		return nil, fmt.Errorf("batch %q carries no events: %w", req.BatchID, apperr.ErrValidation)
	}
	if coordinator.maxBatchSize > 0 && len(req.Events) > coordinator.maxBatchSize {
		return nil, fmt.Errorf("batch %q exceeds %d events: %w", req.BatchID, coordinator.maxBatchSize, apperr.ErrValidation)
	}

	if _, err := coordinator.batches.GetByField(ctx, "batch_id", req.BatchID); err == nil {
		return nil, fmt.Errorf("batch %q already submitted: %w", req.BatchID, apperr.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	// Audit-first: the batch row exists in processing state before any
	// event is written. The unique index on batch_id settles concurrent
	// duplicate submissions in favour of exactly one of them.
	batch := models.SyncBatch{
		BatchID:   req.BatchID,
		DeviceID:  device.ID,
		Size:      len(req.Events),
		Status:    models.BatchProcessing,
		StartedAt: time.Now(),
	}
	if _, err := coordinator.batches.Create(ctx, &batch); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("batch %q already submitted: %w", req.BatchID, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	coordinator.touchDevice(ctx, device.ID, models.DeviceSyncing)

	result := &models.BatchResult{
		BatchID:  req.BatchID,
		Assigned: make(map[string]int64, len(req.Events)),
	}

	now := time.Now()
	for i, input := range req.Events {
		if reason, ok := validateEvent(&input); !ok {
			result.Errors = append(result.Errors, models.EventError{LocalID: input.LocalID, Index: i, Reason: reason})
			continue
		}

		event := models.Event{
			DeviceID:   device.ID,
			EventType:  input.EventType,
			MachineID:  device.MachineID,
			Payload:    string(input.Payload),
			DeviceTime: *input.DeviceTime,
			ServerTime: now,
			BatchID:    &batch.ID,
			Synced:     true,
		}
		if input.HasImage {
			pending := models.ImagePending
			event.ImagePath = &pending
		}

		if _, err := coordinator.events.Create(ctx, &event); err != nil {
			slog.Error("Failed to persist event", "component", "SyncCoordinator",
				"batch_id", req.BatchID, "local_id", input.LocalID, "error", err)
			result.Errors = append(result.Errors, models.EventError{LocalID: input.LocalID, Index: i, Reason: "storage failure"})
			continue
		}
		result.Assigned[input.LocalID] = event.ID
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = models.BatchCompleted
	case len(result.Assigned) == 0:
		result.Status = models.BatchFailed
	default:
		result.Status = models.BatchPartial
	}
	coordinator.finalizeBatch(ctx, batch.ID, result.Status)

	slog.Info("Batch processed", "component", "SyncCoordinator",
		"batch_id", req.BatchID, "device_id", deviceID,
		"succeeded", len(result.Assigned), "failed", len(result.Errors), "status", result.Status)
	return result, nil
}

// ConfirmBatch marks the device online, but only once the named batch
// reached completed state.
func (coordinator *Coordinator) ConfirmBatch(ctx context.Context, deviceID, batchID string) error {
	device, err := coordinator.lookupDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	batch, err := coordinator.batches.GetByField(ctx, "batch_id", batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("batch %q: %w", batchID, apperr.ErrNotFound)
		}
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if batch.DeviceID != device.ID {
		return fmt.Errorf("batch %q belongs to another device: %w", batchID, apperr.ErrForbidden)
	}
	if batch.Status != models.BatchCompleted {
		return fmt.Errorf("batch %q is %s, not completed: %w", batchID, batch.Status, apperr.ErrValidation)
	}

	coordinator.touchDevice(ctx, device.ID, models.DeviceOnline)
	return nil
}

// validateEvent checks the per-event required fields. Returning ok=false
// records the event as a failure without aborting the batch.
func validateEvent(input *models.SyncEventInput) (string, bool) {
	if input.EventType == "" {
		return "missing event_type", false
	}
	if !models.ValidAlertType(input.EventType) {
		return fmt.Sprintf("unknown event_type %q", input.EventType), false
	}
	if input.DeviceTime == nil || input.DeviceTime.IsZero() {
		return "missing device_time", false
	}
	return "", true
}

// finalizeBatch records the terminal status exactly once.
func (coordinator *Coordinator) finalizeBatch(ctx context.Context, id int64, status string) {
	now := time.Now()
	err := coordinator.db.WithContext(ctx).Model(&models.SyncBatch{}).
		Where("id = ? AND status = ?", id, models.BatchProcessing).
		Updates(map[string]any{"status": status, "completed_at": now}).Error
	if err != nil {
		slog.Error("Failed to finalize batch", "component", "SyncCoordinator", "batch", id, "error", err)
	}
}

func (coordinator *Coordinator) lookupDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := coordinator.devices.GetByField(ctx, "device_id", deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %q: %w", deviceID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return device, nil
}

// touchDevice bumps status and last-contact, last-writer-wins. The liveness
// sweep reconciles from raw timestamps, so unconditional updates converge.
func (coordinator *Coordinator) touchDevice(ctx context.Context, id int64, status string) {
	now := time.Now()
	err := coordinator.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_contact": now}).Error
	if err != nil {
		slog.Warn("Failed to update device contact", "component", "SyncCoordinator", "device", id, "error", err)
	}
}
