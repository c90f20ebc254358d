// Package audit persists operational log entries consumed by the
// dashboard subsystem, mirroring each entry to slog.
package audit

import (
	"context"
	"log/slog"

	"fleetmon/pkg/models"

	"gorm.io/gorm"
)

// Logger is the system log sink.
type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Log records a system log entry. A storage failure here is logged and
// swallowed: the sink must never fail the operation that is reporting.
func (logger *Logger) Log(ctx context.Context, level, message string, machineID *int64, details string) {
	entry := models.SystemLog{
		Level:     level,
		Message:   message,
		MachineID: machineID,
		Details:   details,
	}
	if err := logger.db.WithContext(ctx).Create(&entry).Error; err != nil {
		slog.Error("Failed to persist system log entry", "component", "SystemLog", "error", err)
	}

	switch level {
	case "error":
		slog.Error(message, "component", "SystemLog", "details", details)
	case "warning":
		slog.Warn(message, "component", "SystemLog", "details", details)
	default:
		slog.Info(message, "component", "SystemLog", "details", details)
	}
}
