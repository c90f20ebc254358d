package models

import (
	"encoding/json"
	"time"
)

// RegisterRequest is the body of the device registration call. The
// registration secret must match the server-held master value.
type RegisterRequest struct {
	DeviceID           string `json:"device_id" binding:"required"`
	DeviceClass        string `json:"device_class" binding:"required,oneof=camera sensor"`
	MachineID          *int64 `json:"machine_id"`
	NetworkAddress     string `json:"network_address"`
	RegistrationSecret string `json:"registration_secret" binding:"required"`
}

// RegisterResponse carries the plaintext device secret exactly once.
// Only its bcrypt hash is persisted; the secret is not retrievable again.
type RegisterResponse struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// AuthRequest is the body of the device authentication call.
type AuthRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// AuthResponse carries the bearer token and its expiry.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HeartbeatRequest optionally updates device status and network address.
type HeartbeatRequest struct {
	Status         string `json:"status" binding:"omitempty,oneof=online error syncing"`
	NetworkAddress string `json:"network_address"`
}

// SyncEventInput is one event inside a sync batch. LocalID is the
// device-local identifier echoed back in the assignment map.
type SyncEventInput struct {
	LocalID    string          `json:"local_id" binding:"required"`
	EventType  string          `json:"event_type"`
	DeviceTime *time.Time      `json:"device_time"`
	Payload    json.RawMessage `json:"payload"`
	HasImage   bool            `json:"has_image"`
}

// BatchSubmitRequest is the body of the sync submission call.
type BatchSubmitRequest struct {
	BatchID string           `json:"batch_id" binding:"required"`
	Events  []SyncEventInput `json:"events" binding:"required"`
}

// EventError records one per-event failure inside a batch. Per-event
// failures are data, not errors: they never abort the batch.
type EventError struct {
	LocalID string `json:"local_id"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// BatchResult is the outcome of a batch submission: a mapping of
// device-local event IDs to server-assigned IDs plus per-event errors.
type BatchResult struct {
	BatchID  string           `json:"batch_id"`
	Status   string           `json:"status"`
	Assigned map[string]int64 `json:"assigned"`
	Errors   []EventError     `json:"errors,omitempty"`
}

// DeviceStats are the counters returned by the device status endpoint.
type DeviceStats struct {
	TotalEvents     int64  `json:"total_events"`
	PendingImages   int64  `json:"pending_images"`
	LastBatchStatus string `json:"last_batch_status,omitempty"`
}

// DeviceStatusResponse is the device+machine+stats snapshot.
type DeviceStatusResponse struct {
	Device  *Device     `json:"device"`
	Machine *Machine    `json:"machine,omitempty"`
	Stats   DeviceStats `json:"stats"`
}

// SweepSummary is the per-sweep result of the ingestion pipeline (and the
// shape returned by the admin sweep-trigger endpoints).
type SweepSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ConfigErrorRequest reports a device-side configuration apply failure.
type ConfigErrorRequest struct {
	Version int    `json:"version" binding:"required"`
	Error   string `json:"error" binding:"required"`
}

// ConfigConfirmRequest acknowledges a successfully applied configuration.
type ConfigConfirmRequest struct {
	Version int `json:"version" binding:"required"`
}

// FaceJobStatus mirrors the file-based progress contract of the external
// facial-feature encoding job.
type FaceJobStatus struct {
	Progress    int        `json:"progress"`
	Running     bool       `json:"running"`
	ResultReady bool       `json:"result_ready"`
	ResultTime  *time.Time `json:"result_time,omitempty"`
	LogTail     []string   `json:"log_tail,omitempty"`
}
