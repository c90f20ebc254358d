package models

import (
	"time"
)

// Device statuses
const (
	DeviceOnline   = "online"
	DeviceOffline  = "offline"
	DeviceError    = "error"
	DeviceSyncing  = "syncing"
	DeviceInactive = "inactive"
)

// Device classes
const (
	ClassCamera = "camera"
	ClassSensor = "sensor"
)

// SyncBatch statuses. Transitions are processing -> completed|partial|failed,
// never backward; CompletedAt is set exactly once.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)

// Alert (and event) types
const (
	AlertFatigue      = "fatigue"
	AlertDistraction  = "distraction"
	AlertYawn         = "yawn"
	AlertPhone        = "phone"
	AlertSmoking      = "smoking"
	AlertUnauthorized = "unauthorized"
	AlertBehavior     = "behavior"
	AlertDeviceError  = "device_error"
	AlertOther        = "other"
)

// ImagePending is the Event.ImagePath sentinel meaning a follow-up
// image upload is expected for this event.
const ImagePending = "pending"

var alertTypes = map[string]bool{
	AlertFatigue:      true,
	AlertDistraction:  true,
	AlertYawn:         true,
	AlertPhone:        true,
	AlertSmoking:      true,
	AlertUnauthorized: true,
	AlertBehavior:     true,
	AlertDeviceError:  true,
	AlertOther:        true,
}

// ValidAlertType reports whether t is one of the enumerated alert types.
func ValidAlertType(t string) bool { return alertTypes[t] }

// Device represents the devices table. DeviceID is the device-assigned
// identifier used on the wire; ID is the surrogate key.
type Device struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID       string     `gorm:"uniqueIndex;not null" json:"device_id"`
	SecretHash     string     `gorm:"not null" json:"-"`
	DeviceClass    string     `gorm:"not null;default:'camera'" json:"device_class"`
	MachineID      *int64     `json:"machine_id"`
	Machine        *Machine   `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
	Status         string     `gorm:"default:'offline'" json:"status"`
	LastContact    *time.Time `json:"last_contact"`
	NetworkAddress string     `json:"network_address"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Operator represents the operators table. Read-only from this core;
// owned by the administrative subsystem.
type Operator struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NationalID string    `gorm:"uniqueIndex;not null" json:"national_id"`
	Name       string    `gorm:"not null" json:"name"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Machine represents the machines table. Read-only from this core.
type Machine struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// MachineAssignment links an operator to the machine they currently work on.
// At most one active assignment per operator is expected.
type MachineAssignment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID int64     `gorm:"not null;index" json:"operator_id"`
	MachineID  int64     `gorm:"not null;index" json:"machine_id"`
	Active     bool      `gorm:"default:true" json:"active"`
	AssignedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"assigned_at"`
}

// Event represents the events table. Payload is an opaque structured blob
// stored verbatim; ImagePath may hold the ImagePending sentinel until the
// follow-up upload lands.
type Event struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID   int64     `gorm:"not null;index" json:"device_id"`
	EventType  string    `gorm:"not null" json:"event_type"`
	OperatorID *int64    `json:"operator_id"`
	MachineID  *int64    `json:"machine_id"`
	Payload    string    `gorm:"type:text" json:"payload"`
	ImagePath  *string   `json:"image_path"`
	DeviceTime time.Time `gorm:"not null" json:"device_time"`
	ServerTime time.Time `gorm:"not null" json:"server_time"`
	BatchID    *int64    `gorm:"index" json:"batch_id"`
	Synced     bool      `gorm:"default:false" json:"synced"`
}

// Alert represents the alerts table. Created by the ingestion pipeline or
// by the liveness monitor; only acknowledgement actions mutate it afterwards.
type Alert struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlertType      string     `gorm:"not null;index" json:"alert_type"`
	OperatorID     *int64     `json:"operator_id"`
	MachineID      *int64     `json:"machine_id"`
	DeviceID       *int64     `gorm:"index" json:"device_id"`
	Timestamp      time.Time  `gorm:"not null;index" json:"timestamp"`
	Details        string     `gorm:"type:text" json:"details"`
	ImagePath      string     `json:"image_path"`
	Acknowledged   bool       `gorm:"default:false" json:"acknowledged"`
	AcknowledgedBy *string    `json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// SyncBatch represents the sync_batches table. BatchID is client-supplied
// and unique; the index is what makes duplicate submission a hard conflict
// even under concurrent submitters.
type SyncBatch struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID     string     `gorm:"uniqueIndex;not null" json:"batch_id"`
	DeviceID    int64      `gorm:"not null;index" json:"device_id"`
	Size        int        `gorm:"not null" json:"size"`
	Status      string     `gorm:"default:'processing'" json:"status"`
	StartedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SystemLog represents the system_logs table (operational log sink).
type SystemLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string    `gorm:"not null" json:"level"`
	Message   string    `gorm:"not null" json:"message"`
	MachineID *int64    `json:"machine_id"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// DeviceConfig represents the device_configs table, versioned per device.
// Owned by the config-manager collaborator; the core only reads and
// records apply/error acknowledgements.
type DeviceConfig struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID   int64      `gorm:"not null;index" json:"device_id"`
	Version    int        `gorm:"not null" json:"version"`
	Payload    string     `gorm:"type:text" json:"payload"`
	AppliedAt  *time.Time `json:"applied_at"`
	LastError  string     `json:"last_error"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName overrides the default table name logic
func (Device) TableName() string            { return "devices" }
func (Operator) TableName() string          { return "operators" }
func (Machine) TableName() string           { return "machines" }
func (MachineAssignment) TableName() string { return "machine_assignments" }
func (Event) TableName() string             { return "events" }
func (Alert) TableName() string             { return "alerts" }
func (SyncBatch) TableName() string         { return "sync_batches" }
func (SystemLog) TableName() string         { return "system_logs" }
func (DeviceConfig) TableName() string      { return "device_configs" }

// GetID methods to satisfy Identifiable interface
func (d Device) GetID() int64            { return d.ID }
func (o Operator) GetID() int64          { return o.ID }
func (m Machine) GetID() int64           { return m.ID }
func (a MachineAssignment) GetID() int64 { return a.ID }
func (e Event) GetID() int64             { return e.ID }
func (a Alert) GetID() int64             { return a.ID }
func (b SyncBatch) GetID() int64         { return b.ID }
func (l SystemLog) GetID() int64         { return l.ID }
func (c DeviceConfig) GetID() int64      { return c.ID }
