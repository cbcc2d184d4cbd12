package models

import (
	"encoding/json"
	"time"
)

// Resources that can be replayed from an offline client queue.
const (
	SyncResourceAttendance = "attendance"
	SyncResourceGrade      = "grade"
	SyncResourceEvaluation = "evaluation"
)

// Sync actions.
const (
	SyncActionUpsert = "upsert"
	SyncActionDelete = "delete"
)

// Per-operation replay status.
const (
	SyncStatusApplied   = "applied"
	SyncStatusDuplicate = "duplicate"
	SyncStatusFailed    = "failed"
)

// SyncOperation is one queued client write.
type SyncOperation struct {
	OpID     string          `json:"op_id" validate:"required,max=100"`
	Resource string          `json:"resource" validate:"required,oneof=attendance grade evaluation"`
	Action   string          `json:"action" validate:"required,oneof=upsert delete"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at" validate:"required"`
}

// SyncRequest is a batch of queued operations from one client.
type SyncRequest struct {
	ClientID   string          `json:"client_id" validate:"required,max=100"`
	Operations []SyncOperation `json:"operations" validate:"required,min=1,dive"`
}

// SyncOperationResult reports what happened to one operation. Clients keep
// failed operations with Retryable set and drop everything else.
type SyncOperationResult struct {
	OpID      string `json:"op_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
	RecordID  string `json:"record_id,omitempty"`
}

// SyncResponse summarises a replayed batch in replay order.
type SyncResponse struct {
	ClientID   string                `json:"client_id"`
	Applied    int                   `json:"applied"`
	Duplicates int                   `json:"duplicates"`
	Failed     int                   `json:"failed"`
	Results    []SyncOperationResult `json:"results"`
}

// SyncRecord marks an operation as applied for idempotent replays.
type SyncRecord struct {
	ClientID  string    `db:"client_id" json:"client_id"`
	OpID      string    `db:"op_id" json:"op_id"`
	Resource  string    `db:"resource" json:"resource"`
	Action    string    `db:"action" json:"action"`
	RecordID  string    `db:"record_id" json:"record_id"`
	AppliedBy *string   `db:"applied_by" json:"applied_by,omitempty"`
	AppliedAt time.Time `db:"applied_at" json:"applied_at"`
}
