package models

import "time"

// Audit event types.
const (
	EventSnapshot = "SNAPSHOT"
	EventSkipped  = "SKIPPED"
	EventWrite    = "WRITE"
	EventError    = "ERROR"
)

// ScheduleEvent is one append-only audit entry of a scheduling run.
type ScheduleEvent struct {
	Seq         int64     `json:"seq"`
	EventID     string    `json:"event_id"`
	RunID       string    `json:"run_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // SNAPSHOT | SKIPPED | WRITE | ERROR
	Mode        Mode      `json:"mode"`
	Description string    `json:"description"` // human-readable block
	Metadata    any       `json:"metadata,omitempty"`
}
