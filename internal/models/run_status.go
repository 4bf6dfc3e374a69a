package models

import "time"

// Run outcomes.
const (
	OutcomeWritten = "WRITTEN"
	OutcomeSkipped = "SKIPPED"
	OutcomeFailed  = "FAILED"
)

// RunStatus is the latest outcome per mode, shown on the status endpoint.
// It is never read back by the scheduler itself.
type RunStatus struct {
	Mode       Mode      `json:"mode"`
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Step       string    `json:"step,omitempty"`
	Periods    []Period  `json:"periods"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
