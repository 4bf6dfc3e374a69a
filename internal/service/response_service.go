package service

import (
	"time"

	"battery_scheduler/internal/models"
)

// RunResult describes one finished scheduling run.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Mode       models.Mode     `json:"mode"`
	Outcome    string          `json:"outcome"` // WRITTEN | SKIPPED | FAILED
	Reason     string          `json:"reason,omitempty"`
	SOC        *float64        `json:"soc,omitempty"`
	Current    []models.Period `json:"current"`
	Candidates []models.Period `json:"candidates"`
	Final      []models.Period `json:"final"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ScheduleView is the device schedule as read right now.
type ScheduleView struct {
	Schedule models.Schedule `json:"schedule"`
	Lines    []string        `json:"lines"`
	ReadAt   time.Time       `json:"read_at"`
}

// LogFilter narrows audit log queries.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "SNAPSHOT", "SKIPPED", "WRITE", "ERROR"
	RunID string
}
