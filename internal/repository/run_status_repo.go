package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"battery_scheduler/internal/models"
)

type RunStatusSQLite struct {
	db *sql.DB
}

func NewRunStatusSQLite(db *sql.DB) *RunStatusSQLite {
	return &RunStatusSQLite{db: db}
}

var _ RunStatusRepo = (*RunStatusSQLite)(nil)

const (
	upsertRunStatusSQL = `
		INSERT INTO run_status (mode, run_id, outcome, reason, step, periods, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mode) DO UPDATE SET
			run_id=excluded.run_id,
			outcome=excluded.outcome,
			reason=excluded.reason,
			step=excluded.step,
			periods=excluded.periods,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at
	`

	selectRunStatusSQL    = `SELECT mode, run_id, outcome, reason, step, periods, started_at, finished_at FROM run_status`
	selectRunStatusByMode = selectRunStatusSQL + ` WHERE mode=?`
)

func marshalPeriods(ps []models.Period) (string, error) {
	if ps == nil {
		ps = []models.Period{}
	}
	b, err := json.Marshal(ps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalPeriods(s string) ([]models.Period, error) {
	if s == "" {
		return nil, nil
	}
	var ps []models.Period
	if err := json.Unmarshal([]byte(s), &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// Save replaces the stored status for s.Mode.
func (r *RunStatusSQLite) Save(ctx context.Context, s models.RunStatus) error {
	periods, err := marshalPeriods(s.Periods)
	if err != nil {
		return fmt.Errorf("marshal periods: %w", err)
	}
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = r.db.ExecContext(ctx, upsertRunStatusSQL,
		string(s.Mode),
		s.RunID,
		s.Outcome,
		s.Reason,
		s.Step,
		periods,
		s.StartedAt.UTC().Format(timestampLayout),
		finished.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("save run status %s: %w", s.Mode, err)
	}
	return nil
}

// Load returns the status for mode, or a zero value if the mode never ran.
func (r *RunStatusSQLite) Load(ctx context.Context, mode models.Mode) (models.RunStatus, error) {
	s, err := scanRunStatus(r.db.QueryRowContext(ctx, selectRunStatusByMode, string(mode)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunStatus{}, nil
	}
	return s, err
}

// LoadAll returns every stored status ordered by mode.
func (r *RunStatusSQLite) LoadAll(ctx context.Context) ([]models.RunStatus, error) {
	rows, err := r.db.QueryContext(ctx, selectRunStatusSQL+` ORDER BY mode`)
	if err != nil {
		return nil, fmt.Errorf("query run status: %w", err)
	}
	defer rows.Close()

	var out []models.RunStatus
	for rows.Next() {
		s, err := scanRunStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunStatus(row rowScanner) (models.RunStatus, error) {
	var (
		s                 models.RunStatus
		mode, periods     string
		started, finished string
	)
	if err := row.Scan(&mode, &s.RunID, &s.Outcome, &s.Reason, &s.Step, &periods, &started, &finished); err != nil {
		return models.RunStatus{}, err
	}
	s.Mode = models.Mode(mode)

	ps, err := unmarshalPeriods(periods)
	if err != nil {
		return models.RunStatus{}, fmt.Errorf("decode periods for %s: %w", mode, err)
	}
	s.Periods = ps

	if s.StartedAt, err = time.ParseInLocation(timestampLayout, started, time.UTC); err != nil {
		return models.RunStatus{}, fmt.Errorf("parse started_at: %w", err)
	}
	if s.FinishedAt, err = time.ParseInLocation(timestampLayout, finished, time.UTC); err != nil {
		return models.RunStatus{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return s, nil
}
