package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"battery_scheduler/internal/models"

	"github.com/google/uuid"
)

// timestampLayout sorts lexically, so range filters compare as text.
const timestampLayout = "2006-01-02 15:04:05.000"

const (
	insertAuditSQL = `
		INSERT INTO schedule_events (id, run_id, occurred_at, type, mode, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectAuditSQL = `SELECT seq, id, run_id, occurred_at, type, mode, message, meta FROM schedule_events`
)

type AuditSQLite struct {
	db *sql.DB
}

func NewAuditSQLite(db *sql.DB) *AuditSQLite { return &AuditSQLite{db: db} }

var _ AuditRepo = (*AuditSQLite)(nil)

// Append inserts an event, filling EventID and OccurredAt when empty.
func (r *AuditSQLite) Append(ctx context.Context, e models.ScheduleEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertAuditSQL,
		e.EventID,
		e.RunID,
		e.OccurredAt.UTC().Format(timestampLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		string(e.Mode),
		e.Description,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", e.EventID, err)
	}
	return nil
}

// List returns events matching q in insertion order.
func (r *AuditSQLite) List(ctx context.Context, q AuditQuery) ([]models.ScheduleEvent, error) {
	var (
		conds []string
		args  []any
	)
	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC().Format(timestampLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC().Format(timestampLayout))
	}
	if q.AfterSeq > 0 {
		conds = append(conds, "seq > ?")
		args = append(args, q.AfterSeq)
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if q.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, q.RunID)
	}

	query := selectAuditSQL
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScheduleEvent, 0, 64)
	for rows.Next() {
		var (
			ev       models.ScheduleEvent
			occurred string
			mode     string
			meta     sql.NullString
		)
		if err := rows.Scan(&ev.Seq, &ev.EventID, &ev.RunID, &occurred, &ev.Type, &mode, &ev.Description, &meta); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ts, err := time.ParseInLocation(timestampLayout, occurred, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", occurred, err)
		}
		ev.OccurredAt = ts
		ev.Mode = models.Mode(mode)

		if meta.Valid && meta.String != "" {
			var v any
			if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = meta.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
