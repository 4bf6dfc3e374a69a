package repository

import (
	"context"
	"database/sql"
	"time"

	"battery_scheduler/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// RunStatusRepo keeps the latest outcome of each mode.
type RunStatusRepo interface {
	Save(ctx context.Context, s models.RunStatus) error
	Load(ctx context.Context, mode models.Mode) (models.RunStatus, error)
	LoadAll(ctx context.Context) ([]models.RunStatus, error)
}

// AuditRepo is the append-only schedule audit log.
type AuditRepo interface {
	Append(ctx context.Context, e models.ScheduleEvent) error
	List(ctx context.Context, q AuditQuery) ([]models.ScheduleEvent, error)
}

// AuditQuery filters the audit log. Zero values disable a filter.
type AuditQuery struct {
	From     time.Time // inclusive
	To       time.Time // inclusive
	AfterSeq int64     // exclusive, used by streaming readers
	Type     string
	RunID    string
	Limit    int
}

type Repository struct {
	RunStatus RunStatusRepo
	Audit     AuditRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		RunStatus: NewRunStatusSQLite(db),
		Audit:     NewAuditSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
