package service

import (
	"context"
	"time"

	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"
	"battery_scheduler/internal/repository"
)

// DeviceLink is the inverter register interface.
type DeviceLink interface {
	ReadSchedule(ctx context.Context) (models.Schedule, error)
	WriteSchedule(ctx context.Context, s models.Schedule) error
	ReadSOC(ctx context.Context) (float64, error)
}

// PriceSource returns today's and, when published, tomorrow's prices.
type PriceSource interface {
	GetPrices(ctx context.Context, now time.Time) (models.DayPrices, error)
}

// Publisher pushes run outcomes to an external consumer.
type Publisher interface {
	PublishRun(ctx context.Context, s models.RunStatus) error
}

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Scheduler runs one optimisation pass for a mode.
type Scheduler interface {
	Run(ctx context.Context, mode models.Mode) (RunResult, error)
}

// Monitoring exposes the live device schedule and recent run outcomes.
type Monitoring interface {
	CurrentSchedule(ctx context.Context) (ScheduleView, error)
	LastRuns(ctx context.Context) ([]models.RunStatus, error)
}

// EventLog reads the append-only audit log.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ScheduleEvent, error)
	Since(ctx context.Context, afterSeq int64, limit int) ([]models.ScheduleEvent, error)
}

type Service struct {
	Scheduler
	Monitoring
	EventLog
	Authorization
}

// Deps are the collaborators NewService wires together. Publisher may be nil.
type Deps struct {
	Repos      *repository.Repository
	Device     DeviceLink
	Prices     PriceSource
	Publisher  Publisher
	Log        *logger.Logger
	Scheduler  SchedulerConfig
	SigningKey string
	// AllowSignUp keeps /auth/sign-up open after the first user exists.
	AllowSignUp bool
}

func NewService(d Deps) *Service {
	return &Service{
		Scheduler:     NewSchedulerService(d.Device, d.Prices, d.Repos.Audit, d.Repos.RunStatus, d.Publisher, d.Log, d.Scheduler),
		Monitoring:    NewMonitoringService(d.Device, d.Repos.RunStatus, d.Scheduler.Zone),
		EventLog:      NewEventLogService(d.Repos.Audit),
		Authorization: NewAuthService(d.Repos.Auth, d.SigningKey, d.AllowSignUp),
	}
}
