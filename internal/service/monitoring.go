package service

import (
	"context"
	"fmt"
	"time"

	"battery_scheduler/internal/models"
	"battery_scheduler/internal/optimizer"
	"battery_scheduler/internal/repository"
)

type MonitoringService struct {
	device     DeviceLink
	statusRepo repository.RunStatusRepo
	zone       *time.Location
	now        func() time.Time
}

func NewMonitoringService(device DeviceLink, statusRepo repository.RunStatusRepo, zone *time.Location) *MonitoringService {
	if zone == nil {
		zone = time.Local
	}
	return &MonitoringService{device: device, statusRepo: statusRepo, zone: zone, now: time.Now}
}

// CurrentSchedule reads the live schedule from the inverter.
func (s *MonitoringService) CurrentSchedule(ctx context.Context) (ScheduleView, error) {
	sched, err := s.device.ReadSchedule(ctx)
	if err != nil {
		return ScheduleView{}, fmt.Errorf("read device schedule: %w", err)
	}
	if sched.Periods == nil {
		sched.Periods = []models.Period{}
	}
	return ScheduleView{
		Schedule: sched,
		Lines:    optimizer.FormatBlock("Current Schedule", sched.Periods),
		ReadAt:   s.now().In(s.zone),
	}, nil
}

// LastRuns returns the latest stored outcome of each mode, normalised to UTC.
func (s *MonitoringService) LastRuns(ctx context.Context) ([]models.RunStatus, error) {
	runs, err := s.statusRepo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].StartedAt = toUTC(runs[i].StartedAt)
		runs[i].FinishedAt = toUTC(runs[i].FinishedAt)
	}
	if runs == nil {
		runs = []models.RunStatus{}
	}
	return runs, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
