package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"battery_scheduler/internal/models"
	"battery_scheduler/internal/repository"
)

const (
	defaultStreamBatch = 100
	maxStreamBatch     = 1000
)

type EventLogService struct {
	auditRepo repository.AuditRepo
}

func NewEventLogService(auditRepo repository.AuditRepo) *EventLogService {
	return &EventLogService{auditRepo: auditRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	errInvalidEventType = errors.New("invalid event type")
)

var knownEventTypes = map[string]bool{
	models.EventSnapshot: true,
	models.EventSkipped:  true,
	models.EventWrite:    true,
	models.EventError:    true,
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter turns a LogFilter into a repository query.
func normalizeAndValidateFilter(f LogFilter) (repository.AuditQuery, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.AuditQuery{}, errInvalidTimeRange
	}

	typ := normalizeEventType(f.Type)
	if typ != "" && !knownEventTypes[typ] {
		return repository.AuditQuery{}, fmt.Errorf("%w: %q", errInvalidEventType, f.Type)
	}
	return repository.AuditQuery{From: from, To: to, Type: typ, RunID: strings.TrimSpace(f.RunID)}, nil
}

// IsInvalidFilter reports whether err came from filter validation.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidEventType)
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ScheduleEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.auditRepo.List(ctx, q)
}

// Since returns up to limit events appended after afterSeq.
func (s *EventLogService) Since(ctx context.Context, afterSeq int64, limit int) ([]models.ScheduleEvent, error) {
	if limit <= 0 {
		limit = defaultStreamBatch
	}
	if limit > maxStreamBatch {
		limit = maxStreamBatch
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	return s.auditRepo.List(ctx, repository.AuditQuery{AfterSeq: afterSeq, Limit: limit})
}
