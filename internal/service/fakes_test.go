package service

import (
	"context"
	"sync"
	"time"

	"battery_scheduler/internal/models"
	"battery_scheduler/internal/repository"
)

// fakeDevice is an in-memory inverter. block, when set, is received from
// before ReadSchedule returns.
type fakeDevice struct {
	mu sync.Mutex

	schedule models.Schedule
	soc      float64

	readErr  error
	socErr   error
	writeErr error

	block   chan struct{}
	entered chan struct{}

	reads    int
	socReads int
	writes   []models.Schedule
}

func (d *fakeDevice) ReadSchedule(ctx context.Context) (models.Schedule, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return models.Schedule{}, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	return d.schedule, d.readErr
}

func (d *fakeDevice) WriteSchedule(_ context.Context, s models.Schedule) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.writes = append(d.writes, s)
	return nil
}

func (d *fakeDevice) ReadSOC(context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.socReads++
	return d.soc, d.socErr
}

type fakePrices struct {
	prices models.DayPrices
	err    error
	gotNow time.Time
	calls  int
}

func (p *fakePrices) GetPrices(_ context.Context, now time.Time) (models.DayPrices, error) {
	p.calls++
	p.gotNow = now
	return p.prices, p.err
}

// fakeAuditRepo satisfies repository.AuditRepo.
type fakeAuditRepo struct {
	mu sync.Mutex

	appended  []models.ScheduleEvent
	appendErr error

	gotQuery repository.AuditQuery
	events   []models.ScheduleEvent
	listErr  error
	calls    int
}

func (f *fakeAuditRepo) Append(_ context.Context, e models.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	e.Seq = int64(len(f.appended) + 1)
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, q repository.AuditQuery) ([]models.ScheduleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotQuery = q
	return f.events, f.listErr
}

func (f *fakeAuditRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

// fakeStatusRepo satisfies repository.RunStatusRepo.
type fakeStatusRepo struct {
	saved   []models.RunStatus
	saveErr error

	all     []models.RunStatus
	loadErr error
}

func (f *fakeStatusRepo) Save(_ context.Context, s models.RunStatus) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStatusRepo) Load(_ context.Context, mode models.Mode) (models.RunStatus, error) {
	for _, s := range f.all {
		if s.Mode == mode {
			return s, f.loadErr
		}
	}
	return models.RunStatus{}, f.loadErr
}

func (f *fakeStatusRepo) LoadAll(context.Context) ([]models.RunStatus, error) {
	return f.all, f.loadErr
}

type fakePublisher struct {
	published []models.RunStatus
	err       error
}

func (p *fakePublisher) PublishRun(_ context.Context, s models.RunStatus) error {
	p.published = append(p.published, s)
	return p.err
}
