package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"battery_scheduler/internal/codec"
	"battery_scheduler/internal/device"
	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"
	"battery_scheduler/internal/optimizer"
	"battery_scheduler/internal/repository"

	"github.com/google/uuid"
)

// Run steps, reported on RunError and in audit metadata.
const (
	StepReadSchedule = "read_schedule"
	StepReadSOC      = "read_soc"
	StepFetchPrices  = "fetch_prices"
	StepPlan         = "plan"
	StepEncode       = "encode"
	StepWrite        = "write"
)

// Snapshot titles.
const (
	snapshotCurrent    = "Current Schedule"
	snapshotCandidates = "New Periods"
	snapshotFinal      = "Final Schedule"
)

var (
	ErrRunInProgress = errors.New("a scheduling run is already in progress")
	ErrUnknownMode   = errors.New("unknown scheduling mode")
	// ErrTodayPricesMissing stops runs whose plan reads today's curve.
	ErrTodayPricesMissing = errors.New("today's prices are not published")
)

// RunError reports the step at which a run stopped.
type RunError struct {
	Mode models.Mode
	Step string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s run failed at %s: %v", e.Mode, e.Step, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// SchedulerConfig holds the policy settings of both modes.
type SchedulerConfig struct {
	Zone    *time.Location
	Regular optimizer.Options
	Evening optimizer.EveningOptions
}

// SchedulerService reads the device, plans and writes back. Only one run
// executes at a time.
type SchedulerService struct {
	device    DeviceLink
	prices    PriceSource
	audit     repository.AuditRepo
	status    repository.RunStatusRepo
	publisher Publisher
	log       *logger.Logger
	cfg       SchedulerConfig
	now       func() time.Time

	mu sync.Mutex
}

func NewSchedulerService(
	device DeviceLink,
	prices PriceSource,
	audit repository.AuditRepo,
	status repository.RunStatusRepo,
	publisher Publisher,
	log *logger.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if cfg.Zone == nil {
		cfg.Zone = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SchedulerService{
		device:    device,
		prices:    prices,
		audit:     audit,
		status:    status,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// run carries per-invocation state.
type run struct {
	res *RunResult
	log *logger.Logger
}

// Run executes one pass of mode. A concurrent call returns ErrRunInProgress.
func (s *SchedulerService) Run(ctx context.Context, mode models.Mode) (RunResult, error) {
	if mode != models.ModeRegular && mode != models.ModeEvening {
		return RunResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if !s.mu.TryLock() {
		return RunResult{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	res := RunResult{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: s.now().In(s.cfg.Zone),
	}
	r := &run{res: &res, log: &logger.Logger{SugaredLogger: s.log.With("run_id", res.RunID, "mode", mode)}}
	r.log.Infow("schedule_run_started", "at", res.StartedAt.Format(time.RFC3339))

	err := s.execute(ctx, r)
	res.FinishedAt = s.now().In(s.cfg.Zone)
	if err != nil {
		res.Outcome = models.OutcomeFailed
		res.Reason = err.Error()
	}
	s.finish(ctx, r, err)
	return res, err
}

func (s *SchedulerService) execute(ctx context.Context, r *run) error {
	res := r.res
	current, err := s.device.ReadSchedule(ctx)
	if err != nil {
		return s.fail(ctx, r, StepReadSchedule, err)
	}
	res.Current = current.Periods
	s.snapshot(ctx, r, snapshotCurrent, current.Periods)

	var soc float64
	if res.Mode == models.ModeEvening {
		if soc, err = s.device.ReadSOC(ctx); err != nil {
			return s.fail(ctx, r, StepReadSOC, err)
		}
		res.SOC = &soc
		r.log.Infow("battery_soc_read", "soc", soc)
	}

	prices, err := s.prices.GetPrices(ctx, res.StartedAt)
	if err != nil {
		return s.fail(ctx, r, StepFetchPrices, err)
	}
	r.log.Infow("prices_loaded", "today", len(prices.Today), "tomorrow", len(prices.Tomorrow), "has_tomorrow", prices.HasTomorrow)
	if len(prices.Today) == 0 && s.needsToday(res.Mode) {
		return s.fail(ctx, r, StepFetchPrices, ErrTodayPricesMissing)
	}

	var plan optimizer.Plan
	switch res.Mode {
	case models.ModeEvening:
		plan, err = optimizer.PlanEvening(optimizer.EveningInput{
			Current: current.Periods,
			Prices:  prices,
			SOC:     soc,
			Now:     res.StartedAt,
		}, s.cfg.Evening, s.cfg.Regular.DayAwareOverlap)
	default:
		plan, err = optimizer.PlanRegular(optimizer.RegularInput{
			Current: current.Periods,
			Prices:  prices,
			Now:     res.StartedAt,
		}, s.cfg.Regular)
	}
	res.Candidates = plan.Candidates
	if err != nil {
		return s.fail(ctx, r, StepPlan, err)
	}
	if plan.BaseDropped {
		r.log.Infow("today_periods_dropped", "reason", "tomorrow's peak prices outweigh today's remaining discharge")
	}
	s.snapshot(ctx, r, snapshotCandidates, plan.Candidates)
	s.snapshot(ctx, r, snapshotFinal, plan.Final)
	res.Final = plan.Final

	if !plan.Write {
		res.Outcome = models.OutcomeSkipped
		res.Reason = plan.Reason
		r.log.Infow("schedule_write_skipped", "reason", plan.Reason)
		s.record(ctx, r, models.EventSkipped, plan.Reason, map[string]any{"reason": plan.Reason})
		return nil
	}

	sched, err := codec.Build(plan.Final)
	if err != nil {
		return s.fail(ctx, r, StepEncode, &device.WriteError{Op: "encode tou schedule", Err: err})
	}
	if err := s.device.WriteSchedule(ctx, sched); err != nil {
		return s.fail(ctx, r, StepWrite, err)
	}

	res.Outcome = models.OutcomeWritten
	res.Final = sched.Periods
	r.log.Infow("schedule_written", "periods", sched.NumPeriods)
	s.record(ctx, r, models.EventWrite, fmt.Sprintf("wrote %d periods", sched.NumPeriods), map[string]any{
		"periods": sched.Periods,
		"raw":     sched.Raw,
	})
	return nil
}

// needsToday reports whether mode's plan reads today's prices. The regular
// plan only does so for the preserve check.
func (s *SchedulerService) needsToday(mode models.Mode) bool {
	return mode == models.ModeEvening || s.cfg.Regular.PreserveFactor > 0
}

// fail logs, audits and wraps a step failure.
func (s *SchedulerService) fail(ctx context.Context, r *run, step string, err error) error {
	runErr := &RunError{Mode: r.res.Mode, Step: step, Err: err}
	r.log.Errorw("schedule_run_failed", "step", step, "err", err)
	s.record(ctx, r, models.EventError, runErr.Error(), map[string]any{"step": step, "error": err.Error()})
	return runErr
}

// snapshot writes a titled period block to the log and the audit store.
func (s *SchedulerService) snapshot(ctx context.Context, r *run, title string, periods []models.Period) {
	lines := optimizer.FormatBlock(title, periods)
	for _, line := range lines {
		r.log.Info(line)
	}
	if periods == nil {
		periods = []models.Period{}
	}
	s.record(ctx, r, models.EventSnapshot, strings.Join(lines, "\n"), map[string]any{
		"title":   title,
		"periods": periods,
	})
}

// record appends an audit event. Storage failures never fail the run.
func (s *SchedulerService) record(ctx context.Context, r *run, typ, desc string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Append(ctx, models.ScheduleEvent{
		RunID:       r.res.RunID,
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		Mode:        r.res.Mode,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		r.log.Warnw("audit_append_failed", "type", typ, "err", err)
	}
}

// finish stores and publishes the outcome; neither can fail the run.
func (s *SchedulerService) finish(ctx context.Context, r *run, runErr error) {
	res := r.res
	status := models.RunStatus{
		Mode:       res.Mode,
		RunID:      res.RunID,
		Outcome:    res.Outcome,
		Reason:     res.Reason,
		Periods:    res.Final,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	var re *RunError
	if errors.As(runErr, &re) {
		status.Step = re.Step
	}

	if s.status != nil {
		if err := s.status.Save(ctx, status); err != nil {
			r.log.Warnw("run_status_save_failed", "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRun(ctx, status); err != nil {
			r.log.Warnw("run_publish_failed", "err", err)
		}
	}
	r.log.Infow("schedule_run_finished", "outcome", res.Outcome, "duration", res.FinishedAt.Sub(res.StartedAt).String())
}
