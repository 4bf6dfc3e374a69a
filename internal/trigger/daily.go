// Package trigger decides when scheduling runs happen. The scheduler itself
// does not know how it is invoked.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"
)

// Trigger calls fire for every mode that becomes due until ctx is done.
type Trigger interface {
	Run(ctx context.Context, fire func(ctx context.Context, mode models.Mode))
}

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour, Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

var errClockFormat = errors.New("clock must be HH:MM")

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", errClockFormat, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Job fires Mode daily at Clock.
type Job struct {
	Clock Clock
	Mode  models.Mode
}

// timerFunc returns a channel that receives once after d, and a stop func.
type timerFunc func(d time.Duration) (<-chan time.Time, func() bool)

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Daily fires each job once per calendar day in zone. Jobs sharing a clock
// fire in the order they were given.
type Daily struct {
	jobs  []Job
	zone  *time.Location
	log   *logger.Logger
	now   func() time.Time
	timer timerFunc
}

func NewDaily(jobs []Job, zone *time.Location, log *logger.Logger) (*Daily, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no trigger jobs configured")
	}
	if zone == nil {
		zone = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	sorted := append([]Job(nil), jobs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Clock.minutes() < sorted[j].Clock.minutes() })
	return &Daily{jobs: sorted, zone: zone, log: log, now: time.Now, timer: realTimer}, nil
}

// Next returns the first firing strictly after now and the modes due then.
func (d *Daily) Next(now time.Time) (time.Time, []models.Mode) {
	local := now.In(d.zone)
	var (
		best  time.Time
		modes []models.Mode
	)
	for _, j := range d.jobs {
		at := d.at(local, 0, j.Clock)
		if !at.After(local) {
			at = d.at(local, 1, j.Clock)
		}
		switch {
		case best.IsZero() || at.Before(best):
			best, modes = at, []models.Mode{j.Mode}
		case at.Equal(best):
			modes = append(modes, j.Mode)
		}
	}
	return best, modes
}

func (d *Daily) at(local time.Time, addDays int, c Clock) time.Time {
	y, m, day := local.Date()
	return time.Date(y, m, day+addDays, c.Hour, c.Minute, 0, 0, d.zone)
}

// Run blocks until ctx is cancelled. fire is called synchronously.
func (d *Daily) Run(ctx context.Context, fire func(ctx context.Context, mode models.Mode)) {
	for ctx.Err() == nil {
		now := d.now()
		at, modes := d.Next(now)
		d.log.Infow("trigger_next", "at", at.Format(time.RFC3339), "modes", modes)

		c, stop := d.timer(at.Sub(now))
		select {
		case <-ctx.Done():
			stop()
			return
		case <-c:
			for _, mode := range modes {
				if ctx.Err() != nil {
					return
				}
				fire(ctx, mode)
			}
		}
	}
}
