package optimizer

import (
	"errors"
	"fmt"
)

// MaxHoursPerPass bounds how many charge or discharge hours one regular run adds.
const MaxHoursPerPass = 4

// Window is an inclusive range of local hours.
type Window struct {
	Start int `mapstructure:"start" json:"start"`
	End   int `mapstructure:"end" json:"end"`
}

// Contains reports whether hour lies in [Start, End].
func (w Window) Contains(hour int) bool {
	return hour >= w.Start && hour <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d-%02d", w.Start, w.End)
}

// validate rejects windows outside the day. Hour 23 yields a period ending at 24:00.
func (w Window) validate(name string) error {
	if w.Start < 0 || w.End > 23 || w.Start > w.End {
		return fmt.Errorf("%s window %s: hours must satisfy 0 <= start <= end <= 23", name, w)
	}
	return nil
}

// Options tune the regular next-day plan.
type Options struct {
	NightWindow     Window
	DayWindow       Window
	ChargeHours     int
	DischargeHours  int
	DayAwareOverlap bool
	// PreserveFactor > 0 drops today's remaining periods when tomorrow's peak
	// prices beat today's by at least this factor.
	PreserveFactor float64
}

// DefaultOptions returns the stock regular-plan settings.
func DefaultOptions() Options {
	return Options{
		NightWindow:    Window{Start: 0, End: 5},
		DayWindow:      Window{Start: 6, End: 19},
		ChargeHours:    1,
		DischargeHours: 1,
	}
}

// Validate checks window bounds and hour counts.
func (o Options) Validate() error {
	var errs []error
	if err := o.NightWindow.validate("night"); err != nil {
		errs = append(errs, err)
	}
	if err := o.DayWindow.validate("day"); err != nil {
		errs = append(errs, err)
	}
	if o.ChargeHours < 1 || o.ChargeHours > MaxHoursPerPass {
		errs = append(errs, fmt.Errorf("charge hours %d: must be 1..%d", o.ChargeHours, MaxHoursPerPass))
	}
	if o.DischargeHours < 1 || o.DischargeHours > MaxHoursPerPass {
		errs = append(errs, fmt.Errorf("discharge hours %d: must be 1..%d", o.DischargeHours, MaxHoursPerPass))
	}
	if o.PreserveFactor < 0 {
		errs = append(errs, errors.New("preserve factor must not be negative"))
	}
	return errors.Join(errs...)
}

// EveningOptions tune the same-evening top-up plan. Evening and NextDay use an
// exclusive end hour.
type EveningOptions struct {
	EveningStart   int
	EveningEnd     int
	NextDayStart   int
	NextDayEnd     int
	MinSOC         float64
	DischargeRate  float64 // percent of capacity per hour
	PriceThreshold float64
}

// DefaultEveningOptions returns the stock evening settings.
func DefaultEveningOptions() EveningOptions {
	return EveningOptions{
		EveningStart:   17,
		EveningEnd:     22,
		NextDayStart:   6,
		NextDayEnd:     22,
		MinSOC:         10,
		DischargeRate:  25,
		PriceThreshold: 1.2,
	}
}

// Span is the number of hours in the evening window.
func (o EveningOptions) Span() int { return o.EveningEnd - o.EveningStart }

func (o EveningOptions) Validate() error {
	var errs []error
	if o.EveningStart < 0 || o.EveningEnd > 24 || o.EveningStart >= o.EveningEnd {
		errs = append(errs, fmt.Errorf("evening hours %d-%d: need 0 <= start < end <= 24", o.EveningStart, o.EveningEnd))
	}
	if o.NextDayStart < 0 || o.NextDayEnd > 24 || o.NextDayStart >= o.NextDayEnd {
		errs = append(errs, fmt.Errorf("next-day hours %d-%d: need 0 <= start < end <= 24", o.NextDayStart, o.NextDayEnd))
	}
	if o.MinSOC < 0 || o.MinSOC > 100 {
		errs = append(errs, fmt.Errorf("min soc %.1f: must be 0..100", o.MinSOC))
	}
	if o.DischargeRate <= 0 {
		errs = append(errs, errors.New("discharge rate must be positive"))
	}
	if o.PriceThreshold <= 0 {
		errs = append(errs, errors.New("price threshold must be positive"))
	}
	return errors.Join(errs...)
}
