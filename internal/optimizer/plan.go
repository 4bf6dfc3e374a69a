// Package optimizer decides which time-of-use periods the inverter should hold
// next. It is pure: callers supply the current periods, prices and clock.
package optimizer

import (
	"sort"
	"time"

	"battery_scheduler/internal/models"
)

const preserveTopHours = 4

// Skip reasons reported on a Plan that should not be written.
const (
	ReasonNoForecast    = "tomorrow's prices are not published yet"
	ReasonLowSOC        = "state of charge below discharge minimum"
	ReasonNextDayPricey = "tomorrow's prices are high enough to keep the charge"
	ReasonFullyCovered  = "no evening hours left to add"
	ReasonNoChange      = "merged schedule equals the current one"
)

// Plan is the outcome of one optimisation pass.
type Plan struct {
	Mode       models.Mode
	Base       []models.Period
	Candidates []models.Period
	Final      []models.Period
	// Write is false when the device should be left untouched; Reason says why.
	Write  bool
	Reason string
	// BaseDropped is set when the preserve check discarded today's periods.
	BaseDropped bool
}

// RegularInput is everything the next-day plan reads.
type RegularInput struct {
	Current []models.Period
	Prices  models.DayPrices
	Now     time.Time // local time in the market zone
}

// PlanRegular keeps today's upcoming periods and adds tomorrow's cheapest
// charge and priciest discharge hours.
func PlanRegular(in RegularInput, opts Options) (Plan, error) {
	today := models.DayBit(in.Now)
	base := Clean(in.Current, today, minuteOfDay(in.Now))

	plan := Plan{Mode: models.ModeRegular, Base: base}
	if !in.Prices.HasTomorrow {
		plan.Final = base
		plan.Reason = ReasonNoForecast
		return plan, nil
	}

	if opts.PreserveFactor > 0 && outpricedByTomorrow(base, in.Prices, opts.PreserveFactor) {
		plan.Base = nil
		plan.BaseDropped = true
	}

	charge, discharge := Candidates(in.Prices.Tomorrow, opts, models.DayBit(nextDay(in.Now)))
	plan.Candidates = append(charge, discharge...)

	final, err := Merge(plan.Base, plan.Candidates, opts.DayAwareOverlap)
	if err != nil {
		return plan, err
	}
	plan.Final = final
	plan.Write = true
	return plan, nil
}

// outpricedByTomorrow compares today's remaining discharge hours against
// tomorrow's priciest hours.
func outpricedByTomorrow(base []models.Period, prices models.DayPrices, factor float64) bool {
	var remaining []models.PricePoint
	for _, p := range base {
		if p.Charging {
			continue
		}
		for h := p.StartMinutes / 60; h*60 < p.EndMinutes; h++ {
			if pp, ok := priceAt(prices.Today, h); ok {
				remaining = append(remaining, pp)
			}
		}
	}
	if len(remaining) == 0 {
		return false
	}

	top := append([]models.PricePoint(nil), prices.Tomorrow...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].SEKPerKWh > top[j].SEKPerKWh })
	top = head(top, preserveTopHours)
	if len(top) == 0 {
		return false
	}
	return average(top) >= average(remaining)*factor
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// nextDay is noon on the following calendar date, safe across DST shifts.
func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 12, 0, 0, 0, t.Location())
}
