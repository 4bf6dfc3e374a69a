package optimizer

import (
	"sort"
	"time"

	"battery_scheduler/internal/codec"
	"battery_scheduler/internal/models"
)

// EveningInput is everything the evening top-up plan reads.
type EveningInput struct {
	Current []models.Period
	Prices  models.DayPrices
	SOC     float64
	Now     time.Time
}

// PlanEvening spends the charge left in the battery on today's most expensive
// uncovered evening hours. Every current period is kept, including tomorrow's.
func PlanEvening(in EveningInput, opts EveningOptions, dayAware bool) (Plan, error) {
	today := models.DayBit(in.Now)
	plan := Plan{Mode: models.ModeEvening, Base: in.Current, Final: in.Current}

	if in.SOC < opts.MinSOC {
		plan.Reason = ReasonLowSOC
		return plan, nil
	}

	covered := coveredEveningHours(in.Current, today, opts)

	if in.Prices.HasTomorrow {
		var evening, following []models.PricePoint
		for _, p := range in.Prices.Today {
			if p.Hour >= opts.EveningStart && p.Hour < opts.EveningEnd {
				evening = append(evening, p)
			}
		}
		for _, p := range in.Prices.Tomorrow {
			if p.Hour >= opts.NextDayStart && p.Hour < opts.NextDayEnd {
				following = append(following, p)
			}
		}
		if len(evening) > 0 && average(following) > average(evening)*opts.PriceThreshold {
			plan.Reason = ReasonNextDayPricey
			return plan, nil
		}
	}

	add := min(int((in.SOC-opts.MinSOC)/opts.DischargeRate), opts.Span()-len(covered))
	if add <= 0 {
		plan.Reason = ReasonFullyCovered
		return plan, nil
	}

	var open []models.PricePoint
	for h := opts.EveningStart; h < opts.EveningEnd; h++ {
		if covered[h] {
			continue
		}
		if p, ok := priceAt(in.Prices.Today, h); ok {
			open = append(open, p)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].SEKPerKWh > open[j].SEKPerKWh })
	chosen := head(open, add)
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].Hour < chosen[j].Hour })

	hours := make([]models.Period, 0, len(chosen))
	for _, p := range chosen {
		hours = append(hours, models.HourPeriod(p.Hour, 1, false, today))
	}
	plan.Candidates = CombineConsecutive(hours)
	if len(plan.Candidates) == 0 {
		plan.Reason = ReasonFullyCovered
		return plan, nil
	}

	final, err := Merge(in.Current, plan.Candidates, dayAware)
	if err != nil {
		return plan, err
	}
	plan.Final = final
	if samePeriods(final, codec.SortByStart(in.Current)) {
		plan.Reason = ReasonNoChange
		return plan, nil
	}
	plan.Write = true
	return plan, nil
}

// coveredEveningHours marks evening hours that today's discharge periods touch.
func coveredEveningHours(current []models.Period, today models.DayMask, opts EveningOptions) map[int]bool {
	covered := make(map[int]bool)
	for _, p := range current {
		if p.Charging || !p.Days.Has(today) {
			continue
		}
		for h := opts.EveningStart; h < opts.EveningEnd; h++ {
			if Overlaps(p, models.HourPeriod(h, 1, false, today)) {
				covered[h] = true
			}
		}
	}
	return covered
}

func samePeriods(a, b []models.Period) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
