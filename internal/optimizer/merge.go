package optimizer

import (
	"fmt"

	"battery_scheduler/internal/codec"
	"battery_scheduler/internal/models"
)

// CapacityError is returned when the merged schedule needs more slots than the
// device has. The schedule is never truncated to fit.
type CapacityError struct {
	Needed int
	Max    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("merged schedule has %d periods, device holds at most %d", e.Needed, e.Max)
}

// Overlaps reports whether a and b share any minute, ignoring weekdays.
func Overlaps(a, b models.Period) bool {
	return !(a.EndMinutes <= b.StartMinutes || b.EndMinutes <= a.StartMinutes)
}

// OverlapsOnDay is Overlaps restricted to periods with a common weekday.
func OverlapsOnDay(a, b models.Period) bool {
	return a.Days.Intersects(b.Days) && Overlaps(a, b)
}

func overlapFunc(dayAware bool) func(a, b models.Period) bool {
	if dayAware {
		return OverlapsOnDay
	}
	return Overlaps
}

// Clean keeps the periods that apply today and have not started yet.
func Clean(periods []models.Period, today models.DayMask, minuteOfDay int) []models.Period {
	out := make([]models.Period, 0, len(periods))
	for _, p := range periods {
		if p.Days.Has(today) && p.StartMinutes > minuteOfDay {
			out = append(out, p)
		}
	}
	return out
}

// Merge combines base and candidates, sorted by start, keeping each period only
// if it does not overlap one already kept. On equal starts base periods win.
func Merge(base, candidates []models.Period, dayAware bool) ([]models.Period, error) {
	overlaps := overlapFunc(dayAware)

	union := make([]models.Period, 0, len(base)+len(candidates))
	union = append(union, base...)
	union = append(union, candidates...)
	union = codec.SortByStart(union)

	kept := make([]models.Period, 0, len(union))
	for _, p := range union {
		clash := false
		for _, k := range kept {
			if overlaps(p, k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, p)
		}
	}
	if len(kept) > codec.MaxPeriods {
		return nil, &CapacityError{Needed: len(kept), Max: codec.MaxPeriods}
	}
	return kept, nil
}

// CombineConsecutive joins adjacent periods with the same direction and days.
// The input must be sorted by start.
func CombineConsecutive(periods []models.Period) []models.Period {
	if len(periods) == 0 {
		return nil
	}
	out := []models.Period{periods[0]}
	for _, p := range periods[1:] {
		last := &out[len(out)-1]
		if last.EndMinutes == p.StartMinutes && last.Charging == p.Charging && last.Days == p.Days {
			last.EndMinutes = p.EndMinutes
			continue
		}
		out = append(out, p)
	}
	return out
}
