package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay bounds Period start values. An end of MinutesPerDay is the
// device's 24:00.
const MinutesPerDay = 1440

// DayMask is the device's 7-bit weekday field, bit 0 = Sunday ... bit 6 = Saturday.
type DayMask uint16

const (
	Sunday DayMask = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday

	AllDays DayMask = 0x7F
)

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayBit returns the single-day mask for the calendar date of t.
// time.Weekday is already Sunday=0, which is the device convention.
func DayBit(t time.Time) DayMask {
	return DayMask(1) << uint(t.Weekday())
}

// Has reports whether every bit of d is set in m.
func (m DayMask) Has(d DayMask) bool {
	return d != 0 && m&d == d
}

// Intersects reports whether m and d share at least one day.
func (m DayMask) Intersects(d DayMask) bool {
	return m&d != 0
}

// Names lists the weekdays set in m, Sunday first.
func (m DayMask) Names() []string {
	var out []string
	for i, name := range weekdayNames {
		if m&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

func (m DayMask) String() string {
	if names := m.Names(); len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return "no days"
}

// Period is one charge or discharge window.
type Period struct {
	StartMinutes int     `json:"start_minutes"`
	EndMinutes   int     `json:"end_minutes"`
	Charging     bool    `json:"is_charging"`
	Days         DayMask `json:"days_mask"`
}

// Charge flag register values. Zero means charge; the device treats anything else as discharge.
const (
	ChargeFlagCharge    uint16 = 0
	ChargeFlagDischarge uint16 = 1
)

// ChargeFlag is the raw register value for p.
func (p Period) ChargeFlag() uint16 {
	if p.Charging {
		return ChargeFlagCharge
	}
	return ChargeFlagDischarge
}

// HourPeriod builds a period covering [startHour, startHour+hours).
func HourPeriod(startHour, hours int, charging bool, days DayMask) Period {
	return Period{
		StartMinutes: startHour * 60,
		EndMinutes:   (startHour + hours) * 60,
		Charging:     charging,
		Days:         days,
	}
}

var (
	errPeriodRange = errors.New("start must be within [0, 1440) and end within (0, 1440]")
	errPeriodOrder = errors.New("start must be before end")
	errPeriodDays  = errors.New("days mask must select at least one weekday and fit in 7 bits")
)

// Validate checks the hardware invariants of a single period.
func (p Period) Validate() error {
	if p.StartMinutes < 0 || p.StartMinutes >= MinutesPerDay || p.EndMinutes <= 0 || p.EndMinutes > MinutesPerDay {
		return fmt.Errorf("period %s: %w", p.Window(), errPeriodRange)
	}
	if p.StartMinutes >= p.EndMinutes {
		return fmt.Errorf("period %s: %w", p.Window(), errPeriodOrder)
	}
	if p.Days == 0 || p.Days&^AllDays != 0 {
		return fmt.Errorf("period %s: %w", p.Window(), errPeriodDays)
	}
	return nil
}

// Mode is the human-readable charge direction.
func (p Period) Mode() string {
	if p.Charging {
		return "Charging"
	}
	return "Discharging"
}

// Window renders the time range as HH:MM-HH:MM.
func (p Period) Window() string {
	return clock(p.StartMinutes) + "-" + clock(p.EndMinutes)
}

func (p Period) String() string {
	return fmt.Sprintf("%s on %s at %s", p.Mode(), p.Days, p.Window())
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Schedule is the decoded on-device time-of-use table.
type Schedule struct {
	NumPeriods int      `json:"num_periods"`
	Periods    []Period `json:"periods"`
	Raw        []uint16 `json:"raw,omitempty"`
}
