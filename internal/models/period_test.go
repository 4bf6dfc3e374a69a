package models

import (
	"testing"
	"time"
)

func TestDayBit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		date time.Time
		want DayMask
	}{
		{"sunday", time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC), 1},
		{"monday", time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), 2},
		{"wednesday", time.Date(2024, time.March, 6, 23, 59, 0, 0, time.UTC), Wednesday},
		{"saturday", time.Date(2024, time.March, 9, 8, 0, 0, 0, time.UTC), 64},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := DayBit(c.date); got != c.want {
				t.Fatalf("DayBit(%s) = %d; want %d", c.date.Weekday(), got, c.want)
			}
		})
	}
}

func TestDayBit_UsesLocalCalendarDate(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC on a Sunday is already Monday in Stockholm.
	utc := time.Date(2024, time.March, 3, 23, 30, 0, 0, time.UTC)
	if got := DayBit(utc.In(loc)); got != Monday {
		t.Fatalf("got %v; want Monday", got)
	}
}

func TestPeriod_ChargeFlag(t *testing.T) {
	t.Parallel()

	if got := (Period{Charging: true}).ChargeFlag(); got != 0 {
		t.Fatalf("charging flag = %d; want 0", got)
	}
	if got := (Period{Charging: false}).ChargeFlag(); got != 1 {
		t.Fatalf("discharging flag = %d; want 1", got)
	}
}

func TestPeriod_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		p       Period
		wantErr bool
	}{
		{"valid", HourPeriod(2, 1, true, Thursday), false},
		{"multi day", Period{StartMinutes: 0, EndMinutes: 30, Days: Monday | Friday}, false},
		{"start equals end", Period{StartMinutes: 60, EndMinutes: 60, Days: Monday}, true},
		{"start after end", Period{StartMinutes: 120, EndMinutes: 60, Days: Monday}, true},
		{"end at 24:00", Period{StartMinutes: 1380, EndMinutes: 1440, Days: Monday}, false},
		{"end past 24:00", Period{StartMinutes: 1380, EndMinutes: 1441, Days: Monday}, true},
		{"start at 24:00", Period{StartMinutes: 1440, EndMinutes: 1440, Days: Monday}, true},
		{"negative start", Period{StartMinutes: -1, EndMinutes: 60, Days: Monday}, true},
		{"no days", Period{StartMinutes: 0, EndMinutes: 60}, true},
		{"eighth bit", Period{StartMinutes: 0, EndMinutes: 60, Days: 0x80}, true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			err := c.p.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() err = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestPeriod_String(t *testing.T) {
	t.Parallel()

	p := Period{StartMinutes: 120, EndMinutes: 195, Charging: false, Days: Monday | Wednesday}
	want := "Discharging on Monday, Wednesday at 02:00-03:15"
	if got := p.String(); got != want {
		t.Fatalf("String() = %q; want %q", got, want)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"regular": ModeRegular, " Evening ": ModeEvening} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("both"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
