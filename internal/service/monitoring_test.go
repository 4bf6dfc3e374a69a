package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"battery_scheduler/internal/models"
)

func TestMonitoringService_CurrentSchedule(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("CET", 3600)
	now := time.Date(2024, time.March, 6, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		device    *fakeDevice
		wantErr   bool
		wantLines []string
	}{
		{
			name:    "device error is wrapped",
			device:  &fakeDevice{readErr: errors.New("connection refused")},
			wantErr: true,
		},
		{
			name:      "empty schedule renders none",
			device:    &fakeDevice{},
			wantLines: []string{"Current Schedule (0 periods)", "  none"},
		},
		{
			name: "periods are formatted",
			device: &fakeDevice{schedule: models.Schedule{
				NumPeriods: 1,
				Periods:    []models.Period{models.HourPeriod(3, 1, true, models.Wednesday)},
			}},
			wantLines: []string{
				"Current Schedule (1 periods)",
				"  Period 1: Charging on Wednesday at 03:00-04:00",
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := NewMonitoringService(tc.device, &fakeStatusRepo{}, zone)
			svc.now = func() time.Time { return now }

			view, err := svc.CurrentSchedule(context.Background())
			if tc.wantErr {
				if !errors.Is(err, tc.device.readErr) {
					t.Fatalf("expected wrapped device error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.Schedule.Periods == nil {
				t.Error("periods must be non-nil for JSON")
			}
			if !view.ReadAt.Equal(now) || view.ReadAt.Location() != zone {
				t.Errorf("ReadAt = %v; want %v in zone", view.ReadAt, now)
			}
			if len(view.Lines) != len(tc.wantLines) {
				t.Fatalf("lines = %q; want %q", view.Lines, tc.wantLines)
			}
			for i := range tc.wantLines {
				if view.Lines[i] != tc.wantLines[i] {
					t.Errorf("line %d = %q; want %q", i, view.Lines[i], tc.wantLines[i])
				}
			}
		})
	}
}

func TestMonitoringService_LastRuns(t *testing.T) {
	t.Parallel()

	cet := time.FixedZone("CET", 3600)

	t.Run("normalises to UTC", func(t *testing.T) {
		t.Parallel()
		repo := &fakeStatusRepo{all: []models.RunStatus{{
			Mode:      models.ModeRegular,
			Outcome:   models.OutcomeWritten,
			StartedAt: time.Date(2024, 3, 6, 15, 0, 0, 0, cet),
		}}}
		runs, err := NewMonitoringService(&fakeDevice{}, repo, cet).LastRuns(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("runs = %+v", runs)
		}
		if runs[0].StartedAt.Location() != time.UTC || runs[0].StartedAt.Hour() != 14 {
			t.Errorf("StartedAt = %v; want 14:00 UTC", runs[0].StartedAt)
		}
		if !runs[0].FinishedAt.IsZero() {
			t.Errorf("zero FinishedAt must stay zero, got %v", runs[0].FinishedAt)
		}
	})

	t.Run("no runs yields empty slice", func(t *testing.T) {
		t.Parallel()
		runs, err := NewMonitoringService(&fakeDevice{}, &fakeStatusRepo{}, nil).LastRuns(context.Background())
		if err != nil || runs == nil || len(runs) != 0 {
			t.Fatalf("LastRuns = %v, %v; want empty non-nil", runs, err)
		}
	})

	t.Run("repo error propagates", func(t *testing.T) {
		t.Parallel()
		repo := &fakeStatusRepo{loadErr: errors.New("db down")}
		if _, err := NewMonitoringService(&fakeDevice{}, repo, nil).LastRuns(context.Background()); !errors.Is(err, repo.loadErr) {
			t.Fatalf("expected repo error, got %v", err)
		}
	})
}
