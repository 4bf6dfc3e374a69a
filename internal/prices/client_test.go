package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func stockholm(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

// dayBody renders 24 hourly entries for a local date, price = hour/10.
func dayBody(t *testing.T, loc *time.Location, y int, m time.Month, d int) []byte {
	t.Helper()
	var out []map[string]any
	for h := 0; h < 24; h++ {
		start := time.Date(y, m, d, h, 0, 0, 0, loc)
		out = append(out, map[string]any{
			"SEK_per_kWh": float64(h) / 10,
			"EUR_per_kWh": 0.01,
			"time_start":  start.Format(time.RFC3339),
			"time_end":    start.Add(time.Hour).Format(time.RFC3339),
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

type feed struct {
	mu     sync.Mutex
	bodies map[string][]byte
	status map[string]int
	paths  []string
}

func (f *feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	if code, ok := f.status[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	body, ok := f.bodies[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func newTestClient(t *testing.T, f *feed, loc *time.Location) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/api/v1/prices/", Region: "SE3", Zone: loc, Timeout: 2 * time.Second}, nil)
}

func TestFetch_NormalisesAndSorts(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	body := dayBody(t, loc, 2024, time.March, 6)
	// reverse to check ordering
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatal(err)
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	reversed, _ := json.Marshal(raw)

	f := &feed{bodies: map[string][]byte{"/api/v1/prices/2024/03-06_SE3.json": reversed}}
	c := newTestClient(t, f, loc)

	points, err := c.Fetch(context.Background(), time.Date(2024, time.March, 6, 14, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("got %d points; want 24", len(points))
	}
	for i, p := range points {
		if p.Hour != i {
			t.Fatalf("point %d has hour %d", i, p.Hour)
		}
		if p.Start.Location() != loc {
			t.Fatalf("point %d not in market zone", i)
		}
	}
	if points[17].SEKPerKWh != 1.7 {
		t.Fatalf("hour 17 price = %v; want 1.7", points[17].SEKPerKWh)
	}
}

func TestFetch_UTCTimestampsConvertedToZone(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	// 23:00 UTC on the 5th is 00:00 on the 6th in Stockholm (CET).
	body := []byte(`[{"SEK_per_kWh":0.5,"time_start":"2024-03-05T23:00:00Z"}]`)
	f := &feed{bodies: map[string][]byte{"/api/v1/prices/2024/03-06_SE3.json": body}}
	c := newTestClient(t, f, loc)

	points, err := c.Fetch(context.Background(), time.Date(2024, time.March, 6, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 1 || points[0].Hour != 0 {
		t.Fatalf("got %+v; want one point at hour 0", points)
	}
}

func TestFetch_Errors(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	const path = "/api/v1/prices/2024/03-06_SE3.json"
	date := time.Date(2024, time.March, 6, 9, 0, 0, 0, loc)

	cases := []struct {
		name      string
		f         *feed
		wantIs    error
		wantFetch bool
	}{
		{"not published", &feed{}, ErrNoData, false},
		{"server error", &feed{status: map[string]int{path: http.StatusBadGateway}}, nil, true},
		{"bad json", &feed{bodies: map[string][]byte{path: []byte(`{"oops"`)}}, nil, true},
		{"quarter hour", &feed{bodies: map[string][]byte{path: []byte(`[{"SEK_per_kWh":1,"time_start":"2024-03-06T10:15:00+01:00"}]`)}}, ErrNotWholeHour, true},
		{"wrong date", &feed{bodies: map[string][]byte{path: []byte(`[{"SEK_per_kWh":1,"time_start":"2024-03-07T10:00:00+01:00"}]`)}}, ErrDateMismatch, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, tc.f, loc)
			_, err := c.Fetch(context.Background(), date)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Fatalf("err = %v; want errors.Is %v", err, tc.wantIs)
			}
			var ferr *FetchError
			if got := errors.As(err, &ferr); got != tc.wantFetch {
				t.Fatalf("errors.As FetchError = %v; want %v (err %v)", got, tc.wantFetch, err)
			}
		})
	}
}

func TestFetch_NegativePricesAccepted(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	body := []byte(`[{"SEK_per_kWh":-0.12,"time_start":"2024-03-06T13:00:00+01:00"}]`)
	f := &feed{bodies: map[string][]byte{"/api/v1/prices/2024/03-06_SE3.json": body}}
	c := newTestClient(t, f, loc)

	points, err := c.Fetch(context.Background(), time.Date(2024, time.March, 6, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if points[0].SEKPerKWh != -0.12 {
		t.Fatalf("price = %v", points[0].SEKPerKWh)
	}
}

func TestGetPrices(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	now := time.Date(2024, time.March, 6, 14, 0, 0, 0, loc)

	t.Run("both days", func(t *testing.T) {
		t.Parallel()
		f := &feed{bodies: map[string][]byte{
			"/api/v1/prices/2024/03-06_SE3.json": dayBody(t, loc, 2024, time.March, 6),
			"/api/v1/prices/2024/03-07_SE3.json": dayBody(t, loc, 2024, time.March, 7),
		}}
		c := newTestClient(t, f, loc)
		got, err := c.GetPrices(context.Background(), now)
		if err != nil {
			t.Fatalf("GetPrices: %v", err)
		}
		if !got.HasTomorrow || len(got.Today) != 24 || len(got.Tomorrow) != 24 {
			t.Fatalf("got today=%d tomorrow=%d has=%v", len(got.Today), len(got.Tomorrow), got.HasTomorrow)
		}
		if d := got.Tomorrow[0].Start.Day(); d != 7 {
			t.Fatalf("tomorrow starts on day %d", d)
		}
	})

	t.Run("tomorrow missing", func(t *testing.T) {
		t.Parallel()
		f := &feed{bodies: map[string][]byte{
			"/api/v1/prices/2024/03-06_SE3.json": dayBody(t, loc, 2024, time.March, 6),
		}}
		c := newTestClient(t, f, loc)
		got, err := c.GetPrices(context.Background(), now)
		if err != nil {
			t.Fatalf("GetPrices: %v", err)
		}
		if got.HasTomorrow || got.Tomorrow != nil {
			t.Fatalf("expected no tomorrow, got %+v", got.Tomorrow)
		}
	})

	t.Run("today missing", func(t *testing.T) {
		t.Parallel()
		f := &feed{bodies: map[string][]byte{
			"/api/v1/prices/2024/03-07_SE3.json": dayBody(t, loc, 2024, time.March, 7),
		}}
		c := newTestClient(t, f, loc)
		got, err := c.GetPrices(context.Background(), now)
		if err != nil {
			t.Fatalf("GetPrices: %v", err)
		}
		if len(got.Today) != 0 || !got.HasTomorrow || len(got.Tomorrow) != 24 {
			t.Fatalf("got today=%d tomorrow=%d has=%v", len(got.Today), len(got.Tomorrow), got.HasTomorrow)
		}
	})

	t.Run("today unreachable", func(t *testing.T) {
		t.Parallel()
		f := &feed{status: map[string]int{"/api/v1/prices/2024/03-06_SE3.json": http.StatusInternalServerError}}
		c := newTestClient(t, f, loc)
		_, err := c.GetPrices(context.Background(), now)
		var ferr *FetchError
		if !errors.As(err, &ferr) || ferr.Status != http.StatusInternalServerError {
			t.Fatalf("err = %v; want FetchError with status 500", err)
		}
	})
}

func TestGetPrices_AcrossMonthEnd(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	f := &feed{bodies: map[string][]byte{
		"/api/v1/prices/2024/03-31_SE3.json": dayBody(t, loc, 2024, time.March, 31),
	}}
	c := newTestClient(t, f, loc)
	_, err := c.GetPrices(context.Background(), time.Date(2024, time.March, 31, 14, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("GetPrices: %v", err)
	}
	want := fmt.Sprintf("/api/v1/prices/%d/%s_SE3.json", 2024, "04-01")
	if last := f.paths[len(f.paths)-1]; last != want {
		t.Fatalf("tomorrow path = %s; want %s", last, want)
	}
}

func TestFetch_FallBackDayHasRepeatedHour(t *testing.T) {
	t.Parallel()

	loc := stockholm(t)
	// 2024-10-27 Stockholm leaves CEST at 03:00, so the local day has 25 hours.
	start := time.Date(2024, time.October, 26, 22, 0, 0, 0, time.UTC)
	var entries []map[string]any
	for i := 0; i < 25; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		entries = append(entries, map[string]any{"SEK_per_kWh": float64(i) / 100, "time_start": at.Format(time.RFC3339)})
	}
	body, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f := &feed{bodies: map[string][]byte{"/api/v1/prices/2024/10-27_SE3.json": body}}
	c := newTestClient(t, f, loc)

	points, err := c.Fetch(context.Background(), time.Date(2024, time.October, 27, 12, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 25 {
		t.Fatalf("got %d points; want 25", len(points))
	}
	hours := make([]int, 0, 5)
	for _, p := range points[:5] {
		hours = append(hours, p.Hour)
	}
	if fmt.Sprint(hours) != "[0 1 2 2 3]" {
		t.Fatalf("first hours = %v; want [0 1 2 2 3]", hours)
	}
	if !points[2].Start.Before(points[3].Start) {
		t.Fatalf("repeated hour out of order: %v then %v", points[2].Start, points[3].Start)
	}
}
