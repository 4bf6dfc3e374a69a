// Package prices fetches hourly day-ahead spot prices and normalises them to
// the local market zone.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"
)

const (
	DefaultBaseURL  = "https://www.elprisetjustnu.se/api/v1/prices"
	DefaultRegion   = "SE3"
	DefaultZone     = "Europe/Stockholm"
	DefaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

var (
	// ErrNoData means the feed has not published prices for the date yet.
	ErrNoData = errors.New("no price data published for date")
	// ErrNotWholeHour rejects entries that do not start on the hour.
	ErrNotWholeHour = errors.New("price entry does not start on a whole hour")
	// ErrDateMismatch rejects entries whose local date differs from the requested one.
	ErrDateMismatch = errors.New("price entry falls outside the requested date")
)

// FetchError wraps transport, status and decoding failures.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch prices %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch prices %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config describes the feed endpoint.
type Config struct {
	BaseURL string
	Region  string
	Zone    *time.Location
	Timeout time.Duration
}

type entry struct {
	TimeStart time.Time `json:"time_start"`
	SEKPerKWh float64   `json:"SEK_per_kWh"`
}

// Client reads one day of prices per request.
type Client struct {
	baseURL    string
	region     string
	zone       *time.Location
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient returns a feed client with defaults filled in.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
		if loc, err := time.LoadLocation(DefaultZone); err == nil {
			cfg.Zone = loc
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		region:     cfg.Region,
		zone:       cfg.Zone,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Zone is the location all returned prices are expressed in.
func (c *Client) Zone() *time.Location { return c.zone }

func (c *Client) url(date time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d-%02d_%s.json", c.baseURL, date.Year(), int(date.Month()), date.Day(), c.region)
}

// Fetch returns the hourly prices for the local calendar date of date,
// ordered by start time.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]models.PricePoint, error) {
	date = date.In(c.zone)
	url := c.url(date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &FetchError{URL: url, Status: res.StatusCode, Err: errors.New(res.Status)}
	}

	var entries []entry
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseSize)).Decode(&entries); err != nil {
		return nil, &FetchError{URL: url, Status: res.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}

	points, err := c.normalise(date, entries)
	if err != nil {
		return nil, &FetchError{URL: url, Status: res.StatusCode, Err: err}
	}
	if c.log != nil {
		c.log.Debugw("prices_fetched", "date", date.Format(time.DateOnly), "points", len(points))
	}
	return points, nil
}

func (c *Client) normalise(date time.Time, entries []entry) ([]models.PricePoint, error) {
	y, m, d := date.Date()
	points := make([]models.PricePoint, 0, len(entries))
	for _, e := range entries {
		local := e.TimeStart.In(c.zone)
		if local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
			return nil, fmt.Errorf("%s: %w", e.TimeStart.Format(time.RFC3339), ErrNotWholeHour)
		}
		if ly, lm, ld := local.Date(); ly != y || lm != m || ld != d {
			return nil, fmt.Errorf("%s: %w", e.TimeStart.Format(time.RFC3339), ErrDateMismatch)
		}
		points = append(points, models.PricePoint{
			Hour:      local.Hour(),
			Start:     local,
			SEKPerKWh: e.SEKPerKWh,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Start.Before(points[j].Start) })
	return points, nil
}

// GetPrices fetches today's and tomorrow's prices relative to now.
// A tomorrow that is not yet published is reported through HasTomorrow; an
// unpublished today leaves Today empty and callers that need it decide.
func (c *Client) GetPrices(ctx context.Context, now time.Time) (models.DayPrices, error) {
	now = now.In(c.zone)
	today, err := c.Fetch(ctx, now)
	switch {
	case errors.Is(err, ErrNoData):
		if c.log != nil {
			c.log.Warnw("today_prices_unavailable", "date", now.Format(time.DateOnly))
		}
	case err != nil:
		return models.DayPrices{}, err
	}

	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 12, 0, 0, 0, c.zone)
	tomorrow, err := c.Fetch(ctx, next)
	switch {
	case errors.Is(err, ErrNoData):
		if c.log != nil {
			c.log.Infow("tomorrow_prices_unavailable", "date", next.Format(time.DateOnly))
		}
		return models.DayPrices{Today: today}, nil
	case err != nil:
		return models.DayPrices{}, err
	}
	return models.DayPrices{Today: today, Tomorrow: tomorrow, HasTomorrow: true}, nil
}
