package models

import "time"

// PricePoint is one hourly spot price, already in the local zone.
type PricePoint struct {
	Hour      int       `json:"hour"`
	Start     time.Time `json:"time_start"`
	SEKPerKWh float64   `json:"sek_per_kwh"`
}

// DayPrices holds today's curve and, once published, tomorrow's. Today is
// empty when the feed has nothing for the current date.
type DayPrices struct {
	Today       []PricePoint `json:"today"`
	Tomorrow    []PricePoint `json:"tomorrow,omitempty"`
	HasTomorrow bool         `json:"has_tomorrow"`
}
