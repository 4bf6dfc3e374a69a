package optimizer

import (
	"sort"

	"battery_scheduler/internal/models"
)

// Candidates picks the cheapest night hours for charging and the most expensive
// day hours for discharging. Each becomes a one-hour period on days. Equal
// prices keep feed order.
func Candidates(prices []models.PricePoint, opts Options, days models.DayMask) (charge, discharge []models.Period) {
	night := inWindow(prices, opts.NightWindow)
	sort.SliceStable(night, func(i, j int) bool { return night[i].SEKPerKWh < night[j].SEKPerKWh })

	day := inWindow(prices, opts.DayWindow)
	sort.SliceStable(day, func(i, j int) bool { return day[i].SEKPerKWh > day[j].SEKPerKWh })

	for _, p := range head(night, opts.ChargeHours) {
		charge = append(charge, models.HourPeriod(p.Hour, 1, true, days))
	}
	for _, p := range head(day, opts.DischargeHours) {
		discharge = append(discharge, models.HourPeriod(p.Hour, 1, false, days))
	}
	return charge, discharge
}

func inWindow(prices []models.PricePoint, w Window) []models.PricePoint {
	var out []models.PricePoint
	for _, p := range prices {
		if w.Contains(p.Hour) {
			out = append(out, p)
		}
	}
	return out
}

func head(points []models.PricePoint, n int) []models.PricePoint {
	if n < len(points) {
		return points[:n]
	}
	return points
}

// average is zero for an empty slice.
func average(points []models.PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.SEKPerKWh
	}
	return sum / float64(len(points))
}

func priceAt(points []models.PricePoint, hour int) (models.PricePoint, bool) {
	for _, p := range points {
		if p.Hour == hour {
			return p, true
		}
	}
	return models.PricePoint{}, false
}
