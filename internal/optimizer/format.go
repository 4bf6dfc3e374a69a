package optimizer

import (
	"fmt"

	"battery_scheduler/internal/models"
)

// FormatPeriod renders one audit line, numbered from 1.
func FormatPeriod(n int, p models.Period) string {
	return fmt.Sprintf("Period %d: %s", n, p)
}

// FormatBlock renders a titled snapshot, one line per period.
func FormatBlock(title string, periods []models.Period) []string {
	lines := make([]string, 0, len(periods)+1)
	lines = append(lines, fmt.Sprintf("%s (%d periods)", title, len(periods)))
	if len(periods) == 0 {
		return append(lines, "  none")
	}
	for i, p := range periods {
		lines = append(lines, "  "+FormatPeriod(i+1, p))
	}
	return lines
}
