// utils/month.go
package utils

import (
	"fmt"
	"time"
)

// MonthLayout is the canonical month key, e.g. "2024-06".
const MonthLayout = "2006-01"

// ParseMonth validates a YYYY-MM key and returns its UTC [start, end) bounds.
func ParseMonth(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(MonthLayout, month, time.UTC)
	if err != nil || start.Format(MonthLayout) != month {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// MonthOf returns the month key a timestamp falls in (UTC).
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// MonthsOfYear lists the twelve month keys of a calendar year.
func MonthsOfYear(year int) []string {
	months := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, time.Date(year, m, 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout))
	}
	return months
}
