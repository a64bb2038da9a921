package core

import (
	"fmt"
	"time"
)

// Date is a calendar date stored as a day count since the Unix epoch. The
// integer form keeps date keys cheap to compare and gives ordered maps a
// natural sort key.
type Date int

const daysPerYear = 365.2425

// NewDate creates a Date from a calendar year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date(t.Unix() / 86400)
}

// ParseDate parses an 8-digit YYYYMMDD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q (want YYYYMMDD): %w", s, err)
	}
	return Date(t.Unix() / 86400), nil
}

// Time returns the date as a UTC time.Time at midnight.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// String formats the date as YYYYMMDD.
func (d Date) String() string {
	return d.Time().Format("20060102")
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other - d)
}

// YearsBetween converts a day span into fractional years.
func YearsBetween(from, to Date) float64 {
	return float64(to-from) / daysPerYear
}
