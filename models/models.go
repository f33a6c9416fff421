package models

import (
	"errors"
	"math"
	"time"
)

// ErrAppendOnly is returned when something tries to modify or delete an audit record
var ErrAppendOnly = errors.New("order updates are append-only")

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&ProjectManager{},
		&Order{},
		&OrderItem{},
		&OrderFile{},
		&OrderUpdate{},
		&Vendor{},
		&VendorAssignment{},
	}
}

// DateOf truncates t to its calendar date at midnight UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DatePtr returns a pointer to the calendar date of t
func DatePtr(t time.Time) *time.Time {
	d := DateOf(t)
	return &d
}

// Percentage returns part/whole as a percentage rounded to 2 decimal places, 0 when whole is 0
func Percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
