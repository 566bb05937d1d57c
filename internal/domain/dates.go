package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	// DMYLayout is the dd.mm.yyyy layout used by configuration and CNB files.
	DMYLayout = "02.01.2006"
	// ISODateLayout is the yyyy-mm-dd layout used by the warehouse and weather API.
	ISODateLayout = "2006-01-02"
)

// dmyPattern gates strict parsing so values like "1.1.2022" or "Datum" are rejected
// before time.Parse sees them.
var dmyPattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

// ParseDMY parses a dd.mm.yyyy date. Calendar-invalid dates such as 31.02.2023
// are rejected.
func ParseDMY(s string) (time.Time, error) {
	if !dmyPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("date %q does not match dd.mm.yyyy", s)
	}
	t, err := time.Parse(DMYLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// DateRange is a calendar-day window, inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses dd.mm.yyyy bounds into a DateRange.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDMY(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start date: %w", err)
	}
	e, err := ParseDMY(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end date: %w", err)
	}
	if e.Before(s) {
		return DateRange{}, errors.New("end date is before start date")
	}
	return DateRange{Start: s, End: e}, nil
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Years lists every calendar year touched by the range in ascending order.
func (r DateRange) Years() []int {
	years := make([]int, 0, r.End.Year()-r.Start.Year()+1)
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// StartISO returns the start bound as yyyy-mm-dd.
func (r DateRange) StartISO() string { return r.Start.Format(ISODateLayout) }

// EndISO returns the end bound as yyyy-mm-dd.
func (r DateRange) EndISO() string { return r.End.Format(ISODateLayout) }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
