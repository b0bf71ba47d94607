package common

import (
	"fmt"
	"time"
)

// DateFormat is the canonical day format used for cache keys, storage and the API.
const DateFormat = "2006-01-02"

// Day truncates t to its calendar day, returned as midnight UTC.
// Calendar dates are always carried in this form so that day arithmetic
// is never affected by DST transitions.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Clock answers "today" and "yesterday" in the single reporting timezone.
// Both the replay upper bound and the price lookup upper bound come from
// the same Clock so they can never disagree by a day.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock for the named IANA zone.
func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixedClock returns a Clock frozen at the given instant (tests, replays of past reports).
func NewFixedClock(loc *time.Location, at time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: func() time.Time { return at }}
}

// Location returns the reporting timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Today returns the current calendar date in the reporting timezone.
func (c *Clock) Today() time.Time {
	return Day(c.now().In(c.loc))
}

// Yesterday returns the last complete calendar date in the reporting timezone.
func (c *Clock) Yesterday() time.Time {
	return c.Today().AddDate(0, 0, -1)
}
