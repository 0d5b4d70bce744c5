// Package dayclock anchors wall-clock time to the campaign calendar: day 1
// starts on the configured start date in the configured timezone, and every
// derived value is a pure function of the instant so scheduling logic stays
// testable.
package dayclock

import (
	"fmt"
	"time"
)

const (
	TotalDays       = 75
	DefaultTimezone = "America/Los_Angeles"
	DefaultStart    = "2025-10-04"
)

type Clock struct {
	start time.Time // midnight of day 1, in loc
	loc   *time.Location
}

// New builds a campaign clock from a YYYY-MM-DD start date and an IANA
// timezone name.
func New(startDate, timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", timezone, err)
	}
	start, err := time.ParseInLocation("2006-01-02", startDate, loc)
	if err != nil {
		return nil, fmt.Errorf("bad start date %q: %w", startDate, err)
	}
	return &Clock{start: start, loc: loc}, nil
}

// CurrentDayIndex returns the 1-based campaign day for the given instant,
// clamped below at 1. Days are counted on the calendar in the campaign
// zone, so a DST shift does not move the boundary.
func (c *Clock) CurrentDayIndex(now time.Time) int {
	local := now.In(c.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	// Round instead of truncate: a DST transition makes one calendar day
	// 23 or 25 hours long.
	days := int(today.Sub(c.start).Hours()/24+0.5) + 1
	if days < 1 {
		return 1
	}
	return days
}

// TodayTag returns the zero-padded MM-DD-YY tag used in thread names.
func (c *Clock) TodayTag(now time.Time) string {
	return now.In(c.loc).Format("01-02-06")
}

// ISODate returns the YYYY-MM-DD date used for reset-boundary comparisons.
func (c *Clock) ISODate(now time.Time) string {
	return now.In(c.loc).Format("2006-01-02")
}

// LocalTime returns the instant's hour and minute in the campaign zone.
func (c *Clock) LocalTime(now time.Time) (hour, minute int) {
	local := now.In(c.loc)
	return local.Hour(), local.Minute()
}

// Location exposes the campaign zone for rendering timestamps.
func (c *Clock) Location() *time.Location {
	return c.loc
}
