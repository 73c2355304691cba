package report

import (
	"time"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// anchorWeekday is the weekday the reporting period starts on.
const anchorWeekday = time.Wednesday

// Clock supplies the report time zone and the current time. Tests inject a
// fixed now; production uses time.Now.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock builds a Clock for the given zone name. now may be nil.
func NewClock(timezone string, now func() time.Time) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}, nil
}

// Now returns the current time in the report zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Location exposes the report zone for timestamp parsing.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// MeetingWindow derives the current reporting period: the most recent
// anchor weekday at midnight through the following Tuesday at noon, capped
// at now so an in-progress period reports only up to the present.
func (c *Clock) MeetingWindow() domain.MeetingWindow {
	now := c.Now()
	start := lastAnchor(now)
	nominalEnd := time.Date(
		start.Year(), start.Month(), start.Day()+6,
		12, 0, 0, 0, c.loc,
	)
	end := nominalEnd
	if now.Before(end) {
		end = now
	}
	return domain.MeetingWindow{Start: start, End: end}
}

func lastAnchor(now time.Time) time.Time {
	offset := (int(now.Weekday()) - int(anchorWeekday) + 7) % 7
	anchor := now.AddDate(0, 0, -offset)
	return time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, now.Location())
}
