package sessions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scmhub/calendar"

	"AlphaForge/internal/domain/models"
)

// Calendar answers exchange-session questions: trading days, in-session
// checks and the symbolic window anchors (session close, next open).
// Business days come from the MIC calendar (ISO 10383) when available and
// fall back to Mon-Fri otherwise; session hours come from config.
type Calendar struct {
	mic      string
	loc      *time.Location
	openH    int
	openM    int
	closeH   int
	closeM   int
	cal      *calendar.Calendar
	fallback bool
}

// New builds a session calendar for one exchange. open/close are local
// "HH:MM" strings.
func New(mic, timezone, open, close string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, &models.ConfigError{Field: "calendar.timezone", Reason: err.Error()}
	}
	oh, om, err := parseClock(open)
	if err != nil {
		return nil, &models.ConfigError{Field: "calendar.open", Reason: err.Error()}
	}
	ch, cm, err := parseClock(close)
	if err != nil {
		return nil, &models.ConfigError{Field: "calendar.close", Reason: err.Error()}
	}
	if ch*60+cm <= oh*60+om {
		return nil, &models.ConfigError{Field: "calendar.close", Reason: "close must be after open"}
	}

	c := &Calendar{mic: mic, loc: loc, openH: oh, openM: om, closeH: ch, closeM: cm}
	if cal := calendar.GetCalendar(mic); cal != nil {
		c.cal = cal
	} else {
		c.fallback = true
	}
	return c, nil
}

// IsTradingDay reports whether t falls on a business day of the exchange.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// InSession reports whether t is inside regular trading hours.
func (c *Calendar) InSession(t time.Time) bool {
	t = t.In(c.loc)
	if !c.IsTradingDay(t) {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= c.openH*60+c.openM && m < c.closeH*60+c.closeM
}

// SessionClose returns the session close on t's calendar day. The day
// need not be a trading day; the caller resolves against real bars and
// tolerance anyway.
func (c *Calendar) SessionClose(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), c.closeH, c.closeM, 0, 0, c.loc)
}

// NextOpen returns the session open on the next trading day after t's
// calendar day.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	d := t.In(c.loc)
	for i := 0; i < 14; i++ {
		d = d.AddDate(0, 0, 1)
		if c.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), c.openH, c.openM, 0, 0, c.loc)
		}
	}
	// long exchange shutdown; return the raw next day open
	d = t.In(c.loc).AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), c.openH, c.openM, 0, 0, c.loc)
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return h, m, nil
}
