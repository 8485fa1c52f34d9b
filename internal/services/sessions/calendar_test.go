package sessions

import (
	"testing"
	"time"
)

func newCal(t *testing.T) *Calendar {
	t.Helper()
	c, err := New("xnys", "America/New_York", "09:30", "16:00")
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	return c
}

func TestInSession(t *testing.T) {
	c := newCal(t)
	loc := c.Location()

	// Tuesday mid-session
	if !c.InSession(time.Date(2025, 3, 11, 11, 0, 0, 0, loc)) {
		t.Fatalf("weekday 11:00 should be in session")
	}
	// before the open
	if c.InSession(time.Date(2025, 3, 11, 9, 0, 0, 0, loc)) {
		t.Fatalf("09:00 is pre-market")
	}
	// exactly at the close is outside
	if c.InSession(time.Date(2025, 3, 11, 16, 0, 0, 0, loc)) {
		t.Fatalf("16:00 is after-hours")
	}
	// Saturday
	if c.InSession(time.Date(2025, 3, 15, 11, 0, 0, 0, loc)) {
		t.Fatalf("saturday is never in session")
	}
}

func TestSessionClose(t *testing.T) {
	c := newCal(t)
	loc := c.Location()
	got := c.SessionClose(time.Date(2025, 3, 11, 10, 12, 0, 0, loc))
	want := time.Date(2025, 3, 11, 16, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("close = %v, want %v", got, want)
	}
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	c := newCal(t)
	loc := c.Location()
	// Friday afternoon
	got := c.NextOpen(time.Date(2025, 3, 14, 14, 0, 0, 0, loc))
	want := time.Date(2025, 3, 17, 9, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("next open = %v, want %v", got, want)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New("xnys", "Not/AZone", "09:30", "16:00"); err == nil {
		t.Fatalf("bad timezone must fail")
	}
	if _, err := New("xnys", "America/New_York", "25:00", "16:00"); err == nil {
		t.Fatalf("bad open must fail")
	}
	if _, err := New("xnys", "America/New_York", "16:00", "09:30"); err == nil {
		t.Fatalf("close before open must fail")
	}
}

func TestUnknownMICFallsBackToWeekdays(t *testing.T) {
	c, err := New("zzzz", "UTC", "08:00", "17:00")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !c.IsTradingDay(time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("wednesday should be a trading day")
	}
	if c.IsTradingDay(time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("sunday should not be a trading day")
	}
}
