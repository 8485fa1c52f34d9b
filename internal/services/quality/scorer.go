package quality

import (
	"sync"

	"AlphaForge/internal/domain/models"
)

// Tracker counts every attempted price-point resolution of one event
// (instrument and each benchmark constituent, across every window) and
// remembers which windows had failures. Safe for the per-window parallel
// fan-out to record into.
type Tracker struct {
	mu        sync.Mutex
	attempted int
	succeeded int
	order     []string
	failed    map[string]bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{failed: make(map[string]bool)}
}

// Record registers one resolution attempt for a window.
func (t *Tracker) Record(window string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempted++
	if ok {
		t.succeeded++
		return
	}
	if !t.failed[window] {
		t.failed[window] = true
		t.order = append(t.order, window)
	}
}

// Score computes the completeness fraction and the failed window names in
// first-failure order. With zero attempts completeness is 1: nothing was
// missing because nothing was needed.
func (t *Tracker) Score() models.DataQualityScore {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := models.DataQualityScore{
		Attempted: t.attempted,
		Succeeded: t.succeeded,
	}
	if t.attempted == 0 {
		s.Completeness = 1
	} else {
		s.Completeness = float64(t.succeeded) / float64(t.attempted)
	}
	s.MissingWindows = append(s.MissingWindows, t.order...)
	return s
}
