package windows

import (
	"fmt"
	"time"

	"AlphaForge/internal/domain/models"
	"AlphaForge/internal/services/sessions"
	"AlphaForge/pkg/config"
)

// Scheduler maps the static, versioned window catalog onto concrete
// timestamps relative to an event. The catalog's cardinality fixes the
// width of the target vector, so changing it is a schema change.
type Scheduler struct {
	version    string
	specs      []models.TimeWindowSpec
	tolerances map[string]time.Duration
	cal        *sessions.Calendar
}

// FromConfig compiles and validates the configured catalog. Duplicate
// names or unknown anchors are configuration errors that abort before any
// event is processed.
func FromConfig(version string, catalog []config.WindowSpec, defaultTolerance time.Duration, cal *sessions.Calendar) (*Scheduler, error) {
	if len(catalog) == 0 {
		return nil, &models.ConfigError{Field: "windows.catalog", Reason: "empty catalog"}
	}
	seen := make(map[string]bool, len(catalog))
	specs := make([]models.TimeWindowSpec, 0, len(catalog))
	tolerances := make(map[string]time.Duration, len(catalog))
	for _, w := range catalog {
		if w.Name == "" {
			return nil, &models.ConfigError{Field: "windows.catalog", Reason: "window without a name"}
		}
		if seen[w.Name] {
			return nil, &models.ConfigError{Field: "windows.catalog", Reason: fmt.Sprintf("duplicate window %q", w.Name)}
		}
		seen[w.Name] = true
		switch w.Anchor {
		case "", models.AnchorEndOfDay, models.AnchorNextOpen:
		default:
			return nil, &models.ConfigError{Field: "windows.catalog", Reason: fmt.Sprintf("window %q: unknown anchor %q", w.Name, w.Anchor)}
		}
		if w.Anchor != "" && w.OffsetMinutes != 0 {
			return nil, &models.ConfigError{Field: "windows.catalog", Reason: fmt.Sprintf("window %q: offset and anchor are exclusive", w.Name)}
		}
		if w.Anchor == "" && w.OffsetMinutes == 0 {
			return nil, &models.ConfigError{Field: "windows.catalog", Reason: fmt.Sprintf("window %q: zero-width window", w.Name)}
		}
		specs = append(specs, models.TimeWindowSpec{
			Name:          w.Name,
			OffsetMinutes: w.OffsetMinutes,
			Anchor:        w.Anchor,
		})
		tol := defaultTolerance
		if w.ToleranceMinutes > 0 {
			tol = time.Duration(w.ToleranceMinutes) * time.Minute
		}
		tolerances[w.Name] = tol
	}
	return &Scheduler{version: version, specs: specs, tolerances: tolerances, cal: cal}, nil
}

// WindowsFor resolves every catalog entry against an event timestamp, in
// catalog order. Negative offsets open a window ending at the event;
// positive offsets and anchors open one starting at it.
func (s *Scheduler) WindowsFor(eventTime time.Time) []models.WindowTarget {
	out := make([]models.WindowTarget, 0, len(s.specs))
	for _, spec := range s.specs {
		var start, end time.Time
		switch {
		case spec.Anchor == models.AnchorEndOfDay:
			start, end = eventTime, s.cal.SessionClose(eventTime)
		case spec.Anchor == models.AnchorNextOpen:
			start, end = eventTime, s.cal.NextOpen(eventTime)
		case spec.OffsetMinutes < 0:
			start = eventTime.Add(time.Duration(spec.OffsetMinutes) * time.Minute)
			end = eventTime
		default:
			start = eventTime
			end = eventTime.Add(time.Duration(spec.OffsetMinutes) * time.Minute)
		}
		out = append(out, models.WindowTarget{Name: spec.Name, Start: start, End: end})
	}
	return out
}

// Tolerance returns the resolution tolerance configured for a window.
func (s *Scheduler) Tolerance(name string) time.Duration {
	return s.tolerances[name]
}

// Specs returns the compiled catalog in order.
func (s *Scheduler) Specs() []models.TimeWindowSpec { return s.specs }

// Version returns the catalog version; it is stamped into the export
// schema version.
func (s *Scheduler) Version() string { return s.version }
