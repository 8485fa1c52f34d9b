package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"AlphaForge/internal/domain/models"
)

func writeEvents(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
	return path
}

func drain(t *testing.T, src *FileEventSource) ([]*models.Event, []error) {
	t.Helper()
	events, errs := src.Events(context.Background())
	var evs []*models.Event
	var errors []error
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			evs = append(evs, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			errors = append(errors, err)
		}
	}
	return evs, errors
}

func TestFileEventSourceYieldsEvents(t *testing.T) {
	path := writeEvents(t, `{"id":"ev-1","ticker":"AAPL","timestamp":"2025-03-11T14:00:00Z"}
{"id":"ev-2","ticker":"MSFT","timestamp":"2025-03-11T15:00:00Z","factors":[{"causal_step":1,"event_type":"earnings_beat"}]}
`)
	src, err := NewFileEventSource(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	evs, errors := drain(t, src)
	if len(errors) != 0 {
		t.Fatalf("errors = %v", errors)
	}
	if len(evs) != 2 || evs[0].ID != "ev-1" || evs[1].Ticker != "MSFT" {
		t.Fatalf("events = %+v", evs)
	}
	if len(evs[1].Factors) != 1 || evs[1].Factors[0].EventType != "earnings_beat" {
		t.Fatalf("factors = %+v", evs[1].Factors)
	}
}

func TestFileEventSourceSkipsMalformedLines(t *testing.T) {
	path := writeEvents(t, `{"id":"ev-1","ticker":"AAPL","timestamp":"2025-03-11T14:00:00Z"}
{not json}

{"id":"ev-2","ticker":"MSFT","timestamp":"2025-03-11T15:00:00Z"}
`)
	src, err := NewFileEventSource(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	evs, errors := drain(t, src)
	// one error for the bad line, blank lines are silently skipped
	if len(errors) != 1 {
		t.Fatalf("errors = %v", errors)
	}
	if len(evs) != 2 {
		t.Fatalf("malformed line must not stop the stream, got %d events", len(evs))
	}
}

func TestFileEventSourceMissingFile(t *testing.T) {
	if _, err := NewFileEventSource(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatalf("missing file must fail at open")
	}
}

func TestFileEventSourceCancellation(t *testing.T) {
	var body string
	for i := 0; i < 500; i++ {
		body += `{"id":"ev","ticker":"AAPL","timestamp":"2025-03-11T14:00:00Z"}` + "\n"
	}
	src, err := NewFileEventSource(writeEvents(t, body))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := src.Events(ctx)
	<-events
	cancel()

	n := 1
	for range events {
		n++
	}
	if n >= 500 {
		t.Fatalf("cancelled source must stop early, yielded %d", n)
	}
}
