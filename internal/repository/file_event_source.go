package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
)

// FileEventSource streams events from a JSONL file, one event object per
// line. This is the offline-batch intake; the live path is the websocket
// stream client.
type FileEventSource struct {
	path string
	f    *os.File
}

// NewFileEventSource opens the JSONL file.
func NewFileEventSource(path string) (*FileEventSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	return &FileEventSource{path: path, f: f}, nil
}

// Events yields events until EOF or cancellation.
func (s *FileEventSource) Events(ctx context.Context) (<-chan *models.Event, <-chan error) {
	events := make(chan *models.Event, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		scanner := bufio.NewScanner(s.f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var ev models.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				errs <- fmt.Errorf("events file line %d: %w", line, err)
				continue
			}
			select {
			case events <- &ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("events file scan: %w", err)
		}
	}()

	return events, errs
}

// Close closes the underlying file.
func (s *FileEventSource) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

var _ drepo.EventSource = (*FileEventSource)(nil)
