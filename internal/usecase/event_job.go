package usecase

import (
	"context"
	"fmt"

	"AlphaForge/internal/domain/models"
	"AlphaForge/pkg/queue"
)

// EventJobType is the queue message type for enqueued events.
const EventJobType = "event.process"

// ProcessEventJob consumes events pushed onto the Redis queue by
// upstream extraction services and runs them through the pipeline.
type ProcessEventJob struct {
	proc *EventProcessor
}

// NewProcessEventJob creates the queue job.
func NewProcessEventJob(proc *EventProcessor) *ProcessEventJob {
	return &ProcessEventJob{proc: proc}
}

func (j *ProcessEventJob) Name() string { return "process-event" }

func (j *ProcessEventJob) Type() string { return EventJobType }

// Handle parses the payload and processes the event. Export failures
// surface as errors so the queue's retry path re-delivers the message;
// data-quality partials are terminal and succeed.
func (j *ProcessEventJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.Event](payload)
	if err != nil {
		return fmt.Errorf("parse event payload: %w", err)
	}

	res := j.proc.Process(ctx, ev)
	if res.Status == models.StatusFailed && res.Reason == "export_failed" {
		return fmt.Errorf("event %s export: %w", ev.ID, res.Err)
	}
	return nil
}

var _ queue.Job = (*ProcessEventJob)(nil)
