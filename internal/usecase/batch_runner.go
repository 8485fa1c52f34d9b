package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlphaForge/internal/domain/models"
	drepo "AlphaForge/internal/domain/repository"
	"AlphaForge/pkg/cache"
	applogger "AlphaForge/pkg/logger"
)

// resultTTL bounds how long per-event results stay queryable on the
// status API after processing.
const resultTTL = 24 * time.Hour

// BatchStats holds the counters of one batch run.
type BatchStats struct {
	BatchID      string         `json:"batch_id"`
	Total        int            `json:"total"`
	Completed    int            `json:"completed"`
	Partial      int            `json:"partial"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
	SourceErrors int            `json:"source_errors"`
	Reasons      map[string]int `json:"reasons,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at,omitempty"`
}

// BatchSummary reports batch-level outcomes: counts per terminal status
// and the dominant failure reasons.
type BatchSummary struct {
	mu sync.Mutex
	BatchStats
}

func newBatchSummary(batchID string) *BatchSummary {
	s := &BatchSummary{}
	s.BatchID = batchID
	s.Reasons = make(map[string]int)
	s.StartedAt = time.Now()
	return s
}

func (s *BatchSummary) record(res *models.EventResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	switch res.Status {
	case models.StatusComplete:
		s.Completed++
	case models.StatusPartial:
		s.Partial++
	case models.StatusFailed:
		s.Failed++
	}
	if res.Reason != "" {
		s.Reasons[res.Reason]++
	}
}

func (s *BatchSummary) recordSkip() {
	s.mu.Lock()
	s.Total++
	s.Skipped++
	s.mu.Unlock()
}

func (s *BatchSummary) recordSourceError() {
	s.mu.Lock()
	s.SourceErrors++
	s.mu.Unlock()
}

// DominantReason returns the most frequent failure reason, ties broken
// alphabetically for determinism.
func (s *BatchSummary) DominantReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if s.Reasons[k] > bestN {
			best, bestN = k, s.Reasons[k]
		}
	}
	return best
}

// Snapshot returns a copy safe to serve from the status API while the
// batch is running.
func (s *BatchSummary) Snapshot() BatchStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.BatchStats
	cp.Reasons = make(map[string]int, len(s.Reasons))
	for k, v := range s.Reasons {
		cp.Reasons[k] = v
	}
	return cp
}

// BatchRunner fans events out over a bounded worker pool. Runs are
// resumable: events already recorded in the checkpoint are skipped, so
// re-running a batch over the same store snapshot is idempotent.
// Cancellation stops intake; in-flight events finish.
type BatchRunner struct {
	proc       *EventProcessor
	checkpoint drepo.Checkpoint
	results    cache.Service
	metrics    drepo.Metrics
	l          *applogger.Logger
	workers    int

	mu      sync.Mutex
	current *BatchSummary
}

// NewBatchRunner creates a runner with the given worker bound. The
// results cache is optional; when present each event's outcome is kept
// queryable for the status API.
func NewBatchRunner(proc *EventProcessor, checkpoint drepo.Checkpoint, results cache.Service, metrics drepo.Metrics, l *applogger.Logger, workers int) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{proc: proc, checkpoint: checkpoint, results: results, metrics: metrics, l: l, workers: workers}
}

// Run drains the event source through the worker pool and returns the
// batch summary. A single event's failure never aborts the batch.
func (r *BatchRunner) Run(ctx context.Context, batchID string, src drepo.EventSource) (*BatchSummary, error) {
	summary := newBatchSummary(batchID)
	r.mu.Lock()
	r.current = summary
	r.mu.Unlock()
	events, errs := src.Events(ctx)

	// in-flight work survives cancellation; only intake stops
	workCtx := context.WithoutCancel(ctx)

	var srcWG sync.WaitGroup
	srcWG.Add(1)
	go func() {
		defer srcWG.Done()
		for err := range errs {
			summary.recordSourceError()
			if r.metrics != nil {
				r.metrics.RecordError("event_source")
			}
			if r.l != nil {
				r.l.Warn("event source error", applogger.Error(err))
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					r.handle(workCtx, batchID, ev, summary)
				}
			}
		}(i)
	}

	wg.Wait()
	srcWG.Wait()
	summary.FinishedAt = time.Now()

	if r.l != nil {
		r.l.Info("batch finished",
			applogger.String("batch_id", batchID),
			applogger.Int("total", summary.Total),
			applogger.Int("completed", summary.Completed),
			applogger.Int("partial", summary.Partial),
			applogger.Int("failed", summary.Failed),
			applogger.Int("skipped", summary.Skipped),
			applogger.String("dominant_reason", summary.DominantReason()),
		)
	}
	return summary, ctx.Err()
}

// Summary returns the live summary of the current or most recent run,
// or nil before the first run starts.
func (r *BatchRunner) Summary() *BatchSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *BatchRunner) handle(ctx context.Context, batchID string, ev *models.Event, summary *BatchSummary) {
	if ev.ID != "" {
		done, err := r.checkpoint.IsDone(ctx, batchID, ev.ID)
		if err != nil {
			if r.metrics != nil {
				r.metrics.RecordError("checkpoint_read")
			}
			// fall through and process; worst case we recompute
		} else if done {
			summary.recordSkip()
			return
		}
	}

	res := r.proc.Process(ctx, ev)
	summary.record(res)

	if r.results != nil {
		key := cache.GenerateKey("alphaforge:result", ev.ID)
		if err := r.results.Set(ctx, key, res, resultTTL); err != nil {
			if r.metrics != nil {
				r.metrics.RecordError("result_cache_write")
			}
		}
	}

	// failed events stay uncheckpointed so a resumed run retries them
	if res.Status == models.StatusComplete || res.Status == models.StatusPartial {
		if err := r.checkpoint.MarkDone(ctx, batchID, ev.ID); err != nil {
			if r.metrics != nil {
				r.metrics.RecordError("checkpoint_write")
			}
			if r.l != nil {
				r.l.Warn("checkpoint write failed",
					applogger.String("event_id", ev.ID),
					applogger.Error(err),
				)
			}
		}
	}
}
