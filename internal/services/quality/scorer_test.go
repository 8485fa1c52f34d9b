package quality

import (
	"sync"
	"testing"
)

func TestScoreCompleteness(t *testing.T) {
	tr := NewTracker()
	tr.Record("post_1h", true)
	tr.Record("post_1h", true)
	tr.Record("post_4h", false)
	tr.Record("eod", true)

	s := tr.Score()
	if s.Attempted != 4 || s.Succeeded != 3 {
		t.Fatalf("attempted/succeeded = %d/%d", s.Attempted, s.Succeeded)
	}
	if s.Completeness != 0.75 {
		t.Fatalf("completeness = %v, want 0.75", s.Completeness)
	}
	if len(s.MissingWindows) != 1 || s.MissingWindows[0] != "post_4h" {
		t.Fatalf("missing = %v", s.MissingWindows)
	}
}

func TestScoreNoAttemptsIsComplete(t *testing.T) {
	s := NewTracker().Score()
	if s.Completeness != 1 {
		t.Fatalf("zero attempts should score 1, got %v", s.Completeness)
	}
	if len(s.MissingWindows) != 0 {
		t.Fatalf("missing = %v", s.MissingWindows)
	}
}

func TestMissingWindowsFirstFailureOrderAndDedup(t *testing.T) {
	tr := NewTracker()
	tr.Record("b", false)
	tr.Record("a", false)
	tr.Record("b", false)
	tr.Record("a", false)

	s := tr.Score()
	if len(s.MissingWindows) != 2 || s.MissingWindows[0] != "b" || s.MissingWindows[1] != "a" {
		t.Fatalf("missing = %v, want [b a]", s.MissingWindows)
	}
}

func TestRecordConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			tr.Record("w", ok)
		}(i%2 == 0)
	}
	wg.Wait()

	s := tr.Score()
	if s.Attempted != 50 || s.Succeeded != 25 {
		t.Fatalf("attempted/succeeded = %d/%d", s.Attempted, s.Succeeded)
	}
}
