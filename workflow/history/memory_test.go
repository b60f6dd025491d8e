package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRecordAndGet(t *testing.T) {
	s := NewMemoryStore()
	rec := RunRecord{Name: "nightly", WorkflowID: "run1", Timestamp: time.Now(), Backend: "async", JobCount: 3}
	if err := s.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Get(context.Background(), "run1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "nightly" || got.JobCount != 3 {
		t.Fatalf("got %+v, want matching nightly/3", got)
	}
}

func TestMemoryStoreGetUnknownReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListOrdersMostRecentFirstAndRespectsLimit(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		s.Record(context.Background(), RunRecord{WorkflowID: id, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	out, err := s.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].WorkflowID != "c" || out[1].WorkflowID != "b" {
		t.Fatalf("expected most-recent-first order c,b, got %v,%v", out[0].WorkflowID, out[1].WorkflowID)
	}
}

func TestMemoryStoreRecordOverwritesSameWorkflowID(t *testing.T) {
	s := NewMemoryStore()
	s.Record(context.Background(), RunRecord{WorkflowID: "r", ErrorCount: 0})
	s.Record(context.Background(), RunRecord{WorkflowID: "r", ErrorCount: 5})
	got, _ := s.Get(context.Background(), "r")
	if got.ErrorCount != 5 {
		t.Fatalf("got ErrorCount=%d, want 5 (overwritten)", got.ErrorCount)
	}
	out, _ := s.List(context.Background(), 0)
	if len(out) != 1 {
		t.Fatalf("overwriting an existing id must not duplicate the order entry, got %d entries", len(out))
	}
}
