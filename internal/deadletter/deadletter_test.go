package deadletter_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kpeterse/crew/internal/deadletter"
)

func newTestStore(t *testing.T) *deadletter.Store {
	t.Helper()
	s, err := deadletter.Open(filepath.Join(t.TempDir(), "deadletters.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)

	e := &deadletter.Entry{
		WorkID:  7,
		Tracked: false,
		Reason:  "untracked",
		Payload: []byte(`{"value":42}`),
	}
	if err := s.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if e.ID == "" {
		t.Error("Record did not assign an ID")
	}
	if e.RecordedAt.IsZero() {
		t.Error("Record did not assign a timestamp")
	}

	entries, total, err := s.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("total = %d, len = %d, want 1", total, len(entries))
	}

	got := entries[0]
	if got.ID != e.ID || got.WorkID != 7 || got.Reason != "untracked" {
		t.Errorf("entry = %+v, want the recorded one", got)
	}
	if string(got.Payload) != `{"value":42}` {
		t.Errorf("payload = %s, want the recorded payload", got.Payload)
	}
}

func TestRecordKeepsExplicitFields(t *testing.T) {
	s := newTestStore(t)

	recordedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &deadletter.Entry{
		ID:         "explicit-id",
		WorkID:     3,
		Tracked:    true,
		IsFailure:  true,
		Failure:    "device unreachable",
		Reason:     "unmatched",
		RecordedAt: recordedAt,
	}
	if err := s.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, _, err := s.List(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := entries[0]
	if got.ID != "explicit-id" {
		t.Errorf("ID = %q, want %q", got.ID, "explicit-id")
	}
	if !got.IsFailure || got.Failure != "device unreachable" {
		t.Errorf("entry = %+v, want the failure preserved", got)
	}
	if !got.RecordedAt.Equal(recordedAt) {
		t.Errorf("RecordedAt = %v, want %v", got.RecordedAt, recordedAt)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := &deadletter.Entry{
			WorkID:     uint64(i + 1),
			Reason:     "untracked",
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(context.Background(), e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	first, total, err := s.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(first) != 2 {
		t.Fatalf("page size = %d, want 2", len(first))
	}
	if first[0].WorkID != 3 || first[1].WorkID != 2 {
		t.Errorf("page order = [%d %d], want newest first [3 2]", first[0].WorkID, first[1].WorkID)
	}

	second, _, err := s.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("List offset 2: %v", err)
	}
	if len(second) != 1 || second[0].WorkID != 1 {
		t.Errorf("second page = %+v, want the oldest entry", second)
	}
}
