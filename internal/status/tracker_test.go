package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"voxnote/internal/domain"
	"voxnote/internal/metrics"
)

type fakeStore struct {
	mu          sync.Mutex
	statuses    map[string]domain.RecordingStatus
	transcripts map[string]string
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses:    map[string]domain.RecordingStatus{},
		transcripts: map[string]string{},
	}
}

func (f *fakeStore) GetRecording(context.Context, string) (domain.Recording, error) {
	return domain.Recording{}, errors.New("not implemented")
}

func (f *fakeStore) ListByStatus(context.Context, ...domain.RecordingStatus) ([]domain.Recording, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status domain.RecordingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeStore) UpdateTranscript(_ context.Context, id string, transcript string, status domain.RecordingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses[id] = status
	f.transcripts[id] = transcript
	return nil
}

func newTestTracker(store *fakeStore, limit int) *Tracker {
	return NewTracker(store, nil, metrics.New(prometheus.NewRegistry()), limit)
}

func TestTrackerRecordsTransitions(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := newTestTracker(store, 10)
	ctx := context.Background()

	if err := tracker.MarkQueued(ctx, "r1"); err != nil {
		t.Fatalf("mark queued failed: %v", err)
	}
	if err := tracker.MarkProcessing(ctx, "r1"); err != nil {
		t.Fatalf("mark processing failed: %v", err)
	}
	if err := tracker.MarkCompleted(ctx, "r1", "hello."); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}

	if status, _ := tracker.StatusOf("r1"); status != domain.StatusCompleted {
		t.Fatalf("unexpected status: %s", status)
	}
	if store.transcripts["r1"] != "hello." {
		t.Fatalf("transcript not persisted")
	}

	history := tracker.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(history))
	}
	if history[0].Message != "queued for transcription" {
		t.Fatalf("unexpected first entry: %+v", history[0])
	}
	if history[2].Status != domain.StatusCompleted {
		t.Fatalf("unexpected last entry: %+v", history[2])
	}
}

func TestTrackerPersistFailureLeavesMemoryUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("disk full")
	tracker := newTestTracker(store, 10)

	if err := tracker.MarkQueued(context.Background(), "r1"); err == nil {
		t.Fatalf("expected persistence error")
	}
	if _, ok := tracker.StatusOf("r1"); ok {
		t.Fatalf("in-memory status must not be updated on persistence failure")
	}
	if len(tracker.History()) != 0 {
		t.Fatalf("history must not grow on persistence failure")
	}
}

func TestTrackerHistoryEviction(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := newTestTracker(store, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("r%d", i)
		if err := tracker.MarkQueued(ctx, id); err != nil {
			t.Fatalf("mark queued failed: %v", err)
		}
	}

	history := tracker.History()
	if len(history) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(history))
	}
	if history[0].RecordingID != "r3" {
		t.Fatalf("expected oldest entries evicted, got %s first", history[0].RecordingID)
	}
}

func TestTrackerStatistics(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tracker := newTestTracker(store, 50)
	ctx := context.Background()

	for i, mark := range []func() error{
		func() error { return tracker.MarkQueued(ctx, "p1") },
		func() error { return tracker.MarkQueued(ctx, "p2") },
		func() error { return tracker.MarkProcessing(ctx, "w1") },
		func() error { return tracker.MarkCompleted(ctx, "c1", "text.") },
		func() error { return tracker.MarkCompleted(ctx, "c2", "text.") },
		func() error { return tracker.MarkCompleted(ctx, "c3", "text.") },
		func() error { return tracker.MarkFailed(ctx, "f1", "boom") },
	} {
		if err := mark(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	stats := tracker.Statistics()
	if stats.Pending != 2 || stats.InProgress != 1 || stats.Completed != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.Total != stats.Pending+stats.InProgress+stats.Completed+stats.Failed {
		t.Fatalf("total invariant violated: %+v", stats)
	}
	if want := 3.0 / 7.0; stats.SuccessRate != want {
		t.Fatalf("unexpected success rate: %v", stats.SuccessRate)
	}
}

func TestTrackerStatisticsEmpty(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newFakeStore(), 10)
	stats := tracker.Statistics()
	if stats.Total != 0 || stats.SuccessRate != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestTrackerRejectsEmptyID(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newFakeStore(), 10)
	err := tracker.UpdateStatus(context.Background(), "", domain.StatusPending)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var terr *domain.TranscriptionError
	if !errors.As(err, &terr) || terr.Kind != domain.ErrorKindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
}
