// Package status records every status transition for every recording and
// keeps a bounded rolling history for diagnostics.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voxnote/internal/domain"
	"voxnote/internal/metrics"
	"voxnote/internal/ports"
)

// DefaultHistoryLimit bounds the diagnostic ring buffer.
const DefaultHistoryLimit = 100

// Tracker persists status transitions and maintains in-memory views.
// The in-memory map and history are only updated after the persistence call
// succeeds, so a partial failure never leaves the two inconsistent.
type Tracker struct {
	store   ports.RecordingStore
	events  ports.EventSink
	metrics *metrics.Metrics

	mu           sync.RWMutex
	latest       map[string]domain.RecordingStatus
	history      []domain.HistoryEntry
	historyLimit int
	now          func() time.Time
}

// NewTracker creates a tracker with the given history cap.
func NewTracker(store ports.RecordingStore, events ports.EventSink, m *metrics.Metrics, historyLimit int) *Tracker {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Tracker{
		store:        store,
		events:       events,
		metrics:      m,
		latest:       make(map[string]domain.RecordingStatus),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// UpdateStatus persists a status transition and records it in history.
func (t *Tracker) UpdateStatus(ctx context.Context, recordingID string, status domain.RecordingStatus) error {
	return t.update(ctx, recordingID, status, fmt.Sprintf("status changed to %s", status), status == domain.StatusFailed, "")
}

// MarkQueued records a recording as waiting for transcription.
func (t *Tracker) MarkQueued(ctx context.Context, recordingID string) error {
	return t.update(ctx, recordingID, domain.StatusPending, "queued for transcription", false, "")
}

// MarkProcessing records the start of a transcription attempt.
func (t *Tracker) MarkProcessing(ctx context.Context, recordingID string) error {
	return t.update(ctx, recordingID, domain.StatusInProgress, "transcription started", false, "")
}

// MarkCompleted persists the transcript alongside the completed status.
func (t *Tracker) MarkCompleted(ctx context.Context, recordingID string, text string) error {
	message := fmt.Sprintf("transcription completed (%d chars)", len(text))
	return t.update(ctx, recordingID, domain.StatusCompleted, message, false, text)
}

// MarkFailed records a terminal failure with its reason.
func (t *Tracker) MarkFailed(ctx context.Context, recordingID string, reason string) error {
	return t.update(ctx, recordingID, domain.StatusFailed, reason, true, "")
}

func (t *Tracker) update(ctx context.Context, recordingID string, status domain.RecordingStatus, message string, isError bool, transcript string) error {
	if recordingID == "" {
		return domain.NewError(domain.ErrorKindValidation, "recording id is required", nil)
	}

	var err error
	if transcript != "" {
		err = t.store.UpdateTranscript(ctx, recordingID, transcript, status)
	} else {
		err = t.store.UpdateStatus(ctx, recordingID, status)
	}
	if err != nil {
		return fmt.Errorf("failed to persist status %s for %s: %w", status, recordingID, err)
	}

	t.mu.Lock()
	t.latest[recordingID] = status
	t.history = append(t.history, domain.HistoryEntry{
		RecordingID: recordingID,
		Status:      status,
		Message:     message,
		IsError:     isError,
		Timestamp:   t.now(),
	})
	if len(t.history) > t.historyLimit {
		trim := len(t.history) - t.historyLimit
		t.history = append([]domain.HistoryEntry(nil), t.history[trim:]...)
	}
	t.mu.Unlock()

	if t.metrics != nil {
		switch status {
		case domain.StatusCompleted:
			t.metrics.TranscriptionsCompleted.Inc()
		case domain.StatusFailed:
			t.metrics.TranscriptionsFailed.Inc()
		}
	}
	if t.events != nil {
		t.events.RecordingStatusChanged(recordingID, status)
	}
	return nil
}

// StatusOf returns the latest tracked status for a recording.
func (t *Tracker) StatusOf(recordingID string) (domain.RecordingStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.latest[recordingID]
	return status, ok
}

// StatusSnapshot returns a copy of the latest-status map.
func (t *Tracker) StatusSnapshot() map[string]domain.RecordingStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.RecordingStatus, len(t.latest))
	for id, status := range t.latest {
		out[id] = status
	}
	return out
}

// History returns a copy of the bounded processing history, oldest first.
func (t *Tracker) History() []domain.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// Statistics aggregates counts per status over all tracked recordings.
func (t *Tracker) Statistics() domain.Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := domain.Statistics{}
	for _, status := range t.latest {
		switch status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	stats.Total = stats.Pending + stats.InProgress + stats.Completed + stats.Failed
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats
}
