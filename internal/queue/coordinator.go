// Package queue owns the transcription queue state machine. Recordings are
// drained strictly one at a time, oldest first, and only while online.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"voxnote/internal/domain"
	"voxnote/internal/metrics"
	"voxnote/internal/ports"
)

// ErrRetryOffline is returned when a manual retry is requested while offline.
var ErrRetryOffline = errors.New("cannot retry while offline")

// ResultProcessor finalizes one completed transcription attempt.
type ResultProcessor interface {
	ProcessSuccess(ctx context.Context, recordingID string, raw string) (string, error)
	ProcessFailure(ctx context.Context, recordingID string, cause error) error
}

// StatusTracker records queue-driven status transitions.
type StatusTracker interface {
	MarkQueued(ctx context.Context, recordingID string) error
	MarkProcessing(ctx context.Context, recordingID string) error
}

// Coordinator drains pending recordings against the remote transcriber.
// All queue mutation happens through its methods; observers read snapshots.
type Coordinator struct {
	store        ports.RecordingStore
	transcriber  ports.Transcriber
	processor    ResultProcessor
	tracker      StatusTracker
	connectivity ports.Connectivity
	events       ports.EventSink
	metrics      *metrics.Metrics

	mu        sync.Mutex
	state     domain.QueueState
	currentID string
	paused    bool
	pending   int

	wake        chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// NewCoordinator creates a coordinator in the idle state. Call Start to begin
// draining.
func NewCoordinator(
	store ports.RecordingStore,
	transcriber ports.Transcriber,
	processor ResultProcessor,
	tracker StatusTracker,
	connectivity ports.Connectivity,
	events ports.EventSink,
	m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		store:        store,
		transcriber:  transcriber,
		processor:    processor,
		tracker:      tracker,
		connectivity: connectivity,
		events:       events,
		metrics:      m,
		state:        domain.QueueStateIdle,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Start launches the drain loop and subscribes to connectivity changes.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.unsubscribe = c.connectivity.Subscribe(func(online bool) {
		// The offline transition is applied before any queue re-evaluation
		// that depends on it.
		if !online {
			c.setState(domain.QueueStateOffline)
			return
		}
		c.signalWake()
	})

	go c.run(runCtx)

	if c.connectivity.IsOnline() {
		c.signalWake()
	} else {
		c.setState(domain.QueueStateOffline)
	}
}

// Stop cancels the drain loop. An in-flight recording is left in progress and
// re-queued by Reconcile on next startup.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Reconcile re-queues recordings left in progress by a previous run. It must
// be called before Start.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	orphaned, err := c.store.ListByStatus(ctx, domain.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to list in-progress recordings: %w", err)
	}
	for _, rec := range orphaned {
		if err := c.tracker.MarkQueued(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to re-queue %s: %w", rec.ID, err)
		}
	}
	return nil
}

// AddToQueue marks a recording pending. Adding an already-pending recording
// is a no-op.
func (c *Coordinator) AddToQueue(ctx context.Context, recordingID string) error {
	rec, err := c.store.GetRecording(ctx, recordingID)
	if err != nil {
		return domain.NewError(domain.ErrorKindValidation, fmt.Sprintf("unknown recording %q", recordingID), err)
	}

	switch rec.Status {
	case domain.StatusPending, domain.StatusInProgress:
		c.signalWake()
		return nil
	}

	if err := c.tracker.MarkQueued(ctx, recordingID); err != nil {
		return err
	}
	c.signalWake()
	return nil
}

// RetryProcessing clears an error or paused state and resumes draining.
func (c *Coordinator) RetryProcessing() error {
	if !c.connectivity.IsOnline() {
		return ErrRetryOffline
	}

	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	c.setState(domain.QueueStateReady)
	c.signalWake()
	return nil
}

// PauseProcessing suspends draining. An in-flight recording finishes first.
func (c *Coordinator) PauseProcessing() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.setState(domain.QueueStatePaused)
}

// ResumeProcessing lifts a pause.
func (c *Coordinator) ResumeProcessing() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	if c.connectivity.IsOnline() {
		c.setState(domain.QueueStateReady)
		c.signalWake()
	} else {
		c.setState(domain.QueueStateOffline)
	}
}

// State returns the current queue state.
func (c *Coordinator) State() domain.QueueState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentItem returns the recording currently being transcribed, if any.
func (c *Coordinator) CurrentItem() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID, c.currentID != ""
}

// Summary returns a point-in-time view of the queue.
func (c *Coordinator) Summary(ctx context.Context) (domain.QueueSummary, error) {
	pending, err := c.store.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return domain.QueueSummary{}, fmt.Errorf("failed to list pending recordings: %w", err)
	}
	sortByCapture(pending)

	summary := domain.QueueSummary{
		Pending: len(pending),
		Offline: !c.connectivity.IsOnline(),
		State:   c.State(),
	}
	if len(pending) > 0 {
		oldest := pending[0]
		newest := pending[len(pending)-1]
		summary.Oldest = &oldest
		summary.Newest = &newest
	}
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		c.drain(ctx)
	}
}

// drain processes pending recordings one at a time, re-checking pause state,
// connectivity, and queue depth before each item.
func (c *Coordinator) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if c.isPaused() {
			c.setState(domain.QueueStatePaused)
			return
		}
		if !c.connectivity.IsOnline() {
			c.setState(domain.QueueStateOffline)
			return
		}

		pending, err := c.store.ListByStatus(ctx, domain.StatusPending)
		if err != nil {
			log.Printf("queue: failed to list pending recordings: %v", err)
			c.setState(domain.QueueStateError)
			return
		}
		c.setPending(len(pending))
		if len(pending) == 0 {
			c.setState(domain.QueueStateIdle)
			return
		}
		sortByCapture(pending)

		c.setState(domain.QueueStateReady)
		if !c.processOne(ctx, pending[0]) {
			return
		}
	}
}

// processOne transcribes a single recording. It reports whether draining
// should continue.
func (c *Coordinator) processOne(ctx context.Context, rec domain.Recording) bool {
	c.setCurrent(rec.ID)
	defer c.setCurrent("")

	c.setState(domain.QueueStateProcessing)
	if err := c.tracker.MarkProcessing(ctx, rec.ID); err != nil {
		log.Printf("queue: failed to mark %s processing: %v", rec.ID, err)
		c.setState(domain.QueueStateError)
		return false
	}

	raw, err := c.transcriber.Transcribe(ctx, rec.AudioPath)
	if ctx.Err() != nil {
		// Shutdown mid-item: leave the recording in progress for Reconcile.
		return false
	}
	if err != nil {
		_ = c.processor.ProcessFailure(ctx, rec.ID, err)
		c.setState(domain.QueueStateError)
		return false
	}

	text, err := c.processor.ProcessSuccess(ctx, rec.ID, raw)
	if err != nil {
		c.setState(domain.QueueStateError)
		return false
	}

	if c.events != nil {
		c.events.TranscriptReady(rec.ID, text)
	}
	if c.metrics != nil {
		c.metrics.QueueProcessed.Inc()
	}
	return true
}

func (c *Coordinator) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Coordinator) setCurrent(id string) {
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
}

func (c *Coordinator) setPending(n int) {
	c.mu.Lock()
	c.pending = n
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.QueueDepth.Set(float64(n))
	}
}

func (c *Coordinator) setState(state domain.QueueState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	pending := c.pending
	c.mu.Unlock()

	if changed && c.events != nil {
		c.events.QueueStateChanged(state, pending)
	}
}

func (c *Coordinator) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func sortByCapture(recordings []domain.Recording) {
	sort.SliceStable(recordings, func(i, j int) bool {
		return recordings[i].CapturedAt.Before(recordings[j].CapturedAt)
	})
}
