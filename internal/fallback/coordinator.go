// Package fallback chooses among remote transcription, cached results,
// offline queuing, and degraded manual entry, and replays deferred work once
// connectivity returns.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxnote/internal/domain"
	"voxnote/internal/metrics"
	"voxnote/internal/ports"
)

// ErrOffline is returned by operations that require connectivity.
var ErrOffline = errors.New("cannot perform this operation while offline")

// maxActionReplays caps how often a still-failing recovery action is
// re-queued before it is dropped.
const maxActionReplays = 3

// QueueService is the queue coordinator surface the fallback layer uses.
type QueueService interface {
	AddToQueue(ctx context.Context, recordingID string) error
	Summary(ctx context.Context) (domain.QueueSummary, error)
}

// ResultProcessor finalizes one completed transcription attempt.
type ResultProcessor interface {
	ProcessSuccess(ctx context.Context, recordingID string, raw string) (string, error)
	ProcessFailure(ctx context.Context, recordingID string, cause error) error
}

// Coordinator is the top-level transcription entry point consumed by the UI.
type Coordinator struct {
	transcriber  ports.Transcriber
	queue        QueueService
	recordings   ports.RecordingStore
	documents    ports.DocumentStore
	drafts       ports.DraftStore
	connectivity ports.Connectivity
	processor    ResultProcessor
	events       ports.EventSink
	metrics      *metrics.Metrics
	capability   func() bool
	now          func() time.Time

	mu      sync.Mutex
	state   domain.FallbackState
	cache   map[string]string
	actions []domain.RecoveryAction

	unsubscribe func()
}

// NewCoordinator builds a coordinator and derives its initial state from the
// connectivity signal. capability reports whether basic local capture and
// storage are available while offline.
func NewCoordinator(
	transcriber ports.Transcriber,
	queue QueueService,
	recordings ports.RecordingStore,
	documents ports.DocumentStore,
	drafts ports.DraftStore,
	connectivity ports.Connectivity,
	processor ResultProcessor,
	events ports.EventSink,
	m *metrics.Metrics,
	capability func() bool,
) *Coordinator {
	if capability == nil {
		capability = func() bool { return true }
	}

	c := &Coordinator{
		transcriber:  transcriber,
		queue:        queue,
		recordings:   recordings,
		documents:    documents,
		drafts:       drafts,
		connectivity: connectivity,
		processor:    processor,
		events:       events,
		metrics:      m,
		capability:   capability,
		now:          time.Now,
		cache:        make(map[string]string),
	}
	c.state = c.deriveState(connectivity.IsOnline(), false)
	return c
}

// Start subscribes to connectivity changes. Reconnection triggers a
// background recovery pass.
func (c *Coordinator) Start(ctx context.Context) {
	c.unsubscribe = c.connectivity.Subscribe(func(online bool) {
		c.handleConnectivityChange(ctx, online)
	})
}

// Stop removes the connectivity subscription.
func (c *Coordinator) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Transcribe requests transcription of one recording and translates every
// failure into a user-facing outcome.
func (c *Coordinator) Transcribe(ctx context.Context, recordingID string) (domain.FallbackResult, error) {
	rec, err := c.recordings.GetRecording(ctx, recordingID)
	if err != nil {
		return domain.FallbackResult{}, domain.NewError(domain.ErrorKindValidation, fmt.Sprintf("unknown recording %q", recordingID), err)
	}

	switch c.State() {
	case domain.FallbackStateOnline, domain.FallbackStateRecovering:
		return c.transcribeOnline(ctx, rec), nil
	case domain.FallbackStateOfflineBasic:
		return c.transcribeOffline(ctx, rec)
	default:
		return domain.FallbackResult{
			Outcome: domain.OutcomeDegraded,
			Message: "Automatic transcription is unavailable. Enter the text manually.",
			Action:  "manual_input",
		}, nil
	}
}

func (c *Coordinator) transcribeOnline(ctx context.Context, rec domain.Recording) domain.FallbackResult {
	raw, err := c.transcriber.Transcribe(ctx, rec.AudioPath)
	if err == nil {
		text, perr := c.processor.ProcessSuccess(ctx, rec.ID, raw)
		if perr == nil {
			c.cacheSet(rec.ID, text)
			return domain.FallbackResult{Outcome: domain.OutcomeSuccess, Text: text}
		}
		// The processor already recorded the terminal failure.
		return c.failedResult(rec.ID, perr)
	}

	if _, ok := c.cacheGet(rec.ID); !ok {
		_ = c.processor.ProcessFailure(ctx, rec.ID, err)
	}
	return c.failedResult(rec.ID, err)
}

func (c *Coordinator) failedResult(recordingID string, err error) domain.FallbackResult {
	if cached, ok := c.cacheGet(recordingID); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return domain.FallbackResult{
			Outcome: domain.OutcomeFallback,
			Text:    cached,
			Reason:  "Remote transcription failed; showing the last cached result.",
		}
	}
	return domain.FallbackResult{
		Outcome: domain.OutcomeFailed,
		Message: failureMessage(err),
		Options: []string{"queue_retry", "save_draft", "skip"},
	}
}

func (c *Coordinator) transcribeOffline(ctx context.Context, rec domain.Recording) (domain.FallbackResult, error) {
	if cached, ok := c.cacheGet(rec.ID); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return domain.FallbackResult{Outcome: domain.OutcomeSuccess, Text: cached}, nil
	}

	if err := c.queue.AddToQueue(ctx, rec.ID); err != nil {
		return domain.FallbackResult{}, err
	}

	position := 0
	if summary, err := c.queue.Summary(ctx); err == nil {
		position = summary.Pending
	}
	return domain.FallbackResult{
		Outcome:  domain.OutcomeQueued,
		Message:  "You are offline. The recording was queued and will be transcribed once the connection returns.",
		Position: position,
	}, nil
}

// SaveDraft stores user content that could not be transcribed yet.
func (c *Coordinator) SaveDraft(ctx context.Context, recordingID string, title string, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.NewError(domain.ErrorKindValidation, "draft content is required", nil)
	}
	if strings.TrimSpace(title) == "" {
		title = "Untitled draft"
	}

	draft := domain.OfflineDraft{
		ID:          uuid.NewString(),
		RecordingID: recordingID,
		Title:       title,
		Content:     content,
		SyncStatus:  domain.SyncPending,
		CreatedAt:   c.now(),
	}
	if err := c.drafts.SaveDraft(ctx, draft); err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	return draft.ID, nil
}

// SyncDrafts turns each pending draft into a durable document. Drafts sync
// independently; one failure does not block the others. Returns the number of
// drafts synced.
func (c *Coordinator) SyncDrafts(ctx context.Context) (int, error) {
	if !c.connectivity.IsOnline() {
		return 0, ErrOffline
	}

	pending, err := c.drafts.ListDrafts(ctx, domain.SyncPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending drafts: %w", err)
	}

	synced := 0
	for _, draft := range pending {
		if _, err := c.documents.CreateDocument(ctx, draft.Title, draft.Content); err != nil {
			log.Printf("fallback: failed to sync draft %s: %v", draft.ID, err)
			if err := c.drafts.UpdateDraftSync(ctx, draft.ID, domain.SyncFailed); err != nil {
				log.Printf("fallback: failed to mark draft %s failed: %v", draft.ID, err)
			}
			continue
		}
		if err := c.drafts.UpdateDraftSync(ctx, draft.ID, domain.SyncSynced); err != nil {
			log.Printf("fallback: failed to mark draft %s synced: %v", draft.ID, err)
		}
		synced++
		if c.metrics != nil {
			c.metrics.DraftsSynced.Inc()
		}
	}
	return synced, nil
}

// AddRecoveryAction queues a deferred replay of a failed operation.
func (c *Coordinator) AddRecoveryAction(action domain.RecoveryAction) {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.QueuedAt.IsZero() {
		action.QueuedAt = c.now()
	}

	c.mu.Lock()
	c.actions = append(c.actions, action)
	c.mu.Unlock()
}

// PendingRecoveryActions returns a copy of the recovery ledger.
func (c *Coordinator) PendingRecoveryActions() []domain.RecoveryAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.RecoveryAction, len(c.actions))
	copy(out, c.actions)
	return out
}

// ExecuteRecoveryActions replays the ledger. Each action is replayed at most
// once per cycle; a still-failing action is re-queued with an incremented
// retry count until maxActionReplays, then dropped. Returns the number of
// successful replays.
func (c *Coordinator) ExecuteRecoveryActions(ctx context.Context) (int, error) {
	if !c.connectivity.IsOnline() {
		return 0, ErrOffline
	}

	c.mu.Lock()
	actions := c.actions
	c.actions = nil
	c.mu.Unlock()

	executed := 0
	var requeue []domain.RecoveryAction
	for _, action := range actions {
		if err := c.replay(ctx, action); err != nil {
			if action.RetryCount+1 < maxActionReplays {
				action.RetryCount++
				requeue = append(requeue, action)
			} else {
				log.Printf("fallback: dropping recovery action %s (%s) after %d replays: %v",
					action.ID, action.Type, action.RetryCount+1, err)
			}
			continue
		}
		executed++
		if c.metrics != nil {
			c.metrics.RecoveryActionsReplayed.Inc()
		}
	}

	if len(requeue) > 0 {
		c.mu.Lock()
		c.actions = append(c.actions, requeue...)
		c.mu.Unlock()
	}
	return executed, nil
}

func (c *Coordinator) replay(ctx context.Context, action domain.RecoveryAction) error {
	switch action.Type {
	case domain.ActionRetryTranscription:
		result, err := c.Transcribe(ctx, action.RecordingID)
		if err != nil {
			return err
		}
		if result.Outcome == domain.OutcomeFailed {
			return errors.New(result.Message)
		}
		return nil
	case domain.ActionRetrySave:
		rec, err := c.recordings.GetRecording(ctx, action.RecordingID)
		if err != nil {
			return err
		}
		if rec.Transcript == "" {
			return fmt.Errorf("recording %s has no transcript to save", rec.ID)
		}
		title := rec.Title
		if title == "" {
			title = "Transcription " + rec.CapturedAt.Format("2006-01-02 15:04")
		}
		_, err = c.documents.CreateDocument(ctx, title, rec.Transcript)
		return err
	case domain.ActionSyncDraft:
		_, err := c.SyncDrafts(ctx)
		return err
	default:
		return fmt.Errorf("unknown recovery action type %q", action.Type)
	}
}

// Recover replays deferred work after reconnecting, then settles into the
// online state.
func (c *Coordinator) Recover(ctx context.Context) error {
	if _, err := c.ExecuteRecoveryActions(ctx); err != nil {
		return err
	}
	if _, err := c.SyncDrafts(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	settled := c.state == domain.FallbackStateRecovering
	if settled {
		c.state = domain.FallbackStateOnline
	}
	c.mu.Unlock()

	if settled {
		c.emitState(domain.FallbackStateOnline)
	}
	return nil
}

// State returns the current fallback state.
func (c *Coordinator) State() domain.FallbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusMessage returns a human-readable description of the current state.
func (c *Coordinator) StatusMessage() string {
	return statusMessage(c.State())
}

// AvailableActions returns the capability list for the current state.
func (c *Coordinator) AvailableActions() []string {
	switch c.State() {
	case domain.FallbackStateOnline, domain.FallbackStateRecovering:
		return []string{"record", "transcribe", "save_document", "sync_drafts"}
	case domain.FallbackStateOfflineBasic:
		return []string{"record", "save_draft", "queue_transcription", "view_documents"}
	default:
		return []string{"manual_input", "view_documents"}
	}
}

func (c *Coordinator) handleConnectivityChange(ctx context.Context, online bool) {
	c.mu.Lock()
	wasOffline := c.state == domain.FallbackStateOfflineBasic || c.state == domain.FallbackStateOfflineDegraded
	next := c.deriveState(online, wasOffline)
	changed := next != c.state
	c.state = next
	c.mu.Unlock()

	if changed {
		c.emitState(next)
	}
	if next == domain.FallbackStateRecovering {
		go func() {
			if err := c.Recover(ctx); err != nil {
				log.Printf("fallback: recovery pass failed: %v", err)
			}
		}()
	}
}

// deriveState must not be called with c.mu held inconsistently; callers hold
// the lock or run before concurrency starts.
func (c *Coordinator) deriveState(online bool, wasOffline bool) domain.FallbackState {
	if online {
		if wasOffline {
			return domain.FallbackStateRecovering
		}
		return domain.FallbackStateOnline
	}
	if c.capability() {
		return domain.FallbackStateOfflineBasic
	}
	return domain.FallbackStateOfflineDegraded
}

func (c *Coordinator) emitState(state domain.FallbackState) {
	if c.events != nil {
		c.events.FallbackStateChanged(state, statusMessage(state))
	}
}

func (c *Coordinator) cacheGet(recordingID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.cache[recordingID]
	return text, ok
}

func (c *Coordinator) cacheSet(recordingID string, text string) {
	c.mu.Lock()
	c.cache[recordingID] = text
	c.mu.Unlock()
}

func statusMessage(state domain.FallbackState) string {
	switch state {
	case domain.FallbackStateOnline:
		return "Connected. Transcription is available."
	case domain.FallbackStateRecovering:
		return "Back online. Syncing pending work..."
	case domain.FallbackStateOfflineBasic:
		return "You are offline. Recordings and drafts are saved locally."
	case domain.FallbackStateOfflineDegraded:
		return "Offline with limited functionality. Only manual text entry is available."
	default:
		return ""
	}
}

func failureMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrorKindUnauthorized:
		return "The transcription service rejected the credentials."
	case domain.ErrorKindRateLimited:
		return "The transcription service is limiting requests. Try again shortly."
	case domain.ErrorKindUnsupportedFormat:
		return "The audio format is not supported by the transcription service."
	case domain.ErrorKindPayloadTooLarge:
		return "The recording is too large for the transcription service."
	case domain.ErrorKindTimeout:
		return "The transcription service took too long to respond."
	default:
		return "Transcription failed due to a network or service problem."
	}
}

// StorageCapabilityProbe reports whether the local data directory is
// writable, the concrete check behind basic offline capability.
func StorageCapabilityProbe(dir string) func() bool {
	return func() bool {
		f, err := os.CreateTemp(dir, ".capability-*")
		if err != nil {
			return false
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return true
	}
}
