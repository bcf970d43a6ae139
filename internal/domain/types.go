package domain

import "time"

// RecordingStatus tracks a recording through the transcription lifecycle.
type RecordingStatus string

const (
	StatusPending    RecordingStatus = "pending"
	StatusInProgress RecordingStatus = "in_progress"
	StatusCompleted  RecordingStatus = "completed"
	StatusFailed     RecordingStatus = "failed"
)

// Recording is a captured audio unit awaiting or having undergone transcription.
type Recording struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	AudioPath  string          `json:"audioPath"`
	Transcript string          `json:"transcript,omitempty"`
	Status     RecordingStatus `json:"status"`
	Duration   time.Duration   `json:"duration"`
	CapturedAt time.Time       `json:"capturedAt"`
}

// QueueState models the queue coordinator lifecycle.
type QueueState string

const (
	QueueStateIdle       QueueState = "idle"
	QueueStateReady      QueueState = "ready"
	QueueStateProcessing QueueState = "processing"
	QueueStatePaused     QueueState = "paused"
	QueueStateOffline    QueueState = "offline"
	QueueStateError      QueueState = "error"
)

// QueueSummary is a point-in-time view of the transcription queue.
type QueueSummary struct {
	Pending int        `json:"pending"`
	Offline bool       `json:"offline"`
	State   QueueState `json:"state"`
	Oldest  *Recording `json:"oldest,omitempty"`
	Newest  *Recording `json:"newest,omitempty"`
}

// FallbackState models the coordinator's view of available capability.
type FallbackState string

const (
	FallbackStateOnline          FallbackState = "online"
	FallbackStateOfflineBasic    FallbackState = "offline_basic"
	FallbackStateOfflineDegraded FallbackState = "offline_degraded"
	FallbackStateRecovering      FallbackState = "recovering"
)

// FallbackOutcome tags the variant of a FallbackResult.
type FallbackOutcome string

const (
	OutcomeSuccess  FallbackOutcome = "success"
	OutcomeFallback FallbackOutcome = "fallback"
	OutcomeFailed   FallbackOutcome = "failed"
	OutcomeQueued   FallbackOutcome = "queued"
	OutcomeDegraded FallbackOutcome = "degraded"
)

// FallbackResult is the user-facing outcome of a transcription request.
// Fields beyond Outcome are populated per variant.
type FallbackResult struct {
	Outcome  FallbackOutcome `json:"outcome"`
	Text     string          `json:"text,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
	Options  []string        `json:"options,omitempty"`
	Position int             `json:"position,omitempty"`
	Action   string          `json:"action,omitempty"`
}

// SyncStatus tracks whether an offline draft has been reconciled.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// OfflineDraft is user content saved without a completed transcription.
type OfflineDraft struct {
	ID          string     `json:"id"`
	RecordingID string     `json:"recordingId,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	SyncStatus  SyncStatus `json:"syncStatus"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// RecoveryActionType identifies what a deferred replay should do.
type RecoveryActionType string

const (
	ActionRetryTranscription RecoveryActionType = "retry_transcription"
	ActionRetrySave          RecoveryActionType = "retry_save"
	ActionSyncDraft          RecoveryActionType = "sync_draft"
)

// RecoveryAction is a deferred operation queued after a failure.
type RecoveryAction struct {
	ID          string             `json:"id"`
	Type        RecoveryActionType `json:"type"`
	RecordingID string             `json:"recordingId,omitempty"`
	QueuedAt    time.Time          `json:"queuedAt"`
	RetryCount  int                `json:"retryCount"`
}

// HistoryEntry is one line in the bounded processing history.
type HistoryEntry struct {
	RecordingID string          `json:"recordingId"`
	Status      RecordingStatus `json:"status"`
	Message     string          `json:"message"`
	IsError     bool            `json:"isError"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Statistics aggregates processing outcomes across all tracked recordings.
type Statistics struct {
	Pending     int     `json:"pending"`
	InProgress  int     `json:"inProgress"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"successRate"`
}

// TranscriptQuality is an advisory classification of transcribed text.
type TranscriptQuality string

const (
	QualityGood             TranscriptQuality = "good"
	QualityEmpty            TranscriptQuality = "empty"
	QualityTooShort         TranscriptQuality = "too_short"
	QualityMixedLanguage    TranscriptQuality = "mixed_language"
	QualityNoTargetLanguage TranscriptQuality = "no_target_language"
)
