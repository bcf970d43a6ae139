package ports

import (
	"context"

	"voxnote/internal/domain"
)

// Transcriber converts one recorded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Connectivity exposes the current online state and change notifications.
// Subscribe returns a function that removes the listener.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// RecordingStore persists recordings and their transcription state.
type RecordingStore interface {
	GetRecording(ctx context.Context, id string) (domain.Recording, error)
	ListByStatus(ctx context.Context, statuses ...domain.RecordingStatus) ([]domain.Recording, error)
	UpdateStatus(ctx context.Context, id string, status domain.RecordingStatus) error
	UpdateTranscript(ctx context.Context, id string, transcript string, status domain.RecordingStatus) error
}

// DocumentStore creates durable documents from transcribed or drafted text.
type DocumentStore interface {
	CreateDocument(ctx context.Context, title string, content string) (string, error)
}

// DraftStore persists offline drafts awaiting sync.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft domain.OfflineDraft) error
	UpdateDraftSync(ctx context.Context, id string, status domain.SyncStatus) error
	ListDrafts(ctx context.Context, status domain.SyncStatus) ([]domain.OfflineDraft, error)
}

// EventSink emits backend state changes to the UI.
type EventSink interface {
	QueueStateChanged(state domain.QueueState, pending int)
	RecordingStatusChanged(id string, status domain.RecordingStatus)
	FallbackStateChanged(state domain.FallbackState, message string)
	TranscriptReady(id string, text string)
}
