package voxnote

import (
	"context"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voxnote/internal/bootstrap"
	"voxnote/internal/config"
	"voxnote/internal/domain"
)

const (
	eventQueue      = "voxnote:queue"
	eventStatus     = "voxnote:status"
	eventFallback   = "voxnote:fallback"
	eventTranscript = "voxnote:transcript"
	eventError      = "voxnote:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	cfg      config.Config
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.emitError("Startup failed", err)
		return
	}
	if err := services.Start(ctx); err != nil {
		a.bootErr = err
		services.Stop()
		a.emitError("Startup failed", err)
		return
	}

	a.services = services
	a.cfg = services.Config
}

func (a *App) shutdown(context.Context) {
	if a.services != nil {
		a.services.Stop()
	}
}

// CreateRecording registers a captured audio file and returns the stored
// recording.
func (a *App) CreateRecording(title string, audioPath string, durationMS int64) (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	return a.services.Store.CreateRecording(a.ctx, domain.Recording{
		Title:     title,
		AudioPath: audioPath,
		Duration:  time.Duration(durationMS) * time.Millisecond,
	})
}

// Transcribe requests transcription of one recording through the fallback
// coordinator.
func (a *App) Transcribe(recordingID string) (domain.FallbackResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.FallbackResult{}, err
	}
	result, err := a.services.Fallback.Transcribe(a.ctx, recordingID)
	if err != nil {
		a.emitError("Transcription error", err)
		return domain.FallbackResult{}, err
	}
	return result, nil
}

// AddToQueue marks a recording for background transcription.
func (a *App) AddToQueue(recordingID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Queue.AddToQueue(a.ctx, recordingID)
}

// RetryProcessing resumes queue draining after an error.
func (a *App) RetryProcessing() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Queue.RetryProcessing()
}

// PauseProcessing suspends queue draining.
func (a *App) PauseProcessing() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Queue.PauseProcessing()
	return nil
}

// ResumeProcessing lifts a pause.
func (a *App) ResumeProcessing() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Queue.ResumeProcessing()
	return nil
}

// GetQueueSummary returns a point-in-time view of the queue.
func (a *App) GetQueueSummary() (domain.QueueSummary, error) {
	if err := a.requireReady(); err != nil {
		return domain.QueueSummary{}, err
	}
	return a.services.Queue.Summary(a.ctx)
}

// GetStatistics returns aggregate processing outcomes.
func (a *App) GetStatistics() (domain.Statistics, error) {
	if err := a.requireReady(); err != nil {
		return domain.Statistics{}, err
	}
	return a.services.Tracker.Statistics(), nil
}

// GetHistory returns the bounded processing history, oldest first.
func (a *App) GetHistory() ([]domain.HistoryEntry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Tracker.History(), nil
}

// SaveDraft stores user content that could not be transcribed yet.
func (a *App) SaveDraft(recordingID string, title string, content string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.services.Fallback.SaveDraft(a.ctx, recordingID, title, content)
}

// SyncDrafts converts pending drafts into documents and returns how many
// synced.
func (a *App) SyncDrafts() (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	return a.services.Fallback.SyncDrafts(a.ctx)
}

// GetFallbackStatus describes the current capability level for the UI.
func (a *App) GetFallbackStatus() (map[string]any, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return map[string]any{
		"state":   string(a.services.Fallback.State()),
		"message": a.services.Fallback.StatusMessage(),
		"actions": a.services.Fallback.AvailableActions(),
	}, nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"provider":  a.cfg.Provider,
		"rulesFile": a.cfg.Rules.Path,
		"database":  a.cfg.Storage.DatabasePath,
	}
	switch a.cfg.Provider {
	case "deepgram":
		info["model"] = a.cfg.Deepgram.Model
		info["language"] = a.cfg.Deepgram.Language
	case "whisper":
		info["model"] = a.cfg.Whisper.Model
		info["language"] = a.cfg.Whisper.Language
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// QueueStateChanged emits queue lifecycle updates to the frontend.
func (a *App) QueueStateChanged(state domain.QueueState, pending int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventQueue, map[string]any{
		"state":   string(state),
		"pending": pending,
		"message": queueStateMessage(state),
	})
}

// RecordingStatusChanged emits per-recording status transitions.
func (a *App) RecordingStatusChanged(id string, status domain.RecordingStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStatus, map[string]string{
		"recordingId": id,
		"status":      string(status),
	})
}

// FallbackStateChanged emits capability changes to the UI.
func (a *App) FallbackStateChanged(state domain.FallbackState, message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFallback, map[string]string{
		"state":   string(state),
		"message": message,
	})
}

// TranscriptReady emits a completed transcript.
func (a *App) TranscriptReady(id string, text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, map[string]string{
		"recordingId": id,
		"text":        text,
	})
}

func (a *App) emitError(summary string, err error) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"message": summary,
		"detail":  err.Error(),
	})
}

func queueStateMessage(state domain.QueueState) string {
	switch state {
	case domain.QueueStateIdle:
		return "Queue is empty"
	case domain.QueueStateReady:
		return "Ready to transcribe"
	case domain.QueueStateProcessing:
		return "Transcribing..."
	case domain.QueueStatePaused:
		return "Processing paused"
	case domain.QueueStateOffline:
		return "Offline; recordings will be transcribed when the connection returns"
	case domain.QueueStateError:
		return "Processing stopped after an error"
	default:
		return ""
	}
}
