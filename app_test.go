package voxnote

import (
	"errors"
	"testing"

	"voxnote/internal/domain"
)

func TestQueueStateMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.QueueState]string{
		domain.QueueStateIdle:       "Queue is empty",
		domain.QueueStateReady:      "Ready to transcribe",
		domain.QueueStateProcessing: "Transcribing...",
		domain.QueueStatePaused:     "Processing paused",
		domain.QueueStateOffline:    "Offline; recordings will be transcribed when the connection returns",
		domain.QueueStateError:      "Processing stopped after an error",
	}

	for state, want := range cases {
		state := state
		want := want
		t.Run(string(state), func(t *testing.T) {
			t.Parallel()
			if got := queueStateMessage(state); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := queueStateMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown state message, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetRuntimeInfoReportsBootError(t *testing.T) {
	t.Parallel()

	app := &App{bootErr: errors.New("boot failed")}
	info := app.GetRuntimeInfo()
	if info["error"] != "boot failed" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestBoundMethodsFailBeforeStartup(t *testing.T) {
	t.Parallel()

	app := &App{}
	if _, err := app.Transcribe("r1"); err == nil {
		t.Fatalf("expected error before startup")
	}
	if err := app.AddToQueue("r1"); err == nil {
		t.Fatalf("expected error before startup")
	}
	if _, err := app.SyncDrafts(); err == nil {
		t.Fatalf("expected error before startup")
	}
	if _, err := app.GetQueueSummary(); err == nil {
		t.Fatalf("expected error before startup")
	}
}
