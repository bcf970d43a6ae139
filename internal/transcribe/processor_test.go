package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voxnote/internal/domain"
)

type fakeReporter struct {
	mu        sync.Mutex
	completed map[string]string
	failed    map[string]string
	err       error
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{completed: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeReporter) MarkCompleted(_ context.Context, id string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.completed[id] = text
	return nil
}

func (f *fakeReporter) MarkFailed(_ context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.failed[id] = reason
	return nil
}

type fakeTransformer struct {
	out string
	err error
}

func (f *fakeTransformer) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return text, nil
}

func TestProcessSuccessNormalizes(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	processor := NewProcessor(reporter, nil)

	got, err := processor.ProcessSuccess(context.Background(), "r1", "  hello world  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world." {
		t.Fatalf("unexpected text: %q", got)
	}
	if reporter.completed["r1"] != "hello world." {
		t.Fatalf("completion not recorded: %+v", reporter.completed)
	}
}

func TestProcessSuccessEmptyTranscriptFails(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	processor := NewProcessor(reporter, nil)

	_, err := processor.ProcessSuccess(context.Background(), "r1", "   ")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if _, ok := reporter.failed["r1"]; !ok {
		t.Fatalf("expected failed status to be recorded")
	}
}

func TestProcessSuccessAppliesTransformer(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	processor := NewProcessor(reporter, &fakeTransformer{out: "replaced text"})

	got, err := processor.ProcessSuccess(context.Background(), "r1", "original")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "replaced text." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestProcessSuccessTransformerFailure(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	processor := NewProcessor(reporter, &fakeTransformer{err: errors.New("bad rules")})

	if _, err := processor.ProcessSuccess(context.Background(), "r1", "text"); err == nil {
		t.Fatalf("expected transformer error")
	}
}

func TestProcessFailureReturnsOriginalError(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	processor := NewProcessor(reporter, nil)

	cause := errors.New("remote exploded")
	if err := processor.ProcessFailure(context.Background(), "r1", cause); !errors.Is(err, cause) {
		t.Fatalf("expected original error, got %v", err)
	}
	if reporter.failed["r1"] != "remote exploded" {
		t.Fatalf("unexpected failure reason: %q", reporter.failed["r1"])
	}
}

func TestProcessFailureTrackerErrorIsNotPropagated(t *testing.T) {
	t.Parallel()

	reporter := newFakeReporter()
	reporter.err = errors.New("persistence down")
	processor := NewProcessor(reporter, nil)

	cause := errors.New("remote exploded")
	if err := processor.ProcessFailure(context.Background(), "r1", cause); !errors.Is(err, cause) {
		t.Fatalf("tracker failure must not replace the original error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  hello world  ":       "hello world.",
		"one  two\t three":      "one two three.",
		"done!!":                "done!",
		"really??":              "really?",
		"wait...":               "wait.",
		"already terminated.":   "already terminated.",
		"question stays? fine!": "question stays? fine!",
	}

	for input, want := range cases {
		input := input
		want := want
		t.Run(want, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(input); got != want {
				t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
			}
		})
	}
}

func TestClassifyQuality(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want domain.TranscriptQuality
	}{
		{"blank", "   ", domain.QualityEmpty},
		{"too short", "hi", domain.QualityTooShort},
		{"good", "a perfectly fine sentence", domain.QualityGood},
		{"mixed language", "note транскрипція failure", domain.QualityMixedLanguage},
		{"no target language", "1234 5678", domain.QualityNoTargetLanguage},
		{"short foreign run ok", "café déjà vu", domain.QualityGood},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyQuality(tc.text); got != tc.want {
				t.Fatalf("ClassifyQuality(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}
