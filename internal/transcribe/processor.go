// Package transcribe validates and normalizes the result of a completed
// transcription attempt and reports its terminal status.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"

	"voxnote/internal/domain"
)

// ErrEmptyTranscript is returned when the remote service produced no text.
var ErrEmptyTranscript = errors.New("empty transcription result")

// StatusReporter records the terminal status of a recording.
type StatusReporter interface {
	MarkCompleted(ctx context.Context, recordingID string, text string) error
	MarkFailed(ctx context.Context, recordingID string, reason string) error
}

// TextTransformer applies user substitutions to normalized text.
type TextTransformer interface {
	Apply(text string) (string, error)
}

var (
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	doubledTerminal = regexp.MustCompile(`([.!?])[.!?]+`)
)

const sentenceTerminators = ".!?…"

// Processor finalizes transcription attempts.
type Processor struct {
	tracker     StatusReporter
	transformer TextTransformer
}

// NewProcessor creates a processor. transformer may be nil.
func NewProcessor(tracker StatusReporter, transformer TextTransformer) *Processor {
	return &Processor{tracker: tracker, transformer: transformer}
}

// ProcessSuccess normalizes raw transcript text and marks the recording
// completed. An empty transcript is a failure and marks the recording failed.
func (p *Processor) ProcessSuccess(ctx context.Context, recordingID string, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if err := p.tracker.MarkFailed(ctx, recordingID, ErrEmptyTranscript.Error()); err != nil {
			log.Printf("transcribe: failed to record empty-result status for %s: %v", recordingID, err)
		}
		return "", ErrEmptyTranscript
	}

	text := Normalize(trimmed)
	if p.transformer != nil {
		transformed, err := p.transformer.Apply(text)
		if err != nil {
			return "", fmt.Errorf("substitution rules failed: %w", err)
		}
		text = Normalize(transformed)
	}

	if err := p.tracker.MarkCompleted(ctx, recordingID, text); err != nil {
		return "", fmt.Errorf("failed to record completion: %w", err)
	}
	return text, nil
}

// ProcessFailure marks the recording failed and returns the original error.
// A failure to record the status is logged, not propagated.
func (p *Processor) ProcessFailure(ctx context.Context, recordingID string, cause error) error {
	reason := "transcription failed"
	if cause != nil {
		reason = cause.Error()
	}
	if err := p.tracker.MarkFailed(ctx, recordingID, reason); err != nil {
		log.Printf("transcribe: failed to record failure status for %s: %v", recordingID, err)
	}
	return cause
}

// Normalize collapses whitespace runs, collapses doubled sentence-terminating
// punctuation, and appends a terminator when the text does not end with one.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = doubledTerminal.ReplaceAllString(text, "$1")
	if !strings.ContainsRune(sentenceTerminators, lastRune(text)) {
		text += "."
	}
	return text
}

// ClassifyQuality gives an advisory assessment of transcript text. It does
// not gate completion.
func ClassifyQuality(text string) domain.TranscriptQuality {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.QualityEmpty
	}
	if len([]rune(trimmed)) < 3 {
		return domain.QualityTooShort
	}

	foreignRun := 0
	maxForeignRun := 0
	hasTarget := false
	for _, r := range trimmed {
		if !unicode.IsLetter(r) {
			foreignRun = 0
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			hasTarget = true
			foreignRun = 0
			continue
		}
		foreignRun++
		if foreignRun > maxForeignRun {
			maxForeignRun = foreignRun
		}
	}

	if maxForeignRun >= 10 {
		return domain.QualityMixedLanguage
	}
	if !hasTarget {
		return domain.QualityNoTargetLanguage
	}
	return domain.QualityGood
}

func lastRune(s string) rune {
	runes := []rune(s)
	return runes[len(runes)-1]
}
