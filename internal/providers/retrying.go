// Package providers decorates concrete transcription clients with shared
// behavior such as retries.
package providers

import (
	"context"

	"voxnote/internal/domain"
	"voxnote/internal/metrics"
	"voxnote/internal/ports"
	"voxnote/internal/retry"
)

// RetryingTranscriber wraps a Transcriber with exponential backoff. Errors
// classified as non-retryable abort the cycle immediately.
type RetryingTranscriber struct {
	inner   ports.Transcriber
	exec    *retry.Executor
	metrics *metrics.Metrics
}

func NewRetryingTranscriber(inner ports.Transcriber, exec *retry.Executor, m *metrics.Metrics) *RetryingTranscriber {
	return &RetryingTranscriber{inner: inner, exec: exec, metrics: m}
}

func (r *RetryingTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	// The executor retries blindly; a derived cancel turns a non-retryable
	// failure into an immediate abort that still surfaces the original error.
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	attempts := 0
	return retry.Do(attemptCtx, r.exec, func(ctx context.Context) (string, error) {
		attempts++
		if attempts > 1 && r.metrics != nil {
			r.metrics.TranscriptionRetries.Inc()
		}
		text, err := r.inner.Transcribe(ctx, audioPath)
		if err != nil && !domain.IsRetryable(err) {
			cancel()
		}
		return text, err
	})
}
