// Package whisper transcribes audio files through an OpenAI-compatible
// Whisper HTTP endpoint.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxnote/internal/domain"
)

// Config controls the Whisper HTTP client.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
	Timeout    time.Duration
}

// Client implements ports.Transcriber against a Whisper endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads the audio file and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", domain.NewError(domain.ErrorKindUnauthorized, "whisper API key is not configured", nil)
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", domain.NewError(domain.ErrorKindValidation, fmt.Sprintf("cannot open audio file %q", audioPath), err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.Model); err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}
	if c.cfg.Language != "" {
		if err := writer.WriteField("language", c.cfg.Language); err != nil {
			return "", fmt.Errorf("failed to build multipart request: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.NewError(domain.ErrorKindTimeout, "whisper request timed out", err)
		}
		return "", domain.NewError(domain.ErrorKindNetwork, "failed to reach whisper endpoint", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewError(domain.ErrorKindNetwork, "failed to read whisper response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, payload)
	}

	var result transcriptionResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", domain.NewError(domain.ErrorKindServer, "whisper returned a malformed response", err)
	}
	return result.Text, nil
}

func statusError(status int, payload []byte) error {
	message := fmt.Sprintf("whisper returned status %d", status)
	var parsed errorResponse
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewError(domain.ErrorKindUnauthorized, message, nil)
	case status == http.StatusTooManyRequests:
		return domain.NewError(domain.ErrorKindRateLimited, message, nil)
	case status == http.StatusRequestEntityTooLarge:
		return domain.NewError(domain.ErrorKindPayloadTooLarge, message, nil)
	case status == http.StatusUnsupportedMediaType || status == http.StatusBadRequest:
		return domain.NewError(domain.ErrorKindUnsupportedFormat, message, nil)
	case status >= 500:
		return domain.NewError(domain.ErrorKindServer, message, nil)
	default:
		return domain.NewError(domain.ErrorKindServer, message, nil)
	}
}
