// Package deepgram transcribes recorded audio files over the Deepgram
// websocket listen API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"voxnote/internal/domain"
)

// Config controls Deepgram connection and audio settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	Encoding   string
	SampleRate int
	Channels   int
	ChunkSize  int
}

// Client implements ports.Transcriber against Deepgram.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 32 * 1024
	}
	return &Client{cfg: cfg}
}

// Transcribe streams the audio file to Deepgram and returns the aggregated
// final transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", domain.NewError(domain.ErrorKindUnauthorized, "DEEPGRAM_API_KEY is not configured", nil)
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", domain.NewError(domain.ErrorKindValidation, fmt.Sprintf("cannot open audio file %q", audioPath), err)
	}
	defer file.Close()

	wsURL, err := buildListenURL(c.cfg)
	if err != nil {
		return "", domain.NewError(domain.ErrorKindValidation, "invalid Deepgram API base URL", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", wrapDialError(err, resp)
	}
	defer conn.Close()

	// Cancellation unblocks the read loop by tearing down the connection.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	var writeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = c.pumpAudio(conn, file)
	}()

	transcript, readErr := collectFinals(conn)
	wg.Wait()

	if ctx.Err() != nil {
		return "", domain.NewError(domain.ErrorKindTimeout, "transcription cancelled or timed out", ctx.Err())
	}
	if readErr != nil {
		return "", readErr
	}
	if writeErr != nil {
		return "", writeErr
	}
	return transcript, nil
}

func (c *Client) pumpAudio(conn *websocket.Conn, file io.Reader) error {
	buf := make([]byte, c.cfg.ChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return domain.NewError(domain.ErrorKindNetwork, "failed to send audio", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return domain.NewError(domain.ErrorKindNetwork, "failed to close stream", err)
	}
	return nil
}

// collectFinals reads provider events until the connection closes and joins
// the final transcript segments.
func collectFinals(conn *websocket.Conn) (string, error) {
	var finals []string
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return strings.Join(finals, " "), nil
			}
			return "", wrapReadError(err)
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return "", domain.NewError(domain.ErrorKindServer, message, nil)
		}
		if strings.EqualFold(response.Type, "Metadata") {
			return strings.Join(finals, " "), nil
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if text := extractTranscript(response); text != "" {
			finals = append(finals, text)
		}
	}
}

func wrapDialError(err error, resp *http.Response) error {
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return domain.NewError(domain.ErrorKindUnauthorized, "deepgram rejected the API key", err)
		case resp.StatusCode == http.StatusTooManyRequests:
			return domain.NewError(domain.ErrorKindRateLimited, "deepgram is rate limiting requests", err)
		case resp.StatusCode >= 500:
			return domain.NewError(domain.ErrorKindServer, fmt.Sprintf("deepgram returned status %d", resp.StatusCode), err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.ErrorKindTimeout, "deepgram connection timed out", err)
	}
	return domain.NewError(domain.ErrorKindNetwork, "failed to connect to deepgram", err)
}

func wrapReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.ErrorKindTimeout, "deepgram read timed out", err)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseInternalServerErr {
		return domain.NewError(domain.ErrorKindServer, "deepgram closed the stream with an internal error", err)
	}
	return domain.NewError(domain.ErrorKindNetwork, "failed to read provider event", err)
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", cfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
