package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the transcription service client settings.
type Config struct {
	URL     string        `json:"url" yaml:"url"` // base URL of the transcription service
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPEngine calls a remote transcription service over HTTP. Calls run
// behind a circuit breaker so a flapping engine fails fast instead of
// tying up workers for the full request timeout.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPEngine creates a client for the transcription service.
func NewHTTPEngine(cfg *Config) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute // transcription is slow on long audio
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "transcription-engine",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &HTTPEngine{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

type transcribeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  Result `json:"result"`
}

// GenerateSubtitles uploads the audio file to the transcription service
// and returns its structured result. A service-reported failure comes
// back as *Error carrying the service's own message.
func (e *HTTPEngine) GenerateSubtitles(ctx context.Context, req *Request) (*Result, error) {
	out, err := e.breaker.Execute(func() (any, error) {
		return e.transcribe(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Result), nil
}

func (e *HTTPEngine) transcribe(ctx context.Context, req *Request) (*Result, error) {
	body, contentType, err := buildMultipart(req)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/transcribe", body)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("engine: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Message: fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, payload)}
	}

	var decoded transcribeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("engine: decode response: %w", err)
	}
	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "unknown engine error"
		}
		return nil, &Error{Message: msg}
	}
	return &decoded.Result, nil
}

func buildMultipart(req *Request) (*bytes.Buffer, string, error) {
	file, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"video_id":   req.VideoID,
		"project_id": strconv.FormatInt(req.ProjectID, 10),
		"user_id":    strconv.FormatInt(req.UserID, 10),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
