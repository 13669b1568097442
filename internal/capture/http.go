package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource talks to a speech-capture sidecar that owns the microphone and
// the recognition backend. One POST /listen call captures and recognizes a
// single phrase; the sidecar maps its outcomes onto HTTP status codes:
//
//	200 {"text": "..."}  recognized phrase
//	204                  wait timeout, no speech began
//	422                  audio captured but not understood
//	410                  capture device gone
//
// Anything else is a transient service error the listener retries.
type HTTPSource struct {
	baseURL  string
	language string
	client   *http.Client
}

// NewHTTPSource creates a Source backed by the sidecar at baseURL.
func NewHTTPSource(baseURL, language string) *HTTPSource {
	return &HTTPSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		// Per-request deadlines come from the listen bounds; this is a
		// hard ceiling in case the sidecar hangs.
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// HTTPSourceFactory returns a SourceFactory for the sidecar at baseURL.
func HTTPSourceFactory(baseURL string) SourceFactory {
	return func(language string) Source {
		return NewHTTPSource(baseURL, language)
	}
}

type listenRequest struct {
	Language          string `json:"language"`
	ListenTimeoutMS   int64  `json:"listen_timeout_ms"`
	PhraseTimeLimitMS int64  `json:"phrase_time_limit_ms"`
}

type listenResponse struct {
	Text string `json:"text"`
}

// Calibrate asks the sidecar to run its ambient noise adjustment.
func (s *HTTPSource) Calibrate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/calibrate", nil)
	if err != nil {
		return fmt.Errorf("build calibrate request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("calibrate: sidecar returned %d", resp.StatusCode)
	}
	return nil
}

// Listen captures one phrase through the sidecar.
func (s *HTTPSource) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (Phrase, error) {
	body, err := json.Marshal(listenRequest{
		Language:          s.language,
		ListenTimeoutMS:   timeout.Milliseconds(),
		PhraseTimeLimitMS: phraseLimit.Milliseconds(),
	})
	if err != nil {
		return Phrase{}, fmt.Errorf("marshal listen request: %w", err)
	}

	// The sidecar itself needs timeout+phraseLimit; give it a little room.
	ctx, cancel := context.WithTimeout(ctx, timeout+phraseLimit+2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/listen", bytes.NewReader(body))
	if err != nil {
		return Phrase{}, fmt.Errorf("build listen request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Phrase{}, fmt.Errorf("listen: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNoContent:
		return Phrase{}, ErrWaitTimeout
	case http.StatusUnprocessableEntity:
		return Phrase{}, ErrNoSpeech
	case http.StatusGone:
		return Phrase{}, ErrDeviceFailed
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Phrase{}, fmt.Errorf("listen: sidecar returned %d: %s", resp.StatusCode, string(b))
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Phrase{}, fmt.Errorf("decode listen response: %w", err)
	}
	if strings.TrimSpace(lr.Text) == "" {
		return Phrase{}, ErrNoSpeech
	}

	return Phrase{Text: lr.Text, Heard: time.Now().UTC()}, nil
}
