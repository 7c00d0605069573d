package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/rs/zerolog"
)

func fastRetry(maxRetries uint64) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

// scripted replies with one step per call.
type scripted struct {
	calls atomic.Int32
	steps []func() (*llm.TransportResponse, error)
}

func (s *scripted) Post(ctx context.Context, path string, body any, headers map[string]string) (*llm.TransportResponse, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i]()
}

func status(code int, body string, header http.Header) func() (*llm.TransportResponse, error) {
	return func() (*llm.TransportResponse, error) {
		return &llm.TransportResponse{StatusCode: code, Header: header, Body: json.RawMessage(body)}, nil
	}
}

func fail(err error) func() (*llm.TransportResponse, error) {
	return func() (*llm.TransportResponse, error) { return nil, err }
}

func TestRetryingRecoversFromTransientStatus(t *testing.T) {
	next := &scripted{steps: []func() (*llm.TransportResponse, error){
		status(529, `{"error":{"message":"Overloaded"}}`, nil),
		status(503, `{}`, http.Header{"Retry-After": []string{"1"}}),
		status(200, `{"ok":true}`, nil),
	}}
	r := NewRetrying(next, fastRetry(3), zerolog.Nop())

	resp, err := r.Post(context.Background(), "messages", map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetryingDoesNotRetryClientErrors(t *testing.T) {
	next := &scripted{steps: []func() (*llm.TransportResponse, error){
		status(400, `{"error":{"message":"Invalid request"}}`, nil),
	}}
	r := NewRetrying(next, fastRetry(3), zerolog.Nop())

	resp, err := r.Post(context.Background(), "messages", map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetryingReturnsLastResponseWhenExhausted(t *testing.T) {
	next := &scripted{steps: []func() (*llm.TransportResponse, error){
		status(429, `{"error":{"message":"rate limited"}}`, nil),
	}}
	r := NewRetrying(next, fastRetry(2), zerolog.Nop())

	resp, err := r.Post(context.Background(), "messages", map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != 429 || string(resp.Body) != `{"error":{"message":"rate limited"}}` {
		t.Errorf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetryingNetworkErrors(t *testing.T) {
	cause := errors.New("connection reset by peer")
	next := &scripted{steps: []func() (*llm.TransportResponse, error){fail(cause)}}
	r := NewRetrying(next, fastRetry(2), zerolog.Nop())

	_, err := r.Post(context.Background(), "chat", map[string]any{}, nil)
	if !errors.Is(err, cause) {
		t.Errorf("expected cause, got %v", err)
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetryingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := &scripted{steps: []func() (*llm.TransportResponse, error){
		func() (*llm.TransportResponse, error) {
			cancel()
			return nil, context.Canceled
		},
	}}
	r := NewRetrying(next, fastRetry(5), zerolog.Nop())

	_, err := r.Post(ctx, "chat", map[string]any{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetryingZeroRetries(t *testing.T) {
	next := &scripted{steps: []func() (*llm.TransportResponse, error){status(503, `{}`, nil)}}
	r := NewRetrying(next, fastRetry(0), zerolog.Nop())

	resp, err := r.Post(context.Background(), "chat", map[string]any{}, nil)
	if err != nil || resp.StatusCode != 503 {
		t.Fatalf("unexpected result: %v %v", resp, err)
	}
	if got := next.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetryAfter(t *testing.T) {
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	past := time.Now().Add(-30 * time.Second).UTC().Format(http.TimeFormat)

	tests := []struct {
		name   string
		header http.Header
		min    time.Duration
		max    time.Duration
	}{
		{"absent", http.Header{}, 0, 0},
		{"nil header", nil, 0, 0},
		{"seconds", http.Header{"Retry-After": []string{"7"}}, 7 * time.Second, 7 * time.Second},
		{"negative", http.Header{"Retry-After": []string{"-3"}}, 0, 0},
		{"http date", http.Header{"Retry-After": []string{future}}, 28 * time.Second, 30 * time.Second},
		{"past date", http.Header{"Retry-After": []string{past}}, 0, 0},
		{"garbage", http.Header{"Retry-After": []string{"soon"}}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RetryAfter(tt.header)
			if got < tt.min || got > tt.max {
				t.Errorf("RetryAfter() = %v, want between %v and %v", got, tt.min, tt.max)
			}
		})
	}
}
