// Package transport implements llm.Transport over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 32 << 20

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(t *HTTPTransport) {
		t.httpClient = httpClient
	}
}

// WithTimeout bounds each request. Zero leaves the client's timeout alone.
func WithTimeout(timeout time.Duration) Option {
	return func(t *HTTPTransport) {
		t.timeout = timeout
	}
}

// WithTracing wraps the client's round tripper with OpenTelemetry spans.
func WithTracing(enabled bool) Option {
	return func(t *HTTPTransport) {
		t.tracing = enabled
	}
}

// WithMaxBodyBytes sets the largest response body accepted. A larger body
// fails the call instead of being truncated.
func WithMaxBodyBytes(n int64) Option {
	return func(t *HTTPTransport) {
		t.maxBodyBytes = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// HTTPTransport posts JSON to baseURL + "/" + path.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tracing    bool
	logger     zerolog.Logger

	maxBodyBytes int64
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL string, opts ...Option) (*HTTPTransport, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	t := &HTTPTransport{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),

		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxBodyBytes <= 0 {
		t.maxBodyBytes = DefaultMaxBodyBytes
	}

	if t.tracing {
		// Copy so the caller's client is left untouched.
		traced := *t.httpClient
		base := traced.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced.Transport = otelhttp.NewTransport(base)
		t.httpClient = &traced
	}
	t.logger = t.logger.With().Str("component", "transport").Str("base_url", t.baseURL).Logger()
	return t, nil
}

// BaseURL returns the URL paths are resolved against.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL
}

// Post implements llm.Transport.
func (t *HTTPTransport) Post(ctx context.Context, path string, body any, headers map[string]string) (*llm.TransportResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	url := t.baseURL + "/" + strings.TrimPrefix(path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Body close error can be ignored

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > t.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes (status %d)", t.maxBodyBytes, resp.StatusCode)
	}

	t.logger.Trace().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(respBody)).
		Msg("HTTP exchange complete")

	return &llm.TransportResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       json.RawMessage(respBody),
	}, nil
}

// Ensure HTTPTransport implements llm.Transport
var _ llm.Transport = (*HTTPTransport)(nil)
