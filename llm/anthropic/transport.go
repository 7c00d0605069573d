// Package anthropic provides an llm.Transport backed by the official Anthropic SDK.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Anthropic API root that request paths are resolved against.
const DefaultBaseURL = "https://api.anthropic.com/v1/"

// NormalizeBaseURL returns baseURL as an API root ending in "/". A bare host
// such as https://api.anthropic.com, the form the SDK's ANTHROPIC_BASE_URL
// uses, gets the "v1/" prefix.
func NormalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err == nil && (u.Path == "" || u.Path == "/") {
		return strings.TrimSuffix(baseURL, "/") + "/v1/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}

// Option configures an SDKTransport.
type Option func(*settings)

type settings struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

// SDKTransport sends requests through the SDK's raw Post so that the SDK's
// HTTP stack is used while the body and its decoding stay with llm.
// SDK retries are disabled.
type SDKTransport struct {
	client  anthropic.Client
	baseURL string
	logger  zerolog.Logger
}

// NewSDKTransport creates an SDKTransport.
func NewSDKTransport(logger zerolog.Logger, opts ...Option) *SDKTransport {
	s := settings{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&s)
	}
	s.baseURL = NormalizeBaseURL(s.baseURL)

	// NewClient applies the SDK's environment defaults first. Drop the auth
	// headers they set so credentials only come from Post's headers.
	clientOpts := []option.RequestOption{
		option.WithBaseURL(s.baseURL),
		option.WithMaxRetries(0),
		option.WithHeaderDel("X-Api-Key"),
		option.WithHeaderDel("Authorization"),
	}
	if s.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(s.httpClient))
	}

	return &SDKTransport{
		client:  anthropic.NewClient(clientOpts...),
		baseURL: s.baseURL,
		logger:  logger.With().Str("component", "anthropic.transport").Logger(),
	}
}

// Post implements llm.Transport.
func (t *SDKTransport) Post(ctx context.Context, path string, body any, headers map[string]string) (*llm.TransportResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var httpResp *http.Response
	reqOpts := make([]option.RequestOption, 0, len(headers)+1)
	for k, v := range headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}
	reqOpts = append(reqOpts, option.WithResponseInto(&httpResp))

	var raw []byte
	err = t.client.Post(ctx, strings.TrimPrefix(path, "/"), json.RawMessage(payload), &raw, reqOpts...)
	if err == nil {
		return &llm.TransportResponse{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header.Clone(),
			Body:       json.RawMessage(raw),
		}, nil
	}

	// The SDK turns non-2xx statuses into errors. Those are results here.
	if httpResp == nil {
		return nil, err
	}
	errBody, readErr := errorBody(err, httpResp)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read error response: %w", readErr)
	}
	t.logger.Debug().Int("status", httpResp.StatusCode).Str("path", path).Msg("Anthropic returned an error status")
	return &llm.TransportResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       json.RawMessage(errBody),
	}, nil
}

// errorBody recovers the raw body of a failed exchange. The SDK keeps it on
// the response it hands back; *anthropic.Error carries it as well.
func errorBody(err error, resp *http.Response) ([]byte, error) {
	if resp.Body != nil {
		b, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(b))
		if readErr == nil && len(b) > 0 {
			return b, nil
		}
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return []byte(apiErr.RawJSON()), nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// A 2xx with an SDK error means the exchange itself failed.
		return nil, err
	}
	return []byte{}, nil
}

// Ensure SDKTransport implements llm.Transport
var _ llm.Transport = (*SDKTransport)(nil)
