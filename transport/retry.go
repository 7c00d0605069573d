package transport

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the default maximum number of retries
	DefaultMaxRetries = 3
	// DefaultInitialInterval is the default initial delay for exponential backoff
	DefaultInitialInterval = 1 * time.Second
	// DefaultMaxInterval is the default maximum interval for backoff
	DefaultMaxInterval = 60 * time.Second
	// DefaultMaxElapsedTime is the default maximum elapsed time for backoff
	DefaultMaxElapsedTime = 5 * time.Minute
)

// RetryConfig controls the Retrying transport.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
	}
}

// Retrying re-sends requests that failed in the network or came back with a
// transient status (429, 5xx, 529). When retries run out on a status, the
// last response is returned so the caller can normalize its error body.
type Retrying struct {
	next   llm.Transport
	cfg    RetryConfig
	logger zerolog.Logger
}

// NewRetrying wraps next with retries.
func NewRetrying(next llm.Transport, cfg RetryConfig, logger zerolog.Logger) *Retrying {
	def := DefaultRetryConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = def.MaxElapsedTime
	}
	return &Retrying{
		next:   next,
		cfg:    cfg,
		logger: logger.With().Str("component", "transport.retry").Logger(),
	}
}

// statusError marks a response whose status is worth retrying.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.status)
}

// Post implements llm.Transport.
func (r *Retrying) Post(ctx context.Context, path string, body any, headers map[string]string) (*llm.TransportResponse, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.InitialInterval
	eb.Multiplier = 2.0
	eb.MaxInterval = r.cfg.MaxInterval
	eb.MaxElapsedTime = r.cfg.MaxElapsedTime
	eb.RandomizationFactor = 0.2 // 20% jitter
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.cfg.MaxRetries), ctx)

	var last *llm.TransportResponse
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := r.next.Post(ctx, path, body, maps.Clone(headers))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		last = resp
		if !llm.IsRetryableStatus(resp.StatusCode) {
			return nil
		}

		if retryAfter := RetryAfter(resp.Header); retryAfter > 0 {
			// Use retry-after as initial delay for next attempt
			eb.InitialInterval = min(retryAfter, r.cfg.MaxInterval)
			eb.Multiplier = 1.5
			eb.RandomizationFactor = 0.1
			eb.Reset()
		}
		return &statusError{status: resp.StatusCode}
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Retrying request")
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return last, nil
	}

	var sErr *statusError
	if errors.As(err, &sErr) && last != nil {
		r.logger.Warn().Int("status", sErr.status).Int("attempts", attempt).Msg("Retries exhausted")
		return last, nil
	}
	return nil, err
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns 0 when the header is absent or unusable.
func RetryAfter(h http.Header) time.Duration {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	// Try parsing as HTTP date
	if retryTime, err := http.ParseTime(value); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}
	return 0
}

// Ensure Retrying implements llm.Transport
var _ llm.Transport = (*Retrying)(nil)
