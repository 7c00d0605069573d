package llm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type requestIDKey struct{}

// RequestIDFromContext returns the id attached by ContextWithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewLoggingMiddleware logs every call with a request id. The id comes from
// ContextWithRequestID when set, otherwise a fresh UUID is used.
func NewLoggingMiddleware(logger zerolog.Logger) Middleware {
	return &loggingMiddleware{
		logger: logger.With().Str("component", "llm.middleware").Logger(),
	}
}

// ContextWithRequestID attaches a request id to ctx. An empty id is replaced
// by a fresh UUID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

type loggingMiddleware struct {
	logger zerolog.Logger
	// starts maps a call key to its start time and id. Entries are removed
	// when the call finishes.
	starts sync.Map
}

type callInfo struct {
	id    string
	start time.Time
}

func (m *loggingMiddleware) BeforeRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error) {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	m.starts.Store(callKeyFor(ctx, req), callInfo{id: id, start: time.Now()})
	m.logger.Info().
		Str("request_id", id).
		Str("model", req.Model).
		Int("tools", len(req.Tools)).
		Msg("LLM request started")
	return req, nil
}

func (m *loggingMiddleware) AfterResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse) (*ChatResponse, error) {
	info := m.finish(ctx, req)
	event := m.logger.Info().
		Str("request_id", info.id).
		Str("model", resp.Model).
		Str("stop_reason", resp.StopReason).
		Int("content_items", len(resp.Content)).
		Dur("duration", time.Since(info.start))
	if resp.Usage != nil {
		event = event.Int64("input_tokens", resp.Usage.InputTokens).Int64("output_tokens", resp.Usage.OutputTokens)
	}
	event.Msg("LLM request completed")
	return resp, nil
}

func (m *loggingMiddleware) OnError(ctx context.Context, req *ChatRequest, err error) error {
	info := m.finish(ctx, req)
	m.logger.Error().
		Err(err).
		Str("request_id", info.id).
		Str("kind", string(KindOf(err))).
		Dur("duration", time.Since(info.start)).
		Msg("LLM request failed")
	return err
}

// callKeyFor keys a call by the token Send attaches to ctx. Middleware may
// replace the request between hooks, so the request pointer is only used when
// the hooks are driven outside WrapWithMiddleware.
func callKeyFor(ctx context.Context, req *ChatRequest) any {
	if tok := callTokenFromContext(ctx); tok != nil {
		return tok
	}
	return req
}

func (m *loggingMiddleware) finish(ctx context.Context, req *ChatRequest) callInfo {
	v, ok := m.starts.LoadAndDelete(callKeyFor(ctx, req))
	if !ok {
		return callInfo{start: time.Now()}
	}
	return v.(callInfo)
}
