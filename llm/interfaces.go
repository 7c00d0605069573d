package llm

import (
	"context"
	"encoding/json"
	"net/http"
)

// TransportResponse is the result of one HTTP exchange.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	// Body is the response body as received. It may be empty or non-JSON on
	// failures; the normalizers decide what that means.
	Body json.RawMessage
}

// Transport sends one JSON POST to a path relative to the provider base URL.
// It returns an error only when no HTTP status was obtained. Non-2xx
// responses are results, not errors.
type Transport interface {
	Post(ctx context.Context, path string, body any, headers map[string]string) (*TransportResponse, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, path string, body any, headers map[string]string) (*TransportResponse, error)

// Post calls f.
func (f TransportFunc) Post(ctx context.Context, path string, body any, headers map[string]string) (*TransportResponse, error) {
	return f(ctx, path, body, headers)
}

// Chatter sends a ChatRequest and returns the normalized response.
// *ChatClient implements it; middleware wraps it.
type Chatter interface {
	Send(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Middleware provides hooks for decorating Chatter calls.
type Middleware interface {
	// BeforeRequest is called before making an API request.
	// It can modify the request or return an error to abort the request.
	BeforeRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error)

	// AfterResponse is called after receiving a response.
	// It can modify the response or return an error.
	AfterResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse) (*ChatResponse, error)

	// OnError is called when an error occurs.
	// It can return a modified error or nil to use the original error.
	OnError(ctx context.Context, req *ChatRequest, err error) error
}

// MiddlewareFunc is a function type that implements Middleware.
type MiddlewareFunc struct {
	BeforeRequestFunc func(ctx context.Context, req *ChatRequest) (*ChatRequest, error)
	AfterResponseFunc func(ctx context.Context, req *ChatRequest, resp *ChatResponse) (*ChatResponse, error)
	OnErrorFunc       func(ctx context.Context, req *ChatRequest, err error) error
}

// BeforeRequest calls the BeforeRequestFunc if set.
func (f MiddlewareFunc) BeforeRequest(ctx context.Context, req *ChatRequest) (*ChatRequest, error) {
	if f.BeforeRequestFunc != nil {
		return f.BeforeRequestFunc(ctx, req)
	}
	return req, nil
}

// AfterResponse calls the AfterResponseFunc if set.
func (f MiddlewareFunc) AfterResponse(ctx context.Context, req *ChatRequest, resp *ChatResponse) (*ChatResponse, error) {
	if f.AfterResponseFunc != nil {
		return f.AfterResponseFunc(ctx, req, resp)
	}
	return resp, nil
}

// OnError calls the OnErrorFunc if set.
func (f MiddlewareFunc) OnError(ctx context.Context, req *ChatRequest, err error) error {
	if f.OnErrorFunc != nil {
		return f.OnErrorFunc(ctx, req, err)
	}
	return err
}

// WrapWithMiddleware wraps a Chatter with middleware and returns a new Chatter.
// BeforeRequest hooks run in order, AfterResponse hooks in reverse order.
func WrapWithMiddleware(client Chatter, middleware ...Middleware) Chatter {
	if len(middleware) == 0 {
		return client
	}
	return &chatterWithMiddleware{
		client:     client,
		middleware: middleware,
	}
}

type callKey struct{}

// callToken identifies one Send through chatterWithMiddleware. It is not
// zero-sized so distinct tokens never share an address.
type callToken struct{ _ byte }

// callTokenFromContext returns the token attached by chatterWithMiddleware.Send.
func callTokenFromContext(ctx context.Context) *callToken {
	tok, _ := ctx.Value(callKey{}).(*callToken)
	return tok
}

// chatterWithMiddleware wraps a Chatter with middleware.
type chatterWithMiddleware struct {
	client     Chatter
	middleware []Middleware
}

// Send implements Chatter.Send with middleware support.
func (c *chatterWithMiddleware) Send(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx = context.WithValue(ctx, callKey{}, new(callToken))
	for _, mw := range c.middleware {
		var err error
		req, err = mw.BeforeRequest(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.client.Send(ctx, req)
	if err != nil {
		for _, mw := range c.middleware {
			if handled := mw.OnError(ctx, req, err); handled != nil {
				err = handled
			}
		}
		return nil, err
	}

	for i := len(c.middleware) - 1; i >= 0; i-- {
		var err error
		resp, err = c.middleware[i].AfterResponse(ctx, req, resp)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// Ensure chatterWithMiddleware implements Chatter
var _ Chatter = (*chatterWithMiddleware)(nil)
