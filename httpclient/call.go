package httpclient

import (
	"context"
	"net/http"
)

// Call is the per-call state shared by the hooks of one Client.Do. It lives until Do returns
// and is never stored on the *http.Request.
type Call struct {
	RequestID string
	// Retried marks a call that has already been through a refresh-and-retry cycle.
	Retried bool
	// Attempts counts how many times the request went out on the wire.
	Attempts int
}

// RequestHook mutates an outgoing request. An error aborts the call before it is sent.
type RequestHook func(ctx context.Context, call *Call, req *http.Request) error

// ResponseHook sees the outcome of a call and may replace it. For non-2xx responses resp is
// nil and err is an *errors.APIError carrying the status.
type ResponseHook func(ctx context.Context, call *Call, req *http.Request, resp *http.Response, err error) (*http.Response, error)

type ctxKey string

const ctxKeyCall ctxKey = "httpclient_call"

// CallFromContext returns the Call in flight for ctx, if any.
func CallFromContext(ctx context.Context) (*Call, bool) {
	call, ok := ctx.Value(ctxKeyCall).(*Call)
	return call, ok
}

const ctxKeyNoRetry ctxKey = "httpclient_no_retry"

// WithoutRetry marks calls made with ctx as already retried, so no response hook will try to
// recover them. The auth service uses it for the refresh call itself.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyNoRetry, true)
}

func noRetry(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyNoRetry).(bool)
	return v
}
