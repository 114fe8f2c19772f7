// Package httpclient is the shared request executor every outbound API call goes through, so
// the auth hooks apply uniformly.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout  = 10 * time.Second
	HeaderRequestID = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Headers are added to every request that does not set them already.
	Headers http.Header
	// WithCredentials keeps cookies between calls (the equivalent of withCredentials).
	WithCredentials bool
	Transport       http.RoundTripper
}

// Client is a configured request executor with a request/response hook pipeline.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	headers http.Header

	mu   sync.RWMutex
	pre  []RequestHook
	post []ResponseHook
}

// New creates a Client. Content-Type and Accept default to application/json.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("[httpclient.New] invalid base URL %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{Timeout: timeout, Transport: opts.Transport}
	if opts.WithCredentials {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("[httpclient.New] cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	headers := http.Header{
		"Content-Type": {"application/json"},
		"Accept":       {"application/json"},
	}
	for k, v := range opts.Headers {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	c := &Client{
		baseURL: base,
		http:    hc,
		headers: headers,
	}
	c.pre = []RequestHook{requestIDHook}
	return c, nil
}

// Use appends request hooks. They run in registration order before every send.
func (c *Client) Use(hooks ...RequestHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pre = append(c.pre, hooks...)
}

// After appends response hooks. They run in registration order, each one receiving the
// previous hook's result.
func (c *Client) After(hooks ...ResponseHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.post = append(c.post, hooks...)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Cookie returns the value of the named cookie held for the base URL.
func (c *Client) Cookie(name string) (string, bool) {
	if c.http.Jar == nil {
		return "", false
	}
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// URL resolves path against the base URL, keeping the base path prefix.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// NewRequest builds a request for path, JSON-encoding body when it is not nil.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("[httpclient.NewRequest] encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	return http.NewRequestWithContext(ctx, method, c.URL(path), reader)
}

// Do runs the request hooks, sends req and passes the outcome through the response hooks.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	call := &Call{
		RequestID: uuid.New().String(),
		Retried:   noRetry(ctx),
	}
	ctx = context.WithValue(ctx, ctxKeyCall, call)

	resp, err := c.send(ctx, call, req)

	c.mu.RLock()
	post := append([]ResponseHook(nil), c.post...)
	c.mu.RUnlock()

	for _, hook := range post {
		resp, err = hook(ctx, call, req, resp, err)
	}
	return resp, err
}

// Resend sends req again for an in-flight call. Request hooks run, response hooks do not:
// the outcome belongs to the hook that asked for the resend.
func (c *Client) Resend(ctx context.Context, call *Call, req *http.Request) (*http.Response, error) {
	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("[httpclient.Resend] rewind body: %w", err)
		}
		retry.Body = body
	}
	return c.send(ctx, call, retry)
}

func (c *Client) send(ctx context.Context, call *Call, req *http.Request) (*http.Response, error) {
	call.Attempts++
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), v...)
		}
	}

	c.mu.RLock()
	pre := append([]RequestHook(nil), c.pre...)
	c.mu.RUnlock()

	for _, hook := range pre {
		if err := hook(ctx, call, req); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).
			Str("request_id", call.RequestID).Msg("request failed")
		return nil, err
	}

	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
		Int("status", resp.StatusCode).Str("request_id", call.RequestID).
		Int("attempt", call.Attempts).Dur("duration", time.Since(start)).Msg("request")

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, apperrors.NewAPIError(req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return resp, nil
}

func requestIDHook(_ context.Context, call *Call, req *http.Request) error {
	req.Header.Set(HeaderRequestID, call.RequestID)
	return nil
}
