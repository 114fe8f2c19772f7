package httpclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/httpclient"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Body    string
	Cookies []*http.Cookie
}

type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Header:  r.Header.Clone(),
			Body:    string(body),
			Cookies: r.Cookies(),
		})
		ts.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

func newClient(t *testing.T, baseURL string) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Options{BaseURL: baseURL + "/api", WithCredentials: true})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := httpclient.New(httpclient.Options{BaseURL: "not a url"})
	require.Error(t, err)

	_, err = httpclient.New(httpclient.Options{BaseURL: "/relative"})
	require.Error(t, err)
}

func TestClient_URLKeepsBasePath(t *testing.T) {
	c, err := httpclient.New(httpclient.Options{BaseURL: "http://localhost:3000/api/"})
	require.NoError(t, err)

	require.Equal(t, "http://localhost:3000/api/auth/login", c.URL("/auth/login"))
	require.Equal(t, "http://localhost:3000/api/me", c.URL("me"))
	require.Equal(t, "https://elsewhere.example.com/x", c.URL("https://elsewhere.example.com/x"))
}

func TestClient_DefaultHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	c := newClient(t, ts.URL)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Post(context.Background(), "/things", map[string]string{"name": "x"}, &out))
	require.True(t, out.OK)

	reqs := ts.recorded()
	require.Len(t, reqs, 1)
	require.Equal(t, "/api/things", reqs[0].Path)
	require.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	require.Equal(t, "application/json", reqs[0].Header.Get("Accept"))
	require.NotEmpty(t, reqs[0].Header.Get(httpclient.HeaderRequestID))
	require.JSONEq(t, `{"name":"x"}`, reqs[0].Body)
}

func TestClient_NonSuccessBecomesAPIError(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"FORBIDDEN","message":"Not yours"}}`))
	})
	c := newClient(t, ts.URL)

	err := c.Get(context.Background(), "/workspaces/9", nil)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, "/api/workspaces/9", apiErr.Endpoint)
	require.Equal(t, "Not yours", apiErr.Message)
}

func TestClient_HooksRunInOrder(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newClient(t, ts.URL)

	var order []string
	c.Use(func(_ context.Context, _ *httpclient.Call, req *http.Request) error {
		order = append(order, "pre1")
		req.Header.Set("X-Trace", "a")
		return nil
	}, func(_ context.Context, _ *httpclient.Call, req *http.Request) error {
		order = append(order, "pre2")
		req.Header.Set("X-Trace", req.Header.Get("X-Trace")+"b")
		return nil
	})
	c.After(func(_ context.Context, _ *httpclient.Call, _ *http.Request, resp *http.Response, err error) (*http.Response, error) {
		order = append(order, "post1")
		return resp, err
	}, func(_ context.Context, _ *httpclient.Call, _ *http.Request, resp *http.Response, err error) (*http.Response, error) {
		order = append(order, "post2")
		return resp, err
	})

	require.NoError(t, c.Get(context.Background(), "/me", nil))
	require.Equal(t, []string{"pre1", "pre2", "post1", "post2"}, order)
	require.Equal(t, "ab", ts.recorded()[0].Header.Get("X-Trace"))
}

func TestClient_PreHookErrorAbortsSend(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {})
	c := newClient(t, ts.URL)

	boom := errors.New("no token available")
	c.Use(func(context.Context, *httpclient.Call, *http.Request) error { return boom })

	err := c.Get(context.Background(), "/me", nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, ts.recorded())
}

func TestClient_PostHookCanRecoverWithResend(t *testing.T) {
	var hits int
	var mu sync.Mutex
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"n":2}`))
	})
	c := newClient(t, ts.URL)

	var postRuns int
	c.After(func(ctx context.Context, call *httpclient.Call, req *http.Request, resp *http.Response, err error) (*http.Response, error) {
		postRuns++
		if apperrors.StatusCode(err) == http.StatusServiceUnavailable && !call.Retried {
			call.Retried = true
			return c.Resend(ctx, call, req)
		}
		return resp, err
	})

	var out map[string]int
	require.NoError(t, c.Post(context.Background(), "/jobs", map[string]string{"kind": "sync"}, &out))
	require.Equal(t, 2, out["n"])
	require.Equal(t, 1, postRuns, "resend does not re-enter the response hooks")

	reqs := ts.recorded()
	require.Len(t, reqs, 2)
	require.JSONEq(t, reqs[0].Body, reqs[1].Body, "body is rewound for the resend")
	require.Equal(t, reqs[0].Header.Get(httpclient.HeaderRequestID), reqs[1].Header.Get(httpclient.HeaderRequestID))
}

func TestClient_WithoutRetryMarksCall(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newClient(t, ts.URL)

	var retried []bool
	c.After(func(_ context.Context, call *httpclient.Call, _ *http.Request, resp *http.Response, err error) (*http.Response, error) {
		retried = append(retried, call.Retried)
		return resp, err
	})

	require.NoError(t, c.Get(context.Background(), "/a", nil))
	require.NoError(t, c.Get(httpclient.WithoutRetry(context.Background()), "/b", nil))
	require.Equal(t, []bool{false, true}, retried)
}

func TestClient_CallInContext(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newClient(t, ts.URL)

	var fromCtx, fromArg *httpclient.Call
	c.Use(func(ctx context.Context, call *httpclient.Call, _ *http.Request) error {
		fromCtx, _ = httpclient.CallFromContext(ctx)
		fromArg = call
		return nil
	})

	require.NoError(t, c.Get(context.Background(), "/me", nil))
	require.Same(t, fromArg, fromCtx)
	require.Equal(t, 1, fromArg.Attempts)
}

func TestClient_CookiesKeptWithCredentials(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "csrf-1", Path: "/"})
		}
		_, _ = w.Write([]byte(`{}`))
	})
	c := newClient(t, ts.URL)

	_, ok := c.Cookie("XSRF-TOKEN")
	require.False(t, ok)

	require.NoError(t, c.Post(context.Background(), "/auth/login", nil, nil))
	v, ok := c.Cookie("XSRF-TOKEN")
	require.True(t, ok)
	require.Equal(t, "csrf-1", v)

	require.NoError(t, c.Get(context.Background(), "/me", nil))
	reqs := ts.recorded()
	require.Len(t, reqs[1].Cookies, 1)
	require.Equal(t, "csrf-1", reqs[1].Cookies[0].Value)
}

func TestClient_Timeout(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c, err := httpclient.New(httpclient.Options{BaseURL: ts.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	require.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
}

func TestClient_DecodesIntoOut(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"workspaces": []string{"a", "b"}})
	})
	c := newClient(t, ts.URL)

	var out struct {
		Workspaces []string `json:"workspaces"`
	}
	require.NoError(t, c.Get(context.Background(), "/workspaces", &out))
	require.Equal(t, []string{"a", "b"}, out.Workspaces)
}
