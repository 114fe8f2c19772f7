package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/httpclient"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/routes"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	CSRFCookieName = "XSRF-TOKEN"
	CSRFHeaderName = "X-XSRF-TOKEN"
)

// TokenStore is the part of the session store the interceptor reads and writes.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	UpdateSession(ctx context.Context, p session.Patch) error
	Logout(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
}

// CookieSource yields cookies from the execution environment (the client's jar).
type CookieSource interface {
	Cookie(name string) (string, bool)
}

// Interceptor attaches credentials to outgoing requests and recovers from an expired access
// token with a single refresh-and-retry per request.
type Interceptor struct {
	client    *httpclient.Client
	store     TokenStore
	refresher Refresher
	cookies   CookieSource
	navigator routes.Navigator
	loginPath string

	// shared collapses concurrent refreshes of the same refresh token into one call.
	shared bool
	group  singleflight.Group
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithNavigator sets where the client is sent when the session cannot be recovered.
func WithNavigator(n routes.Navigator) InterceptorOption {
	return func(i *Interceptor) {
		i.navigator = n
	}
}

// WithLoginPath overrides the login entry point (default "/login").
func WithLoginPath(path string) InterceptorOption {
	return func(i *Interceptor) {
		if path != "" {
			i.loginPath = path
		}
	}
}

// WithSharedRefresh makes concurrent 401s wait on one in-flight refresh instead of each
// refreshing on its own.
func WithSharedRefresh(enabled bool) InterceptorOption {
	return func(i *Interceptor) {
		i.shared = enabled
	}
}

// WithCookieSource overrides where the CSRF cookie is read from (default: the client's jar).
func WithCookieSource(src CookieSource) InterceptorOption {
	return func(i *Interceptor) {
		i.cookies = src
	}
}

// NewInterceptor builds the interceptor. Call Install to register it on the client.
func NewInterceptor(client *httpclient.Client, store TokenStore, refresher Refresher, options ...InterceptorOption) (*Interceptor, error) {
	if client == nil {
		return nil, fmt.Errorf("[NewInterceptor] %w", MissingClientErr)
	}
	if store == nil {
		return nil, fmt.Errorf("[NewInterceptor] %w", MissingStoreErr)
	}
	if refresher == nil {
		return nil, fmt.Errorf("[NewInterceptor] %w", MissingRefresherErr)
	}

	i := &Interceptor{
		client:    client,
		store:     store,
		refresher: refresher,
		cookies:   client,
		loginPath: "/login",
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Install registers the request and response hooks on the client.
func (i *Interceptor) Install() {
	i.client.Use(i.Request)
	i.client.After(i.Response)
}

// Request attaches the bearer token and, for state-changing methods, the CSRF header.
func (i *Interceptor) Request(_ context.Context, _ *httpclient.Call, req *http.Request) error {
	if token := i.store.AccessToken(); token != "" {
		setBearer(req, token)
	}

	if isStateChanging(req.Method) && i.cookies != nil {
		if csrf, ok := i.cookies.Cookie(CSRFCookieName); ok && csrf != "" {
			req.Header.Set(CSRFHeaderName, csrf)
		}
	}
	return nil
}

// Response refreshes the token pair on the first 401 of a call and resends the request once.
// Everything else passes through unchanged.
func (i *Interceptor) Response(ctx context.Context, call *httpclient.Call, req *http.Request, resp *http.Response, err error) (*http.Response, error) {
	if err == nil {
		return resp, nil
	}
	if apperrors.StatusCode(err) != http.StatusUnauthorized || call.Retried {
		return resp, err
	}
	call.Retried = true

	refreshToken := i.store.RefreshToken()
	if refreshToken == "" {
		i.endSession(ctx)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNoRefreshToken, err)
	}

	tokens, refreshErr := i.refresh(ctx, refreshToken)
	if refreshErr != nil && ctx.Err() != nil {
		// the caller gave up; the session may still be good
		return nil, fmt.Errorf("[Response] refresh interrupted: %w", refreshErr)
	}
	if refreshErr != nil {
		log.Warn().Err(refreshErr).Str("request_id", call.RequestID).Msg("token refresh failed")
		i.endSession(ctx)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, refreshErr)
	}

	if err := i.store.UpdateSession(ctx, session.TokenPatch(tokens.Token, tokens.RefreshToken)); err != nil {
		apperrors.Log(err)
	}

	setBearer(req, tokens.Token)
	log.Debug().Str("request_id", call.RequestID).Str("url", req.URL.String()).Msg("retrying with refreshed token")
	return i.client.Resend(ctx, call, req)
}

func (i *Interceptor) refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	if !i.shared {
		return i.refresher.Refresh(ctx, refreshToken)
	}
	// the shared call outlives any one caller
	detached := context.WithoutCancel(ctx)
	v, err, _ := i.group.Do(refreshToken, func() (any, error) {
		return i.refresher.Refresh(detached, refreshToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RefreshResponse), nil
}

// endSession clears the session and sends the client to the login entry point.
func (i *Interceptor) endSession(ctx context.Context) {
	if err := i.store.Logout(ctx); err != nil {
		apperrors.Log(err)
	}
	if i.navigator != nil {
		i.navigator.Navigate(ctx, i.loginPath)
	}
}

func setBearer(req *http.Request, accessToken string) {
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
