// Package authclient assembles the session core: storage, session store, HTTP client with the
// auth interceptors, auth flows, login rate limiter and route guard.
package authclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/httpclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/ratelimit"
	"github.com/jrsteele09/go-auth-client/routes"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog/log"
)

// LoginAction is the rate limiter key guarding login.
const LoginAction = "login"

// App is a wired client.
type App struct {
	Storage storage.Storage
	Store   *session.Store
	HTTP    *httpclient.Client
	Service *auth.Service
	Flows   *auth.Flows
	Limiter *ratelimit.Limiter
	Guard   routes.Guard
	Routes  routes.Table

	navigator routes.Navigator
	ownsStore bool
}

// Option configures New.
type Option func(*options)

type options struct {
	storage   storage.Storage
	transport http.RoundTripper
	navigator routes.Navigator
	limiter   ratelimit.Config
	limiterOK bool
	limitOpts []ratelimit.Option
	table     *routes.Table
}

// WithStorage uses st instead of the configured driver. The caller keeps ownership.
func WithStorage(st storage.Storage) Option {
	return func(o *options) {
		o.storage = st
	}
}

// WithTransport sets the HTTP transport (e.g. an httptest server's client transport).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithNavigator sets where forced redirects go.
func WithNavigator(n routes.Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

// WithRateLimit overrides the configured login rate limit.
func WithRateLimit(cfg ratelimit.Config, opts ...ratelimit.Option) Option {
	return func(o *options) {
		o.limiter = cfg
		o.limiterOK = true
		o.limitOpts = opts
	}
}

// WithRoutes replaces the default route table.
func WithRoutes(t routes.Table) Option {
	return func(o *options) {
		o.table = &t
	}
}

// New builds the client from c.
func New(ctx context.Context, c config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{navigator: o.navigator}

	st := o.storage
	if st == nil {
		var err error
		st, err = storage.New(storage.FromConfig(c))
		if err != nil {
			return nil, fmt.Errorf("[authclient.New] storage: %w", err)
		}
		app.ownsStore = true
	}
	app.Storage = st
	app.Store = session.NewStore(ctx, st, session.WithNamespace(c.GetStorageNamespace()))

	hc, err := httpclient.New(httpclient.Options{
		BaseURL:         c.GetAPIURL(),
		Timeout:         c.GetHTTPTimeout(),
		WithCredentials: true,
		Transport:       o.transport,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("[authclient.New] http client: %w", err)
	}
	app.HTTP = hc

	if app.Service, err = auth.NewService(hc); err != nil {
		app.Close()
		return nil, err
	}

	interceptor, err := auth.NewInterceptor(hc, app.Store, app.Service,
		auth.WithNavigator(routes.NavigatorFunc(app.navigate)),
		auth.WithLoginPath(c.GetLoginPath()),
		auth.WithSharedRefresh(c.GetSharedRefresh()),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	interceptor.Install()

	limitCfg := o.limiter
	if !o.limiterOK {
		limitCfg = ratelimit.Config{
			MaxAttempts:   c.GetRateLimitMaxAttempts(),
			Window:        c.GetRateLimitWindow(),
			BlockDuration: c.GetRateLimitBlockDuration(),
		}
	}
	app.Limiter = ratelimit.New(ctx, st, LoginAction, limitCfg, o.limitOpts...)

	if app.Flows, err = auth.NewFlows(app.Service, app.Store, app.Limiter); err != nil {
		app.Close()
		return nil, err
	}

	app.Guard = routes.NewGuard(c.GetLoginPath(), c.GetFallbackPath())
	app.Guard.DenyMissingRole = c.GetDenyMissingRole()
	app.Routes = routes.DefaultTable()
	if o.table != nil {
		app.Routes = *o.table
	}

	log.Debug().Str("api_url", c.GetAPIURL()).Str("storage", c.GetStorageDriver()).
		Bool("authenticated", app.Store.IsAuthenticated()).Msg("client ready")
	return app, nil
}

func (a *App) navigate(ctx context.Context, path string) {
	if a.navigator != nil {
		a.navigator.Navigate(ctx, path)
	}
}

// Open runs the guard for a navigation to path and, when it is redirected, navigates to the
// redirect target. It returns the decision and the path the client ends up on.
func (a *App) Open(ctx context.Context, path string) (routes.Decision, string, error) {
	route, protected, ok := a.Routes.Lookup(path)
	if !ok {
		return routes.Decision{}, "", apperrors.Wrapf(apperrors.ErrUnknownRoute, "[Open] %q", path)
	}
	if !protected {
		return routes.Decision{Outcome: routes.Allow}, path, nil
	}

	state := routes.State{IsAuthenticated: a.Store.IsAuthenticated()}
	state.Role, _ = a.Store.Role()

	d := a.Guard.Check(state, route, path)
	if d.Outcome == routes.Allow {
		return d, path, nil
	}
	target := a.Guard.Target(d)
	a.navigate(ctx, target)
	return d, target, nil
}

// Resume opens the page a login redirect asked to return to, or the fallback page when
// loginURL carries none.
func (a *App) Resume(ctx context.Context, loginURL string) (routes.Decision, string, error) {
	return a.Open(ctx, routes.ReturnPath(loginURL, a.Guard.FallbackPath))
}

// Close releases the storage driver when the App created it and stops limiter timers.
func (a *App) Close() {
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if a.ownsStore && a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			log.Debug().Err(err).Msg("closing storage")
		}
	}
}
