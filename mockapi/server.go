// Package mockapi is an in-process stand-in for the task collaboration API. It implements the
// auth endpoints and a couple of protected resources, and exposes hooks tests use to force
// token expiry and refresh failures.
package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPrefix          = "/api"
	DefaultAccessTTL       = 15 * time.Minute
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	CSRFCookieName         = "XSRF-TOKEN"
	CSRFHeaderName         = "X-XSRF-TOKEN"
	LoginPath              = "/auth/login"
	SignupPath             = "/auth/signup"
	RefreshPath            = "/auth/refresh"
	LogoutPath             = "/auth/logout"
	MePath                 = "/me"
	WorkspacesPath         = "/workspaces"
	errCodeInvalidRequest  = "INVALID_REQUEST"
	errCodeValidation      = "VALIDATION_ERROR"
	errCodeUnauthorized    = "UNAUTHORIZED"
	errCodeInvalidCreds    = "INVALID_CREDENTIALS"
	errCodeConflict        = "EMAIL_TAKEN"
	errCodeCSRF            = "CSRF_MISMATCH"
	errCodeInternal        = "INTERNAL_ERROR"
	errCodeRefreshRejected = "INVALID_REFRESH_TOKEN"
)

// Options configures the fake API.
type Options struct {
	Prefix     string
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RequireCSRF rejects state changing calls to protected routes without a matching
	// X-XSRF-TOKEN header.
	RequireCSRF bool
	Seed        []SeedUser
	Env         string
	Now         func() time.Time
}

// OptionsFromConfig maps the MOCKAPI_* settings onto Options.
func OptionsFromConfig(c interface {
	config.MockAPIConfig
	config.EnvConfig
}) Options {
	return Options{
		Secret:      c.GetMockAPISecret(),
		AccessTTL:   c.GetMockAPIAccessTTL(),
		RequireCSRF: true,
		Seed:        DefaultSeedUsers(),
		Env:         c.GetEnv(),
	}
}

// Server is the fake API. It implements http.Handler.
type Server struct {
	opts    Options
	router  *mux.Router
	users   UserRepo
	tokens  *tokenIssuer
	refresh *refreshManager

	mu          sync.Mutex
	failRefresh bool
	hits        map[string]int
}

// New creates the fake API and seeds its users.
func New(opts Options) (*Server, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.Secret == "" {
		return nil, fmt.Errorf("[mockapi.New] signing secret is required")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts:    opts,
		users:   newMemoryUserRepo(),
		tokens:  newTokenIssuer(opts.Secret, opts.AccessTTL, opts.Now),
		refresh: newRefreshManager(opts.RefreshTTL, opts.Now),
		hits:    make(map[string]int),
	}

	for _, su := range opts.Seed {
		if _, err := s.AddUser(su); err != nil {
			return nil, fmt.Errorf("[mockapi.New] seed %s: %w", su.Email, err)
		}
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) initRoutes() {
	r := mux.NewRouter()
	api := r.PathPrefix(s.opts.Prefix).Subrouter()
	api.Use(s.RecoverMiddleware, s.LoggingMiddleware, s.countMiddleware)

	api.HandleFunc(LoginPath, s.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc(SignupPath, s.SignupHandler).Methods(http.MethodPost)
	api.HandleFunc(RefreshPath, s.RefreshHandler).Methods(http.MethodPost)
	api.HandleFunc(LogoutPath, s.LogoutHandler).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.BearerMiddleware, s.CSRFMiddleware)
	protected.HandleFunc(MePath, s.MeHandler).Methods(http.MethodGet)
	protected.HandleFunc(WorkspacesPath, s.ListWorkspacesHandler).Methods(http.MethodGet)
	protected.HandleFunc(WorkspacesPath, s.CreateWorkspaceHandler).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	})
	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Prefix is the path all endpoints are mounted under.
func (s *Server) Prefix() string {
	return s.opts.Prefix
}

// AddUser registers an account.
func (s *Server) AddUser(su SeedUser) (*User, error) {
	hash, err := HashPassword(su.Password)
	if err != nil {
		return nil, err
	}
	role := su.Role
	if role == "" {
		role = RoleUser
	}
	workspaces := su.Workspaces
	if workspaces == nil {
		workspaces = []string{}
	}
	u := &User{
		Email:        strings.ToLower(su.Email),
		Name:         su.Name,
		PasswordHash: hash,
		Role:         role,
		Workspaces:   workspaces,
		DateJoined:   s.opts.Now(),
	}
	if err := s.users.Upsert(u); err != nil {
		return nil, err
	}
	return u, nil
}

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (s *Server) ExpireAccessTokens() {
	s.tokens.ExpireAll()
}

// FailRefresh makes /auth/refresh reject every request while on.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// RefreshCalls is the number of requests /auth/refresh has received.
func (s *Server) RefreshCalls() int {
	return s.Hits(RefreshPath)
}

// Hits is the number of requests received for path (relative to the prefix).
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) refreshFailing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failRefresh
}

func (s *Server) countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, s.opts.Prefix)
		s.mu.Lock()
		s.hits[path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Env != "DEV" {
			next.ServeHTTP(w, r)
			return
		}
		logRoute(r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from panic")
				writeError(w, http.StatusInternalServerError, errCodeInternal, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
