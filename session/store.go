package session

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog/log"
)

// DefaultNamespace is the storage key the session envelope lives under.
const DefaultNamespace = "auth-storage"

// envelope is the persisted shape: {"user": ..., "isAuthenticated": ...}
type envelope struct {
	User            *Session `json:"user"`
	IsAuthenticated bool     `json:"isAuthenticated"`
}

// Store owns the current session and writes every change through to storage before
// returning. IsAuthenticated() is always Session() != nil.
type Store struct {
	mu      sync.RWMutex
	storage storage.Storage
	key     string
	session *Session
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides the storage key.
func WithNamespace(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// NewStore creates a Store and hydrates it from st. Unreadable or malformed persisted data is
// treated as "no prior session".
func NewStore(ctx context.Context, st storage.Storage, options ...Option) *Store {
	s := &Store{
		storage: st,
		key:     DefaultNamespace,
	}
	for _, opt := range options {
		opt(s)
	}
	s.hydrate(ctx)
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	var env envelope
	found, err := storage.ReadJSON(ctx, s.storage, s.key, &env)
	if err != nil {
		log.Debug().Err(err).Str("key", s.key).Msg("discarding persisted session")
		if apperrors.Is(err, storage.ErrMalformed) {
			_ = s.storage.Remove(ctx, s.key)
		}
		return
	}
	if !found || !env.IsAuthenticated || env.User == nil {
		return
	}
	s.session = env.User.clone()
}

// Session returns a copy of the current session, or nil.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	return s.session.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// AccessToken returns the current access token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// RefreshToken returns the current refresh token or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.RefreshToken
}

// Role returns the current user's role and whether one is attached.
func (s *Store) Role() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || s.session.Role == "" {
		return "", false
	}
	return s.session.Role, true
}

// Login replaces the state unconditionally.
func (s *Store) Login(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess.clone()
	return s.persist(ctx)
}

// Logout clears the session and removes the persisted entry.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	if err := s.storage.Remove(ctx, s.key); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "session.Logout", "failed to remove persisted session", err)
	}
	return nil
}

// UpdateSession merges p into the current session. Without a session it does nothing.
func (s *Store) UpdateSession(ctx context.Context, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	merged := p.Apply(*s.session)
	s.session = &merged
	return s.persist(ctx)
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	env := envelope{User: s.session, IsAuthenticated: s.session != nil}
	if err := storage.WriteJSON(ctx, s.storage, s.key, env); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "session.persist", "failed to persist session", err)
	}
	return nil
}
