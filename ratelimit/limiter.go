// Package ratelimit counts failed attempts of an action and locks it out for a while once a
// threshold is reached. Only the lockout is persisted; the running count is in memory.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "ratelimit_"

// Config is the limiter policy for one action.
type Config struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultConfig is the policy used for login.
var DefaultConfig = Config{
	MaxAttempts:   5,
	Window:        15 * time.Minute,
	BlockDuration: 15 * time.Minute,
}

// record is the persisted shape: {"attempts": n, "blockedUntil": unixMillis|null}
type record struct {
	Attempts     int    `json:"attempts"`
	BlockedUntil *int64 `json:"blockedUntil"`
}

// Limiter is the attempt counter for one action key.
type Limiter struct {
	mu      sync.Mutex
	storage storage.Storage
	key     string
	cfg     Config
	now     func() time.Time

	attempts     int
	blockedUntil time.Time
	decayTimer   *time.Timer
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNowFunc overrides the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter for action and restores a lockout that is still running.
func New(ctx context.Context, st storage.Storage, action string, cfg Config, options ...Option) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	l := &Limiter{
		storage: st,
		key:     keyPrefix + action,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	l.load(ctx)
	return l
}

func (l *Limiter) load(ctx context.Context) {
	var rec record
	found, err := storage.ReadJSON(ctx, l.storage, l.key, &rec)
	if err != nil {
		log.Debug().Err(err).Str("key", l.key).Msg("discarding persisted rate limit")
		_ = l.storage.Remove(ctx, l.key)
		return
	}
	if !found {
		return
	}

	if rec.BlockedUntil != nil {
		until := time.UnixMilli(*rec.BlockedUntil)
		if until.After(l.now()) {
			l.attempts = rec.Attempts
			l.blockedUntil = until
			return
		}
	}
	_ = l.storage.Remove(ctx, l.key)
}

// Key returns the storage key of the limiter.
func (l *Limiter) Key() string {
	return l.key
}

// RecordAttempt counts one failed attempt. Reaching MaxAttempts starts the lockout; below it
// the count decays back to zero once Window has passed since the first attempt of the run.
// An expired lockout counts as no attempts at all.
func (l *Limiter) RecordAttempt(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.blockedLocked(ctx)
	l.attempts++
	if l.attempts >= l.cfg.MaxAttempts {
		l.blockedUntil = l.now().Add(l.cfg.BlockDuration)
		until := l.blockedUntil.UnixMilli()
		log.Info().Str("key", l.key).Int("attempts", l.attempts).Time("blocked_until", l.blockedUntil).Msg("rate limit reached")
		if err := storage.WriteJSON(ctx, l.storage, l.key, record{Attempts: l.attempts, BlockedUntil: &until}); err != nil {
			return apperrors.Wrap(apperrors.KindStorage, "ratelimit.RecordAttempt", "persist lockout", err)
		}
		return nil
	}

	if l.cfg.Window > 0 && l.decayTimer == nil {
		l.decayTimer = time.AfterFunc(l.cfg.Window, l.decay)
	}
	return nil
}

func (l *Limiter) decay() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decayTimer = nil
	if l.blockedUntil.After(l.now()) {
		return
	}
	l.attempts = 0
}

// IsBlocked reports whether the lockout is running. An expired lockout is cleared here.
func (l *Limiter) IsBlocked(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockedLocked(ctx)
}

func (l *Limiter) blockedLocked(ctx context.Context) bool {
	if l.blockedUntil.IsZero() {
		return false
	}
	if l.blockedUntil.After(l.now()) {
		return true
	}

	l.attempts = 0
	l.blockedUntil = time.Time{}
	if err := l.storage.Remove(ctx, l.key); err != nil {
		log.Debug().Err(err).Str("key", l.key).Msg("clearing expired rate limit")
	}
	return false
}

// Check returns ErrRateLimited while the lockout is running.
func (l *Limiter) Check(ctx context.Context) error {
	if l.IsBlocked(ctx) {
		return apperrors.Wrapf(apperrors.ErrRateLimited, "%s: retry in %s", l.key, l.RemainingTime())
	}
	return nil
}

// Reset clears the counter and any lockout.
func (l *Limiter) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopTimers()
	l.attempts = 0
	l.blockedUntil = time.Time{}
	if err := l.storage.Remove(ctx, l.key); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "ratelimit.Reset", "remove record", err)
	}
	return nil
}

// Attempts returns the current failed attempt count.
func (l *Limiter) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockedLocked(context.Background())
	return l.attempts
}

// RemainingTime is the time left on the lockout, rounded up to whole seconds.
func (l *Limiter) RemainingTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blockedUntil.IsZero() {
		return 0
	}
	left := l.blockedUntil.Sub(l.now())
	if left <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(left.Seconds())) * time.Second
}

// Close stops pending decay timers.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimers()
}

func (l *Limiter) stopTimers() {
	if l.decayTimer != nil {
		l.decayTimer.Stop()
		l.decayTimer = nil
	}
}
