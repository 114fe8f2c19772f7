package ratelimit_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/ratelimit"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testConfig = ratelimit.Config{
	MaxAttempts:   3,
	Window:        time.Hour,
	BlockDuration: 5 * time.Minute,
}

func newLimiter(t *testing.T, st storage.Storage, clk *clock) *ratelimit.Limiter {
	t.Helper()
	l := ratelimit.New(context.Background(), st, "login", testConfig, ratelimit.WithNowFunc(clk.Now))
	t.Cleanup(l.Close)
	return l
}

func TestLimiter_BlocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	l := newLimiter(t, storage.NewMemory(), newClock())

	for i := 0; i < testConfig.MaxAttempts-1; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}
	require.False(t, l.IsBlocked(ctx), "one below the threshold")
	require.Equal(t, 2, l.Attempts())
	require.NoError(t, l.Check(ctx))

	require.NoError(t, l.RecordAttempt(ctx))
	require.True(t, l.IsBlocked(ctx))
	require.ErrorIs(t, l.Check(ctx), apperrors.ErrRateLimited)
	require.Equal(t, 5*time.Minute, l.RemainingTime())
}

func TestLimiter_StaysBlockedUntilDurationElapsed(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	st := storage.NewMemory()
	l := newLimiter(t, st, clk)

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}

	clk.Advance(5*time.Minute - time.Second)
	require.True(t, l.IsBlocked(ctx))
	require.Equal(t, time.Second, l.RemainingTime())

	clk.Advance(time.Second)
	require.False(t, l.IsBlocked(ctx), "block ends once until <= now")
	require.Equal(t, 0, l.Attempts())
	require.Equal(t, time.Duration(0), l.RemainingTime())

	_, err := st.Get(ctx, "ratelimit_login")
	require.ErrorIs(t, err, storage.ErrNotFound, "expired record is cleared on read")
}

func TestLimiter_AttemptAfterExpiredLockoutStartsFresh(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	st := storage.NewMemory()
	l := newLimiter(t, st, clk)

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}
	clk.Advance(testConfig.BlockDuration)

	require.Equal(t, 0, l.Attempts(), "an expired lockout reads as idle")

	require.NoError(t, l.RecordAttempt(ctx))
	require.False(t, l.IsBlocked(ctx))
	require.Equal(t, 1, l.Attempts())
	_, err := st.Get(ctx, "ratelimit_login")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLimiter_RecordAttemptClearsExpiredLockoutWithoutRead(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	l := newLimiter(t, storage.NewMemory(), clk)

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}
	clk.Advance(testConfig.BlockDuration + time.Second)

	// no IsBlocked/Attempts in between
	for i := 0; i < testConfig.MaxAttempts-1; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}
	require.False(t, l.IsBlocked(ctx))
	require.Equal(t, testConfig.MaxAttempts-1, l.Attempts())
}

func TestLimiter_RemainingTimeRoundsUp(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	l := newLimiter(t, storage.NewMemory(), clk)
	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}

	clk.Advance(4*time.Minute + 30*time.Second + 200*time.Millisecond)
	require.Equal(t, 30*time.Second, l.RemainingTime())
}

func TestLimiter_ResetClearsImmediately(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	l := newLimiter(t, st, newClock())

	require.NoError(t, l.RecordAttempt(ctx))
	require.NoError(t, l.Reset(ctx))
	require.Equal(t, 0, l.Attempts())
	require.False(t, l.IsBlocked(ctx))

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}
	require.True(t, l.IsBlocked(ctx))

	require.NoError(t, l.Reset(ctx))
	require.False(t, l.IsBlocked(ctx))
	require.Equal(t, 0, l.Attempts())
	_, err := st.Get(ctx, "ratelimit_login")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLimiter_PersistsLockout(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	st := storage.NewMemory()
	l := newLimiter(t, st, clk)

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, l.RecordAttempt(ctx))
	}

	raw, err := st.Get(ctx, "ratelimit_login")
	require.NoError(t, err)
	var rec struct {
		Attempts     int    `json:"attempts"`
		BlockedUntil *int64 `json:"blockedUntil"`
	}
	require.NoError(t, json.Unmarshal(raw, &rec))
	require.Equal(t, 3, rec.Attempts)
	require.NotNil(t, rec.BlockedUntil)
	require.Equal(t, clk.Now().Add(5*time.Minute).UnixMilli(), *rec.BlockedUntil)

	reloaded := newLimiter(t, st, clk)
	require.True(t, reloaded.IsBlocked(ctx), "lockout survives a restart")
	require.Equal(t, 3, reloaded.Attempts())
}

func TestLimiter_CountBelowThresholdIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	l := newLimiter(t, st, newClock())

	require.NoError(t, l.RecordAttempt(ctx))
	_, err := st.Get(ctx, "ratelimit_login")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLimiter_LoadDiscardsExpiredAndMalformed(t *testing.T) {
	ctx := context.Background()
	clk := newClock()

	t.Run("expired", func(t *testing.T) {
		st := storage.NewMemory()
		past := clk.Now().Add(-time.Minute).UnixMilli()
		require.NoError(t, storage.WriteJSON(ctx, st, "ratelimit_login", map[string]any{"attempts": 5, "blockedUntil": past}))

		l := newLimiter(t, st, clk)
		require.False(t, l.IsBlocked(ctx))
		require.Equal(t, 0, l.Attempts())
		_, err := st.Get(ctx, "ratelimit_login")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, st.Set(ctx, "ratelimit_login", []byte("][")))

		l := newLimiter(t, st, clk)
		require.False(t, l.IsBlocked(ctx))
		_, err := st.Get(ctx, "ratelimit_login")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestLimiter_CountDecaysAfterWindow(t *testing.T) {
	ctx := context.Background()
	cfg := ratelimit.Config{MaxAttempts: 3, Window: 20 * time.Millisecond, BlockDuration: time.Minute}
	l := ratelimit.New(ctx, storage.NewMemory(), "login", cfg)
	t.Cleanup(l.Close)

	require.NoError(t, l.RecordAttempt(ctx))
	require.NoError(t, l.RecordAttempt(ctx))
	require.Equal(t, 2, l.Attempts())

	require.Eventually(t, func() bool { return l.Attempts() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLimiter_CountDecaysAfterExpiredLockout(t *testing.T) {
	ctx := context.Background()
	cfg := ratelimit.Config{MaxAttempts: 2, Window: 40 * time.Millisecond, BlockDuration: time.Millisecond}
	l := ratelimit.New(ctx, storage.NewMemory(), "login", cfg)
	t.Cleanup(l.Close)

	require.NoError(t, l.RecordAttempt(ctx))
	require.NoError(t, l.RecordAttempt(ctx))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, l.RecordAttempt(ctx))
	require.Equal(t, 1, l.Attempts())
	require.Eventually(t, func() bool { return l.Attempts() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLimiter_KeysAreSeparate(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	clk := newClock()
	login := newLimiter(t, st, clk)
	signup := ratelimit.New(ctx, st, "signup", testConfig, ratelimit.WithNowFunc(clk.Now))
	t.Cleanup(signup.Close)

	for i := 0; i < testConfig.MaxAttempts; i++ {
		require.NoError(t, login.RecordAttempt(ctx))
	}
	require.True(t, login.IsBlocked(ctx))
	require.False(t, signup.IsBlocked(ctx))
	require.Equal(t, "ratelimit_signup", signup.Key())
}
