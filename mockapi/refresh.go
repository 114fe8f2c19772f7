package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

const refreshTokenLength = 32

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// storedRefreshToken is the server side record behind an opaque refresh token.
type storedRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// refreshManager issues and rotates refresh tokens. One live token per user.
type refreshManager struct {
	tokens  map[string]*storedRefreshToken
	userIDs map[string]string // user ID to token
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
}

func newRefreshManager(ttl time.Duration, now func() time.Time) *refreshManager {
	return &refreshManager{
		tokens:  make(map[string]*storedRefreshToken),
		userIDs: make(map[string]string),
		ttl:     ttl,
		now:     now,
	}
}

// Create generates a new refresh token for userID, replacing any existing one.
func (m *refreshManager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	m.lock.Lock()
	defer m.lock.Unlock()

	if existing, ok := m.userIDs[userID]; ok {
		delete(m.tokens, existing)
	}
	m.tokens[tokenStr] = &storedRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.now(),
	}
	m.userIDs[userID] = tokenStr
	return tokenStr, nil
}

// Consume validates token and removes it. The caller issues the replacement.
func (m *refreshManager) Consume(token string) (*storedRefreshToken, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rt, ok := m.tokens[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	delete(m.tokens, token)
	delete(m.userIDs, rt.UserID)

	if m.ttl > 0 && m.now().Sub(rt.Iat) > m.ttl {
		return nil, errors.New("refresh token expired")
	}
	return rt, nil
}

// DeleteForUser drops the live refresh token of userID, if any.
func (m *refreshManager) DeleteForUser(userID string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if token, ok := m.userIDs[userID]; ok {
		delete(m.tokens, token)
		delete(m.userIDs, userID)
	}
}
