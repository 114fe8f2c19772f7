package mockapi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// accessClaims are the claims carried by an access token.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	// Generation is bumped by ExpireAccessTokens to invalidate every token issued before.
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

// HMACSigner signs and verifies HS256 tokens.
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

// tokenIssuer creates and checks access tokens.
type tokenIssuer struct {
	signer  *HMACSigner
	ttl     time.Duration
	now     func() time.Time
	revoked *revokedTokenCache

	mu         sync.RWMutex
	generation int64
}

func newTokenIssuer(secret string, ttl time.Duration, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		signer:  NewHMACSigner(secret),
		ttl:     ttl,
		now:     now,
		revoked: newRevokedTokenCache(now),
	}
}

func (ti *tokenIssuer) Issue(user *User) (string, error) {
	ti.mu.RLock()
	gen := ti.generation
	ti.mu.RUnlock()

	now := ti.now()
	claims := accessClaims{
		Email:      user.Email,
		Role:       string(user.Role),
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			ID:        uuid.New().String(),
		},
	}
	return ti.signer.Sign(claims)
}

func (ti *tokenIssuer) Verify(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, ti.signer.verificationKey,
		jwt.WithTimeFunc(ti.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}

	ti.mu.RLock()
	gen := ti.generation
	ti.mu.RUnlock()
	if claims.Generation < gen {
		return nil, errors.New("access token expired")
	}
	if ti.revoked.IsRevoked(claims.ID) {
		return nil, errors.New("access token revoked")
	}
	return claims, nil
}

// ExpireAll invalidates every token issued so far.
func (ti *tokenIssuer) ExpireAll() {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.generation++
}

func (ti *tokenIssuer) Revoke(claims *accessClaims) {
	exp := ti.now().Add(ti.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	ti.revoked.Add(claims.ID, exp)
}

// revokedTokenCache holds the jti of logged out access tokens until they expire.
type revokedTokenCache struct {
	revoked map[string]time.Time
	now     func() time.Time
	mu      sync.RWMutex
}

func newRevokedTokenCache(now func() time.Time) *revokedTokenCache {
	return &revokedTokenCache{
		revoked: make(map[string]time.Time),
		now:     now,
	}
}

func (c *revokedTokenCache) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	c.cleanupLocked()
}

func (c *revokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

func (c *revokedTokenCache) cleanupLocked() {
	now := c.now()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
