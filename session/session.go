package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"golang.org/x/oauth2"
)

// Session is the authenticated user's identity plus the token pair, as held client side.
type Session struct {
	// Core identity
	UserID     string   `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Role       string   `json:"role,omitempty"` // empty when the API attached no role
	Avatar     string   `json:"avatar,omitempty"`
	Workspaces []string `json:"workspaces,omitempty"`

	// Tokens
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Patch is a partial Session; nil fields are left unchanged by Store.UpdateSession.
type Patch struct {
	UserID       *string
	Email        *string
	Name         *string
	Role         *string
	Avatar       *string
	Workspaces   *[]string
	AccessToken  *string
	RefreshToken *string
}

// Apply returns s with every non-nil field of p merged in.
func (p Patch) Apply(s Session) Session {
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Role != nil {
		s.Role = *p.Role
	}
	if p.Avatar != nil {
		s.Avatar = *p.Avatar
	}
	if p.Workspaces != nil {
		s.Workspaces = append([]string(nil), (*p.Workspaces)...)
	}
	if p.AccessToken != nil {
		s.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil {
		s.RefreshToken = *p.RefreshToken
	}
	return s
}

// TokenPatch is the Patch written after a token refresh.
func TokenPatch(accessToken, refreshToken string) Patch {
	return Patch{AccessToken: utils.Ptr(accessToken), RefreshToken: utils.Ptr(refreshToken)}
}

func (s Session) clone() *Session {
	s.Workspaces = append([]string(nil), s.Workspaces...)
	return &s
}

// AccessTokenExpiry reads the exp claim of the access token. The signature is not checked;
// the client only uses this for display, the API stays the authority.
func (s Session) AccessTokenExpiry() (time.Time, bool) {
	if s.AccessToken == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// OAuth2Token views the token pair as an oauth2.Token.
func (s Session) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := s.AccessTokenExpiry(); ok {
		tok.Expiry = exp
	}
	return tok
}
