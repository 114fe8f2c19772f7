package auth

import (
	"bytes"
	"encoding/json"

	"github.com/jrsteele09/go-auth-client/session"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignupCredentials is the body of POST /auth/signup. ConfirmPassword never leaves the client.
type SignupCredentials struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Password        string `json:"password" validate:"required,min=8,password"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
}

// User is the user record the API returns.
type User struct {
	ID         flexibleID `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Avatar     string     `json:"avatar,omitempty"`
	Workspaces []string   `json:"workspaces,omitempty"`
	Role       string     `json:"role,omitempty"`
}

// LoginResponse is returned by /auth/login and /auth/signup.
type LoginResponse struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Session converts the response into the record the store keeps.
func (r LoginResponse) Session() session.Session {
	return session.Session{
		UserID:       string(r.User.ID),
		Email:        r.User.Email,
		Name:         r.User.Name,
		Role:         r.User.Role,
		Avatar:       r.User.Avatar,
		Workspaces:   r.User.Workspaces,
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is returned by /auth/refresh.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// flexibleID accepts both numeric and string ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}
