package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-client/httpclient"
	"github.com/pkg/errors"
)

// Endpoint paths, relative to the API base URL.
const (
	LoginPath   = "/auth/login"
	SignupPath  = "/auth/signup"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
)

// API is the remote authentication service.
type API interface {
	Login(ctx context.Context, credentials Credentials) (*LoginResponse, error)
	Signup(ctx context.Context, credentials SignupCredentials) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
	Logout(ctx context.Context) error
}

// Service calls the auth endpoints through the shared client.
type Service struct {
	client *httpclient.Client
}

var _ API = (*Service)(nil)

// NewService creates a Service on top of client.
func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.Wrap(MissingClientErr, "[NewService]")
	}
	return &Service{client: client}, nil
}

// Login authenticates with email and password. A 401 here means bad credentials, not an
// expired token, so the call is never routed through the refresh cycle.
func (s *Service) Login(ctx context.Context, credentials Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.client.Post(httpclient.WithoutRetry(ctx), LoginPath, credentials, &resp); err != nil {
		return nil, errors.Wrap(err, "[Login] request failed")
	}
	return &resp, nil
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, credentials SignupCredentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.client.Post(httpclient.WithoutRetry(ctx), SignupPath, credentials, &resp); err != nil {
		return nil, errors.Wrap(err, "[Signup] request failed")
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := s.client.Post(httpclient.WithoutRetry(ctx), RefreshPath, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Refresh] request failed")
	}
	if resp.Token == "" {
		return nil, errors.Wrap(EmptyTokenPairErr, "[Refresh]")
	}
	return &resp, nil
}

// Logout tells the API to end the session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.client.Post(httpclient.WithoutRetry(ctx), LogoutPath, nil, nil); err != nil {
		return errors.Wrap(err, "[Logout] request failed")
	}
	return nil
}
