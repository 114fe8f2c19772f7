package auth

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
)

// SessionStore is the part of the session store the flows drive.
type SessionStore interface {
	Login(ctx context.Context, s session.Session) error
	Logout(ctx context.Context) error
}

// AttemptLimiter guards the login action.
type AttemptLimiter interface {
	Check(ctx context.Context) error
	RecordAttempt(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Flows ties form validation, rate limiting, the API and the session store together for the
// login, signup and logout actions.
type Flows struct {
	api       API
	store     SessionStore
	limiter   AttemptLimiter
	validator *Validator
}

// NewFlows creates the user facing auth actions.
func NewFlows(api API, store SessionStore, limiter AttemptLimiter) (*Flows, error) {
	if api == nil {
		return nil, fmt.Errorf("[NewFlows] %w", MissingClientErr)
	}
	if store == nil {
		return nil, fmt.Errorf("[NewFlows] %w", MissingStoreErr)
	}
	if limiter == nil {
		return nil, fmt.Errorf("[NewFlows] %w", MissingLimiterErr)
	}
	return &Flows{
		api:       api,
		store:     store,
		limiter:   limiter,
		validator: NewValidator(),
	}, nil
}

// Login validates the credentials, refuses while the limiter is blocked and on success
// stores the new session. Failed attempts count towards the lockout.
func (f *Flows) Login(ctx context.Context, credentials Credentials) (*session.Session, error) {
	if err := f.validator.Struct(credentials); err != nil {
		return nil, err
	}
	if err := f.limiter.Check(ctx); err != nil {
		return nil, err
	}

	resp, err := f.api.Login(ctx, credentials)
	if err != nil {
		if countsAsAttempt(err) {
			if recErr := f.limiter.RecordAttempt(ctx); recErr != nil {
				apperrors.Log(recErr)
			}
		}
		if apperrors.StatusCode(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
		}
		return nil, err
	}

	if err := f.limiter.Reset(ctx); err != nil {
		apperrors.Log(err)
	}
	return f.begin(ctx, resp)
}

// Signup validates the form, registers the user and stores the new session.
func (f *Flows) Signup(ctx context.Context, credentials SignupCredentials) (*session.Session, error) {
	if err := f.validator.Struct(credentials); err != nil {
		return nil, err
	}

	resp, err := f.api.Signup(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return f.begin(ctx, resp)
}

// Logout tells the API and clears the local session. The API call is best effort.
func (f *Flows) Logout(ctx context.Context) error {
	if err := f.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
	}
	return f.store.Logout(ctx)
}

func (f *Flows) begin(ctx context.Context, resp *LoginResponse) (*session.Session, error) {
	s := resp.Session()
	if s.AccessToken == "" {
		return nil, fmt.Errorf("[begin] %w", EmptyTokenPairErr)
	}
	if err := f.store.Login(ctx, s); err != nil {
		return &s, err
	}
	log.Info().Str("user_id", s.UserID).Str("email", s.Email).Msg("session started")
	return &s, nil
}

// countsAsAttempt is true for rejected credentials and requests that never got an answer.
// Server faults do not count against the user.
func countsAsAttempt(err error) bool {
	if status := apperrors.StatusCode(err); status != 0 {
		return status >= http.StatusBadRequest && status < http.StatusInternalServerError
	}
	return apperrors.KindOf(err) == apperrors.KindNetwork
}
