package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Authentication errors
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrRefreshFailed     = errors.New("token refresh failed")
	ErrInvalidCredential = errors.New("invalid credentials")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Rate limiting
	ErrRateLimited = errors.New("too many attempts")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnsupportedDriver  = errors.New("unsupported storage driver")

	// Navigation errors
	ErrUnknownRoute = errors.New("unknown route")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
