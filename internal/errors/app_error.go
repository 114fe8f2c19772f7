package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNetwork        Kind = "network"
	KindServer         Kind = "server"
	KindClient         Kind = "client"
	KindStorage        Kind = "storage"
	KindUnknown        Kind = "unknown"
)

// Severity only selects the log level, it never drives control flow.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError is the classified form of any failure surfaced to a user.
type AppError struct {
	Kind      Kind
	Severity  Severity
	Op        string
	Message   string
	Field     string // validation only
	Status    int    // network/server only
	Endpoint  string
	Timestamp time.Time
	Cause     error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the default severity for its kind.
func New(kind Kind, op, message string) *AppError {
	return &AppError{
		Kind:      kind,
		Severity:  defaultSeverity(kind),
		Op:        op,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap attaches a kind to err. An err that is already an AppError is returned as is.
func Wrap(kind Kind, op, message string, err error) *AppError {
	if err == nil {
		return nil
	}

	var typed *AppError
	if errors.As(err, &typed) {
		return typed
	}

	appErr := New(kind, op, message)
	appErr.Cause = err
	return appErr
}

// Validation builds a field level validation error.
func Validation(op, field, message string) *AppError {
	appErr := New(KindValidation, op, message)
	appErr.Field = field
	return appErr
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of err, classifying it when it is not an AppError yet.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Classify maps any error onto the taxonomy.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		classified := New(kindForStatus(apiErr.Status), "http", apiErr.Error())
		classified.Status = apiErr.Status
		classified.Endpoint = apiErr.Endpoint
		classified.Cause = err
		if apiErr.Status >= http.StatusInternalServerError {
			classified.Severity = SeverityHigh
		}
		return classified
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return Wrap(KindClient, "ratelimit", "too many attempts", err)
	case errors.Is(err, ErrNoRefreshToken),
		errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrInvalidCredential):
		return Wrap(KindAuthentication, "auth", err.Error(), err)
	case errors.Is(err, ErrUnknownRoute):
		return Wrap(KindClient, "routes", err.Error(), err)
	case errors.Is(err, ErrForbidden):
		return Wrap(KindAuthorization, "auth", err.Error(), err)
	case errors.Is(err, ErrStorageUnavailable):
		return Wrap(KindStorage, "storage", err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Wrap(KindNetwork, "http", "request did not complete", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(KindNetwork, "http", "transport failure", err)
	}

	return Wrap(KindUnknown, "unknown", err.Error(), err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= http.StatusInternalServerError:
		return KindServer
	case status >= http.StatusBadRequest:
		return KindClient
	}
	return KindUnknown
}

func defaultSeverity(kind Kind) Severity {
	switch kind {
	case KindValidation:
		return SeverityLow
	case KindServer:
		return SeverityHigh
	case KindStorage:
		return SeverityHigh
	}
	return SeverityMedium
}

// UserMessage returns the text shown to a user for err. Payload messages win over the
// per-kind fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	appErr := Classify(err)
	switch appErr.Kind {
	case KindValidation:
		return appErr.Message
	case KindAuthentication:
		return "Please log in to continue"
	case KindAuthorization:
		return "You do not have permission to perform this action"
	case KindNetwork:
		return "Connection error. Please check your internet connection"
	case KindServer:
		return "Server error. Please try again later"
	case KindStorage:
		return "Storage error. Unable to save data"
	case KindClient:
		if errors.Is(err, ErrRateLimited) {
			return "Too many attempts. Please wait before trying again"
		}
	}
	return "An unexpected error occurred"
}

// Log writes err at the level matching its severity.
func Log(err error) {
	appErr := Classify(err)
	if appErr == nil {
		return
	}

	var event *zerolog.Event
	switch appErr.Severity {
	case SeverityCritical, SeverityHigh:
		event = log.Error()
	case SeverityMedium:
		event = log.Warn()
	default:
		event = log.Info()
	}

	event = event.Str("kind", string(appErr.Kind)).
		Str("severity", string(appErr.Severity)).
		Str("op", appErr.Op)
	if appErr.Status != 0 {
		event = event.Int("status", appErr.Status).Str("endpoint", appErr.Endpoint)
	}
	if appErr.Field != "" {
		event = event.Str("field", appErr.Field)
	}
	if appErr.Cause != nil {
		event = event.AnErr("cause", appErr.Cause)
	}
	event.Msg(appErr.Message)
}
