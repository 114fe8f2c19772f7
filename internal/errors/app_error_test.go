package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestNewAPIError_ParsesEnvelope(t *testing.T) {
	body := []byte(`{"success":false,"error":{"code":"INVALID_CREDENTIALS","message":"Invalid email or password","details":{"email":["unknown"]}}}`)

	err := apperrors.NewAPIError(http.MethodPost, "/api/auth/login", http.StatusUnauthorized, body)

	require.Equal(t, "INVALID_CREDENTIALS", err.Code)
	require.Equal(t, "Invalid email or password", err.Message)
	require.Equal(t, []string{"unknown"}, err.Details["email"])
	require.Contains(t, err.Error(), "401")
}

func TestNewAPIError_NonJSONBody(t *testing.T) {
	err := apperrors.NewAPIError(http.MethodGet, "/api/me", http.StatusBadGateway, []byte("<html>bad gateway</html>"))

	require.Empty(t, err.Message)
	require.Contains(t, err.Error(), http.StatusText(http.StatusBadGateway))
}

func TestStatusCode_ThroughWrapping(t *testing.T) {
	apiErr := apperrors.NewAPIError(http.MethodGet, "/api/me", http.StatusUnauthorized, nil)
	wrapped := fmt.Errorf("outer: %w", apiErr)

	require.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(wrapped))
	require.Equal(t, 0, apperrors.StatusCode(fmt.Errorf("plain")))
}

func TestClassify_ByStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   apperrors.Kind
	}{
		{http.StatusUnauthorized, apperrors.KindAuthentication},
		{http.StatusForbidden, apperrors.KindAuthorization},
		{http.StatusBadRequest, apperrors.KindValidation},
		{http.StatusUnprocessableEntity, apperrors.KindValidation},
		{http.StatusConflict, apperrors.KindClient},
		{http.StatusInternalServerError, apperrors.KindServer},
		{http.StatusServiceUnavailable, apperrors.KindServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := apperrors.NewAPIError(http.MethodGet, "/api/x", tt.status, nil)
			classified := apperrors.Classify(err)
			require.Equal(t, tt.kind, classified.Kind)
			require.Equal(t, tt.status, classified.Status)
			require.Equal(t, "/api/x", classified.Endpoint)
		})
	}
}

func TestClassify_ServerErrorsAreHighSeverity(t *testing.T) {
	err := apperrors.NewAPIError(http.MethodGet, "/api/x", http.StatusInternalServerError, nil)
	require.Equal(t, apperrors.SeverityHigh, apperrors.Classify(err).Severity)
}

func TestClassify_Sentinels(t *testing.T) {
	require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(fmt.Errorf("x: %w", apperrors.ErrRefreshFailed)))
	require.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(apperrors.ErrNoRefreshToken))
	require.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(apperrors.ErrForbidden))
	require.Equal(t, apperrors.KindClient, apperrors.KindOf(apperrors.ErrRateLimited))
	require.Equal(t, apperrors.KindClient, apperrors.KindOf(apperrors.Wrapf(apperrors.ErrUnknownRoute, "%q", "/x")))
	require.Equal(t, apperrors.KindNetwork, apperrors.KindOf(context.DeadlineExceeded))
	require.Equal(t, apperrors.KindUnknown, apperrors.KindOf(fmt.Errorf("something odd")))
	require.Equal(t, apperrors.Kind(""), apperrors.KindOf(nil))
}

func TestWrap_KeepsExistingAppError(t *testing.T) {
	inner := apperrors.Validation("login", "email", "Invalid email address")
	wrapped := apperrors.Wrap(apperrors.KindStorage, "persist", "ignored", fmt.Errorf("ctx: %w", inner))

	require.Same(t, inner, wrapped)
	require.True(t, apperrors.IsKind(wrapped, apperrors.KindValidation))
	require.Nil(t, apperrors.Wrap(apperrors.KindStorage, "op", "msg", nil))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := apperrors.Wrap(apperrors.KindStorage, "session.persist", "failed to persist session", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, apperrors.SeverityHigh, err.Severity)
	require.Contains(t, err.Error(), "storage:session.persist")
}

func TestUserMessage(t *testing.T) {
	withMessage := apperrors.NewAPIError(http.MethodPost, "/api/auth/login", http.StatusUnauthorized,
		[]byte(`{"error":{"message":"Invalid email or password"}}`))
	require.Equal(t, "Invalid email or password", apperrors.UserMessage(withMessage))

	bare := apperrors.NewAPIError(http.MethodGet, "/api/me", http.StatusInternalServerError, nil)
	require.Equal(t, "Server error. Please try again later", apperrors.UserMessage(bare))

	require.Equal(t, "Connection error. Please check your internet connection", apperrors.UserMessage(context.Canceled))
	require.Equal(t, "Too many attempts. Please wait before trying again", apperrors.UserMessage(apperrors.ErrRateLimited))
	require.Equal(t, "Password too short", apperrors.UserMessage(apperrors.Validation("signup", "password", "Password too short")))
	require.Empty(t, apperrors.UserMessage(nil))
}
