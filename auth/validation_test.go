package auth_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-client/auth"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) auth.FieldErrors {
	t.Helper()
	var fields auth.FieldErrors
	require.True(t, errors.As(err, &fields), "expected field errors, got %v", err)
	return fields
}

func TestValidator_ValidCredentials(t *testing.T) {
	v := auth.NewValidator()
	require.NoError(t, v.Struct(auth.Credentials{Email: "demo@example.com", Password: "whatever1"}))
}

func TestValidator_CredentialMessages(t *testing.T) {
	v := auth.NewValidator()

	fields := fieldErrors(t, v.Struct(auth.Credentials{Email: "not-an-email", Password: "short"}))
	require.Len(t, fields, 2)

	msg, ok := fields.Field("email")
	require.True(t, ok)
	require.Equal(t, "Invalid email address", msg)

	msg, ok = fields.Field("password")
	require.True(t, ok)
	require.Equal(t, "password must be at least 8 characters", msg)
}

func TestValidator_Required(t *testing.T) {
	fields := fieldErrors(t, auth.NewValidator().Struct(auth.Credentials{}))

	msg, ok := fields.Field("email")
	require.True(t, ok)
	require.Equal(t, "email is required", msg)
	_, ok = fields.Field("password")
	require.True(t, ok)
}

func TestValidator_SignupPasswordRules(t *testing.T) {
	v := auth.NewValidator()
	base := auth.SignupCredentials{Email: "new@example.com", Name: "New User", Password: "Password123", ConfirmPassword: "Password123"}
	require.NoError(t, v.Struct(base))

	weak := base
	weak.Password, weak.ConfirmPassword = "password123", "password123"
	msg, ok := fieldErrors(t, v.Struct(weak)).Field("password")
	require.True(t, ok)
	require.Contains(t, msg, "uppercase")

	mismatch := base
	mismatch.ConfirmPassword = "Password124"
	fields := fieldErrors(t, v.Struct(mismatch))
	require.Len(t, fields, 1)
	msg, ok = fields.Field("confirmPassword")
	require.True(t, ok)
	require.Equal(t, "Passwords don't match", msg)
}

func TestValidator_NameLength(t *testing.T) {
	v := auth.NewValidator()
	c := auth.SignupCredentials{Email: "new@example.com", Name: "N", Password: "Password123", ConfirmPassword: "Password123"}

	msg, ok := fieldErrors(t, v.Struct(c)).Field("name")
	require.True(t, ok)
	require.Equal(t, "name must be at least 2 characters", msg)
}

func TestFieldErrors_AreValidationErrors(t *testing.T) {
	err := auth.NewValidator().Struct(auth.Credentials{Email: "x"})

	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	require.Contains(t, err.Error(), "email: Invalid email address")
}
