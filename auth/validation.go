package auth

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// FieldErrors is the set of field level failures for one form. Each entry is a validation
// AppError naming the offending field by its JSON name.
type FieldErrors []*apperrors.AppError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() []error {
	errs := make([]error, 0, len(fe))
	for _, e := range fe {
		errs = append(errs, e)
	}
	return errs
}

// Field returns the message for the named field, if it failed.
func (fe FieldErrors) Field(name string) (string, bool) {
	for _, e := range fe {
		if e.Field == name {
			return e.Message, true
		}
	}
	return "", false
}

// Validator checks credential forms before anything is sent to the API.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the password strength rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "":
			return fld.Name
		case "-":
			return lowerFirst(fld.Name)
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns FieldErrors when any rule fails.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrap(apperrors.KindValidation, "validate", "invalid form", err)
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperrors.Validation("validate", fe.Field(), fieldMessage(fe)))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "password":
		return "Password must contain at least one uppercase letter, one lowercase letter and one number"
	case "eqfield":
		return "Passwords don't match"
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func strongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
