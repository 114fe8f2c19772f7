package routes

import (
	"net/url"
	"slices"
	"strings"
)

// Outcome is what the guard decided for a navigation.
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToFallback
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToFallback:
		return "redirect_to_fallback"
	}
	return "unknown"
}

// Decision is the guard's answer. ReturnTo is set for RedirectToLogin.
type Decision struct {
	Outcome  Outcome
	ReturnTo string
}

// State is the slice of session state the guard reads.
type State struct {
	IsAuthenticated bool
	Role            string // empty when no role is attached
}

// Decide is the pure guard decision.
//
// An authenticated user without a role is allowed through role-restricted routes; callers that
// want those denied use Guard with DenyMissingRole.
func Decide(state State, requiredRoles []string, attemptedPath string) Decision {
	return decide(state, requiredRoles, attemptedPath, false)
}

func decide(state State, requiredRoles []string, attemptedPath string, denyMissingRole bool) Decision {
	if !state.IsAuthenticated {
		return Decision{Outcome: RedirectToLogin, ReturnTo: attemptedPath}
	}
	if len(requiredRoles) == 0 {
		return Decision{Outcome: Allow}
	}
	if state.Role == "" {
		if denyMissingRole {
			return Decision{Outcome: RedirectToFallback}
		}
		return Decision{Outcome: Allow}
	}
	if !slices.Contains(requiredRoles, state.Role) {
		return Decision{Outcome: RedirectToFallback}
	}
	return Decision{Outcome: Allow}
}

// Guard turns decisions into redirect targets.
type Guard struct {
	LoginPath       string
	FallbackPath    string
	DenyMissingRole bool
}

// NewGuard returns a Guard with the given entry points.
func NewGuard(loginPath, fallbackPath string) Guard {
	return Guard{LoginPath: loginPath, FallbackPath: fallbackPath}
}

// Check decides whether route may be opened at attemptedPath.
func (g Guard) Check(state State, route Route, attemptedPath string) Decision {
	if attemptedPath == "" {
		attemptedPath = route.Path
	}
	return decide(state, route.RequiredRoles, attemptedPath, g.DenyMissingRole)
}

// Target is where the client should go for d; "" for Allow.
func (g Guard) Target(d Decision) string {
	switch d.Outcome {
	case RedirectToLogin:
		return LoginURL(g.LoginPath, d.ReturnTo)
	case RedirectToFallback:
		return g.FallbackPath
	}
	return ""
}

// LoginURL builds the login entry point carrying the page to return to after login.
func LoginURL(loginPath, returnTo string) string {
	if returnTo == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"returnTo": {returnTo}}.Encode()
}

// ReturnPath extracts the returnTo parameter from a login URL, defaulting to fallback.
func ReturnPath(loginURL, fallback string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return fallback
	}
	// only local paths, never another origin
	if to := u.Query().Get("returnTo"); strings.HasPrefix(to, "/") && !strings.HasPrefix(to, "//") {
		return to
	}
	return fallback
}
