package mockapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         *User  `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type workspaceRequest struct {
	Name string `json:"name"`
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type ctxKey string

const ctxKeyClaims ctxKey = "mockapi_claims"

func claimsFromContext(ctx context.Context) *accessClaims {
	c, _ := ctx.Value(ctxKeyClaims).(*accessClaims)
	return c
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "Invalid request format")
		return
	}

	user, err := s.users.GetByEmail(strings.ToLower(req.Email))
	if err != nil || !CheckPasswordHash(req.Password, user.PasswordHash) {
		log.Debug().Str("email", req.Email).Msg("failed login attempt")
		writeError(w, http.StatusUnauthorized, errCodeInvalidCreds, "Invalid email or password")
		return
	}

	s.startSession(w, user)
}

func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "Invalid request format")
		return
	}

	details := map[string][]string{}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		details["email"] = append(details["email"], "Invalid email address")
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		details["name"] = append(details["name"], "Name must be at least 2 characters")
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		details["password"] = append(details["password"], err.Error())
	}
	if len(details) > 0 {
		writeErrorDetails(w, http.StatusUnprocessableEntity, errCodeValidation, "Validation failed", details)
		return
	}

	if _, err := s.users.GetByEmail(strings.ToLower(req.Email)); err == nil {
		writeError(w, http.StatusConflict, errCodeConflict, "Email is already registered")
		return
	}

	user, err := s.AddUser(SeedUser{Email: req.Email, Name: req.Name, Password: req.Password, Role: RoleUser})
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Unable to create user")
		return
	}
	s.startSession(w, user)
}

func (s *Server) startSession(w http.ResponseWriter, user *User) {
	access, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Error creating tokens")
		return
	}
	refresh, err := s.refresh.Create(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Error creating tokens")
		return
	}
	csrf, err := randomHex(16)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Error creating tokens")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrf,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	snap := s.snapshot(user)
	writeJSON(w, http.StatusOK, loginResponse{User: &snap, Token: access, RefreshToken: refresh})
}

func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if s.refreshFailing() {
		writeError(w, http.StatusUnauthorized, errCodeRefreshRejected, "Refresh token rejected")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "Invalid request format")
		return
	}

	stored, err := s.refresh.Consume(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errCodeRefreshRejected, "Invalid refresh token")
		return
	}
	user, err := s.users.GetByID(stored.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errCodeRefreshRejected, "Invalid refresh token")
		return
	}

	access, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Error creating tokens")
		return
	}
	next, err := s.refresh.Create(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "Error creating tokens")
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Token: access, RefreshToken: next})
}

// LogoutHandler revokes the presented access token and the user's refresh token. It always
// succeeds so clients can clear their state regardless.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if raw := extractToken(r); raw != "" {
		if claims, err := s.tokens.Verify(raw); err == nil {
			s.tokens.Revoke(claims)
			s.refresh.DeleteForUser(claims.Subject)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": s.snapshot(user)})
}

func (s *Server) ListWorkspacesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": s.snapshot(user).Workspaces})
}

func (s *Server) CreateWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeErrorDetails(w, http.StatusBadRequest, errCodeValidation, "Workspace name is required",
			map[string][]string{"name": {"Workspace name is required"}})
		return
	}

	s.mu.Lock()
	user.Workspaces = append(user.Workspaces, req.Name)
	workspaces := append([]string(nil), user.Workspaces...)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"workspaces": workspaces})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*User, bool) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "Authentication required")
		return nil, false
	}
	user, err := s.users.GetByID(claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// snapshot copies u so it can be encoded while workspaces are being added.
func (s *Server) snapshot(u *User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	c.Workspaces = append([]string{}, u.Workspaces...)
	return c
}

// BearerMiddleware rejects requests without a valid access token.
func (s *Server) BearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "Authentication required")
			return
		}
		claims, err := s.tokens.Verify(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected access token")
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "Token expired or invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
	})
}

// CSRFMiddleware enforces the double submit cookie on state changing methods.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.RequireCSRF || !stateChanging(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(CSRFCookieName)
		header := r.Header.Get(CSRFHeaderName)
		if err != nil || header == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, errCodeCSRF, "CSRF token missing or invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func extractToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string][]string) {
	writeJSON(w, status, errorEnvelope{
		Error: errorBody{Code: code, Message: message, Details: details},
	})
}
