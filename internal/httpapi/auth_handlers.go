package httpapi

import (
	"net/http"
	"time"

	"carelink.org/internal/audit"
	"carelink.org/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

type sessionResponse struct {
	User         auth.UserRecord   `json:"user"`
	Capabilities []auth.Capability `json:"capabilities"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	grant, err := a.auth.Authenticate(r.Context(), req.Username, req.Secret)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    grant.UserID,
		"role":       grant.Role,
		"expires_at": grant.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// Parsed here instead of in withAuth: logout must stay idempotent, so a
	// token whose session is already revoked cannot be bounced with 401.
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.auth.Revoke(r.Context(), token); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	grant, err := a.auth.Refresh(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"expires_at": grant.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:         principal.User,
		Capabilities: a.auth.Capabilities(principal.User.Role),
		ExpiresAt:    principal.Claims.ExpiresAt,
	})
}
