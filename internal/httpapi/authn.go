package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"carelink.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Logout is listed here so an already-revoked token can still log out
// cleanly; the handler parses the bearer token itself.
var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

// withAuth validates the bearer token on every non-public path and attaches
// the resulting principal to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.auth.Validate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpired):
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireCapability resolves the principal and checks the capability gate.
// On failure it writes the error response and reports false.
func (a *API) requireCapability(w http.ResponseWriter, r *http.Request, capability auth.Capability) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if decision := a.auth.Authorize(principal.User.Role, capability); !decision.Allowed {
		writeError(w, r, http.StatusForbidden, "capability not granted")
		return auth.Principal{}, false
	}
	return principal, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
