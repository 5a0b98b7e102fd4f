package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sala.org/internal/auth"
	"sala.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
}

// withAuth authenticates every non-public request and enforces the route
// table. An unmapped route passes once the bearer token verifies; a mapped
// one additionally requires its permission.
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

		principal, err := a.auth.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			} else {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		if perm := a.routes.Lookup(r.URL.Path, r.Method); perm != "" {
			if !principal.HasPermission(perm) {
				obs.CountPermissionDenial()
				obs.Log("info", "permission_denied", map[string]any{
					"user_id":    principal.User.ID,
					"permission": perm,
					"path":       r.URL.Path,
					"method":     r.Method,
					"request_id": RequestIDFromContext(r.Context()),
				})
				writeError(w, r, http.StatusForbidden, "permission denied")
				return
			}
		}

		// Internal trust boundary: handlers behind this gate may read the
		// verified caller id from the header as well as the context.
		r.Header.Set("User-Id", principal.User.ID)
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("authorization header is required")
	}
	if len(header) <= len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("bearer token is empty")
	}
	return token, nil
}
