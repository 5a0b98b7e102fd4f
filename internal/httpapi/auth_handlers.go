package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sala.org/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Location string `json:"location,omitempty"`
}

type loginPermission struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type loginRole struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Code        string            `json:"code"`
	Permissions []loginPermission `json:"permissions"`
}

// loginFailure writes the uniform {success:false, error} body.
func loginFailure(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		loginFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		loginFailure(w, http.StatusBadRequest, "username and password are required")
		return
	}
	meta := auth.LoginMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Location:  req.Location,
	}
	result, err := a.auth.Login(r.Context(), req.Username, req.Password, meta)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// One body for every failure mode.
			loginFailure(w, http.StatusUnauthorized, "Invalid credentials or user inactive")
			return
		}
		handleDomainError(w, r, err)
		return
	}
	roles := make([]loginRole, 0, len(result.Grants))
	for _, g := range result.Grants {
		role := loginRole{
			ID:          g.Role.ID,
			Name:        g.Role.NameEn,
			Code:        g.Role.Code,
			Permissions: make([]loginPermission, 0, len(g.Permissions)),
		}
		for _, p := range g.Permissions {
			role.Permissions = append(role.Permissions, loginPermission{ID: p.ID, Name: p.NameEn, Code: p.Code})
		}
		roles = append(roles, role)
	}
	// No principal is in context on the public login path; the freshly
	// authenticated user is the actor.
	a.recordAuditAs(r, result.User.ID, "auth.login", "user", result.User.ID, map[string]any{
		"username": result.User.Username,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"session_id": result.SessionID,
		"user": map[string]any{
			"id":       result.User.ID,
			"username": result.User.Username,
			"roles":    roles,
		},
	})
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, r, http.StatusBadRequest, "session_id is required")
		return
	}
	if err := a.auth.Logout(r.Context(), req.SessionID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.recordAudit(r, "auth.logout", "session", req.SessionID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleMe returns the verified caller with the resolved permission union.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"roles":       principal.RoleCodes(),
		"permissions": principal.PermissionCodes(),
	})
}
