package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"sala.org/internal/audit"
	"sala.org/internal/auth"
	"sala.org/internal/directory"
	"sala.org/internal/obs"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	store    auth.Store
	dir      *directory.Service
	recorder audit.Recorder
	scope    *auth.ScopeChecker
	routes   *auth.RouteTable
	ready    ReadyProbe
	version  string
}

// Deps carries everything the API serves from.
type Deps struct {
	Auth     *auth.Service
	Store    auth.Store
	Dir      *directory.Service
	Recorder audit.Recorder
	Scope    *auth.ScopeChecker
	Routes   *auth.RouteTable
	Ready    ReadyProbe
	Version  string
}

func New(d Deps) *API {
	if d.Routes == nil {
		d.Routes = auth.DefaultRouteTable()
	}
	a := &API{
		mux:      http.NewServeMux(),
		auth:     d.Auth,
		store:    d.Store,
		dir:      d.Dir,
		recorder: d.Recorder,
		scope:    d.Scope,
		routes:   d.Routes,
		ready:    d.Ready,
		version:  d.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	a.mux.HandleFunc("/api/auth/users", a.handleUsers)
	a.mux.HandleFunc("/api/auth/users/", a.handleUsers)
	a.mux.HandleFunc("/api/auth/roles", a.handleRoles)
	a.mux.HandleFunc("/api/auth/roles/", a.handleRoles)
	a.mux.HandleFunc("/api/auth/permissions", a.handlePermissions)
	a.mux.HandleFunc("/api/auth/permissions/", a.handlePermissions)

	a.mux.HandleFunc("/api/locations/provinces", a.handleProvinces)
	a.mux.HandleFunc("/api/locations/provinces/", a.handleProvinces)
	a.mux.HandleFunc("/api/locations/districts", a.handleDistricts)
	a.mux.HandleFunc("/api/locations/districts/", a.handleDistricts)
	a.mux.HandleFunc("/api/locations/communes", a.handleCommunes)
	a.mux.HandleFunc("/api/locations/communes/", a.handleCommunes)
	a.mux.HandleFunc("/api/locations/villages", a.handleVillages)
	a.mux.HandleFunc("/api/locations/villages/", a.handleVillages)
	a.mux.HandleFunc("/api/locations/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/api/locations/organizations/", a.handleOrganizations)

	a.mux.HandleFunc("/api/staff", a.handleStaff)
	a.mux.HandleFunc("/api/staff/", a.handleStaff)
	a.mux.HandleFunc("/api/staff/transfer", a.handleStaffTransfer)

	a.mux.HandleFunc("/api/levels/types", a.handleLevelTypes)
	a.mux.HandleFunc("/api/levels/types/", a.handleLevelTypes)
	a.mux.HandleFunc("/api/levels/user-levels", a.handleUserLevels)
	a.mux.HandleFunc("/api/levels/user-levels/", a.handleUserLevels)

	a.mux.HandleFunc("/api/auth/active-logs", a.handleActiveLogs)
	a.mux.HandleFunc("/api/auth/active-logs/", a.handleActiveLogs)
	a.mux.HandleFunc("/api/auth/audit-logs", a.handleAuditLogs)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler is the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sala-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sala-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// recordAudit appends an audit entry best effort. Failures are logged and
// counted, never surfaced to the caller whose action already succeeded.
func (a *API) recordAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	var actor string
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		actor = principal.User.ID
	}
	a.recordAuditAs(r, actor, action, resourceType, resourceID, meta)
}

// recordAuditAs is recordAudit with an explicit actor, for paths where no
// principal is in context yet, such as login.
func (a *API) recordAuditAs(r *http.Request, actor, action, resourceType, resourceID string, meta map[string]any) {
	if a.recorder == nil {
		return
	}
	entry := &audit.Entry{
		ActorUserID:  actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		Metadata:     meta,
		RequestID:    RequestIDFromContext(r.Context()),
	}
	if err := a.recorder.Record(r.Context(), entry); err != nil {
		obs.CountAuditWriteFailure()
		obs.Log("error", "audit_write_failed", map[string]any{
			"action":     action,
			"resource":   resourceType,
			"error":      err.Error(),
			"request_id": entry.RequestID,
		})
	}
}
