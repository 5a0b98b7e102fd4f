package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sala.org/internal/audit"
	"sala.org/internal/auth"
)

// handleActiveLogs lists login sessions and closes them. PUT on
// /api/auth/active-logs/{id} stamps the end time; a second close is a
// conflict.
func (a *API) handleActiveLogs(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/auth/active-logs")
	store := a.store.Sessions()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			sess, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, sess)
			return
		}
		filter := auth.SessionFilter{
			UserID: r.URL.Query().Get("user_id"),
		}
		if since, err := parseTimeParam(r, "since"); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		} else if since != nil {
			filter.Since = since
		}
		if until, err := parseTimeParam(r, "until"); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		} else if until != nil {
			filter.Until = until
		}
		sessions, err := store.List(r.Context(), filter)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "session id is required")
			return
		}
		if err := store.Close(r.Context(), id, time.Now().UTC()); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "session.closed", "session", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "closed"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	filter := audit.Filter{
		ActorUserID:  r.URL.Query().Get("actor_user_id"),
		ResourceType: r.URL.Query().Get("resource_type"),
	}
	if since, err := parseTimeParam(r, "since"); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	} else if since != nil {
		filter.Since = since
	}
	if until, err := parseTimeParam(r, "until"); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	} else if until != nil {
		filter.Until = until
	}
	limit, err := parseLimitParam(r, 100, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	entries, err := a.recorder.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New(name + " must be RFC3339")
	}
	return &t, nil
}

func parseLimitParam(r *http.Request, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 || val > max {
		return 0, errors.New("limit must be between 1 and " + strconv.Itoa(max))
	}
	return val, nil
}
