package httpapi

import (
	"net/http"
	"strings"

	"sala.org/internal/auth"
)

type levelTypeRequest struct {
	Code   string `json:"code"`
	NameEn string `json:"name_en"`
	NameKh string `json:"name_kh,omitempty"`
	// Pointer so an update can set the order to 0.
	LevelOrder         *int     `json:"level_order,omitempty"`
	IsActive           *bool    `json:"is_active,omitempty"`
	ManagedLocationIDs []string `json:"managed_location_type_ids,omitempty"`
}

func (a *API) handleLevelTypes(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/levels/types")
	store := a.store.Levels()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			lt, err := store.GetLevelType(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, lt)
			return
		}
		types, err := store.ListLevelTypes(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"level_types": types})
	case http.MethodPost:
		var req levelTypeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.NameEn) == "" {
			writeError(w, r, http.StatusBadRequest, "code and name_en are required")
			return
		}
		lt := &auth.LevelType{
			Code:     strings.TrimSpace(req.Code),
			NameEn:   req.NameEn,
			NameKh:   req.NameKh,
			IsActive: true,
		}
		if req.LevelOrder != nil {
			lt.LevelOrder = *req.LevelOrder
		}
		if err := store.CreateLevelType(r.Context(), lt); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if len(req.ManagedLocationIDs) > 0 {
			if err := store.SetCanManage(r.Context(), lt.ID, req.ManagedLocationIDs); err != nil {
				handleDomainError(w, r, err)
				return
			}
		}
		a.recordAudit(r, "level_type.created", "level_type", lt.ID, map[string]any{"code": lt.Code})
		writeJSON(w, http.StatusCreated, lt)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "level type id is required")
			return
		}
		var req levelTypeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		lt, err := store.GetLevelType(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&lt.Code, req.Code, &lt.NameEn, req.NameEn, &lt.NameKh, req.NameKh)
		if req.LevelOrder != nil {
			lt.LevelOrder = *req.LevelOrder
		}
		if req.IsActive != nil {
			lt.IsActive = *req.IsActive
		}
		if err := store.UpdateLevelType(r.Context(), lt); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if req.ManagedLocationIDs != nil {
			if err := store.SetCanManage(r.Context(), lt.ID, req.ManagedLocationIDs); err != nil {
				handleDomainError(w, r, err)
				return
			}
		}
		a.recordAudit(r, "level_type.updated", "level_type", lt.ID, nil)
		writeJSON(w, http.StatusOK, lt)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "level type id is required")
			return
		}
		if err := store.DeleteLevelType(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "level_type.deleted", "level_type", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

type userLevelRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	LevelTypeID    string `json:"level_type_id"`
	OrganizationID string `json:"organization_id"`
}

func (a *API) handleUserLevels(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/levels/user-levels")
	store := a.store.Levels()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			ul, err := store.GetUserLevel(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ul)
			return
		}
		levels, err := store.ListUserLevels(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_levels": levels})
	case http.MethodPost:
		var req userLevelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.LevelTypeID) == "" || strings.TrimSpace(req.OrganizationID) == "" {
			writeError(w, r, http.StatusBadRequest, "name, level_type_id and organization_id are required")
			return
		}
		ul := &auth.UserLevel{
			Name:           strings.TrimSpace(req.Name),
			Description:    req.Description,
			LevelTypeID:    req.LevelTypeID,
			OrganizationID: req.OrganizationID,
		}
		if err := store.CreateUserLevel(r.Context(), ul); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "user_level.created", "user_level", ul.ID, map[string]any{"name": ul.Name})
		writeJSON(w, http.StatusCreated, ul)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "user level id is required")
			return
		}
		var req userLevelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ul, err := store.GetUserLevel(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Name) != "" {
			ul.Name = strings.TrimSpace(req.Name)
		}
		if req.Description != "" {
			ul.Description = req.Description
		}
		if strings.TrimSpace(req.LevelTypeID) != "" {
			ul.LevelTypeID = req.LevelTypeID
		}
		if strings.TrimSpace(req.OrganizationID) != "" {
			ul.OrganizationID = req.OrganizationID
		}
		if err := store.UpdateUserLevel(r.Context(), ul); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "user_level.updated", "user_level", ul.ID, nil)
		writeJSON(w, http.StatusOK, ul)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "user level id is required")
			return
		}
		if err := store.DeleteUserLevel(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "user_level.deleted", "user_level", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}
