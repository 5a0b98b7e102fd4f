package httpapi

import (
	"net/http"
	"strings"

	"sala.org/internal/auth"
)

// Users ----------------------------------------------------------------------

type userRequest struct {
	Username       string   `json:"username"`
	Password       string   `json:"password,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	UserLevelID    string   `json:"user_level_id,omitempty"`
	RoleIDs        []string `json:"role_ids,omitempty"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/auth/users")
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			user, err := a.store.Users().GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			grants, err := a.store.Users().GrantsForUser(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"user": user, "roles": grants})
			return
		}
		users, err := a.store.Users().List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			writeError(w, r, http.StatusBadRequest, "username and password are required")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "password could not be hashed")
			return
		}
		user := &auth.User{
			Username:       strings.TrimSpace(req.Username),
			PasswordHash:   hash,
			IsActive:       true,
			OrganizationID: req.OrganizationID,
			UserLevelID:    req.UserLevelID,
		}
		if err := a.store.Users().Create(r.Context(), user); err != nil {
			handleDomainError(w, r, err)
			return
		}
		for _, roleID := range req.RoleIDs {
			if err := a.store.Users().AssignRole(r.Context(), user.ID, roleID); err != nil {
				handleDomainError(w, r, err)
				return
			}
		}
		a.recordAudit(r, "user.created", "user", user.ID, map[string]any{"username": user.Username})
		writeJSON(w, http.StatusCreated, user)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "user id is required")
			return
		}
		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.store.Users().GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Username) != "" {
			user.Username = strings.TrimSpace(req.Username)
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.OrganizationID != "" {
			user.OrganizationID = req.OrganizationID
		}
		if req.UserLevelID != "" {
			user.UserLevelID = req.UserLevelID
		}
		if err := a.store.Users().Update(r.Context(), user); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "user.updated", "user", user.ID, nil)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "user id is required")
			return
		}
		if err := a.store.Users().Deactivate(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "user.deactivated", "user", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// Roles ----------------------------------------------------------------------

type roleRequest struct {
	Code        string `json:"code"`
	NameEn      string `json:"name_en"`
	NameKh      string `json:"name_kh,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

type rolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/auth/roles"), "/")
	parts := strings.Split(rest, "/")

	// /api/auth/roles/{id}/permissions
	if len(parts) == 2 && parts[1] == "permissions" {
		a.handleRolePermissions(w, r, parts[0])
		return
	}
	var id string
	if rest != "" && len(parts) == 1 {
		id = parts[0]
	}

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			role, err := a.store.Roles().GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			perms, err := a.store.Roles().PermissionsForRole(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"role": role, "permissions": perms})
			return
		}
		roles, err := a.store.Roles().List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.NameEn) == "" {
			writeError(w, r, http.StatusBadRequest, "code and name_en are required")
			return
		}
		role := &auth.Role{
			Code:        strings.TrimSpace(req.Code),
			NameEn:      req.NameEn,
			NameKh:      req.NameKh,
			Description: req.Description,
			IsActive:    true,
		}
		if err := a.store.Roles().Create(r.Context(), role); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "role.created", "role", role.ID, map[string]any{"code": role.Code})
		writeJSON(w, http.StatusCreated, role)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "role id is required")
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.store.Roles().GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Code) != "" {
			role.Code = strings.TrimSpace(req.Code)
		}
		if req.NameEn != "" {
			role.NameEn = req.NameEn
		}
		if req.NameKh != "" {
			role.NameKh = req.NameKh
		}
		if req.Description != "" {
			role.Description = req.Description
		}
		if req.IsActive != nil {
			role.IsActive = *req.IsActive
		}
		if err := a.store.Roles().Update(r.Context(), role); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "role.updated", "role", role.ID, nil)
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "role id is required")
			return
		}
		if err := a.store.Roles().Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "role.deleted", "role", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		perms, err := a.store.Roles().PermissionsForRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPut:
		var req rolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.store.Roles().ReplacePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "role.permissions_replaced", "role", roleID, map[string]any{
			"permission_count": len(req.PermissionIDs),
		})
		perms, err := a.store.Roles().PermissionsForRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// Permissions ----------------------------------------------------------------

type permissionRequest struct {
	Code     string `json:"code"`
	NameEn   string `json:"name_en"`
	NameKh   string `json:"name_kh,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/auth/permissions"), "/")

	if rest == "group" || strings.HasPrefix(rest, "group/") {
		groupID := strings.Trim(strings.TrimPrefix(rest, "group"), "/")
		if strings.Contains(groupID, "/") {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		a.handlePermissionGroups(w, r, groupID)
		return
	}
	var id string
	if rest != "" && !strings.Contains(rest, "/") {
		id = rest
	}

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			perm, err := a.store.Permissions().GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, perm)
			return
		}
		perms, err := a.store.Permissions().List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPost:
		var req permissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.NameEn) == "" {
			writeError(w, r, http.StatusBadRequest, "code and name_en are required")
			return
		}
		perm := &auth.Permission{
			Code:     strings.TrimSpace(req.Code),
			NameEn:   req.NameEn,
			NameKh:   req.NameKh,
			GroupID:  req.GroupID,
			IsActive: true,
		}
		if err := a.store.Permissions().Create(r.Context(), perm); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission.created", "permission", perm.ID, map[string]any{"code": perm.Code})
		writeJSON(w, http.StatusCreated, perm)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "permission id is required")
			return
		}
		var req permissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.store.Permissions().GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if strings.TrimSpace(req.Code) != "" {
			perm.Code = strings.TrimSpace(req.Code)
		}
		if req.NameEn != "" {
			perm.NameEn = req.NameEn
		}
		if req.NameKh != "" {
			perm.NameKh = req.NameKh
		}
		if req.GroupID != "" {
			perm.GroupID = req.GroupID
		}
		if req.IsActive != nil {
			perm.IsActive = *req.IsActive
		}
		if err := a.store.Permissions().Update(r.Context(), perm); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission.updated", "permission", perm.ID, nil)
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "permission id is required")
			return
		}
		if err := a.store.Permissions().Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission.deleted", "permission", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

type permissionGroupRequest struct {
	Code   string `json:"code"`
	NameEn string `json:"name_en"`
	NameKh string `json:"name_kh,omitempty"`
}

// handlePermissionGroups lists permissions bucketed by display group and
// covers group CRUD.
func (a *API) handlePermissionGroups(w http.ResponseWriter, r *http.Request, groupID string) {
	switch r.Method {
	case http.MethodGet:
		groups, err := a.store.Permissions().ListGroups(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		perms, err := a.store.Permissions().List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		byGroup := make(map[string][]auth.Permission)
		for _, p := range perms {
			byGroup[p.GroupID] = append(byGroup[p.GroupID], p)
		}
		type groupedPermissions struct {
			Group       auth.PermissionGroup `json:"group"`
			Permissions []auth.Permission    `json:"permissions"`
		}
		out := make([]groupedPermissions, 0, len(groups))
		for _, g := range groups {
			out = append(out, groupedPermissions{Group: g, Permissions: byGroup[g.ID]})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"groups":    out,
			"ungrouped": byGroup[""],
		})
	case http.MethodPost:
		var req permissionGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.NameEn) == "" {
			writeError(w, r, http.StatusBadRequest, "code and name_en are required")
			return
		}
		group := &auth.PermissionGroup{
			Code:   strings.TrimSpace(req.Code),
			NameEn: req.NameEn,
			NameKh: req.NameKh,
		}
		if err := a.store.Permissions().CreateGroup(r.Context(), group); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission_group.created", "permission_group", group.ID, map[string]any{"code": group.Code})
		writeJSON(w, http.StatusCreated, group)
	case http.MethodPut:
		if groupID == "" {
			writeError(w, r, http.StatusBadRequest, "permission group id is required")
			return
		}
		var req permissionGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.store.Permissions().GetGroup(r.Context(), groupID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&group.Code, req.Code, &group.NameEn, req.NameEn, &group.NameKh, req.NameKh)
		if err := a.store.Permissions().UpdateGroup(r.Context(), group); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission_group.updated", "permission_group", group.ID, nil)
		writeJSON(w, http.StatusOK, group)
	case http.MethodDelete:
		if groupID == "" {
			writeError(w, r, http.StatusBadRequest, "permission group id is required")
			return
		}
		if err := a.store.Permissions().DeleteGroup(r.Context(), groupID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "permission_group.deleted", "permission_group", groupID, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}
