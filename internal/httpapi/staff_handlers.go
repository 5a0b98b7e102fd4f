package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sala.org/internal/auth"
	"sala.org/internal/directory"
)

type staffRequest struct {
	Code           string `json:"code"`
	NameEn         string `json:"name_en"`
	NameKh         string `json:"name_kh,omitempty"`
	Position       string `json:"position,omitempty"`
	OrganizationID string `json:"organization_id"`
	IsActive       *bool  `json:"is_active,omitempty"`
}

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/staff"), "/")
	parts := strings.Split(rest, "/")
	store := a.dir.Store().Staff()

	// /api/staff/{id}/history
	if len(parts) == 2 && parts[1] == "history" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		history, err := store.History(r.Context(), parts[0])
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
		return
	}
	var id string
	if rest != "" && len(parts) == 1 {
		id = parts[0]
	}

	switch r.Method {
	case http.MethodGet:
		if id != "" {
			st, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}
		if orgID := r.URL.Query().Get("organization_id"); orgID != "" {
			staff, err := store.ListByOrganization(r.Context(), orgID)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
			return
		}
		staff, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
	case http.MethodPost:
		var req staffRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.authorizeStaffScope(r, req.OrganizationID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		st := &directory.Staff{
			Code:           req.Code,
			NameEn:         req.NameEn,
			NameKh:         req.NameKh,
			Position:       req.Position,
			OrganizationID: req.OrganizationID,
		}
		if err := a.dir.CreateStaff(r.Context(), st); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "staff.created", "staff", st.ID, map[string]any{"code": st.Code})
		writeJSON(w, http.StatusCreated, st)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "staff id is required")
			return
		}
		var req staffRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		st, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := a.authorizeStaffScope(r, st.OrganizationID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&st.Code, req.Code, &st.NameEn, req.NameEn, &st.NameKh, req.NameKh)
		if req.Position != "" {
			st.Position = req.Position
		}
		if req.IsActive != nil {
			st.IsActive = *req.IsActive
		}
		if err := store.Update(r.Context(), st); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "staff.updated", "staff", st.ID, nil)
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "staff id is required")
			return
		}
		st, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := a.authorizeStaffScope(r, st.OrganizationID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "staff.deleted", "staff", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

type staffTransferRequest struct {
	StaffID          string `json:"staff_id"`
	ToOrganizationID string `json:"to_organization_id"`
	Reason           string `json:"reason,omitempty"`
}

// handleStaffTransfer moves a staff member between organizations. The caller
// must hold scope over both the current and the target organization.
func (a *API) handleStaffTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req staffTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.StaffID) == "" || strings.TrimSpace(req.ToOrganizationID) == "" {
		writeError(w, r, http.StatusBadRequest, "staff_id and to_organization_id are required")
		return
	}

	st, err := a.dir.Store().Staff().GetByID(r.Context(), req.StaffID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.authorizeStaffScope(r, st.OrganizationID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.authorizeStaffScope(r, req.ToOrganizationID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	transfer := directory.Transfer{
		StaffID:          req.StaffID,
		ToOrganizationID: req.ToOrganizationID,
		Reason:           req.Reason,
	}
	if principal != nil {
		transfer.RequestedBy = principal.User.ID
	}
	history, err := a.dir.TransferStaff(r.Context(), transfer)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.recordAudit(r, "staff.transferred", "staff", req.StaffID, map[string]any{
		"from_organization_id": st.OrganizationID,
		"to_organization_id":   req.ToOrganizationID,
	})
	writeJSON(w, http.StatusOK, history)
}

// authorizeStaffScope resolves the organization and applies the scope check.
func (a *API) authorizeStaffScope(r *http.Request, organizationID string) error {
	if a.scope == nil {
		return nil
	}
	org, err := a.store.Organizations().GetByID(r.Context(), organizationID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.ErrInvalidInput
		}
		return err
	}
	return a.authorizeScope(r, *org)
}
