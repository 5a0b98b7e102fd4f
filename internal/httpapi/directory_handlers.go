package httpapi

import (
	"net/http"
	"strings"

	"sala.org/internal/auth"
	"sala.org/internal/directory"
)

// Provinces ------------------------------------------------------------------

type provinceRequest struct {
	Code     string `json:"code"`
	NameEn   string `json:"name_en"`
	NameKh   string `json:"name_kh,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (a *API) handleProvinces(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/locations/provinces")
	store := a.dir.Store().Provinces()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			p, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
			return
		}
		provinces, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"provinces": provinces})
	case http.MethodPost:
		var req provinceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p := &directory.Province{Code: req.Code, NameEn: req.NameEn, NameKh: req.NameKh}
		if err := a.dir.CreateProvince(r.Context(), p); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "province.created", "province", p.ID, map[string]any{"code": p.Code})
		writeJSON(w, http.StatusCreated, p)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "province id is required")
			return
		}
		var req provinceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&p.Code, req.Code, &p.NameEn, req.NameEn, &p.NameKh, req.NameKh)
		if req.IsActive != nil {
			p.IsActive = *req.IsActive
		}
		if err := store.Update(r.Context(), p); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "province.updated", "province", p.ID, nil)
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "province id is required")
			return
		}
		// Cascades to every district, commune and village underneath.
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "province.deleted", "province", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// Districts ------------------------------------------------------------------

type districtRequest struct {
	Code       string `json:"code"`
	NameEn     string `json:"name_en"`
	NameKh     string `json:"name_kh,omitempty"`
	ProvinceID string `json:"province_id"`
	IsActive   *bool  `json:"is_active,omitempty"`
}

func (a *API) handleDistricts(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/locations/districts")
	store := a.dir.Store().Districts()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			d, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, d)
			return
		}
		if provinceID := r.URL.Query().Get("province_id"); provinceID != "" {
			districts, err := store.ListByProvince(r.Context(), provinceID)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"districts": districts})
			return
		}
		districts, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"districts": districts})
	case http.MethodPost:
		var req districtRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		d := &directory.District{Code: req.Code, NameEn: req.NameEn, NameKh: req.NameKh, ProvinceID: req.ProvinceID}
		if err := a.dir.CreateDistrict(r.Context(), d); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "district.created", "district", d.ID, map[string]any{"code": d.Code})
		writeJSON(w, http.StatusCreated, d)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "district id is required")
			return
		}
		var req districtRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		d, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&d.Code, req.Code, &d.NameEn, req.NameEn, &d.NameKh, req.NameKh)
		if req.ProvinceID != "" {
			d.ProvinceID = req.ProvinceID
		}
		if req.IsActive != nil {
			d.IsActive = *req.IsActive
		}
		if err := store.Update(r.Context(), d); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "district.updated", "district", d.ID, nil)
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "district id is required")
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "district.deleted", "district", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// Communes -------------------------------------------------------------------

type communeRequest struct {
	Code       string `json:"code"`
	NameEn     string `json:"name_en"`
	NameKh     string `json:"name_kh,omitempty"`
	DistrictID string `json:"district_id"`
	IsActive   *bool  `json:"is_active,omitempty"`
}

func (a *API) handleCommunes(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/locations/communes")
	store := a.dir.Store().Communes()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			c, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
			return
		}
		if districtID := r.URL.Query().Get("district_id"); districtID != "" {
			communes, err := store.ListByDistrict(r.Context(), districtID)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"communes": communes})
			return
		}
		communes, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"communes": communes})
	case http.MethodPost:
		var req communeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c := &directory.Commune{Code: req.Code, NameEn: req.NameEn, NameKh: req.NameKh, DistrictID: req.DistrictID}
		if err := a.dir.CreateCommune(r.Context(), c); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "commune.created", "commune", c.ID, map[string]any{"code": c.Code})
		writeJSON(w, http.StatusCreated, c)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "commune id is required")
			return
		}
		var req communeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&c.Code, req.Code, &c.NameEn, req.NameEn, &c.NameKh, req.NameKh)
		if req.DistrictID != "" {
			c.DistrictID = req.DistrictID
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		if err := store.Update(r.Context(), c); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "commune.updated", "commune", c.ID, nil)
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "commune id is required")
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "commune.deleted", "commune", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// Villages -------------------------------------------------------------------

type villageRequest struct {
	Code      string `json:"code"`
	NameEn    string `json:"name_en"`
	NameKh    string `json:"name_kh,omitempty"`
	CommuneID string `json:"commune_id"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

func (a *API) handleVillages(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/locations/villages")
	store := a.dir.Store().Villages()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			v, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		}
		if communeID := r.URL.Query().Get("commune_id"); communeID != "" {
			villages, err := store.ListByCommune(r.Context(), communeID)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"villages": villages})
			return
		}
		villages, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"villages": villages})
	case http.MethodPost:
		var req villageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		v := &directory.Village{Code: req.Code, NameEn: req.NameEn, NameKh: req.NameKh, CommuneID: req.CommuneID}
		if err := a.dir.CreateVillage(r.Context(), v); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "village.created", "village", v.ID, map[string]any{"code": v.Code})
		writeJSON(w, http.StatusCreated, v)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "village id is required")
			return
		}
		var req villageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		v, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&v.Code, req.Code, &v.NameEn, req.NameEn, &v.NameKh, req.NameKh)
		if req.CommuneID != "" {
			v.CommuneID = req.CommuneID
		}
		if req.IsActive != nil {
			v.IsActive = *req.IsActive
		}
		if err := store.Update(r.Context(), v); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "village.updated", "village", v.ID, nil)
		writeJSON(w, http.StatusOK, v)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "village id is required")
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "village.deleted", "village", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// Organizations --------------------------------------------------------------

type organizationRequest struct {
	Code           string `json:"code"`
	NameEn         string `json:"name_en"`
	NameKh         string `json:"name_kh,omitempty"`
	LocationTypeID string `json:"location_type_id"`
	ProvinceID     string `json:"province_id"`
	DistrictID     string `json:"district_id"`
	CommuneID      string `json:"commune_id,omitempty"`
	VillageID      string `json:"village_id,omitempty"`
	IsActive       *bool  `json:"is_active,omitempty"`
}

// handleOrganizations enforces the hierarchical scope check on every
// mutation: the caller's level must manage the target's location type and
// the target must sit inside the caller's area.
func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	id := tailID(r.URL.Path, "/api/locations/organizations")
	store := a.store.Organizations()
	switch r.Method {
	case http.MethodGet:
		if id != "" {
			o, err := store.GetByID(r.Context(), id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
		orgs, err := store.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
	case http.MethodPost:
		var req organizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.NameEn) == "" ||
			req.LocationTypeID == "" || req.ProvinceID == "" || req.DistrictID == "" {
			writeError(w, r, http.StatusBadRequest, "code, name_en, location_type_id, province_id and district_id are required")
			return
		}
		principal, _ := auth.PrincipalFromContext(r.Context())
		org := &auth.Organization{
			Code:           strings.TrimSpace(req.Code),
			NameEn:         req.NameEn,
			NameKh:         req.NameKh,
			IsActive:       true,
			LocationTypeID: req.LocationTypeID,
			ProvinceID:     req.ProvinceID,
			DistrictID:     req.DistrictID,
			CommuneID:      req.CommuneID,
			VillageID:      req.VillageID,
		}
		if principal != nil {
			org.CreatedBy = principal.User.ID
		}
		if err := a.dir.ValidateOrganizationPlacement(r.Context(), org.ProvinceID, org.DistrictID, org.CommuneID, org.VillageID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := a.authorizeScope(r, *org); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := store.Create(r.Context(), org); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "organization.created", "organization", org.ID, map[string]any{"code": org.Code})
		writeJSON(w, http.StatusCreated, org)
	case http.MethodPut:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "organization id is required")
			return
		}
		var req organizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := a.authorizeScope(r, *org); err != nil {
			handleDomainError(w, r, err)
			return
		}
		applyNames(&org.Code, req.Code, &org.NameEn, req.NameEn, &org.NameKh, req.NameKh)
		if req.LocationTypeID != "" {
			org.LocationTypeID = req.LocationTypeID
		}
		if req.ProvinceID != "" {
			org.ProvinceID = req.ProvinceID
		}
		if req.DistrictID != "" {
			org.DistrictID = req.DistrictID
		}
		if req.CommuneID != "" {
			org.CommuneID = req.CommuneID
		}
		if req.VillageID != "" {
			org.VillageID = req.VillageID
		}
		if req.IsActive != nil {
			org.IsActive = *req.IsActive
		}
		// Moving any ancestry id re-checks the whole chain so a partial
		// update cannot leave the links disagreeing.
		if err := a.dir.ValidateOrganizationPlacement(r.Context(), org.ProvinceID, org.DistrictID, org.CommuneID, org.VillageID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
			org.UpdatedBy = principal.User.ID
		}
		if err := store.Update(r.Context(), org); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "organization.updated", "organization", org.ID, nil)
		writeJSON(w, http.StatusOK, org)
	case http.MethodDelete:
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "organization id is required")
			return
		}
		org, err := store.GetByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := a.authorizeScope(r, *org); err != nil {
			handleDomainError(w, r, err)
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.recordAudit(r, "organization.deleted", "organization", id, nil)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) authorizeScope(r *http.Request, target auth.Organization) error {
	if a.scope == nil {
		return nil
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.ErrPermissionDenied
	}
	return a.scope.Authorize(r.Context(), principal.User.ID, target)
}

func applyNames(code *string, newCode string, nameEn *string, newEn string, nameKh *string, newKh string) {
	if strings.TrimSpace(newCode) != "" {
		*code = strings.TrimSpace(newCode)
	}
	if newEn != "" {
		*nameEn = newEn
	}
	if newKh != "" {
		*nameKh = newKh
	}
}
