package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service validates input before it reaches storage. Referential integrity
// itself is enforced by the store; this layer rejects requests that could
// never succeed.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Store() Store { return s.store }

func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, pairs[i])
		}
	}
	return nil
}

func (s *Service) CreateProvince(ctx context.Context, p *Province) error {
	if err := requireFields("code", p.Code, "name_en", p.NameEn); err != nil {
		return err
	}
	p.IsActive = true
	return s.store.Provinces().Create(ctx, p)
}

func (s *Service) CreateDistrict(ctx context.Context, d *District) error {
	if err := requireFields("code", d.Code, "name_en", d.NameEn, "province_id", d.ProvinceID); err != nil {
		return err
	}
	if _, err := s.store.Provinces().GetByID(ctx, d.ProvinceID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: province does not exist", ErrInvalidInput)
		}
		return err
	}
	d.IsActive = true
	return s.store.Districts().Create(ctx, d)
}

func (s *Service) CreateCommune(ctx context.Context, c *Commune) error {
	if err := requireFields("code", c.Code, "name_en", c.NameEn, "district_id", c.DistrictID); err != nil {
		return err
	}
	if _, err := s.store.Districts().GetByID(ctx, c.DistrictID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: district does not exist", ErrInvalidInput)
		}
		return err
	}
	c.IsActive = true
	return s.store.Communes().Create(ctx, c)
}

func (s *Service) CreateVillage(ctx context.Context, v *Village) error {
	if err := requireFields("code", v.Code, "name_en", v.NameEn, "commune_id", v.CommuneID); err != nil {
		return err
	}
	if _, err := s.store.Communes().GetByID(ctx, v.CommuneID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: commune does not exist", ErrInvalidInput)
		}
		return err
	}
	v.IsActive = true
	return s.store.Villages().Create(ctx, v)
}

// ValidateOrganizationPlacement checks that an organization's denormalized
// ancestry ids agree with each other before the row is written: the district
// must belong to the province, the commune to the district, the village to
// the commune. Commune and village are optional, but a village without a
// commune can never be placed.
func (s *Service) ValidateOrganizationPlacement(ctx context.Context, provinceID, districtID, communeID, villageID string) error {
	if err := requireFields("province_id", provinceID, "district_id", districtID); err != nil {
		return err
	}
	d, err := s.store.Districts().GetByID(ctx, districtID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: district does not exist", ErrInvalidInput)
		}
		return err
	}
	if d.ProvinceID != provinceID {
		return fmt.Errorf("%w: district is not in the given province", ErrInvalidInput)
	}
	if communeID == "" {
		if villageID != "" {
			return fmt.Errorf("%w: village requires a commune", ErrInvalidInput)
		}
		return nil
	}
	c, err := s.store.Communes().GetByID(ctx, communeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: commune does not exist", ErrInvalidInput)
		}
		return err
	}
	if c.DistrictID != districtID {
		return fmt.Errorf("%w: commune is not in the given district", ErrInvalidInput)
	}
	if villageID == "" {
		return nil
	}
	v, err := s.store.Villages().GetByID(ctx, villageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: village does not exist", ErrInvalidInput)
		}
		return err
	}
	if v.CommuneID != communeID {
		return fmt.Errorf("%w: village is not in the given commune", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	if err := requireFields("code", st.Code, "name_en", st.NameEn, "organization_id", st.OrganizationID); err != nil {
		return err
	}
	st.IsActive = true
	return s.store.Staff().Create(ctx, st)
}

// TransferStaff validates a transfer before the store applies it atomically.
func (s *Service) TransferStaff(ctx context.Context, t Transfer) (*StaffHistory, error) {
	if err := requireFields("staff_id", t.StaffID, "to_organization_id", t.ToOrganizationID); err != nil {
		return nil, err
	}
	return s.store.Staff().Transfer(ctx, t)
}
