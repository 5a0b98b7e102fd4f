package directory

import "context"

// Store is the persistence surface for the geographic hierarchy and staff.
type Store interface {
	Provinces() ProvinceStore
	Districts() DistrictStore
	Communes() CommuneStore
	Villages() VillageStore
	Staff() StaffStore
}

// ProvinceStore persists provinces.
type ProvinceStore interface {
	Create(ctx context.Context, p *Province) error
	Update(ctx context.Context, p *Province) error
	// Delete soft-deletes the province together with every district, commune
	// and village under it, in one transaction.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Province, error)
	List(ctx context.Context) ([]Province, error)
}

// DistrictStore persists districts.
type DistrictStore interface {
	Create(ctx context.Context, d *District) error
	Update(ctx context.Context, d *District) error
	// Delete cascades to communes and villages under the district.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*District, error)
	ListByProvince(ctx context.Context, provinceID string) ([]District, error)
	List(ctx context.Context) ([]District, error)
}

// CommuneStore persists communes.
type CommuneStore interface {
	Create(ctx context.Context, c *Commune) error
	Update(ctx context.Context, c *Commune) error
	// Delete cascades to villages under the commune.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Commune, error)
	ListByDistrict(ctx context.Context, districtID string) ([]Commune, error)
	List(ctx context.Context) ([]Commune, error)
}

// VillageStore persists villages.
type VillageStore interface {
	Create(ctx context.Context, v *Village) error
	Update(ctx context.Context, v *Village) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Village, error)
	ListByCommune(ctx context.Context, communeID string) ([]Village, error)
	List(ctx context.Context) ([]Village, error)
}

// StaffStore persists staff and their posting history.
type StaffStore interface {
	Create(ctx context.Context, s *Staff) error
	Update(ctx context.Context, s *Staff) error
	// Delete soft-disables a staff member; history rows remain.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Staff, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]Staff, error)
	List(ctx context.Context) ([]Staff, error)
	// Transfer closes the open history row and opens a new one at the target
	// organization atomically, then repoints the staff row.
	Transfer(ctx context.Context, t Transfer) (*StaffHistory, error)
	History(ctx context.Context, staffID string) ([]StaffHistory, error)
}
