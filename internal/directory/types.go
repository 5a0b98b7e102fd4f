// Package directory holds the geographic hierarchy and staff records. The
// four location tiers nest strictly: province, district, commune, village.
package directory

import "time"

// Province is the top geographic tier.
type Province struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	NameEn    string    `json:"name_en"`
	NameKh    string    `json:"name_kh,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// District nests under a province.
type District struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	NameEn     string    `json:"name_en"`
	NameKh     string    `json:"name_kh,omitempty"`
	ProvinceID string    `json:"province_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Commune nests under a district.
type Commune struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	NameEn     string    `json:"name_en"`
	NameKh     string    `json:"name_kh,omitempty"`
	DistrictID string    `json:"district_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Village is the lowest geographic tier, under a commune.
type Village struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	NameEn    string    `json:"name_en"`
	NameKh    string    `json:"name_kh,omitempty"`
	CommuneID string    `json:"commune_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Staff is a person posted at an organization. The posting itself is
// tracked in StaffHistory; Staff.OrganizationID mirrors the open history row.
type Staff struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	NameEn         string    `json:"name_en"`
	NameKh         string    `json:"name_kh,omitempty"`
	Position       string    `json:"position,omitempty"`
	OrganizationID string    `json:"organization_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StaffHistory is one posting interval. EndAt stays nil while the posting is
// current; a transfer closes it and opens a new row in the same transaction.
type StaffHistory struct {
	ID             string     `json:"id"`
	StaffID        string     `json:"staff_id"`
	OrganizationID string     `json:"organization_id"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	TransferredBy  string     `json:"transferred_by,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Transfer describes a staff move between organizations.
type Transfer struct {
	StaffID          string `json:"staff_id"`
	ToOrganizationID string `json:"to_organization_id"`
	Reason           string `json:"reason,omitempty"`
	RequestedBy      string `json:"-"`
}
