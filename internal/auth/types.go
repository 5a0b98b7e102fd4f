package auth

import "time"

// User is the principal identity a request acts as. Users are soft-disabled
// via IsActive rather than removed while audit rows still reference them.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	OrganizationID string    `json:"organization_id,omitempty"`
	UserLevelID    string    `json:"user_level_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role is a named bundle of permissions assignable to users.
type Role struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	NameEn      string    `json:"name_en"`
	NameKh      string    `json:"name_kh,omitempty"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is an atomic capability identified by a unique code.
type Permission struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	NameEn    string    `json:"name_en"`
	NameKh    string    `json:"name_kh,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PermissionGroup organizes permissions for admin screens. It plays no part
// in enforcement.
type PermissionGroup struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	NameEn    string    `json:"name_en"`
	NameKh    string    `json:"name_kh,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleGrant is a role together with its active permissions, as resolved for
// one user during verification.
type RoleGrant struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// LevelType is a rank in the organizational hierarchy (national, province,
// district, school). Which location types it may manage is a direct relation
// kept in storage; it is never inferred transitively.
type LevelType struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	NameEn     string    `json:"name_en"`
	NameKh     string    `json:"name_kh,omitempty"`
	LevelOrder int       `json:"level_order"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LocationType classifies an organization's position in the administrative
// hierarchy.
type LocationType struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	NameEn    string    `json:"name_en"`
	NameKh    string    `json:"name_kh,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// Organization is an administrative body placed in the geographic hierarchy.
// ProvinceID and DistrictID are denormalized ancestry: every mutation must
// keep them consistent with the commune/village linkage.
type Organization struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	NameEn         string    `json:"name_en"`
	NameKh         string    `json:"name_kh,omitempty"`
	IsActive       bool      `json:"is_active"`
	LocationTypeID string    `json:"location_type_id"`
	ProvinceID     string    `json:"province_id"`
	DistrictID     string    `json:"district_id"`
	CommuneID      string    `json:"commune_id,omitempty"`
	VillageID      string    `json:"village_id,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserLevel binds a user to a level type and an organization. This is the
// scope a principal operates at; roles grant capabilities, not scope.
type UserLevel struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	LevelTypeID    string    `json:"level_type_id"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session is one login's active-log row. EndedAt stays nil while the session
// is open; closing is explicit and independent of token expiry.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	StartAt   time.Time  `json:"start_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent,omitempty"`
	Location  string     `json:"location,omitempty"`
}

// SessionFilter narrows active-log listings.
type SessionFilter struct {
	UserID string
	Since  *time.Time
	Until  *time.Time
}
