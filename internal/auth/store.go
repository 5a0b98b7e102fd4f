package auth

import (
	"context"
	"time"
)

// Store aggregates the persistence surface the auth service needs. Each
// sub-store covers one aggregate; implementations share a single database
// handle.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Levels() LevelStore
	Organizations() OrganizationStore
	Sessions() SessionStore
}

// UserStore persists users and their role assignments.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	// Deactivate soft-disables a user. Rows are never removed while audit
	// entries reference them.
	Deactivate(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	// GrantsForUser returns the user's active roles with their active
	// permissions. Inactive roles and permissions never appear.
	GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error)
}

// RoleStore persists roles and the role-permission relation.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	// Delete fails with ErrConflict while users still hold the role.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByCode(ctx context.Context, code string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	// ReplacePermissions swaps the role's permission set atomically. Readers
	// observe either the old set or the new set, never a partial one.
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// PermissionStore persists the permission catalog and its display groups.
type PermissionStore interface {
	Create(ctx context.Context, p *Permission) error
	Update(ctx context.Context, p *Permission) error
	// Delete fails with ErrConflict while roles still reference the
	// permission.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByCode(ctx context.Context, code string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
	ListGroups(ctx context.Context) ([]PermissionGroup, error)
	GetGroup(ctx context.Context, id string) (*PermissionGroup, error)
	CreateGroup(ctx context.Context, g *PermissionGroup) error
	UpdateGroup(ctx context.Context, g *PermissionGroup) error
	// DeleteGroup fails with ErrConflict while permissions reference the
	// group.
	DeleteGroup(ctx context.Context, id string) error
}

// LevelStore persists level types, location types, the direct can-manage
// relation and user level assignments. It satisfies ScopeLoader.
type LevelStore interface {
	CreateLevelType(ctx context.Context, lt *LevelType) error
	UpdateLevelType(ctx context.Context, lt *LevelType) error
	// DeleteLevelType fails with ErrConflict while user levels reference it.
	DeleteLevelType(ctx context.Context, id string) error
	GetLevelType(ctx context.Context, id string) (*LevelType, error)
	ListLevelTypes(ctx context.Context) ([]LevelType, error)
	ListLocationTypes(ctx context.Context) ([]LocationType, error)
	LocationTypeByID(ctx context.Context, id string) (*LocationType, error)
	// SetCanManage replaces the location types a level may manage.
	SetCanManage(ctx context.Context, levelTypeID string, locationTypeIDs []string) error
	ScopeForUser(ctx context.Context, userID string) (*Scope, error)

	CreateUserLevel(ctx context.Context, ul *UserLevel) error
	UpdateUserLevel(ctx context.Context, ul *UserLevel) error
	// DeleteUserLevel fails with ErrConflict while users reference it.
	DeleteUserLevel(ctx context.Context, id string) error
	GetUserLevel(ctx context.Context, id string) (*UserLevel, error)
	ListUserLevels(ctx context.Context) ([]UserLevel, error)
}

// OrganizationStore persists organizations.
type OrganizationStore interface {
	Create(ctx context.Context, o *Organization) error
	Update(ctx context.Context, o *Organization) error
	// Delete fails with ErrConflict while users or staff reference the
	// organization.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
}

// SessionStore persists active-log rows.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// Close stamps EndedAt on an open session. Closing an already closed
	// session is ErrConflict.
	Close(ctx context.Context, id string, endedAt time.Time) error
	// CloseBySession closes by the session uuid handed out at login.
	CloseBySession(ctx context.Context, sessionID string, endedAt time.Time) error
	GetByID(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, f SessionFilter) ([]Session, error)
}
