package auth

import (
	"context"
	"fmt"
	"strings"
)

// Location type codes in the administrative hierarchy, top to bottom.
const (
	LocationNational = "NATIONAL"
	LocationProvince = "PROVINCE"
	LocationDistrict = "DISTRICT"
	LocationSchool   = "SCHOOL"
)

// Scope is a principal's resolved position in the hierarchy: the level type
// they hold, the organization they sit in, and the set of location type ids
// that level may manage. The manage relation is direct and stored; it is
// never derived transitively from level ordering.
type Scope struct {
	LevelType    LevelType
	Organization Organization
	// ManagedLocationTypes holds location type ids this level may manage.
	ManagedLocationTypes map[string]struct{}
}

// ScopeLoader resolves the scope of a user and classifies organizations.
type ScopeLoader interface {
	// ScopeForUser loads the caller's scope. ErrNotFound when the user has no
	// user level or the level's organization is missing.
	ScopeForUser(ctx context.Context, userID string) (*Scope, error)
	// LocationTypeByID resolves a location type row.
	LocationTypeByID(ctx context.Context, id string) (*LocationType, error)
}

// ScopeChecker decides whether a caller may act on a target organization.
// Both gates must pass: the caller's level type must list the target's
// location type as manageable, and the target must sit inside the caller's
// geographic area. Missing scope data on either side denies.
type ScopeChecker struct {
	loader ScopeLoader
}

// NewScopeChecker builds a checker over the given loader.
func NewScopeChecker(loader ScopeLoader) *ScopeChecker {
	return &ScopeChecker{loader: loader}
}

// Authorize checks that userID may manage target. A nil return means allowed;
// every denial is ErrPermissionDenied, wrapped with the failing gate.
func (c *ScopeChecker) Authorize(ctx context.Context, userID string, target Organization) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: caller unknown", ErrPermissionDenied)
	}
	scope, err := c.loader.ScopeForUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: caller has no assigned scope", ErrPermissionDenied)
		}
		return err
	}
	return c.check(ctx, scope, target)
}

func (c *ScopeChecker) check(ctx context.Context, scope *Scope, target Organization) error {
	if scope == nil {
		return fmt.Errorf("%w: caller has no assigned scope", ErrPermissionDenied)
	}
	if target.LocationTypeID == "" {
		return fmt.Errorf("%w: target has no location type", ErrPermissionDenied)
	}
	if _, ok := scope.ManagedLocationTypes[target.LocationTypeID]; !ok {
		return fmt.Errorf("%w: level %s may not manage this location type", ErrPermissionDenied, scope.LevelType.Code)
	}
	own, err := c.loader.LocationTypeByID(ctx, scope.Organization.LocationTypeID)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: caller organization has no location type", ErrPermissionDenied)
		}
		return err
	}
	if !contains(own.Code, scope.Organization, target) {
		return fmt.Errorf("%w: target outside caller area", ErrPermissionDenied)
	}
	return nil
}

// contains implements geographic containment over the denormalized ancestry
// columns. National sees everything; a province-level caller matches on
// province id, a district-level caller on both province and district ids, and
// a school-level caller only manages its own organization.
func contains(callerLocation string, caller, target Organization) bool {
	switch callerLocation {
	case LocationNational:
		return true
	case LocationProvince:
		return caller.ProvinceID != "" && caller.ProvinceID == target.ProvinceID
	case LocationDistrict:
		return caller.ProvinceID != "" && caller.ProvinceID == target.ProvinceID &&
			caller.DistrictID != "" && caller.DistrictID == target.DistrictID
	case LocationSchool:
		return caller.ID != "" && caller.ID == target.ID
	default:
		return false
	}
}
