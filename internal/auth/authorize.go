package auth

import (
	"context"
	"sort"
)

// Principal is a verified caller: the user row, the roles that were active at
// verification time, and the union of their active permissions. It is built
// fresh on every request from storage; nothing here is taken from the token
// beyond the user id.
type Principal struct {
	User        User
	Grants      []RoleGrant
	permissions map[string]struct{}
}

// NewPrincipal resolves the permission union from the given grants. Inactive
// roles and inactive permissions must already be filtered out by the loader.
func NewPrincipal(user User, grants []RoleGrant) *Principal {
	perms := make(map[string]struct{})
	for _, g := range grants {
		for _, p := range g.Permissions {
			if p.Code != "" {
				perms[p.Code] = struct{}{}
			}
		}
	}
	return &Principal{User: user, Grants: grants, permissions: perms}
}

// HasPermission reports whether the principal holds the permission code.
func (p *Principal) HasPermission(code string) bool {
	if p == nil || code == "" {
		return false
	}
	_, ok := p.permissions[code]
	return ok
}

// PermissionCodes returns the sorted permission union, for responses and logs.
func (p *Principal) PermissionCodes() []string {
	if p == nil || len(p.permissions) == 0 {
		return nil
	}
	codes := make([]string, 0, len(p.permissions))
	for code := range p.permissions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RoleCodes returns the codes of the principal's roles.
func (p *Principal) RoleCodes() []string {
	if p == nil || len(p.Grants) == 0 {
		return nil
	}
	codes := make([]string, 0, len(p.Grants))
	for _, g := range p.Grants {
		codes = append(codes, g.Role.Code)
	}
	return codes
}

type contextKey string

const principalKey contextKey = "auth.principal"

// ContextWithPrincipal attaches a verified principal to the request context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
