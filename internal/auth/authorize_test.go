package auth

import (
	"context"
	"testing"
)

func TestPrincipalPermissionUnion(t *testing.T) {
	grants := []RoleGrant{
		{
			Role: Role{ID: "r1", Code: "ADMIN", IsActive: true},
			Permissions: []Permission{
				{Code: PermUserView},
				{Code: PermUserCreate},
			},
		},
		{
			Role: Role{ID: "r2", Code: "AUDITOR", IsActive: true},
			Permissions: []Permission{
				{Code: PermUserView},
				{Code: PermLogView},
			},
		},
	}
	p := NewPrincipal(User{ID: "u1"}, grants)

	for _, code := range []string{PermUserView, PermUserCreate, PermLogView} {
		if !p.HasPermission(code) {
			t.Errorf("expected permission %s", code)
		}
	}
	if p.HasPermission(PermUserDelete) {
		t.Fatalf("unexpected permission %s", PermUserDelete)
	}
	if p.HasPermission("") {
		t.Fatalf("blank code must never pass")
	}

	codes := p.PermissionCodes()
	if len(codes) != 3 {
		t.Fatalf("expected union of 3 codes, got %v", codes)
	}
	roles := p.RoleCodes()
	if len(roles) != 2 || roles[0] != "ADMIN" {
		t.Fatalf("unexpected role codes: %v", roles)
	}
}

func TestPrincipalNilSafe(t *testing.T) {
	var p *Principal
	if p.HasPermission(PermUserView) {
		t.Fatalf("nil principal must hold nothing")
	}
	if p.PermissionCodes() != nil {
		t.Fatalf("nil principal must have no codes")
	}
}

func TestPrincipalContext(t *testing.T) {
	p := NewPrincipal(User{ID: "u1"}, nil)
	ctx := ContextWithPrincipal(context.Background(), p)

	got, ok := PrincipalFromContext(ctx)
	if !ok || got.User.ID != "u1" {
		t.Fatalf("principal not carried through context")
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatalf("empty context must not yield a principal")
	}
}
