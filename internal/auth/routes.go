package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// RouteTable maps a path and HTTP verb to the permission code required to
// call it. Lookup tries the exact path first, then the path with its last
// segment stripped, then the path with its second-to-last segment collapsed,
// which covers /resource/{id} and /resource/{id}/sub shapes without a
// templating engine. A miss after all attempts means the route needs
// authentication only.
type RouteTable struct {
	routes map[string]map[string]string
}

// NewRouteTable validates and builds a table. Blank paths, verbs or codes and
// duplicate path+verb entries are build errors so misconfiguration fails at
// process start, not at request time.
func NewRouteTable(entries map[string]map[string]string) (*RouteTable, error) {
	known := make(map[string]struct{}, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		known[p.Code] = struct{}{}
	}
	routes := make(map[string]map[string]string, len(entries))
	for path, byVerb := range entries {
		path = strings.TrimSpace(path)
		if path == "" || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("auth: invalid route path %q", path)
		}
		if _, ok := routes[path]; ok {
			return nil, fmt.Errorf("auth: duplicate route path %q", path)
		}
		verbs := make(map[string]string, len(byVerb))
		for verb, code := range byVerb {
			verb = strings.ToUpper(strings.TrimSpace(verb))
			switch verb {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
			default:
				return nil, fmt.Errorf("auth: unsupported verb %q for %s", verb, path)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return nil, fmt.Errorf("auth: blank permission for %s %s", verb, path)
			}
			if _, ok := known[code]; !ok {
				return nil, fmt.Errorf("auth: unknown permission %q for %s %s", code, verb, path)
			}
			if _, dup := verbs[verb]; dup {
				return nil, fmt.Errorf("auth: duplicate verb %s for %s", verb, path)
			}
			verbs[verb] = code
		}
		routes[path] = verbs
	}
	return &RouteTable{routes: routes}, nil
}

// Lookup returns the permission code required for path+method, or "" when
// the route is unmapped (authentication alone suffices).
func (t *RouteTable) Lookup(path, method string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}
	method = strings.ToUpper(method)
	if byVerb, ok := t.routes[path]; ok {
		return byVerb[method]
	}
	// One-level strip supports /resource/{id}.
	last := strings.LastIndex(path, "/")
	if last > 0 {
		if byVerb, ok := t.routes[path[:last]]; ok {
			return byVerb[method]
		}
		// Collapsing the id segment supports /resource/{id}/sub.
		if mid := strings.LastIndex(path[:last], "/"); mid > 0 {
			if byVerb, ok := t.routes[path[:mid]+path[last:]]; ok {
				return byVerb[method]
			}
		}
	}
	return ""
}

// DefaultRouteTable is the production route-to-permission mapping.
func DefaultRouteTable() *RouteTable {
	t, err := NewRouteTable(map[string]map[string]string{
		"/api/auth/users": {
			http.MethodGet:    PermUserView,
			http.MethodPost:   PermUserCreate,
			http.MethodPut:    PermUserUpdate,
			http.MethodDelete: PermUserDelete,
		},
		"/api/auth/roles": {
			http.MethodGet:    PermRoleView,
			http.MethodPost:   PermRoleCreate,
			http.MethodPut:    PermRoleUpdate,
			http.MethodDelete: PermRoleDelete,
		},
		"/api/auth/roles/permissions": {
			http.MethodGet: PermRoleView,
			http.MethodPut: PermRoleUpdate,
		},
		"/api/auth/permissions": {
			http.MethodGet:    PermPermissionView,
			http.MethodPost:   PermPermissionCreate,
			http.MethodPut:    PermPermissionUpdate,
			http.MethodDelete: PermPermissionDelete,
		},
		"/api/auth/permissions/group": {
			http.MethodGet:    PermPermissionView,
			http.MethodPost:   PermPermissionCreate,
			http.MethodPut:    PermPermissionUpdate,
			http.MethodDelete: PermPermissionDelete,
		},
		"/api/locations/provinces": {
			http.MethodGet:    PermLocationView,
			http.MethodPost:   PermLocationCreate,
			http.MethodPut:    PermLocationUpdate,
			http.MethodDelete: PermLocationDelete,
		},
		"/api/locations/districts": {
			http.MethodGet:    PermLocationView,
			http.MethodPost:   PermLocationCreate,
			http.MethodPut:    PermLocationUpdate,
			http.MethodDelete: PermLocationDelete,
		},
		"/api/locations/communes": {
			http.MethodGet:    PermLocationView,
			http.MethodPost:   PermLocationCreate,
			http.MethodPut:    PermLocationUpdate,
			http.MethodDelete: PermLocationDelete,
		},
		"/api/locations/villages": {
			http.MethodGet:    PermLocationView,
			http.MethodPost:   PermLocationCreate,
			http.MethodPut:    PermLocationUpdate,
			http.MethodDelete: PermLocationDelete,
		},
		"/api/locations/organizations": {
			http.MethodGet:    PermOrganizationView,
			http.MethodPost:   PermOrganizationCreate,
			http.MethodPut:    PermOrganizationUpdate,
			http.MethodDelete: PermOrganizationDelete,
		},
		"/api/auth/active-logs": {
			http.MethodGet: PermLogView,
			http.MethodPut: PermLogUpdate,
		},
		"/api/auth/audit-logs": {
			http.MethodGet: PermLogView,
		},
		"/api/staff": {
			http.MethodGet:    PermStaffView,
			http.MethodPost:   PermStaffCreate,
			http.MethodPut:    PermStaffUpdate,
			http.MethodDelete: PermStaffDelete,
		},
		"/api/staff/transfer": {
			http.MethodPost: PermStaffTransfer,
		},
		"/api/staff/history": {
			http.MethodGet: PermStaffView,
		},
		"/api/levels/types": {
			http.MethodGet:    PermLevelView,
			http.MethodPost:   PermLevelCreate,
			http.MethodPut:    PermLevelUpdate,
			http.MethodDelete: PermLevelDelete,
		},
		"/api/levels/user-levels": {
			http.MethodGet:    PermLevelView,
			http.MethodPost:   PermLevelCreate,
			http.MethodPut:    PermLevelUpdate,
			http.MethodDelete: PermLevelDelete,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}
