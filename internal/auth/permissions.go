package auth

// Permission codes. The route table and the seeds both reference these
// constants; free-form strings are rejected when the table is built.
const (
	PermUserView   = "USER_VIEW"
	PermUserCreate = "USER_CREATE"
	PermUserUpdate = "USER_UPDATE"
	PermUserDelete = "USER_DELETE"

	PermRoleView   = "ROLE_VIEW"
	PermRoleCreate = "ROLE_CREATE"
	PermRoleUpdate = "ROLE_UPDATE"
	PermRoleDelete = "ROLE_DELETE"

	PermPermissionView   = "PERMISSION_VIEW"
	PermPermissionCreate = "PERMISSION_CREATE"
	PermPermissionUpdate = "PERMISSION_UPDATE"
	PermPermissionDelete = "PERMISSION_DELETE"

	PermLocationView   = "LOCATION_VIEW"
	PermLocationCreate = "LOCATION_CREATE"
	PermLocationUpdate = "LOCATION_UPDATE"
	PermLocationDelete = "LOCATION_DELETE"

	PermOrganizationView   = "ORGANIZATION_VIEW"
	PermOrganizationCreate = "ORGANIZATION_CREATE"
	PermOrganizationUpdate = "ORGANIZATION_UPDATE"
	PermOrganizationDelete = "ORGANIZATION_DELETE"

	PermLogView   = "LOG_VIEW"
	PermLogUpdate = "LOG_UPDATE"

	PermStaffView     = "STAFF_VIEW"
	PermStaffCreate   = "STAFF_CREATE"
	PermStaffUpdate   = "STAFF_UPDATE"
	PermStaffDelete   = "STAFF_DELETE"
	PermStaffTransfer = "STAFF_TRANSFER"

	PermLevelView   = "LEVEL_VIEW"
	PermLevelCreate = "LEVEL_CREATE"
	PermLevelUpdate = "LEVEL_UPDATE"
	PermLevelDelete = "LEVEL_DELETE"
)

// BuiltinPermissions is the seeded permission catalog.
var BuiltinPermissions = []Permission{
	{Code: PermUserView, NameEn: "View users", IsActive: true},
	{Code: PermUserCreate, NameEn: "Create users", IsActive: true},
	{Code: PermUserUpdate, NameEn: "Update users", IsActive: true},
	{Code: PermUserDelete, NameEn: "Delete users", IsActive: true},

	{Code: PermRoleView, NameEn: "View roles", IsActive: true},
	{Code: PermRoleCreate, NameEn: "Create roles", IsActive: true},
	{Code: PermRoleUpdate, NameEn: "Update roles", IsActive: true},
	{Code: PermRoleDelete, NameEn: "Delete roles", IsActive: true},

	{Code: PermPermissionView, NameEn: "View permissions", IsActive: true},
	{Code: PermPermissionCreate, NameEn: "Create permissions", IsActive: true},
	{Code: PermPermissionUpdate, NameEn: "Update permissions", IsActive: true},
	{Code: PermPermissionDelete, NameEn: "Delete permissions", IsActive: true},

	{Code: PermLocationView, NameEn: "View locations", IsActive: true},
	{Code: PermLocationCreate, NameEn: "Create locations", IsActive: true},
	{Code: PermLocationUpdate, NameEn: "Update locations", IsActive: true},
	{Code: PermLocationDelete, NameEn: "Delete locations", IsActive: true},

	{Code: PermOrganizationView, NameEn: "View organizations", IsActive: true},
	{Code: PermOrganizationCreate, NameEn: "Create organizations", IsActive: true},
	{Code: PermOrganizationUpdate, NameEn: "Update organizations", IsActive: true},
	{Code: PermOrganizationDelete, NameEn: "Delete organizations", IsActive: true},

	{Code: PermLogView, NameEn: "View activity and audit logs", IsActive: true},
	{Code: PermLogUpdate, NameEn: "Close sessions", IsActive: true},

	{Code: PermStaffView, NameEn: "View staff", IsActive: true},
	{Code: PermStaffCreate, NameEn: "Create staff", IsActive: true},
	{Code: PermStaffUpdate, NameEn: "Update staff", IsActive: true},
	{Code: PermStaffDelete, NameEn: "Delete staff", IsActive: true},
	{Code: PermStaffTransfer, NameEn: "Transfer staff between organizations", IsActive: true},

	{Code: PermLevelView, NameEn: "View level types", IsActive: true},
	{Code: PermLevelCreate, NameEn: "Create level types", IsActive: true},
	{Code: PermLevelUpdate, NameEn: "Update level types", IsActive: true},
	{Code: PermLevelDelete, NameEn: "Delete level types", IsActive: true},
}
