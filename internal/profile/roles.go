package profile

// Role strings are mutually exclusive and flat in storage; any hierarchy
// exists only in the capability table below and the guard's allow-list.
const (
	RoleUser             = "user"
	RoleOperator         = "operator"
	RoleAdmin            = "admin"
	RoleSuperAdmin       = "super_admin"
	RoleTempAdminCreator = "temp_admin_creator"
)

// Capabilities is the boolean capability set carried by a profile.
type Capabilities struct {
	CanRead             bool
	CanWrite            bool
	CanManageEvents     bool
	CanManageGallery    bool
	CanManageLivestream bool
	CanEditProfile      bool
	CanManageUsers      bool
}

// defaultCapabilities is the single source of per-role capability defaults.
var defaultCapabilities = map[string]Capabilities{
	RoleUser:     {CanRead: true},
	RoleOperator: {CanRead: true},
	RoleAdmin: {
		CanRead:             true,
		CanWrite:            true,
		CanManageEvents:     true,
		CanManageGallery:    true,
		CanManageLivestream: true,
		CanEditProfile:      true,
		CanManageUsers:      true,
	},
	RoleSuperAdmin: {
		CanRead:             true,
		CanWrite:            true,
		CanManageEvents:     true,
		CanManageGallery:    true,
		CanManageLivestream: true,
		CanEditProfile:      true,
		CanManageUsers:      true,
	},
	// Temp users read and write nothing; their sole privilege is the
	// one-shot admin creation handled by the bootstrap flow.
	RoleTempAdminCreator: {},
}

// DefaultCapabilities returns the capability set granted to role at
// creation time. Unknown roles get no capabilities.
func DefaultCapabilities(role string) Capabilities {
	return defaultCapabilities[role]
}

// KnownRole reports whether role is one of the defined role strings.
func KnownRole(role string) bool {
	_, ok := defaultCapabilities[role]
	return ok
}

// adminRoles is the flat allow-list for the protected route surface.
// super_admin confers no extra route access beyond membership here.
var adminRoles = map[string]struct{}{
	RoleAdmin:            {},
	RoleSuperAdmin:       {},
	RoleOperator:         {},
	RoleTempAdminCreator: {},
}

// HasAdminAccess reports whether role may enter the protected admin
// surface at all.
func HasAdminAccess(role string) bool {
	_, ok := adminRoles[role]
	return ok
}

// Apply copies the capability set onto a profile.
func (c Capabilities) Apply(p *Profile) {
	p.CanRead = c.CanRead
	p.CanWrite = c.CanWrite
	p.CanManageEvents = c.CanManageEvents
	p.CanManageGallery = c.CanManageGallery
	p.CanManageLivestream = c.CanManageLivestream
	p.CanEditProfile = c.CanEditProfile
	p.CanManageUsers = c.CanManageUsers
}
