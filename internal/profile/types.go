package profile

import "time"

// Profile is the per-account row of role, capability and status data.
// Exactly one row per account is intended; FindByAccount may still return
// several in a degraded store and the gateway picks one (see Select).
type Profile struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`

	CanRead             bool `json:"can_read"`
	CanWrite            bool `json:"can_write"`
	CanManageEvents     bool `json:"can_manage_events"`
	CanManageGallery    bool `json:"can_manage_gallery"`
	CanManageLivestream bool `json:"can_manage_livestream"`
	CanEditProfile      bool `json:"can_edit_profile"`
	CanManageUsers      bool `json:"can_manage_users"`

	IsDisabled  bool `json:"is_disabled"`
	IsMainAdmin bool `json:"is_main_admin"`

	// AdminCreated and ExpiresAt are populated only for temp_admin_creator
	// profiles. A nil ExpiresAt means the profile never expires.
	AdminCreated bool       `json:"admin_created"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch carries partial profile updates; nil fields are left untouched.
type Patch struct {
	Name                *string
	Role                *string
	CanRead             *bool
	CanWrite            *bool
	CanManageEvents     *bool
	CanManageGallery    *bool
	CanManageLivestream *bool
	CanEditProfile      *bool
	CanManageUsers      *bool
	IsDisabled          *bool
	AdminCreated        *bool
	ExpiresAt           *time.Time
}
