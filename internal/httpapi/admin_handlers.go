package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"ashram.org/internal/account"
	"ashram.org/internal/audit"
	"ashram.org/internal/profile"
)

type createUserRequest struct {
	Email    string             `json:"email"`
	Password string             `json:"password"`
	Name     string             `json:"name"`
	Role     string             `json:"role"`
	Patch    *capabilitiesPatch `json:"permissions,omitempty"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// capabilitiesPatch mirrors profile.Patch for the capability flags only;
// role and status changes go through their own endpoints.
type capabilitiesPatch struct {
	CanRead             *bool `json:"can_read,omitempty"`
	CanWrite            *bool `json:"can_write,omitempty"`
	CanManageEvents     *bool `json:"can_manage_events,omitempty"`
	CanManageGallery    *bool `json:"can_manage_gallery,omitempty"`
	CanManageLivestream *bool `json:"can_manage_livestream,omitempty"`
	CanEditProfile      *bool `json:"can_edit_profile,omitempty"`
	CanManageUsers      *bool `json:"can_manage_users,omitempty"`
	IsDisabled          *bool `json:"is_disabled,omitempty"`
}

func (p *capabilitiesPatch) toPatch() profile.Patch {
	return profile.Patch{
		CanRead:             p.CanRead,
		CanWrite:            p.CanWrite,
		CanManageEvents:     p.CanManageEvents,
		CanManageGallery:    p.CanManageGallery,
		CanManageLivestream: p.CanManageLivestream,
		CanEditProfile:      p.CanEditProfile,
		CanManageUsers:      p.CanManageUsers,
		IsDisabled:          p.IsDisabled,
	}
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := a.profiles.ListProfiles(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": profiles})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if actor == nil || !canManageUsers(actor) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !profile.KnownRole(req.Role) || req.Role == profile.RoleTempAdminCreator {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}

	acct, err := a.accounts.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, account.ErrConflict):
			writeError(w, r, http.StatusConflict, "account already exists")
		default:
			writeError(w, r, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	p := &profile.Profile{
		AccountID: acct.ID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		CreatedBy: actor.AccountID,
	}
	profile.DefaultCapabilities(req.Role).Apply(p)
	if req.Patch != nil {
		applyOverrides(p, req.Patch)
	}
	if err := a.profiles.CreateProfile(r.Context(), p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to create profile")
		return
	}
	if p.Role == profile.RoleAdmin || p.Role == profile.RoleSuperAdmin {
		a.profiles.MirrorLegacyAdmin(r.Context(), p.AccountID, p.Email, p.Role)
	}

	_ = audit.LogEvent(r.Context(), "admin.user.created", map[string]any{
		"account_id": p.AccountID,
		"role":       p.Role,
	})
	writeJSON(w, http.StatusCreated, p)
}

// handleUserResource dispatches /admin/users/{id}, /admin/users/{id}/role
// and /admin/users/{id}/permissions.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	switch sub {
	case "":
		a.userByID(w, r, id)
	case "role":
		a.updateUserRole(w, r, id)
	case "permissions":
		a.updateUserPermissions(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) userByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		p, err := a.profiles.GetProfileFor(r.Context(), id)
		if err != nil {
			handleProfileError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		actor := actorFromContext(r.Context())
		if err := a.profiles.DeleteProfile(r.Context(), actor, id); err != nil {
			handleProfileError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.user.deleted", map[string]any{
			"account_id": id,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !profile.KnownRole(req.Role) || req.Role == profile.RoleTempAdminCreator {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	actor := actorFromContext(r.Context())
	// A role change resets capabilities to the new role's defaults.
	caps := profile.DefaultCapabilities(req.Role)
	patch := profile.Patch{
		Role:                &req.Role,
		CanRead:             &caps.CanRead,
		CanWrite:            &caps.CanWrite,
		CanManageEvents:     &caps.CanManageEvents,
		CanManageGallery:    &caps.CanManageGallery,
		CanManageLivestream: &caps.CanManageLivestream,
		CanEditProfile:      &caps.CanEditProfile,
		CanManageUsers:      &caps.CanManageUsers,
	}
	p, err := a.profiles.UpdateProfile(r.Context(), actor, id, patch)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	if p.Role == profile.RoleAdmin || p.Role == profile.RoleSuperAdmin {
		a.profiles.MirrorLegacyAdmin(r.Context(), p.AccountID, p.Email, p.Role)
	}
	_ = audit.LogEvent(r.Context(), "admin.user.role_changed", map[string]any{
		"account_id": id,
		"role":       req.Role,
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updateUserPermissions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	var req capabilitiesPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor := actorFromContext(r.Context())
	p, err := a.profiles.UpdateProfile(r.Context(), actor, id, req.toPatch())
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.permissions_changed", map[string]any{
		"account_id": id,
	})
	writeJSON(w, http.StatusOK, p)
}

func handleProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrMainAdmin), errors.Is(err, profile.ErrPermission):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "profile operation failed")
	}
}

func canManageUsers(p *profile.Profile) bool {
	return p.CanManageUsers || p.Role == profile.RoleSuperAdmin
}

func applyOverrides(p *profile.Profile, o *capabilitiesPatch) {
	if o.CanRead != nil {
		p.CanRead = *o.CanRead
	}
	if o.CanWrite != nil {
		p.CanWrite = *o.CanWrite
	}
	if o.CanManageEvents != nil {
		p.CanManageEvents = *o.CanManageEvents
	}
	if o.CanManageGallery != nil {
		p.CanManageGallery = *o.CanManageGallery
	}
	if o.CanManageLivestream != nil {
		p.CanManageLivestream = *o.CanManageLivestream
	}
	if o.CanEditProfile != nil {
		p.CanEditProfile = *o.CanEditProfile
	}
	if o.CanManageUsers != nil {
		p.CanManageUsers = *o.CanManageUsers
	}
	if o.IsDisabled != nil {
		p.IsDisabled = *o.IsDisabled
	}
}
