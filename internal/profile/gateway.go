package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ashram.org/internal/obs"
)

// Gateway reads and writes profile rows. Permission checks here are
// advisory: they run in this layer before the store call and are not
// atomically guaranteed by it.
type Gateway struct {
	store Store
}

func NewGateway(store Store) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("profile store is required")
	}
	return &Gateway{store: store}, nil
}

// Select resolves the degraded multi-row case: prefer a row whose role is
// on the admin allow-list, else the first row encountered. Returns nil for
// an empty slice.
func Select(profiles []*Profile) *Profile {
	if len(profiles) == 0 {
		return nil
	}
	if len(profiles) > 1 {
		obs.LogEvent(map[string]any{
			"level":      "warn",
			"msg":        "multiple profiles for one account",
			"account_id": profiles[0].AccountID,
			"count":      len(profiles),
		})
		for _, p := range profiles {
			if HasAdminAccess(p.Role) {
				return p
			}
		}
	}
	return profiles[0]
}

// GetProfileFor returns the profile for an account, applying the degraded
// multi-row selection policy. ErrNotFound when no row exists.
func (g *Gateway) GetProfileFor(ctx context.Context, accountID string) (*Profile, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	rows, err := g.store.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	p := Select(rows)
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// CreateProfile validates and inserts a new profile row.
func (g *Gateway) CreateProfile(ctx context.Context, p *Profile) error {
	if p == nil || strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	if !KnownRole(p.Role) {
		return fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, p.Role)
	}
	return g.store.Create(ctx, p)
}

// UpdateProfile applies a patch on behalf of actor. Main-admin rows are
// immutable through the gateway. Actors without user management rights may
// only rename themselves, and only when their own can_edit_profile is set.
func (g *Gateway) UpdateProfile(ctx context.Context, actor *Profile, accountID string, patch Patch) (*Profile, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	target, err := g.GetProfileFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if target.IsMainAdmin {
		return nil, ErrMainAdmin
	}
	if !canManageUsers(actor) {
		if actor == nil || actor.AccountID != accountID || !actor.CanEditProfile || !selfServiceOnly(patch) {
			return nil, ErrPermission
		}
	}
	if patch.Role != nil {
		role := strings.TrimSpace(strings.ToLower(*patch.Role))
		if !KnownRole(role) {
			return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
		}
		patch.Role = &role
	}
	return g.store.Update(ctx, accountID, patch)
}

// DeleteProfile removes the profile row(s) for an account. Hard deletes
// happen only through this explicit admin action.
func (g *Gateway) DeleteProfile(ctx context.Context, actor *Profile, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	target, err := g.GetProfileFor(ctx, accountID)
	if err != nil {
		return err
	}
	if target.IsMainAdmin {
		return ErrMainAdmin
	}
	if !canManageUsers(actor) {
		return ErrPermission
	}
	return g.store.Delete(ctx, accountID)
}

// ListProfiles returns every profile row, newest first (store order).
func (g *Gateway) ListProfiles(ctx context.Context) ([]*Profile, error) {
	return g.store.List(ctx)
}

// MirrorLegacyAdmin inserts the backward-compatible admin_users row.
// Best-effort: failures are logged, never surfaced, never retried.
func (g *Gateway) MirrorLegacyAdmin(ctx context.Context, accountID, email, role string) {
	if err := g.store.InsertLegacyAdmin(ctx, accountID, email, role); err != nil {
		obs.LogEvent(map[string]any{
			"level":      "warn",
			"msg":        "legacy admin_users insert failed",
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

// FixDuplicateProfiles collapses duplicate rows for an account down to the
// one the selection policy would keep. Returns the number of rows removed.
// The replacement is a single store operation, so a failure leaves the
// existing rows untouched rather than dropping the keeper.
func (g *Gateway) FixDuplicateProfiles(ctx context.Context, accountID string) (int, error) {
	rows, err := g.store.FindByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(rows) <= 1 {
		return 0, nil
	}
	keeper := Select(rows)
	if err := g.store.CollapseProfiles(ctx, accountID, keeper); err != nil {
		return 0, err
	}
	return len(rows) - 1, nil
}

func canManageUsers(actor *Profile) bool {
	if actor == nil {
		return false
	}
	return actor.CanManageUsers || actor.Role == RoleSuperAdmin
}

func selfServiceOnly(patch Patch) bool {
	return patch.Role == nil &&
		patch.CanRead == nil &&
		patch.CanWrite == nil &&
		patch.CanManageEvents == nil &&
		patch.CanManageGallery == nil &&
		patch.CanManageLivestream == nil &&
		patch.CanEditProfile == nil &&
		patch.CanManageUsers == nil &&
		patch.IsDisabled == nil &&
		patch.AdminCreated == nil &&
		patch.ExpiresAt == nil
}
