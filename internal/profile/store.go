package profile

import "context"

// Store describes persistence operations required by the gateway. The
// bootstrap flow layers its own transactional operations on top of the
// same tables.
type Store interface {
	Create(ctx context.Context, p *Profile) error
	// FindByAccount returns every row for the account. Zero rows is not an
	// error; the degraded multi-row case is resolved by Select.
	FindByAccount(ctx context.Context, accountID string) ([]*Profile, error)
	Update(ctx context.Context, accountID string, patch Patch) (*Profile, error)
	Delete(ctx context.Context, accountID string) error
	List(ctx context.Context) ([]*Profile, error)
	// SetMainAdmin marks exactly one account as the immutable main admin.
	// Only operator tooling calls this; the HTTP surface never does.
	SetMainAdmin(ctx context.Context, accountID string) error
	// InsertLegacyAdmin mirrors an admin row into the legacy admin_users
	// table. Callers treat failures as log-only.
	InsertLegacyAdmin(ctx context.Context, accountID, email, role string) error
	// CollapseProfiles atomically replaces every row for the account with
	// the keeper. The keeper must survive any failure.
	CollapseProfiles(ctx context.Context, accountID string, keeper *Profile) error
}
