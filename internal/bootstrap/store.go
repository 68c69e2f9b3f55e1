package bootstrap

import (
	"context"
	"time"

	"ashram.org/internal/profile"
)

// PromotedAdmin carries everything needed to materialize the one permanent
// administrator a temp user may create.
type PromotedAdmin struct {
	AccountID    string
	Email        string
	Name         string
	PasswordHash string
	Capabilities profile.Capabilities
}

// Store is the transactional slice of persistence the flow needs beyond
// the account service and profile gateway.
type Store interface {
	// PromoteTempUser creates the admin account and profile and flips the
	// temp profile to admin_created=true, is_disabled=true, all in one
	// transaction. The temp update is conditioned on admin_created=false
	// and is_disabled=false, so a concurrent second promotion fails with
	// ErrAlreadyUsed instead of committing a second admin.
	PromoteTempUser(ctx context.Context, tempAccountID string, admin PromotedAdmin) error
	// DisableExpired disables every temp_admin_creator profile already past
	// expires_at and still enabled. Idempotent; returns rows affected.
	DisableExpired(ctx context.Context, now time.Time) (int64, error)
}
