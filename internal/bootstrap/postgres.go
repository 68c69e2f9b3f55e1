package bootstrap

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ashram.org/internal/account"
	"ashram.org/internal/profile"
)

var _ Store = (*PGStore)(nil)

// PGStore implements the transactional bootstrap operations over the same
// tables the account and profile stores use.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) PromoteTempUser(ctx context.Context, tempAccountID string, admin PromotedAdmin) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Locking the temp row first serializes concurrent promotions and
	// tells a missing profile apart from a spent one.
	var adminCreated, isDisabled bool
	err = tx.QueryRowContext(ctx, `
		select admin_created, is_disabled from user_profiles
		where account_id=$1 and role=$2
		for update`,
		tempAccountID, profile.RoleTempAdminCreator).Scan(&adminCreated, &isDisabled)
	if err == sql.ErrNoRows {
		return ErrNoProfile
	}
	if err != nil {
		return err
	}
	if adminCreated || isDisabled {
		return ErrAlreadyUsed
	}

	if _, err := tx.ExecContext(ctx, `
		update user_profiles
		set admin_created=true, is_disabled=true, updated_at=now()
		where account_id=$1 and role=$2`,
		tempAccountID, profile.RoleTempAdminCreator); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into accounts(id, email, name, password_hash, status)
		values($1,$2,$3,$4,$5)`,
		admin.AccountID, admin.Email, admin.Name, admin.PasswordHash, account.StatusActive,
	); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return account.ErrConflict
		}
		return err
	}

	caps := admin.Capabilities
	if _, err := tx.ExecContext(ctx, `
		insert into user_profiles(
			account_id, name, email, role,
			can_read, can_write, can_manage_events, can_manage_gallery,
			can_manage_livestream, can_edit_profile, can_manage_users,
			is_disabled, is_main_admin, admin_created, created_by
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,false,false,$12)`,
		admin.AccountID, admin.Name, admin.Email, profile.RoleAdmin,
		caps.CanRead, caps.CanWrite, caps.CanManageEvents, caps.CanManageGallery,
		caps.CanManageLivestream, caps.CanEditProfile, caps.CanManageUsers,
		tempAccountID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PGStore) DisableExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update user_profiles
		set is_disabled=true, updated_at=now()
		where role=$1 and expires_at < $2 and is_disabled=false`,
		profile.RoleTempAdminCreator, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
