package profile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store over the user_profiles table, plus the legacy
// admin_users mirror.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const profileColumns = `account_id, name, email, role,
	can_read, can_write, can_manage_events, can_manage_gallery,
	can_manage_livestream, can_edit_profile, can_manage_users,
	is_disabled, is_main_admin, admin_created, expires_at,
	created_by, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_profiles(
			account_id, name, email, role,
			can_read, can_write, can_manage_events, can_manage_gallery,
			can_manage_livestream, can_edit_profile, can_manage_users,
			is_disabled, is_main_admin, admin_created, expires_at, created_by
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.AccountID, p.Name, p.Email, p.Role,
		p.CanRead, p.CanWrite, p.CanManageEvents, p.CanManageGallery,
		p.CanManageLivestream, p.CanEditProfile, p.CanManageUsers,
		p.IsDisabled, p.IsMainAdmin, p.AdminCreated, p.ExpiresAt, nullIfEmpty(p.CreatedBy),
	)
	return err
}

func (s *PGStore) FindByAccount(ctx context.Context, accountID string) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from user_profiles where account_id=$1 order by created_at asc`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (s *PGStore) Update(ctx context.Context, accountID string, patch Patch) (*Profile, error) {
	set, args := buildPatch(patch)
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidInput)
	}
	args = append(args, accountID)
	query := fmt.Sprintf(`update user_profiles set %s, updated_at=now() where account_id=$%d returning `+profileColumns,
		strings.Join(set, ", "), len(args))
	row := s.db.QueryRowContext(ctx, query, args...)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PGStore) Delete(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `delete from user_profiles where account_id=$1`, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from user_profiles order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProfiles(rows)
}

func (s *PGStore) SetMainAdmin(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`update user_profiles set is_main_admin=true, updated_at=now() where account_id=$1`,
		accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) InsertLegacyAdmin(ctx context.Context, accountID, email, role string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into admin_users(account_id, email, role) values($1,$2,$3) on conflict (account_id) do nothing`,
		accountID, email, role)
	return err
}

func (s *PGStore) CollapseProfiles(ctx context.Context, accountID string, keeper *Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_profiles where account_id=$1`, accountID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into user_profiles(
			account_id, name, email, role,
			can_read, can_write, can_manage_events, can_manage_gallery,
			can_manage_livestream, can_edit_profile, can_manage_users,
			is_disabled, is_main_admin, admin_created, expires_at, created_by
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		keeper.AccountID, keeper.Name, keeper.Email, keeper.Role,
		keeper.CanRead, keeper.CanWrite, keeper.CanManageEvents, keeper.CanManageGallery,
		keeper.CanManageLivestream, keeper.CanEditProfile, keeper.CanManageUsers,
		keeper.IsDisabled, keeper.IsMainAdmin, keeper.AdminCreated, keeper.ExpiresAt,
		nullIfEmpty(keeper.CreatedBy),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func buildPatch(patch Patch) (set []string, args []any) {
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.CanRead != nil {
		add("can_read", *patch.CanRead)
	}
	if patch.CanWrite != nil {
		add("can_write", *patch.CanWrite)
	}
	if patch.CanManageEvents != nil {
		add("can_manage_events", *patch.CanManageEvents)
	}
	if patch.CanManageGallery != nil {
		add("can_manage_gallery", *patch.CanManageGallery)
	}
	if patch.CanManageLivestream != nil {
		add("can_manage_livestream", *patch.CanManageLivestream)
	}
	if patch.CanEditProfile != nil {
		add("can_edit_profile", *patch.CanEditProfile)
	}
	if patch.CanManageUsers != nil {
		add("can_manage_users", *patch.CanManageUsers)
	}
	if patch.IsDisabled != nil {
		add("is_disabled", *patch.IsDisabled)
	}
	if patch.AdminCreated != nil {
		add("admin_created", *patch.AdminCreated)
	}
	if patch.ExpiresAt != nil {
		add("expires_at", *patch.ExpiresAt)
	}
	return set, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p         Profile
		expiresAt sql.NullTime
		createdBy sql.NullString
	)
	err := row.Scan(
		&p.AccountID, &p.Name, &p.Email, &p.Role,
		&p.CanRead, &p.CanWrite, &p.CanManageEvents, &p.CanManageGallery,
		&p.CanManageLivestream, &p.CanEditProfile, &p.CanManageUsers,
		&p.IsDisabled, &p.IsMainAdmin, &p.AdminCreated, &expiresAt,
		&createdBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}
	return &p, nil
}

func scanProfiles(rows *sql.Rows) ([]*Profile, error) {
	var res []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
