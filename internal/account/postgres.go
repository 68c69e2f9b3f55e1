package account

import (
	"context"
	"database/sql"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Accounts(context.Context) AccountStore { return &accountStore{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}

// Account store ------------------------------------------------------------
type accountStore struct{ db *sql.DB }

func (s *accountStore) Create(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, email, name, password_hash, status) values($1,$2,$3,$4,$5)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Status,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrConflict
	}
	return err
}

func (s *accountStore) Find(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, name, password_hash, status, created_at, updated_at from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, name, password_hash, status, created_at, updated_at from accounts where email=$1`, email)
	return scanAccount(row)
}

func (s *accountStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *accountStore) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Refresh token store ------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, account_id, token_hash, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.AccountID, tok.TokenHash, tok.ExpiresAt,
	)
	return err
}

func (s *refreshTokenStore) Find(ctx context.Context, id string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, account_id, token_hash, expires_at, created_at, revoked from refresh_tokens where id=$1`, id)
	var tok RefreshToken
	if err := row.Scan(&tok.ID, &tok.AccountID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1`, id)
	return err
}

func (s *refreshTokenStore) MarkRevokedByAccount(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where account_id=$1 and revoked=false`, accountID)
	return err
}
