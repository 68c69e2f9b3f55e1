package account

import "context"

// Store describes persistence operations required by the account service.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// AccountStore manages account rows.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetStatus(ctx context.Context, id, status string) error
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByAccount(ctx context.Context, accountID string) error
}
