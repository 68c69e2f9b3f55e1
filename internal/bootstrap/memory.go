package bootstrap

import (
	"context"
	"sync"
	"time"

	"ashram.org/internal/account"
	"ashram.org/internal/profile"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements the bootstrap operations over in-memory account
// and profile stores. A single mutex stands in for the transaction, so the
// concurrent double-use race is closed the same way as in Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	accounts account.Store
	profiles profile.Store
}

func NewMemoryStore(accounts account.Store, profiles profile.Store) *MemoryStore {
	return &MemoryStore{accounts: accounts, profiles: profiles}
}

func (s *MemoryStore) PromoteTempUser(ctx context.Context, tempAccountID string, admin PromotedAdmin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.profiles.FindByAccount(ctx, tempAccountID)
	if err != nil {
		return err
	}
	temp := profile.Select(rows)
	if temp == nil || temp.Role != profile.RoleTempAdminCreator {
		return ErrNoProfile
	}
	if temp.AdminCreated || temp.IsDisabled {
		return ErrAlreadyUsed
	}

	acct := &account.Account{
		ID:           admin.AccountID,
		Email:        admin.Email,
		Name:         admin.Name,
		PasswordHash: admin.PasswordHash,
		Status:       account.StatusActive,
	}
	if err := s.accounts.Accounts(ctx).Create(ctx, acct); err != nil {
		return err
	}

	p := &profile.Profile{
		AccountID: admin.AccountID,
		Name:      admin.Name,
		Email:     admin.Email,
		Role:      profile.RoleAdmin,
		CreatedBy: tempAccountID,
	}
	admin.Capabilities.Apply(p)
	if err := s.profiles.Create(ctx, p); err != nil {
		return err
	}

	used := true
	disabled := true
	_, err = s.profiles.Update(ctx, tempAccountID, profile.Patch{
		AdminCreated: &used,
		IsDisabled:   &disabled,
	})
	return err
}

func (s *MemoryStore) DisableExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.profiles.List(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	disabled := true
	for _, p := range all {
		if p.Role != profile.RoleTempAdminCreator || p.IsDisabled {
			continue
		}
		if p.ExpiresAt == nil || !now.After(*p.ExpiresAt) {
			continue
		}
		if _, err := s.profiles.Update(ctx, p.AccountID, profile.Patch{IsDisabled: &disabled}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
