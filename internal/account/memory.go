package account

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	byEmail  map[string]string
	tokens   map[string]*RefreshToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		tokens:   make(map[string]*RefreshToken),
	}
}

func (s *MemoryStore) Accounts(context.Context) AccountStore           { return (*memAccounts)(s) }
func (s *MemoryStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memTokens)(s) }

type memAccounts MemoryStore

func (s *memAccounts) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[a.Email]; exists {
		return ErrConflict
	}
	now := time.Now().UTC()
	cp := *a
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.accounts[a.ID] = &cp
	s.byEmail[a.Email] = a.ID
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *memAccounts) Find(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *memAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memAccounts) SetStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

type memTokens MemoryStore

func (s *memTokens) Create(_ context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *memTokens) Find(_ context.Context, id string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *memTokens) MarkRevoked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[id]; ok {
		tok.Revoked = true
	}
	return nil
}

func (s *memTokens) MarkRevokedByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.AccountID == accountID {
			tok.Revoked = true
		}
	}
	return nil
}
