package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and local runs. It keeps
// a slice per account so the degraded multi-row case can be exercised.
type MemoryStore struct {
	mu       sync.Mutex
	rows     map[string][]*Profile
	legacy   map[string]string
	sequence int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string][]*Profile),
		legacy: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	cp := *p
	if cp.CreatedAt.IsZero() {
		// Preserve insertion order across same-instant creations.
		s.sequence++
		cp.CreatedAt = now.Add(time.Duration(s.sequence) * time.Microsecond)
	}
	cp.UpdatedAt = now
	s.rows[p.AccountID] = append(s.rows[p.AccountID], &cp)
	return nil
}

func (s *MemoryStore) FindByAccount(_ context.Context, accountID string) ([]*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[accountID]
	out := make([]*Profile, 0, len(rows))
	for _, p := range rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, accountID string, patch Patch) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[accountID]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	// The SQL store updates by account_id, so every row takes the patch.
	now := time.Now().UTC()
	for _, p := range rows {
		applyPatch(p, patch)
		p.UpdatedAt = now
	}
	cp := *rows[0]
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[accountID]; !ok {
		return ErrNotFound
	}
	delete(s.rows, accountID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Profile
	for _, rows := range s.rows {
		for _, p := range rows {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CollapseProfiles(_ context.Context, accountID string, keeper *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows[accountID]) == 0 {
		return ErrNotFound
	}
	cp := *keeper
	cp.UpdatedAt = time.Now().UTC()
	s.rows[accountID] = []*Profile{&cp}
	return nil
}

func (s *MemoryStore) SetMainAdmin(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[accountID]
	if len(rows) == 0 {
		return ErrNotFound
	}
	for _, p := range rows {
		p.IsMainAdmin = true
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) InsertLegacyAdmin(_ context.Context, accountID, email, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.legacy[accountID]; exists {
		return nil
	}
	s.legacy[accountID] = fmt.Sprintf("%s:%s", email, role)
	return nil
}

// LegacyAdminCount reports the size of the legacy mirror. Test helper.
func (s *MemoryStore) LegacyAdminCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.legacy)
}

func applyPatch(p *Profile, patch Patch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.CanRead != nil {
		p.CanRead = *patch.CanRead
	}
	if patch.CanWrite != nil {
		p.CanWrite = *patch.CanWrite
	}
	if patch.CanManageEvents != nil {
		p.CanManageEvents = *patch.CanManageEvents
	}
	if patch.CanManageGallery != nil {
		p.CanManageGallery = *patch.CanManageGallery
	}
	if patch.CanManageLivestream != nil {
		p.CanManageLivestream = *patch.CanManageLivestream
	}
	if patch.CanEditProfile != nil {
		p.CanEditProfile = *patch.CanEditProfile
	}
	if patch.CanManageUsers != nil {
		p.CanManageUsers = *patch.CanManageUsers
	}
	if patch.IsDisabled != nil {
		p.IsDisabled = *patch.IsDisabled
	}
	if patch.AdminCreated != nil {
		p.AdminCreated = *patch.AdminCreated
	}
	if patch.ExpiresAt != nil {
		t := *patch.ExpiresAt
		p.ExpiresAt = &t
	}
}
