package session

import (
	"sync"

	"ashram.org/internal/account"
)

// Holder owns the single current session. Every consumer reads and writes
// through it instead of touching ambient global state; sign-out
// invalidates it wholesale.
type Holder struct {
	mu      sync.RWMutex
	current *account.Session
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the current session.
func (h *Holder) Set(sess account.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &sess
}

// Get returns the current session, if any.
func (h *Holder) Get() (account.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return account.Session{}, false
	}
	return *h.current, true
}

// Clear drops the current session.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
}
