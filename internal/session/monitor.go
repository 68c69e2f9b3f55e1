package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ashram.org/internal/account"
	"ashram.org/internal/obs"
)

const (
	defaultInterval = 60 * time.Second
	warnUpper       = 5 * time.Minute
	warnLower       = 4 * time.Minute
	warnCooldown    = 2 * time.Minute
)

// Accessor is the slice of the account service the monitor needs.
type Accessor interface {
	GetSession(ctx context.Context, accessToken string) (account.Session, error)
	Refresh(ctx context.Context, refreshToken string) (account.Session, error)
	SignOut(ctx context.Context, accountID string)
}

var _ Accessor = (*account.Service)(nil)

// Monitor watches the held session in the background: one timer, not one
// per request. It warns once per cooldown window while expiry approaches
// and forces a full logout once the session is gone.
type Monitor struct {
	accessor Accessor
	holder   *Holder
	interval time.Duration
	now      func() time.Time

	onWarning func(remaining time.Duration)
	onExpired func()

	mu       sync.Mutex
	warnedAt time.Time
}

// MonitorOption configures Monitor behavior.
type MonitorOption func(*Monitor)

// WithInterval overrides the check interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MonitorOption {
	return func(m *Monitor) {
		if fn != nil {
			m.now = fn
		}
	}
}

// OnWarning sets the callback surfaced when expiry is near.
func OnWarning(fn func(remaining time.Duration)) MonitorOption {
	return func(m *Monitor) { m.onWarning = fn }
}

// OnExpired sets the callback surfaced after a forced logout.
func OnExpired(fn func()) MonitorOption {
	return func(m *Monitor) { m.onExpired = fn }
}

func NewMonitor(accessor Accessor, holder *Holder, opts ...MonitorOption) (*Monitor, error) {
	if accessor == nil || holder == nil {
		return nil, errors.New("session: accessor and holder are required")
	}
	m := &Monitor{
		accessor: accessor,
		holder:   holder,
		interval: defaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run loops until ctx is cancelled. Checks interleave freely with the
// route guard's own checks; both deciding to log out is harmless.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// RefreshSession proactively extends the session. It reports success and
// never lets an error escape; failure forces a logout instead of retrying.
func (m *Monitor) RefreshSession(ctx context.Context) bool {
	cur, ok := m.holder.Get()
	if !ok {
		return false
	}
	sess, err := m.accessor.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn",
			"msg":   "session refresh failed",
			"error": err.Error(),
		})
		m.forceLogout(ctx, cur)
		return false
	}
	m.holder.Set(sess)
	m.resetWarning()
	return true
}

func (m *Monitor) check(ctx context.Context) {
	cur, ok := m.holder.Get()
	if !ok {
		return
	}

	sess, err := m.accessor.GetSession(ctx, cur.AccessToken)
	if err != nil {
		m.forceLogout(ctx, cur)
		return
	}

	remaining := sess.ExpiresAt.Sub(m.now())
	if remaining < 0 {
		m.forceLogout(ctx, cur)
		return
	}
	if remaining <= warnUpper && remaining > warnLower {
		m.warnOnce(remaining)
	}
}

func (m *Monitor) warnOnce(remaining time.Duration) {
	m.mu.Lock()
	if !m.warnedAt.IsZero() && m.now().Sub(m.warnedAt) < warnCooldown {
		m.mu.Unlock()
		return
	}
	m.warnedAt = m.now()
	m.mu.Unlock()

	obs.SessionWarning()
	if m.onWarning != nil {
		m.onWarning(remaining)
	}
}

func (m *Monitor) resetWarning() {
	m.mu.Lock()
	m.warnedAt = time.Time{}
	m.mu.Unlock()
}

func (m *Monitor) forceLogout(ctx context.Context, cur account.Session) {
	m.accessor.SignOut(ctx, cur.AccountID)
	m.holder.Clear()
	m.resetWarning()
	obs.SessionForcedLogout()
	if m.onExpired != nil {
		m.onExpired()
	}
}
