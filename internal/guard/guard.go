package guard

import (
	"context"
	"errors"

	"ashram.org/internal/account"
	"ashram.org/internal/obs"
	"ashram.org/internal/profile"
)

// Redirect targets for denied navigations. A denial never renders a
// partial admin view; the caller redirects and starts over.
const (
	AdminLoginPath = "/admin-login"
	TempLoginPath  = "/temp-login"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allow      bool
	RedirectTo string
	// Session and Profile are populated on Allow so handlers don't fetch
	// them again within the same request.
	Session account.Session
	Profile *profile.Profile
}

// SessionSource validates an access token into a session.
type SessionSource interface {
	GetSession(ctx context.Context, accessToken string) (account.Session, error)
}

// ProfileSource loads the caller's profile row.
type ProfileSource interface {
	GetProfileFor(ctx context.Context, accountID string) (*profile.Profile, error)
}

// TempSource re-validates temp_admin_creator profiles.
type TempSource interface {
	TempUserProfile(ctx context.Context, accountID string) *profile.Profile
}

// Guard evaluates session + profile role for every protected navigation.
// Nothing is cached between checks: a stale allow after remote-side
// disablement costs more than the extra lookups.
type Guard struct {
	sessions SessionSource
	profiles ProfileSource
	temps    TempSource
}

func New(sessions SessionSource, profiles ProfileSource, temps TempSource) (*Guard, error) {
	if sessions == nil || profiles == nil || temps == nil {
		return nil, errors.New("guard: sessions, profiles and temps are required")
	}
	return &Guard{sessions: sessions, profiles: profiles, temps: temps}, nil
}

// Authorize checks the caller's token against the flat admin allow-list.
// With requireAdmin=false only a valid session is needed.
func (g *Guard) Authorize(ctx context.Context, accessToken string, requireAdmin bool) Decision {
	redirect := AdminLoginPath
	if !requireAdmin {
		redirect = TempLoginPath
	}

	sess, err := g.sessions.GetSession(ctx, accessToken)
	if err != nil {
		return g.deny(redirect)
	}

	if !requireAdmin {
		obs.GuardDecision("allow")
		return Decision{Allow: true, Session: sess}
	}

	p, err := g.profiles.GetProfileFor(ctx, sess.AccountID)
	if err != nil {
		return g.deny(redirect)
	}
	if p.IsDisabled {
		// Disabled accounts are treated as unauthenticated regardless of
		// role; no reliance on the store invalidating their sessions.
		return g.deny(redirect)
	}
	if !profile.HasAdminAccess(p.Role) {
		return g.deny(redirect)
	}
	if p.Role == profile.RoleTempAdminCreator {
		if g.temps.TempUserProfile(ctx, sess.AccountID) == nil {
			return g.deny(redirect)
		}
	}

	obs.GuardDecision("allow")
	return Decision{Allow: true, Session: sess, Profile: p}
}

func (g *Guard) deny(redirect string) Decision {
	obs.GuardDecision("deny")
	return Decision{Allow: false, RedirectTo: redirect}
}
