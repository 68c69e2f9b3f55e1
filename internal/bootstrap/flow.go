package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ashram.org/internal/account"
	"ashram.org/internal/ids"
	"ashram.org/internal/obs"
	"ashram.org/internal/profile"
)

// TempUserTTL is how long a freshly created temporary user stays usable.
const TempUserTTL = 24 * time.Hour

// Flow drives the temporary-user lifecycle: create a time-boxed account
// whose sole privilege is minting exactly one permanent administrator,
// then self-disable.
type Flow struct {
	accounts *account.Service
	profiles *profile.Gateway
	store    Store
	now      func() time.Time
}

// FlowOption configures Flow behavior.
type FlowOption func(*Flow)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) FlowOption {
	return func(f *Flow) {
		if fn != nil {
			f.now = fn
		}
	}
}

func NewFlow(accounts *account.Service, profiles *profile.Gateway, store Store, opts ...FlowOption) (*Flow, error) {
	if accounts == nil || profiles == nil || store == nil {
		return nil, errors.New("bootstrap: accounts, profiles and store are required")
	}
	f := &Flow{
		accounts: accounts,
		profiles: profiles,
		store:    store,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CreateTempUser creates the account and its temp_admin_creator profile:
// no read/write capabilities, admin_created=false, expires in 24h.
func (f *Flow) CreateTempUser(ctx context.Context, email, password, name string) (*profile.Profile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", ErrInvalidInput)
	}
	acct, err := f.accounts.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	expiresAt := f.now().UTC().Add(TempUserTTL)
	p := &profile.Profile{
		AccountID: acct.ID,
		Name:      name,
		Email:     email,
		Role:      profile.RoleTempAdminCreator,
		ExpiresAt: &expiresAt,
	}
	profile.DefaultCapabilities(profile.RoleTempAdminCreator).Apply(p)
	if err := f.profiles.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// TempUserProfile returns the caller's profile only when its role is
// temp_admin_creator. Any other condition, including fetch errors, yields
// nil: callers treat nil as "not a valid temp user" without knowing why.
func (f *Flow) TempUserProfile(ctx context.Context, accountID string) *profile.Profile {
	if strings.TrimSpace(accountID) == "" {
		return nil
	}
	p, err := f.profiles.GetProfileFor(ctx, accountID)
	if err != nil || p.Role != profile.RoleTempAdminCreator {
		return nil
	}
	return p
}

// CheckTempUserExpiry reports whether the caller's temp profile should be
// treated as expired. An unfetchable profile counts as expired.
func (f *Flow) CheckTempUserExpiry(ctx context.Context, accountID string) bool {
	p := f.TempUserProfile(ctx, accountID)
	return expired(p, f.now())
}

// CreateAdminFromTempUser consumes the caller's one-shot privilege. The
// expiry check runs before the used-check, so an expired profile fails
// with ErrExpired regardless of admin_created.
func (f *Flow) CreateAdminFromTempUser(ctx context.Context, tempAccountID, adminEmail, adminPassword, adminName string) (string, error) {
	temp := f.TempUserProfile(ctx, tempAccountID)
	if temp == nil {
		return "", ErrNoProfile
	}
	if expired(temp, f.now()) {
		return "", ErrExpired
	}
	if temp.AdminCreated {
		return "", ErrAlreadyUsed
	}

	adminEmail = strings.TrimSpace(strings.ToLower(adminEmail))
	adminName = strings.TrimSpace(adminName)
	if adminEmail == "" || adminPassword == "" || adminName == "" {
		return "", fmt.Errorf("%w: admin email, password and name are required", ErrInvalidInput)
	}
	hash, err := account.HashPassword(adminPassword)
	if err != nil {
		return "", err
	}

	admin := PromotedAdmin{
		AccountID:    ids.New(),
		Email:        adminEmail,
		Name:         adminName,
		PasswordHash: hash,
		Capabilities: profile.DefaultCapabilities(profile.RoleAdmin),
	}
	if err := f.store.PromoteTempUser(ctx, temp.AccountID, admin); err != nil {
		return "", err
	}

	f.profiles.MirrorLegacyAdmin(ctx, admin.AccountID, admin.Email, profile.RoleAdmin)
	return admin.AccountID, nil
}

// DisableExpiredTempUsers flips is_disabled on every expired, still-enabled
// temp profile. Idempotent; zero matches is not an error.
func (f *Flow) DisableExpiredTempUsers(ctx context.Context) (int64, error) {
	n, err := f.store.DisableExpired(ctx, f.now().UTC())
	if err != nil {
		return 0, err
	}
	obs.TempUsersDisabled(n)
	return n, nil
}

// SignInTempUser signs the temp user in and rejects expired profiles,
// signing the fresh session back out before returning.
func (f *Flow) SignInTempUser(ctx context.Context, email, password string) (account.Session, error) {
	sess, err := f.accounts.SignIn(ctx, email, password)
	if err != nil {
		return account.Session{}, err
	}
	if p := f.TempUserProfile(ctx, sess.AccountID); p != nil && expired(p, f.now()) {
		f.accounts.SignOut(ctx, sess.AccountID)
		return account.Session{}, ErrExpired
	}
	return sess, nil
}

func expired(p *profile.Profile, now time.Time) bool {
	if p == nil {
		return true
	}
	if p.ExpiresAt == nil {
		return false
	}
	return now.After(*p.ExpiresAt)
}
