package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"ashram.org/internal/account"
	"ashram.org/internal/profile"
)

type testRig struct {
	flow     *Flow
	accounts *account.Service
	gateway  *profile.Gateway
	profiles *profile.MemoryStore
	now      *time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	accountStore := account.NewMemoryStore()
	accounts, err := account.NewService(accountStore, "test-secret", account.WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	profileStore := profile.NewMemoryStore()
	gateway, err := profile.NewGateway(profileStore)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	flow, err := NewFlow(accounts, gateway, NewMemoryStore(accountStore, profileStore), WithClock(clock))
	if err != nil {
		t.Fatalf("NewFlow: %v", err)
	}
	return &testRig{flow: flow, accounts: accounts, gateway: gateway, profiles: profileStore, now: &now}
}

func (r *testRig) advance(d time.Duration) { *r.now = r.now.Add(d) }

func TestCreateTempUser(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	p, err := rig.flow.CreateTempUser(ctx, "Temp@Ashram.org", "one-day", "Temp")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}
	if p.Role != profile.RoleTempAdminCreator {
		t.Fatalf("wrong role: %s", p.Role)
	}
	if p.CanRead || p.CanWrite || p.CanManageUsers {
		t.Fatalf("temp user must have no capabilities: %+v", p)
	}
	if p.AdminCreated {
		t.Fatal("new temp user already marked used")
	}
	if p.ExpiresAt == nil || !p.ExpiresAt.Equal(rig.now.Add(TempUserTTL)) {
		t.Fatalf("unexpected expiry: %v", p.ExpiresAt)
	}

	if _, err := rig.flow.CreateTempUser(ctx, "", "pw", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateAdminFromTempUser(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	temp, err := rig.flow.CreateTempUser(ctx, "temp@ashram.org", "one-day", "Temp")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}

	adminID, err := rig.flow.CreateAdminFromTempUser(ctx, temp.AccountID, "admin@ashram.org", "strong-pw", "Admin")
	if err != nil {
		t.Fatalf("CreateAdminFromTempUser: %v", err)
	}

	// The admin exists with full capabilities and records its creator.
	adminProfile, err := rig.gateway.GetProfileFor(ctx, adminID)
	if err != nil {
		t.Fatalf("GetProfileFor(admin): %v", err)
	}
	if adminProfile.Role != profile.RoleAdmin || !adminProfile.CanManageUsers {
		t.Fatalf("unexpected admin profile: %+v", adminProfile)
	}
	if adminProfile.CreatedBy != temp.AccountID {
		t.Fatalf("creator not recorded: %s", adminProfile.CreatedBy)
	}

	// The admin can sign in.
	if _, err := rig.accounts.SignIn(ctx, "admin@ashram.org", "strong-pw"); err != nil {
		t.Fatalf("admin SignIn: %v", err)
	}

	// The temp profile is spent and disabled.
	spent, err := rig.gateway.GetProfileFor(ctx, temp.AccountID)
	if err != nil {
		t.Fatalf("GetProfileFor(temp): %v", err)
	}
	if !spent.AdminCreated || !spent.IsDisabled {
		t.Fatalf("temp profile not consumed: %+v", spent)
	}

	// The legacy mirror picked up the new admin.
	if rig.profiles.LegacyAdminCount() != 1 {
		t.Fatalf("expected 1 legacy admin row, got %d", rig.profiles.LegacyAdminCount())
	}
}

func TestCreateAdminIsOneShot(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	temp, err := rig.flow.CreateTempUser(ctx, "temp@ashram.org", "one-day", "Temp")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}
	if _, err := rig.flow.CreateAdminFromTempUser(ctx, temp.AccountID, "a1@ashram.org", "pw", "A1"); err != nil {
		t.Fatalf("first CreateAdminFromTempUser: %v", err)
	}
	if _, err := rig.flow.CreateAdminFromTempUser(ctx, temp.AccountID, "a2@ashram.org", "pw", "A2"); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}

func TestExpiryWinsOverAlreadyUsed(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	temp, err := rig.flow.CreateTempUser(ctx, "temp@ashram.org", "one-day", "Temp")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}

	// Mark the profile used, then push past the window. The expiry error
	// must win regardless of the used flag.
	used := true
	if _, err := rig.profiles.Update(ctx, temp.AccountID, profile.Patch{AdminCreated: &used}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rig.advance(TempUserTTL + time.Minute)

	if _, err := rig.flow.CreateAdminFromTempUser(ctx, temp.AccountID, "a@ashram.org", "pw", "A"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCreateAdminRequiresTempProfile(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.flow.CreateAdminFromTempUser(ctx, "ghost", "a@ashram.org", "pw", "A"); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}

	// A regular user account is not a temp profile either.
	if err := rig.gateway.CreateProfile(ctx, &profile.Profile{AccountID: "u1", Role: profile.RoleUser}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := rig.flow.CreateAdminFromTempUser(ctx, "u1", "a@ashram.org", "pw", "A"); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile for non-temp role, got %v", err)
	}
}

func TestTempUserProfileAndExpiry(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	temp, err := rig.flow.CreateTempUser(ctx, "temp@ashram.org", "one-day", "Temp")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}

	if rig.flow.TempUserProfile(ctx, temp.AccountID) == nil {
		t.Fatal("expected temp profile")
	}
	if rig.flow.TempUserProfile(ctx, "ghost") != nil {
		t.Fatal("expected nil for unknown account")
	}
	if rig.flow.CheckTempUserExpiry(ctx, temp.AccountID) {
		t.Fatal("fresh temp user reported expired")
	}
	if !rig.flow.CheckTempUserExpiry(ctx, "ghost") {
		t.Fatal("missing profile must count as expired")
	}

	rig.advance(TempUserTTL + time.Second)
	if !rig.flow.CheckTempUserExpiry(ctx, temp.AccountID) {
		t.Fatal("temp user past the window reported valid")
	}
}

func TestSignInTempUserRejectsExpired(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.flow.CreateTempUser(ctx, "temp@ashram.org", "one-day", "Temp"); err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}

	sess, err := rig.flow.SignInTempUser(ctx, "temp@ashram.org", "one-day")
	if err != nil {
		t.Fatalf("SignInTempUser: %v", err)
	}
	if sess.AccessToken == "" {
		t.Fatal("expected a session")
	}

	rig.advance(TempUserTTL + time.Minute)
	if _, err := rig.flow.SignInTempUser(ctx, "temp@ashram.org", "one-day"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDisableExpiredTempUsers(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	old, err := rig.flow.CreateTempUser(ctx, "old@ashram.org", "pw", "Old")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}
	rig.advance(TempUserTTL + time.Minute)
	fresh, err := rig.flow.CreateTempUser(ctx, "fresh@ashram.org", "pw", "Fresh")
	if err != nil {
		t.Fatalf("CreateTempUser: %v", err)
	}

	n, err := rig.flow.DisableExpiredTempUsers(ctx)
	if err != nil {
		t.Fatalf("DisableExpiredTempUsers: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 disabled, got %d", n)
	}

	oldP, err := rig.gateway.GetProfileFor(ctx, old.AccountID)
	if err != nil {
		t.Fatalf("GetProfileFor: %v", err)
	}
	if !oldP.IsDisabled {
		t.Fatal("expired temp user not disabled")
	}
	freshP, err := rig.gateway.GetProfileFor(ctx, fresh.AccountID)
	if err != nil {
		t.Fatalf("GetProfileFor: %v", err)
	}
	if freshP.IsDisabled {
		t.Fatal("fresh temp user wrongly disabled")
	}

	// Running the sweep again finds nothing new.
	if n, err := rig.flow.DisableExpiredTempUsers(ctx); err != nil || n != 0 {
		t.Fatalf("expected idempotent sweep, got n=%d err=%v", n, err)
	}
}
