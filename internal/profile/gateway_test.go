package profile

import (
	"context"
	"errors"
	"testing"
)

func newTestGateway(t *testing.T) (*Gateway, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	gw, err := NewGateway(store)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw, store
}

func adminActor(id string) *Profile {
	p := &Profile{AccountID: id, Role: RoleAdmin}
	DefaultCapabilities(RoleAdmin).Apply(p)
	return p
}

func TestSelectPrefersAdminRow(t *testing.T) {
	rows := []*Profile{
		{AccountID: "a1", Role: RoleUser},
		{AccountID: "a1", Role: RoleAdmin},
		{AccountID: "a1", Role: RoleUser},
	}
	if got := Select(rows); got.Role != RoleAdmin {
		t.Fatalf("expected admin row, got %s", got.Role)
	}
}

func TestSelectFallsBackToFirstRow(t *testing.T) {
	rows := []*Profile{
		{AccountID: "a1", Role: RoleUser, Name: "first"},
		{AccountID: "a1", Role: RoleUser, Name: "second"},
	}
	if got := Select(rows); got.Name != "first" {
		t.Fatalf("expected first row, got %s", got.Name)
	}
	if Select(nil) != nil {
		t.Fatal("expected nil for empty slice")
	}
}

func TestGetProfileForResolvesDuplicates(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	for _, role := range []string{RoleUser, RoleOperator} {
		p := &Profile{AccountID: "dup", Role: role}
		if err := gw.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile(%s): %v", role, err)
		}
	}

	got, err := gw.GetProfileFor(ctx, "dup")
	if err != nil {
		t.Fatalf("GetProfileFor: %v", err)
	}
	if got.Role != RoleOperator {
		t.Fatalf("expected the privileged row to win, got %s", got.Role)
	}
}

func TestCreateProfileRejectsUnknownRole(t *testing.T) {
	gw, _ := newTestGateway(t)
	err := gw.CreateProfile(context.Background(), &Profile{AccountID: "x", Role: "guru"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateProfileMainAdminImmutable(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	main := &Profile{AccountID: "main", Role: RoleAdmin, IsMainAdmin: true}
	DefaultCapabilities(RoleAdmin).Apply(main)
	if err := gw.CreateProfile(ctx, main); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	actor := adminActor("boss")
	name := "renamed"
	if _, err := gw.UpdateProfile(ctx, actor, "main", Patch{Name: &name}); !errors.Is(err, ErrMainAdmin) {
		t.Fatalf("expected ErrMainAdmin on update, got %v", err)
	}
	if err := gw.DeleteProfile(ctx, actor, "main"); !errors.Is(err, ErrMainAdmin) {
		t.Fatalf("expected ErrMainAdmin on delete, got %v", err)
	}
}

func TestUpdateProfilePermissions(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	target := &Profile{AccountID: "t1", Role: RoleUser, CanEditProfile: true}
	if err := gw.CreateProfile(ctx, target); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	name := "new name"
	yes := true

	// A manager may patch anything but a main admin.
	if _, err := gw.UpdateProfile(ctx, adminActor("boss"), "t1", Patch{CanWrite: &yes}); err != nil {
		t.Fatalf("manager update: %v", err)
	}

	// The target may rename itself when can_edit_profile is set.
	self := &Profile{AccountID: "t1", Role: RoleUser, CanEditProfile: true}
	updated, err := gw.UpdateProfile(ctx, self, "t1", Patch{Name: &name})
	if err != nil {
		t.Fatalf("self rename: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("rename not applied: %s", updated.Name)
	}

	// Self-service never extends to capability bits.
	if _, err := gw.UpdateProfile(ctx, self, "t1", Patch{CanManageUsers: &yes}); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission escalating self, got %v", err)
	}

	// A bystander may not touch someone else.
	other := &Profile{AccountID: "other", Role: RoleUser, CanEditProfile: true}
	if _, err := gw.UpdateProfile(ctx, other, "t1", Patch{Name: &name}); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission for bystander, got %v", err)
	}

	// A super admin manages users even without the explicit bit.
	super := &Profile{AccountID: "s1", Role: RoleSuperAdmin}
	if _, err := gw.UpdateProfile(ctx, super, "t1", Patch{CanRead: &yes}); err != nil {
		t.Fatalf("super admin update: %v", err)
	}
}

func TestUpdateProfileNormalizesRole(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if err := gw.CreateProfile(ctx, &Profile{AccountID: "t1", Role: RoleUser}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	role := " Admin "
	p, err := gw.UpdateProfile(ctx, adminActor("boss"), "t1", Patch{Role: &role})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.Role != RoleAdmin {
		t.Fatalf("role not normalized: %q", p.Role)
	}

	bad := "guru"
	if _, err := gw.UpdateProfile(ctx, adminActor("boss"), "t1", Patch{Role: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
}

func TestDeleteProfileRequiresManager(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if err := gw.CreateProfile(ctx, &Profile{AccountID: "t1", Role: RoleUser}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := gw.DeleteProfile(ctx, &Profile{AccountID: "t1", Role: RoleUser}, "t1"); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if err := gw.DeleteProfile(ctx, adminActor("boss"), "t1"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if _, err := gw.GetProfileFor(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFixDuplicateProfiles(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	for _, role := range []string{RoleUser, RoleAdmin, RoleUser} {
		if err := gw.CreateProfile(ctx, &Profile{AccountID: "dup", Role: role}); err != nil {
			t.Fatalf("CreateProfile: %v", err)
		}
	}

	removed, err := gw.FixDuplicateProfiles(ctx, "dup")
	if err != nil {
		t.Fatalf("FixDuplicateProfiles: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 rows removed, got %d", removed)
	}
	p, err := gw.GetProfileFor(ctx, "dup")
	if err != nil {
		t.Fatalf("GetProfileFor: %v", err)
	}
	if p.Role != RoleAdmin {
		t.Fatalf("wrong survivor: %s", p.Role)
	}

	// Already-clean accounts are a no-op.
	if n, err := gw.FixDuplicateProfiles(ctx, "dup"); err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
}

type collapseFailStore struct {
	*MemoryStore
}

func (s *collapseFailStore) CollapseProfiles(context.Context, string, *Profile) error {
	return errors.New("store down")
}

func TestFixDuplicateProfilesKeepsRowsOnFailure(t *testing.T) {
	store := &collapseFailStore{MemoryStore: NewMemoryStore()}
	gw, err := NewGateway(store)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	ctx := context.Background()

	for _, role := range []string{RoleUser, RoleAdmin} {
		if err := gw.CreateProfile(ctx, &Profile{AccountID: "dup", Role: role}); err != nil {
			t.Fatalf("CreateProfile: %v", err)
		}
	}

	if _, err := gw.FixDuplicateProfiles(ctx, "dup"); err == nil {
		t.Fatal("expected an error from the failing store")
	}

	// A failed collapse must not touch the rows; the admin row in
	// particular has to survive.
	rows, err := store.FindByAccount(ctx, "dup")
	if err != nil {
		t.Fatalf("FindByAccount: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected both rows to survive, got %d", len(rows))
	}
	if Select(rows).Role != RoleAdmin {
		t.Fatal("admin row lost")
	}
}

func TestDefaultCapabilitiesTable(t *testing.T) {
	cases := []struct {
		role       string
		manageUser bool
		read       bool
	}{
		{RoleUser, false, true},
		{RoleOperator, false, true},
		{RoleAdmin, true, true},
		{RoleSuperAdmin, true, true},
		{RoleTempAdminCreator, false, false},
	}
	for _, tc := range cases {
		caps := DefaultCapabilities(tc.role)
		if caps.CanManageUsers != tc.manageUser || caps.CanRead != tc.read {
			t.Fatalf("%s: unexpected capabilities %+v", tc.role, caps)
		}
	}
	if KnownRole("guru") {
		t.Fatal("unknown role accepted")
	}
	if !HasAdminAccess(RoleTempAdminCreator) {
		t.Fatal("temp_admin_creator should pass the route allow-list")
	}
	if HasAdminAccess(RoleUser) {
		t.Fatal("user role must not pass the route allow-list")
	}
}
