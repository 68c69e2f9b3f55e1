package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store, "test-secret", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acct, err := svc.SignUp(ctx, "Swami@Ashram.org", "om-shanti", "Swami")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if acct.Email != "swami@ashram.org" {
		t.Fatalf("email not normalized: %s", acct.Email)
	}
	if acct.PasswordHash == "om-shanti" {
		t.Fatal("password stored in the clear")
	}

	sess, err := svc.SignIn(ctx, "swami@ashram.org", "om-shanti")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.AccountID != acct.ID {
		t.Fatalf("session for wrong account: %s", sess.AccountID)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatal("session missing tokens")
	}

	got, err := svc.GetSession(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AccountID != acct.ID || got.Email != acct.Email {
		t.Fatalf("unexpected session claims: %+v", got)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "no-at-sign", "pw", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@b.c", "  ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank password, got %v", err)
	}

	if _, err := svc.SignUp(ctx, "a@b.c", "pw", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@b.c", "pw", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestSignInRejections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acct, err := svc.SignUp(ctx, "seeker@ashram.org", "mantra", "")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err := svc.SignIn(ctx, "seeker@ashram.org", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@ashram.org", "mantra"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}

	if err := store.Accounts(ctx).SetStatus(ctx, acct.ID, StatusDisabled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := svc.SignIn(ctx, "seeker@ashram.org", "mantra"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for disabled account, got %v", err)
	}
}

func TestGetSessionRejectsExpiredToken(t *testing.T) {
	now := time.Now().UTC()
	svc, _ := newTestService(t,
		WithAccessTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "x@y.z", "pw", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, err := svc.SignIn(ctx, "x@y.z", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.GetSession(ctx, sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestGetSessionRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.GetSession(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "x@y.z", "pw", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	first, err := svc.SignIn(ctx, "x@y.z", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token must be dead.
	if _, err := svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken reusing old token, got %v", err)
	}
	// The new one still works.
	if _, err := svc.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsTamperedSecret(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "x@y.z", "pw", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, err := svc.SignIn(ctx, "x@y.z", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	id, _, ok := strings.Cut(sess.RefreshToken, ".")
	if !ok {
		t.Fatalf("unexpected refresh token shape: %s", sess.RefreshToken)
	}
	if _, err := svc.Refresh(ctx, id+".forged-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for forged secret, got %v", err)
	}

	// A mismatch revokes the record, so even the real token is now dead.
	rec, err := store.RefreshTokens(ctx).Find(ctx, id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !rec.Revoked {
		t.Fatal("record should be revoked after hash mismatch")
	}
}

func TestSignOutRevokesAllTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "x@y.z", "pw", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	a, err := svc.SignIn(ctx, "x@y.z", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	b, err := svc.SignIn(ctx, "x@y.z", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	svc.SignOut(ctx, a.AccountID)

	for _, tok := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := svc.Refresh(ctx, tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken after sign-out, got %v", err)
		}
	}
}
