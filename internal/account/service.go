package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ashram.org/internal/ids"
	"ashram.org/internal/obs"
)

const (
	defaultIssuer     = "ashram"
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service issues, validates, refreshes and revokes sessions. It is the
// single owner of the signing secret; every other component reads session
// state through it.
type Service struct {
	store  Store
	now    func() time.Time
	secret []byte

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service signing tokens with secret.
func NewService(store Store, secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("account: signing secret is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// SignUp creates an account. A duplicate email surfaces as ErrConflict.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	acct := &Account{
		ID:           ids.New(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Status:       StatusActive,
	}
	if err := s.store.Accounts(ctx).Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// SignIn authenticates credentials and issues a fresh session. Disabled
// accounts are rejected the same way as bad credentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrUnauthorized
	}
	acct, err := s.store.Accounts(ctx).FindByEmail(ctx, email)
	if err != nil {
		return Session{}, ErrUnauthorized
	}
	if acct.Status != StatusActive {
		return Session{}, ErrUnauthorized
	}
	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return Session{}, ErrUnauthorized
	}
	return s.mintSession(ctx, acct)
}

// GetSession validates an access token and returns the session it
// represents. It performs no store reads: the token is the session.
func (s *Service) GetSession(ctx context.Context, accessToken string) (Session, error) {
	claims, err := s.parseAccessToken(accessToken)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	return Session{
		AccountID:   claims.Subject,
		Email:       claims.Email,
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Refresh rotates the refresh token and issues a new session. The old
// token is revoked whether or not the rotation succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return Session{}, ErrInvalidToken
	}

	store := s.store.RefreshTokens(ctx)
	record, err := store.Find(ctx, tokenID)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return Session{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = store.MarkRevoked(ctx, record.ID)
		return Session{}, ErrInvalidToken
	}

	acct, err := s.store.Accounts(ctx).Find(ctx, record.AccountID)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	if acct.Status != StatusActive {
		_ = store.MarkRevoked(ctx, record.ID)
		return Session{}, ErrUnauthorized
	}

	if err := store.MarkRevoked(ctx, record.ID); err != nil {
		return Session{}, err
	}
	return s.mintSession(ctx, acct)
}

// SignOut revokes every refresh token for the account. It always succeeds
// locally; store failures are logged, not returned.
func (s *Service) SignOut(ctx context.Context, accountID string) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return
	}
	if err := s.store.RefreshTokens(ctx).MarkRevokedByAccount(ctx, accountID); err != nil {
		obs.LogEvent(map[string]any{
			"level":      "warn",
			"msg":        "sign-out token revocation failed",
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) mintSession(ctx context.Context, acct *Account) (Session, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	refreshString, rec, err := s.generateRefreshToken(acct.ID, now)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return Session{}, err
	}
	return Session{
		AccountID:        acct.ID,
		Email:            acct.Email,
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		ExpiresAt:        exp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *Service) parseAccessToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) generateRefreshToken(accountID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := ids.New()
	sum := sha256.Sum256([]byte(secret))
	rec := &RefreshToken{
		ID:        tokenID,
		AccountID: accountID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return tokenID + "." + secret, rec, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
