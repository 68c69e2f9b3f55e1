package account

import "time"

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Account is an identity record: the thing that signs in. Role and
// capability data live on the profile row, not here.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is the single unit of authenticated state handed to callers:
// a signed access token plus the rotating refresh token backing it.
type Session struct {
	AccountID        string    `json:"account_id"`
	Email            string    `json:"email"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// RefreshToken is the persisted half of a refresh credential. Only the
// sha256 of the client secret is stored.
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
