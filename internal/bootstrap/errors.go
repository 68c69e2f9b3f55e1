package bootstrap

import "errors"

var (
	ErrInvalidInput = errors.New("bootstrap: invalid input")
	// ErrNoProfile means the caller has no fetchable temp_admin_creator
	// profile; callers must not distinguish the underlying reason.
	ErrNoProfile   = errors.New("bootstrap: no temporary user profile found")
	ErrExpired     = errors.New("bootstrap: temporary user has expired")
	ErrAlreadyUsed = errors.New("bootstrap: temporary user has already created an admin")
)
