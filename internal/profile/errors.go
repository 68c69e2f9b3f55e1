package profile

import "errors"

var (
	ErrInvalidInput = errors.New("profile: invalid input")
	ErrNotFound     = errors.New("profile: not found")
	ErrPermission   = errors.New("profile: permission denied")
	ErrMainAdmin    = errors.New("profile: cannot modify the main administrator account")
)
