package account

import "errors"

var (
	ErrInvalidInput = errors.New("account: invalid input")
	ErrNotFound     = errors.New("account: not found")
	ErrConflict     = errors.New("account: already exists")
	ErrUnauthorized = errors.New("account: unauthorized")
	ErrInvalidToken = errors.New("account: invalid token")
)
