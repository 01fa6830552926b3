package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong secrets
	// so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountSuspended   = errors.New("auth: account suspended")
	ErrDuplicateUsername  = errors.New("auth: username already taken")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrExpired            = errors.New("auth: token expired")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrNotFound           = errors.New("auth: not found")
	ErrInvalidInput       = errors.New("auth: invalid input")
)
