package core

import "errors"

var (
	// ErrInvalidCredentials is returned on any failed login. It is the same
	// for unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized covers a missing, invalid or expired session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden covers a valid session whose role does not suffice.
	ErrForbidden = errors.New("forbidden")
)
