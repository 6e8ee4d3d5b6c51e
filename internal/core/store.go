package core

import (
	"context"
	"time"
)

// TokenRecord is the stored metadata of an issued token. The token value
// itself is never stored, only its fingerprint.
type TokenRecord struct {
	// Fingerprint is the audit identifier of the token.
	Fingerprint string `json:"fingerprint"`

	// Subject is the principal the token was issued to.
	Subject string `json:"subject"`

	// Kind of the issued token.
	Kind TokenKind `json:"kind"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore keeps track of issued tokens for operator visibility.
type TokenStore interface {
	// Save records a newly issued token.
	Save(ctx context.Context, rec TokenRecord) error

	// ListActive returns records whose tokens have not expired yet.
	ListActive(ctx context.Context) ([]TokenRecord, error)
}
