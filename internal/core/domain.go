package core

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

// Role is the access role carried by a principal and its tokens.
type Role string

const (
	RoleAnalyst    Role = "analyst"
	RoleContractor Role = "contractor"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// ParseRole validates a role string from config or a token payload.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAnalyst, RoleContractor, RoleAdmin, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// TokenKind discriminates the trust domain a token was minted for.
// A token of one kind must never be accepted where the other is expected.
type TokenKind string

const (
	// KindAccess marks tokens minted by the centralized identity issuer.
	KindAccess TokenKind = "access"

	// KindLocal marks short-lived session tokens minted by a local service.
	KindLocal TokenKind = "local"
)

// Principal is a registered identity. Registries are loaded at startup and
// never mutated afterwards.
type Principal struct {
	// Name is the unique login name within one registry.
	Name string `yaml:"name"`

	// Password is the plaintext credential the principal presents.
	Password string `yaml:"password"`

	// Role assigned to this principal.
	Role Role `yaml:"role"`

	// Device is the optional device identifier bound to this principal.
	// The policy layer, not the issuer, compares asserted devices against
	// the registered set.
	Device string `yaml:"device,omitempty"`
}

// Registry is a read-only principal lookup, keyed by name.
type Registry map[string]Principal

// Authenticate checks a presented credential against the registry.
// Unknown user and wrong password produce the identical error so callers
// cannot enumerate usernames.
func (r Registry) Authenticate(username, password string) (Principal, error) {
	p, ok := r[username]
	// compare even on miss so both paths do comparable work
	expected := p.Password
	if subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 || !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

// ClaimSet is the decoded, verified payload of a signed token.
// It is only ever constructed from a successfully verified, non-expired
// token, or by an issuer about to sign one.
type ClaimSet struct {
	// Subject is the principal name.
	Subject string `json:"subject"`

	// Role of the principal at issuance time.
	Role Role `json:"role"`

	// DeviceID asserted at login. Empty means "no device asserted".
	DeviceID string `json:"device_id,omitempty"`

	// RiskScore in [0,1], computed at issuance.
	RiskScore float64 `json:"risk_score"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// AuthTime is when the principal last authenticated interactively.
	AuthTime time.Time `json:"auth_time"`

	// Kind discriminates access tokens from local session tokens.
	Kind TokenKind `json:"token_kind"`

	// Issuer names the service that minted the token.
	Issuer string `json:"issuer"`
}

// NormalizeDevice maps the "no device" spellings seen in the wild to the
// empty string: absent, empty, "unknown" and "none" all mean no device
// asserted.
func NormalizeDevice(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "unknown", "none":
		return ""
	}
	return s
}

// RequestContext is the per-request input to the decision engine.
// It is ephemeral; nothing of it survives the request.
type RequestContext struct {
	// Time is the evaluation timestamp. The engine converts it to the
	// policy's time zone.
	Time time.Time

	// Path is the requested resource path.
	Path string
}

// IssuedToken is what an issuer hands back on a successful login.
type IssuedToken struct {
	// Value is the signed compact token.
	Value string `json:"value"`

	// Fingerprint identifies the token in audit logs without exposing it.
	Fingerprint string `json:"fingerprint"`

	ExpiresAt time.Time `json:"expires_at"`

	// TTL is the full validity window at issuance.
	TTL time.Duration `json:"-"`
}
