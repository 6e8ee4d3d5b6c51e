// Package session implements the decentralized session guard: a per-service
// login/verify loop with its own principal registry, its own secret and a
// deliberately short token lifetime. It shares no trust with the
// centralized issuer; the token kind check makes cross-acceptance fail.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perimetra/perimetra/internal/audit"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/token"
)

// DefaultTTL keeps session expiry observable within a manual test run.
const DefaultTTL = 60 * time.Second

// Guard issues and re-verifies short-lived local session tokens.
type Guard struct {
	registry core.Registry
	codec    *token.Codec
	ttl      time.Duration
	store    core.TokenStore
	now      func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the issuance time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// WithStore records issued session tokens in the given store.
func WithStore(store core.TokenStore) Option {
	return func(g *Guard) {
		g.store = store
	}
}

func New(registry core.Registry, codec *token.Codec, ttl time.Duration, opts ...Option) (*Guard, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Guard{
		registry: registry,
		codec:    codec,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TTL returns the configured session lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Login authenticates against the local registry and mints a session
// token. There is no refresh mechanism; once expired, a new login is the
// only way back in.
func (g *Guard) Login(ctx context.Context, username, password string) (core.IssuedToken, error) {
	principal, err := g.registry.Authenticate(username, password)
	if err != nil {
		return core.IssuedToken{}, err
	}

	now := g.now()
	claims := core.ClaimSet{
		Subject:   principal.Name,
		Role:      principal.Role,
		RiskScore: 0,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
		AuthTime:  now,
		Kind:      core.KindLocal,
		Issuer:    g.codec.Issuer(),
	}

	signed, err := g.codec.Issue(claims)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("minting session token: %w", err)
	}

	issued := core.IssuedToken{
		Value:       signed,
		Fingerprint: audit.Fingerprint(signed),
		ExpiresAt:   claims.ExpiresAt,
		TTL:         g.ttl,
	}

	if g.store != nil {
		rec := core.TokenRecord{
			Fingerprint: issued.Fingerprint,
			Subject:     claims.Subject,
			Kind:        core.KindLocal,
			IssuedAt:    claims.IssuedAt,
			ExpiresAt:   claims.ExpiresAt,
		}
		if err := g.store.Save(ctx, rec); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to record issued session token")
		}
	}

	return issued, nil
}

// Authorize re-verifies a presented session token. A missing, invalid or
// expired token is ErrUnauthorized; a valid token with the wrong role is
// ErrForbidden. The two are distinct because the client reaction differs:
// log in again vs. stop.
func (g *Guard) Authorize(raw string, requiredRole core.Role) (core.ClaimSet, error) {
	if raw == "" {
		return core.ClaimSet{}, fmt.Errorf("%w: missing session token", core.ErrUnauthorized)
	}

	claims, err := g.codec.Verify(raw)
	if err != nil {
		return core.ClaimSet{}, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	}

	if requiredRole != "" && claims.Role != requiredRole {
		return core.ClaimSet{}, fmt.Errorf("%w: role %s required", core.ErrForbidden, requiredRole)
	}

	return claims, nil
}
