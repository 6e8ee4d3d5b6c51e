// Package issuer implements the centralized identity issuer: it
// authenticates principals against a static registry and mints signed
// access tokens.
package issuer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perimetra/perimetra/internal/audit"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/token"
)

// Issuer mints access tokens for one principal registry. The registry and
// lifetime are fixed at startup; the token lifetime is not negotiable per
// request.
type Issuer struct {
	registry core.Registry
	codec    *token.Codec
	lifetime time.Duration
	store    core.TokenStore
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the issuance time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithStore records issued tokens in the given store.
func WithStore(store core.TokenStore) Option {
	return func(i *Issuer) {
		i.store = store
	}
}

func New(registry core.Registry, codec *token.Codec, lifetime time.Duration, opts ...Option) (*Issuer, error) {
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}
	i := &Issuer{
		registry: registry,
		codec:    codec,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Login authenticates the credential and mints an access token. The device
// identifier is taken from the request as asserted; comparing it against
// the registered set is the policy layer's job, not the issuer's.
func (i *Issuer) Login(ctx context.Context, username, password, deviceID string) (core.IssuedToken, error) {
	principal, err := i.registry.Authenticate(username, password)
	if err != nil {
		return core.IssuedToken{}, err
	}

	device := core.NormalizeDevice(deviceID)
	now := i.now()
	claims := core.ClaimSet{
		Subject:   principal.Name,
		Role:      principal.Role,
		DeviceID:  device,
		RiskScore: RiskScore(principal.Role, device),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.lifetime),
		AuthTime:  now,
		Kind:      core.KindAccess,
		Issuer:    i.codec.Issuer(),
	}

	signed, err := i.codec.Issue(claims)
	if err != nil {
		return core.IssuedToken{}, fmt.Errorf("minting access token: %w", err)
	}

	issued := core.IssuedToken{
		Value:       signed,
		Fingerprint: audit.Fingerprint(signed),
		ExpiresAt:   claims.ExpiresAt,
		TTL:         i.lifetime,
	}

	if i.store != nil {
		rec := core.TokenRecord{
			Fingerprint: issued.Fingerprint,
			Subject:     claims.Subject,
			Kind:        core.KindAccess,
			IssuedAt:    claims.IssuedAt,
			ExpiresAt:   claims.ExpiresAt,
		}
		if err := i.store.Save(ctx, rec); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to record issued token")
		}
	}

	return issued, nil
}

// RiskScore derives a bounded risk score from what the issuer knows at
// login time: contractors carry a higher baseline, a missing device adds
// risk. Scores stay strictly below 1.
func RiskScore(role core.Role, device string) float64 {
	risk := 0.40
	if role == core.RoleContractor {
		risk += 0.20
	}
	if core.NormalizeDevice(device) == "" {
		risk += 0.20
	}
	if risk < 0 {
		risk = 0
	}
	if risk > 0.99 {
		risk = 0.99
	}
	return risk
}
