// Package token implements the signed token codec: serialization, HMAC
// signing and verification of claim sets. It knows nothing about policy.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/perimetra/perimetra/internal/core"
)

// errUnexpectedMethod is returned from the keyfunc when the token header
// announces a different algorithm than the codec is configured for. It is
// checked before any signature work, preventing downgrade tricks.
var errUnexpectedMethod = errors.New("unexpected signing method")

// Codec signs and verifies compact tokens for exactly one trust domain:
// one secret, one algorithm, one issuer name, one token kind.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	issuer string
	kind   core.TokenKind
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used during verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// New builds a codec. Only HMAC algorithms are supported; the signing
// scheme is fixed in configuration, never negotiated at runtime.
func New(secret []byte, algorithm, issuer string, kind core.TokenKind, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not an HMAC method", algorithm)
	}
	c := &Codec{
		secret: secret,
		method: method,
		issuer: issuer,
		kind:   kind,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issuer returns the issuer name baked into minted tokens.
func (c *Codec) Issuer() string {
	return c.issuer
}

// Issue serializes and signs the claim set. It is deterministic given
// identical claims; timestamps come from the claims, not the clock.
func (c *Codec) Issue(cs core.ClaimSet) (string, error) {
	if cs.Subject == "" {
		return "", fmt.Errorf("claim set has empty subject")
	}
	if !cs.ExpiresAt.After(cs.IssuedAt) {
		return "", fmt.Errorf("claim set expires at or before issuance")
	}

	claims := jwt.MapClaims{
		"sub":       cs.Subject,
		"role":      string(cs.Role),
		"deviceid":  cs.DeviceID,
		"riskscore": cs.RiskScore,
		"iat":       cs.IssuedAt.Unix(),
		"exp":       cs.ExpiresAt.Unix(),
		"auth_time": cs.AuthTime.Unix(),
		"typ":       string(cs.Kind),
		"iss":       cs.Issuer,
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and claim shape, in that
// order of trust: nothing is read from the payload before the signature
// holds. Every failure is classified into exactly one *VerifyError kind.
func (c *Codec) Verify(raw string) (core.ClaimSet, error) {
	parser := jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("%w: got %s, want %s", errUnexpectedMethod, t.Method.Alg(), c.method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		return core.ClaimSet{}, classify(err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return core.ClaimSet{}, verifyErr(MalformedClaims, fmt.Errorf("unexpected claims type %T", tok.Claims))
	}
	return c.extract(claims)
}

func classify(err error) error {
	switch {
	case errors.Is(err, errUnexpectedMethod):
		return verifyErr(AlgorithmMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return verifyErr(Expired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return verifyErr(BadSignature, err)
	default:
		return verifyErr(MalformedClaims, err)
	}
}

// extract rebuilds the typed claim set from the raw payload. The signature
// and expiry are already verified at this point.
func (c *Codec) extract(claims jwt.MapClaims) (core.ClaimSet, error) {
	malformed := func(format string, args ...any) (core.ClaimSet, error) {
		return core.ClaimSet{}, verifyErr(MalformedClaims, fmt.Errorf(format, args...))
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return malformed("missing or empty 'sub' claim")
	}

	roleStr, _ := claims["role"].(string)
	role, err := core.ParseRole(roleStr)
	if err != nil {
		return malformed("invalid 'role' claim: %v", err)
	}

	risk, ok := numericClaim(claims, "riskscore")
	if !ok || risk < 0 || risk > 1 {
		return malformed("missing or out-of-range 'riskscore' claim")
	}

	iat, ok := numericClaim(claims, "iat")
	if !ok {
		return malformed("missing 'iat' claim")
	}
	exp, ok := numericClaim(claims, "exp")
	if !ok {
		return malformed("missing 'exp' claim")
	}
	issuedAt := time.Unix(int64(iat), 0).UTC()
	expiresAt := time.Unix(int64(exp), 0).UTC()
	if !expiresAt.After(issuedAt) {
		return malformed("'exp' is not after 'iat'")
	}

	authTime := issuedAt
	if at, ok := numericClaim(claims, "auth_time"); ok {
		authTime = time.Unix(int64(at), 0).UTC()
	}

	device, _ := claims["deviceid"].(string)

	kind, _ := claims["typ"].(string)
	issuer, _ := claims["iss"].(string)
	if core.TokenKind(kind) != c.kind || issuer != c.issuer {
		return core.ClaimSet{}, verifyErr(WrongKind,
			fmt.Errorf("token minted for %s/%s, expected %s/%s", issuer, kind, c.issuer, c.kind))
	}

	return core.ClaimSet{
		Subject:   sub,
		Role:      role,
		DeviceID:  core.NormalizeDevice(device),
		RiskScore: risk,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		AuthTime:  authTime,
		Kind:      c.kind,
		Issuer:    issuer,
	}, nil
}

func numericClaim(claims jwt.MapClaims, key string) (float64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
