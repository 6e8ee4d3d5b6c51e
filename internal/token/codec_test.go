package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/perimetra/perimetra/internal/core"
)

var testBase = time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

func testClaims() core.ClaimSet {
	return core.ClaimSet{
		Subject:   "alice",
		Role:      core.RoleAnalyst,
		DeviceID:  "mac-001",
		RiskScore: 0.4,
		IssuedAt:  testBase,
		ExpiresAt: testBase.Add(30 * time.Minute),
		AuthTime:  testBase,
		Kind:      core.KindAccess,
		Issuer:    "perimetra-idp",
	}
}

func newTestCodec(t *testing.T, at time.Time) *Codec {
	t.Helper()
	c, err := New([]byte("test-secret"), "HS256", "perimetra-idp", core.KindAccess,
		WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerifyError, got %v", err)
	}
	if verr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, verr.Kind, err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, testBase.Add(time.Minute))
	claims := testClaims()

	raw, err := codec.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if parts := strings.Split(raw, "."); len(parts) != 3 {
		t.Fatalf("expected three-part compact token, got %d parts", len(parts))
	}

	got, err := codec.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if diff := cmp.Diff(claims, got); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_IssueDeterministic(t *testing.T) {
	codec := newTestCodec(t, testBase)
	claims := testClaims()

	first, err := codec.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := codec.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first != second {
		t.Errorf("identical claims produced different tokens")
	}
}

func TestCodec_TamperedSignature(t *testing.T) {
	codec := newTestCodec(t, testBase.Add(time.Minute))

	raw, err := codec.Issue(testClaims())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(raw, ".")
	sig := []byte(parts[2])
	// alter a character in the middle of the signature so the segment
	// still decodes as base64url
	pos := len(sig) / 2
	if sig[pos] == 'A' {
		sig[pos] = 'B'
	} else {
		sig[pos] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = codec.Verify(tampered)
	wantKind(t, err, BadSignature)
}

func TestCodec_Expiry(t *testing.T) {
	claims := testClaims()

	tests := []struct {
		name     string
		at       time.Time
		wantFail bool
	}{
		{"well before expiry", testBase.Add(time.Minute), false},
		{"one second before expiry", claims.ExpiresAt.Add(-time.Second), false},
		{"exactly at expiry", claims.ExpiresAt, true},
		{"after expiry", claims.ExpiresAt.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuing := newTestCodec(t, testBase)
			raw, err := issuing.Issue(claims)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}

			verifying := newTestCodec(t, tt.at)
			_, err = verifying.Verify(raw)
			if tt.wantFail {
				wantKind(t, err, Expired)
			} else if err != nil {
				t.Fatalf("Verify: %v", err)
			}
		})
	}
}

func TestCodec_AlgorithmMismatch(t *testing.T) {
	other, err := New([]byte("test-secret"), "HS384", "perimetra-idp", core.KindAccess)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := other.Issue(testClaims())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	codec := newTestCodec(t, testBase.Add(time.Minute))
	_, err = codec.Verify(raw)
	wantKind(t, err, AlgorithmMismatch)
}

func TestCodec_WrongKind(t *testing.T) {
	// same secret and algorithm, but minted for the local trust domain
	local, err := New([]byte("test-secret"), "HS256", "local_service", core.KindLocal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	claims := testClaims()
	claims.Kind = core.KindLocal
	claims.Issuer = "local_service"
	raw, err := local.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	codec := newTestCodec(t, testBase.Add(time.Minute))
	_, err = codec.Verify(raw)
	wantKind(t, err, WrongKind)
}

func TestCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t, testBase)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"two segments", "abc.def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.raw)
			wantKind(t, err, MalformedClaims)
		})
	}
}

func TestCodec_RejectsInvalidClaimSet(t *testing.T) {
	codec := newTestCodec(t, testBase)

	empty := testClaims()
	empty.Subject = ""
	if _, err := codec.Issue(empty); err == nil {
		t.Errorf("expected error for empty subject")
	}

	inverted := testClaims()
	inverted.ExpiresAt = inverted.IssuedAt.Add(-time.Minute)
	if _, err := codec.Issue(inverted); err == nil {
		t.Errorf("expected error for expiry before issuance")
	}
}

func TestCodec_RejectsNonHMAC(t *testing.T) {
	if _, err := New([]byte("s"), "RS256", "x", core.KindAccess); err == nil {
		t.Errorf("expected error for non-HMAC algorithm")
	}
	if _, err := New(nil, "HS256", "x", core.KindAccess); err == nil {
		t.Errorf("expected error for empty secret")
	}
}
