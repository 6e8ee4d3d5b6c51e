package issuer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/store"
	"github.com/perimetra/perimetra/internal/token"
)

var testRegistry = core.Registry{
	"alice": {Name: "alice", Password: "wonderland", Role: core.RoleAnalyst, Device: "mac-001"},
	"bob":   {Name: "bob", Password: "builder", Role: core.RoleContractor},
	"carol": {Name: "carol", Password: "cloud9", Role: core.RoleAdmin, Device: "mac-007"},
}

func newTestIssuer(t *testing.T, opts ...Option) (*Issuer, *token.Codec) {
	t.Helper()

	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	codec, err := token.New([]byte("issuer-test-secret"), "HS256", "perimetra-idp", core.KindAccess,
		token.WithClock(clock))
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}

	opts = append([]Option{WithClock(clock)}, opts...)
	iss, err := New(testRegistry, codec, 30*time.Minute, opts...)
	if err != nil {
		t.Fatalf("building issuer: %v", err)
	}
	return iss, codec
}

func TestIssuer_LoginMintsVerifiableToken(t *testing.T) {
	iss, codec := newTestIssuer(t)

	issued, err := iss.Login(context.Background(), "alice", "wonderland", "mac-001")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if issued.Value == "" || issued.Fingerprint == "" {
		t.Fatalf("Login() returned incomplete token: %+v", issued)
	}
	if issued.TTL != 30*time.Minute {
		t.Errorf("TTL = %s, want 30m", issued.TTL)
	}

	claims, err := codec.Verify(issued.Value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	want := core.ClaimSet{
		Subject:   "alice",
		Role:      core.RoleAnalyst,
		DeviceID:  "mac-001",
		RiskScore: 0.40,
		IssuedAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		AuthTime:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Kind:      core.KindAccess,
		Issuer:    "perimetra-idp",
	}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestIssuer_LoginRejectsBadCredentials(t *testing.T) {
	iss, _ := newTestIssuer(t)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "hunter2"},
		{"unknown user", "mallory", "wonderland"},
		{"empty password", "alice", ""},
		{"empty username", "", "wonderland"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := iss.Login(context.Background(), tc.username, tc.password, "")
			if !errors.Is(err, core.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestIssuer_LoginNormalizesDevice(t *testing.T) {
	iss, codec := newTestIssuer(t)

	for _, asserted := range []string{"", "unknown", "none", "  None  "} {
		t.Run("device "+asserted, func(t *testing.T) {
			issued, err := iss.Login(context.Background(), "alice", "wonderland", asserted)
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			claims, err := codec.Verify(issued.Value)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.DeviceID != "" {
				t.Errorf("DeviceID = %q, want empty", claims.DeviceID)
			}
		})
	}
}

func TestRiskScore(t *testing.T) {
	cases := []struct {
		name   string
		role   core.Role
		device string
		want   float64
	}{
		{"analyst with device", core.RoleAnalyst, "mac-001", 0.40},
		{"analyst without device", core.RoleAnalyst, "", 0.60},
		{"contractor with device", core.RoleContractor, "mac-002", 0.60},
		{"contractor without device", core.RoleContractor, "", 0.80},
		{"contractor with unknown device", core.RoleContractor, "unknown", 0.80},
		{"admin with device", core.RoleAdmin, "mac-007", 0.40},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RiskScore(tc.role, tc.device)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("RiskScore(%s, %q) = %v, want %v", tc.role, tc.device, got, tc.want)
			}
			if got < 0 || got >= 1 {
				t.Errorf("RiskScore(%s, %q) = %v, out of [0,1)", tc.role, tc.device, got)
			}
		})
	}
}

func TestIssuer_LoginRecordsToken(t *testing.T) {
	st := store.NewInMemoryTokenStore(store.WithClock(func() time.Time {
		return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	}))
	iss, _ := newTestIssuer(t, WithStore(st))

	issued, err := iss.Login(context.Background(), "carol", "cloud9", "mac-007")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	active, err := st.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListActive() returned %d records, want 1", len(active))
	}
	rec := active[0]
	if rec.Fingerprint != issued.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", rec.Fingerprint, issued.Fingerprint)
	}
	if rec.Subject != "carol" || rec.Kind != core.KindAccess {
		t.Errorf("record = %+v, want subject carol, kind access", rec)
	}
}

func TestIssuer_RejectsNonPositiveLifetime(t *testing.T) {
	codec, err := token.New([]byte("s"), "HS256", "perimetra-idp", core.KindAccess)
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	if _, err := New(testRegistry, codec, 0); err == nil {
		t.Error("New() with zero lifetime succeeded, want error")
	}
}
