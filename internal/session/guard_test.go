package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/token"
)

var localRegistry = core.Registry{
	"dave": {Name: "dave", Password: "localpass", Role: core.RoleUser},
	"erin": {Name: "erin", Password: "adminpass", Role: core.RoleAdmin},
}

// testClock is a settable time source shared between guard and codec, so
// expiry can be tested without sleeping.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(t *testing.T) (*Guard, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}

	codec, err := token.New([]byte("local-test-secret"), "HS256", "local_service", core.KindLocal,
		token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}

	guard, err := New(localRegistry, codec, 60*time.Second, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("building guard: %v", err)
	}
	return guard, clock
}

func TestGuard_LoginAndAuthorize(t *testing.T) {
	guard, _ := newTestGuard(t)

	issued, err := guard.Login(context.Background(), "dave", "localpass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if issued.TTL != 60*time.Second {
		t.Errorf("TTL = %s, want 60s", issued.TTL)
	}

	claims, err := guard.Authorize(issued.Value, "")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if claims.Subject != "dave" || claims.Role != core.RoleUser {
		t.Errorf("claims = %+v, want subject dave, role user", claims)
	}
	if claims.Kind != core.KindLocal {
		t.Errorf("Kind = %s, want local", claims.Kind)
	}
}

func TestGuard_LoginRejectsBadCredentials(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Login(context.Background(), "dave", "wrong")
	if !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	_, err = guard.Login(context.Background(), "nobody", "localpass")
	if !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestGuard_SessionExpiresAfterTTL(t *testing.T) {
	guard, clock := newTestGuard(t)

	issued, err := guard.Login(context.Background(), "dave", "localpass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, err := guard.Authorize(issued.Value, ""); err != nil {
		t.Fatalf("Authorize() at 59s error = %v, want success", err)
	}

	clock.Advance(2 * time.Second)
	_, err = guard.Authorize(issued.Value, "")
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("Authorize() at 61s error = %v, want ErrUnauthorized", err)
	}
	var verr *token.VerifyError
	if !errors.As(err, &verr) || verr.Kind != token.Expired {
		t.Errorf("Authorize() at 61s error = %v, want Expired verify error", err)
	}
}

func TestGuard_AuthorizeRoleEnforcement(t *testing.T) {
	guard, _ := newTestGuard(t)

	user, err := guard.Login(context.Background(), "dave", "localpass")
	if err != nil {
		t.Fatalf("Login(dave) error = %v", err)
	}
	admin, err := guard.Login(context.Background(), "erin", "adminpass")
	if err != nil {
		t.Fatalf("Login(erin) error = %v", err)
	}

	if _, err := guard.Authorize(admin.Value, core.RoleAdmin); err != nil {
		t.Errorf("Authorize(admin token, admin) error = %v, want success", err)
	}
	_, err = guard.Authorize(user.Value, core.RoleAdmin)
	if !errors.Is(err, core.ErrForbidden) {
		t.Errorf("Authorize(user token, admin) error = %v, want ErrForbidden", err)
	}
}

func TestGuard_AuthorizeMissingToken(t *testing.T) {
	guard, _ := newTestGuard(t)

	_, err := guard.Authorize("", "")
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Authorize(\"\") error = %v, want ErrUnauthorized", err)
	}
}

// A token minted by the centralized issuer must not open a local session,
// even if an operator misconfigures both with the same secret.
func TestGuard_RejectsAccessToken(t *testing.T) {
	guard, clock := newTestGuard(t)

	idpCodec, err := token.New([]byte("local-test-secret"), "HS256", "perimetra-idp", core.KindAccess,
		token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("building idp codec: %v", err)
	}
	foreign, err := idpCodec.Issue(core.ClaimSet{
		Subject:   "alice",
		Role:      core.RoleAdmin,
		RiskScore: 0.4,
		IssuedAt:  clock.Now(),
		ExpiresAt: clock.Now().Add(30 * time.Minute),
		AuthTime:  clock.Now(),
		Kind:      core.KindAccess,
		Issuer:    "perimetra-idp",
	})
	if err != nil {
		t.Fatalf("issuing foreign token: %v", err)
	}

	_, err = guard.Authorize(foreign, "")
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("Authorize(access token) error = %v, want ErrUnauthorized", err)
	}
	var verr *token.VerifyError
	if !errors.As(err, &verr) || verr.Kind != token.WrongKind {
		t.Errorf("Authorize(access token) error = %v, want WrongKind verify error", err)
	}
}

func TestGuard_DefaultTTL(t *testing.T) {
	codec, err := token.New([]byte("s"), "HS256", "local_service", core.KindLocal)
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	guard, err := New(localRegistry, codec, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if guard.TTL() != DefaultTTL {
		t.Errorf("TTL() = %s, want %s", guard.TTL(), DefaultTTL)
	}
}
