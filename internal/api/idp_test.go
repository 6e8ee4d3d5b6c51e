package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/issuer"
	"github.com/perimetra/perimetra/internal/store"
)

func newTestIdentityServer(t *testing.T) (http.Handler, *store.InMemoryTokenStore) {
	t.Helper()

	clock := &testClock{now: testNow}
	codec := newAccessCodec(t, clock)

	registry := core.Registry{
		"alice": {Name: "alice", Password: "wonderland", Role: core.RoleAnalyst, Device: "mac-001"},
	}
	st := store.NewInMemoryTokenStore(store.WithClock(clock.Now))
	iss, err := issuer.New(registry, codec, 30*time.Minute,
		issuer.WithClock(clock.Now), issuer.WithStore(st))
	if err != nil {
		t.Fatalf("building issuer: %v", err)
	}
	return NewIdentityServer(iss, st, nil).Routes(), st
}

func TestIdentityServer_Login(t *testing.T) {
	handler, _ := newTestIdentityServer(t)

	rec := postJSON(t, handler, LoginRoute, LoginPayload{
		Username: "alice",
		Password: "wonderland",
		DeviceID: "mac-001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[TokenResponse](t, rec)
	if resp.AccessToken == "" {
		t.Error("access_token is empty")
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 1800 {
		t.Errorf("expires_in = %d, want 1800", resp.ExpiresIn)
	}
}

func TestIdentityServer_LoginBadCredentials(t *testing.T) {
	handler, _ := newTestIdentityServer(t)

	for _, payload := range []LoginPayload{
		{Username: "alice", Password: "wrong"},
		{Username: "mallory", Password: "wonderland"},
	} {
		rec := postJSON(t, handler, LoginRoute, payload)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		resp := decodeBody[errorBody](t, rec)
		if resp.Error != "invalid credentials" {
			t.Errorf("error = %q, want the uniform invalid-credentials message", resp.Error)
		}
		if resp.CorrelationID == "" {
			t.Error("correlation_id is empty")
		}
	}
}

func TestIdentityServer_LoginMalformedPayload(t *testing.T) {
	handler, _ := newTestIdentityServer(t)

	rec := postJSON(t, handler, LoginRoute, map[string]any{
		"username": "alice",
		"password": "wonderland",
		"surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIdentityServer_TokensListsActive(t *testing.T) {
	handler, _ := newTestIdentityServer(t)

	rec := postJSON(t, handler, LoginRoute, LoginPayload{Username: "alice", Password: "wonderland"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, TokensRoute, nil)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, req)
	if listRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", listRec.Code, listRec.Body.String())
	}

	records := decodeBody[[]core.TokenRecord](t, listRec)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Subject != "alice" || records[0].Kind != core.KindAccess {
		t.Errorf("record = %+v, want subject alice, kind access", records[0])
	}
}

func TestIdentityServer_Health(t *testing.T) {
	handler, _ := newTestIdentityServer(t)

	req := httptest.NewRequest(http.MethodGet, HealthRoute, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
