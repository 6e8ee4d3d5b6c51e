package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/engine"
	"github.com/perimetra/perimetra/internal/token"
)

// testNow is a Tuesday morning, well inside the default business window.
var testNow = time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

// testClock is a settable time source shared by codec and server so expiry
// can be tested without sleeping.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestPolicy() engine.Policy {
	return engine.Policy{
		StartHour: 7,
		EndHour:   19,
		Location:  time.UTC,
		RegisteredDevices: map[string]struct{}{
			"mac-001": {},
		},
		SensitivePrefixes: []string{"/export"},
		RiskThreshold:     0.7,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func newAccessCodec(t *testing.T, clock *testClock) *token.Codec {
	t.Helper()
	codec, err := token.New([]byte("api-test-secret"), "HS256", "perimetra-idp", core.KindAccess,
		token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	return codec
}
