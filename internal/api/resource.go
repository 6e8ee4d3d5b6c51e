package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perimetra/perimetra/internal/api/middleware"
	"github.com/perimetra/perimetra/internal/api/presenter"
	"github.com/perimetra/perimetra/internal/audit"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/engine"
	"github.com/perimetra/perimetra/internal/token"
)

// ResourceServer protects arbitrary resource paths: every request is
// bearer-verified and then run through the decision engine.
type ResourceServer struct {
	codec   *token.Codec
	engine  *engine.Engine
	auditor core.Auditor
	now     func() time.Time
}

// ResourceOption configures a ResourceServer.
type ResourceOption func(*ResourceServer)

// WithResourceClock overrides the decision time source.
func WithResourceClock(now func() time.Time) ResourceOption {
	return func(s *ResourceServer) {
		s.now = now
	}
}

func NewResourceServer(codec *token.Codec, eng *engine.Engine, auditor core.Auditor, opts ...ResourceOption) *ResourceServer {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	s := &ResourceServer{
		codec:   codec,
		engine:  eng,
		auditor: auditor,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResourceServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthRoute, handleHealth)
	mux.HandleFunc("GET "+AboutRoute, handleAbout)

	// every other path is a protected resource
	mux.HandleFunc("GET /", s.handleResource)

	return middleware.Chain(mux)
}

type DecisionResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Subject string `json:"subject,omitempty"`
	Role    string `json:"role,omitempty"`
}

// handleResource verifies the bearer token, builds the request context and
// maps the decision to HTTP: Allow → 200, Challenge → 200 with
// status=mfa_required, Deny → 403. Verification failures are 401 with the
// failure kind, never a collapsed generic error.
func (s *ResourceServer) handleResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   time.Now(),
		Action: "resource.decide",
		Path:   r.URL.Path,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log")
		}
	}()

	authHeader := r.Header.Get("Authorization")
	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if authHeader == raw || raw == "" {
		presenter.Error(w, r, "missing bearer token", http.StatusUnauthorized)
		auditEntry.Error = "missing bearer token"
		return
	}

	claims, err := s.codec.Verify(raw)
	if err != nil {
		var verr *token.VerifyError
		msg := "token invalid"
		if errors.As(err, &verr) {
			msg = "token invalid: " + string(verr.Kind)
		}
		presenter.Error(w, r, msg, http.StatusUnauthorized)
		auditEntry.Error = msg
		return
	}
	auditEntry.Subject = claims.Subject

	decision := s.engine.Decide(claims, core.RequestContext{
		Time: s.now(),
		Path: r.URL.Path,
	})
	auditEntry.Effect = decision.Effect
	auditEntry.Reason = decision.Reason

	switch decision.Effect {
	case core.EffectDeny:
		presenter.Error(w, r, "access denied: "+string(decision.Reason), http.StatusForbidden)

	case core.EffectChallenge:
		presenter.JSON(w, r, DecisionResponse{
			Status: "mfa_required",
			Reason: string(decision.Reason),
		}, http.StatusOK)

	default:
		presenter.JSON(w, r, DecisionResponse{
			Status:  "ok",
			Reason:  string(decision.Reason),
			Subject: claims.Subject,
			Role:    string(claims.Role),
		}, http.StatusOK)
	}
}
