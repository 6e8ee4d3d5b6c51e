package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perimetra/perimetra/internal/api/middleware"
	"github.com/perimetra/perimetra/internal/api/presenter"
	"github.com/perimetra/perimetra/internal/audit"
	"github.com/perimetra/perimetra/internal/core"
	"github.com/perimetra/perimetra/internal/issuer"
)

// IdentityServer is the HTTP surface of the centralized identity issuer.
type IdentityServer struct {
	issuer  *issuer.Issuer
	store   core.TokenStore
	auditor core.Auditor
}

func NewIdentityServer(iss *issuer.Issuer, store core.TokenStore, auditor core.Auditor) *IdentityServer {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &IdentityServer{
		issuer:  iss,
		store:   store,
		auditor: auditor,
	}
}

func (s *IdentityServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthRoute, handleHealth)
	mux.HandleFunc("GET "+AboutRoute, handleAbout)

	mux.HandleFunc("POST "+LoginRoute, s.handleLogin)
	mux.HandleFunc("GET "+TokensRoute, s.handleTokens)

	return middleware.Chain(mux)
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`

	// DeviceID is optional; both spellings are accepted.
	DeviceID    string `json:"device_id"`
	DeviceIDAlt string `json:"deviceid"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// handleLogin authenticates a credential and returns a signed access
// token. Bad credentials always map to the same 401.
func (s *IdentityServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   time.Now(),
		Action: "idp.login",
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log")
		}
	}()

	var payload LoginPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode login payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		auditEntry.Error = "invalid request payload"
		return
	}
	auditEntry.Subject = payload.Username

	device := payload.DeviceID
	if device == "" {
		device = payload.DeviceIDAlt
	}

	issued, err := s.issuer.Login(ctx, payload.Username, payload.Password, device)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			presenter.Error(w, r, "invalid credentials", http.StatusUnauthorized)
			auditEntry.Error = "invalid credentials"
			return
		}
		logger.Error().Err(err).Msg("login failed")
		presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
		auditEntry.Error = err.Error()
		return
	}
	auditEntry.TokenFingerprint = issued.Fingerprint

	presenter.JSON(w, r, TokenResponse{
		AccessToken: issued.Value,
		TokenType:   "bearer",
		ExpiresIn:   int64(issued.TTL / time.Second),
	}, http.StatusOK)
}

// handleTokens lists fingerprint records of still-active issued tokens.
func (s *IdentityServer) handleTokens(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		presenter.Error(w, r, "token store not configured", http.StatusNotFound)
		return
	}
	records, err := s.store.ListActive(r.Context())
	if err != nil {
		presenter.Error(w, r, "listing tokens failed", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, records, http.StatusOK)
}
