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
	"github.com/perimetra/perimetra/internal/session"
)

// LocalServer is the decentralized counterpart: its own registry, its own
// secret, and a session cookie instead of a bearer header.
type LocalServer struct {
	guard        *session.Guard
	cookieName   string
	cookieSecure bool
	auditor      core.Auditor
}

func NewLocalServer(guard *session.Guard, cookieName string, cookieSecure bool, auditor core.Auditor) *LocalServer {
	if cookieName == "" {
		cookieName = "local_session"
	}
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &LocalServer{
		guard:        guard,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		auditor:      auditor,
	}
}

func (s *LocalServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthRoute, handleHealth)
	mux.HandleFunc("GET "+AboutRoute, handleAbout)

	mux.HandleFunc("POST "+LocalLoginRoute, s.handleLogin)
	mux.HandleFunc("GET "+LocalResourceRoute, s.handleResource)
	mux.HandleFunc("GET "+LocalAdminRoute, s.handleAdmin)

	return middleware.Chain(mux)
}

type LocalLoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LocalLoginResponse struct {
	Status    string `json:"status"`
	ExpiresIn int64  `json:"expires_in"`
}

type LocalResourceResponse struct {
	Status  string `json:"status"`
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

// handleLogin authenticates against the local registry and sets the
// session cookie. The cookie lifetime matches the token TTL exactly.
func (s *LocalServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(ctx),
		Time:   time.Now(),
		Action: "local.login",
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log")
		}
	}()

	var payload LocalLoginPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode local login payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		auditEntry.Error = "invalid request payload"
		return
	}
	auditEntry.Subject = payload.Username

	issued, err := s.guard.Login(ctx, payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			presenter.Error(w, r, "invalid credentials", http.StatusUnauthorized)
			auditEntry.Error = "invalid credentials"
			return
		}
		logger.Error().Err(err).Msg("local login failed")
		presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
		auditEntry.Error = err.Error()
		return
	}
	auditEntry.TokenFingerprint = issued.Fingerprint

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    issued.Value,
		MaxAge:   int(issued.TTL / time.Second),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cookieSecure,
	})

	presenter.JSON(w, r, LocalLoginResponse{
		Status:    "ok",
		ExpiresIn: int64(issued.TTL / time.Second),
	}, http.StatusOK)
}

func (s *LocalServer) handleResource(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authorize(w, r, "")
	if !ok {
		return
	}
	presenter.JSON(w, r, LocalResourceResponse{
		Status:  "ok",
		Subject: claims.Subject,
		Role:    string(claims.Role),
	}, http.StatusOK)
}

func (s *LocalServer) handleAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authorize(w, r, core.RoleAdmin)
	if !ok {
		return
	}
	presenter.JSON(w, r, LocalResourceResponse{
		Status:  "ok",
		Subject: claims.Subject,
		Role:    string(claims.Role),
	}, http.StatusOK)
}

// authorize reads the session cookie and re-verifies it. Missing, invalid
// or expired sessions map to 401; a valid session with the wrong role maps
// to 403. It writes the response itself on failure.
func (s *LocalServer) authorize(w http.ResponseWriter, r *http.Request, requiredRole core.Role) (core.ClaimSet, bool) {
	var raw string
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		raw = cookie.Value
	}

	claims, err := s.guard.Authorize(raw, requiredRole)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrForbidden):
			presenter.Error(w, r, "admin role required", http.StatusForbidden)
		default:
			presenter.Error(w, r, "invalid or expired local session", http.StatusUnauthorized)
		}

		s.auditFailure(r, raw, err)
		return core.ClaimSet{}, false
	}
	return claims, true
}

func (s *LocalServer) auditFailure(r *http.Request, raw string, cause error) {
	entry := core.AuditEntry{
		ID:     middleware.CorrelationCtx(r.Context()),
		Time:   time.Now(),
		Action: "local.authorize",
		Path:   r.URL.Path,
		Error:  cause.Error(),
	}
	if raw != "" {
		entry.TokenFingerprint = audit.Fingerprint(raw)
	}
	if err := s.auditor.Log(entry); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write audit log")
	}
}
