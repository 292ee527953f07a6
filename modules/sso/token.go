package sso

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/ssokit/pkg/cookie"
	ssocore "github.com/dmitrymomot/ssokit/pkg/sso"
)

// TokenService exposes handoff token generation and validation. Generation
// is a browser-facing endpoint authenticated by the session cookie;
// validation is called server-side by module backends.
type TokenService struct {
	cfg     Config
	tokens  *ssocore.Service
	cookies *cookie.Manager
}

// NewTokenService creates the token HTTP service.
func NewTokenService(cfg Config, tokens *ssocore.Service, cookies *cookie.Manager) *TokenService {
	if cfg.CookieName == "" {
		cfg.CookieName = "sso_session"
	}
	return &TokenService{cfg: cfg, tokens: tokens, cookies: cookies}
}

func (s *TokenService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.generate)
	r.Post("/validate", s.validate)

	return r
}

type generateTokenRequest struct {
	ModuleID     string `json:"module_id"`
	TargetDomain string `json:"target_domain"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (s *TokenService) generate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.cookies.Get(r, s.cfg.CookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}

	var req generateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ModuleID == "" || req.TargetDomain == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "module_id and target_domain are required"})
		return
	}

	token, err := s.tokens.GenerateToken(r.Context(), sessionID, req.ModuleID, req.TargetDomain)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     token.ID,
		ExpiresAt: token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type validateTokenRequest struct {
	Token  string `json:"token"`
	Domain string `json:"domain"`
}

type validateTokenResponse struct {
	Session *ssocore.Session            `json:"session"`
	Module  *ssocore.ModuleRegistration `json:"module"`
}

func (s *TokenService) validate(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "token is required"})
		return
	}

	result, err := s.tokens.ValidateToken(r.Context(), req.Token, req.Domain)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validateTokenResponse{
		Session: result.Session,
		Module:  result.Module,
	})
}
