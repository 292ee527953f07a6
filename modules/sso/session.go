package sso

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/clientip"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/logoutsync"
	ssocore "github.com/dmitrymomot/ssokit/pkg/sso"
	"github.com/dmitrymomot/ssokit/pkg/useragent"
)

// SessionService exposes the session lifecycle over HTTP. It owns the
// first-party session cookie; downstream module domains never see it and
// carry their own sessions established through the token handoff.
type SessionService struct {
	cfg      Config
	sessions *ssocore.Service
	logout   *logoutsync.Service
	cookies  *cookie.Manager
}

// NewSessionService creates the session HTTP service.
func NewSessionService(cfg Config, sessions *ssocore.Service, logout *logoutsync.Service, cookies *cookie.Manager) *SessionService {
	if cfg.CookieName == "" {
		cfg.CookieName = "sso_session"
	}
	return &SessionService{
		cfg:      cfg,
		sessions: sessions,
		logout:   logout,
		cookies:  cookies,
	}
}

func (s *SessionService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.create)
	r.Get("/", s.list)
	r.Get("/current", s.current)
	r.Post("/current/activity", s.activity)
	r.Post("/current/refresh", s.refresh)
	r.Post("/logout", s.logoutCurrent)
	r.Post("/logout/all", s.logoutAll)

	return r
}

// CreateSessionRequest carries an already-verified identity. Credential
// verification happens upstream; this endpoint only records the outcome.
type CreateSessionRequest struct {
	UserID     uuid.UUID      `json:"user_id"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Role       string         `json:"role"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

func (s *SessionService) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	identity := ssocore.Identity{
		UserID: req.UserID,
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
	}
	session, err := s.sessions.CreateSession(r.Context(), identity, clientip.GetIP(r), r.UserAgent(), deviceInfo(r, req.DeviceInfo))
	if err != nil {
		writeError(w, err)
		return
	}

	s.cookies.Set(w, s.cfg.CookieName, session.ID, cookie.WithMaxAge(s.cfg.CookieMaxAge))
	writeJSON(w, http.StatusCreated, session)
}

func (s *SessionService) current(w http.ResponseWriter, r *http.Request) {
	session := s.resolve(w, r)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *SessionService) list(w http.ResponseWriter, r *http.Request) {
	session := s.resolve(w, r)
	if session == nil {
		return
	}

	sessions, err := s.sessions.ListUserSessions(r.Context(), session.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type activityRequest struct {
	Domain string `json:"domain,omitempty"`
}

func (s *SessionService) activity(w http.ResponseWriter, r *http.Request) {
	session := s.resolve(w, r)
	if session == nil {
		return
	}

	var req activityRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	if err := s.sessions.UpdateSessionActivity(r.Context(), session.ID, req.Domain); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionService) refresh(w http.ResponseWriter, r *http.Request) {
	session := s.resolve(w, r)
	if session == nil {
		return
	}

	if err := s.sessions.TouchSession(r.Context(), session.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionService) logoutCurrent(w http.ResponseWriter, r *http.Request) {
	// Logout is idempotent: a missing or already-dead cookie still clears
	// client state and succeeds.
	sessionID, err := s.cookies.Get(r, s.cfg.CookieName)
	if err != nil {
		s.cookies.Delete(w, s.cfg.CookieName)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.logout.LogoutSession(r.Context(), sessionID, ssocore.ReasonManual, "user", nil); err != nil {
		writeError(w, err)
		return
	}
	s.cookies.Delete(w, s.cfg.CookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionService) logoutAll(w http.ResponseWriter, r *http.Request) {
	session := s.resolve(w, r)
	if session == nil {
		return
	}

	if err := s.logout.LogoutAllSessions(r.Context(), session.UserID, ssocore.ReasonManual, "user", nil); err != nil {
		writeError(w, err)
		return
	}
	s.cookies.Delete(w, s.cfg.CookieName)
	w.WriteHeader(http.StatusNoContent)
}

// resolve reads the session cookie and loads the live session. It writes
// a 401 and returns nil when there is no authenticated session.
func (s *SessionService) resolve(w http.ResponseWriter, r *http.Request) *ssocore.Session {
	sessionID, err := s.cookies.Get(r, s.cfg.CookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return nil
	}

	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return nil
	}
	if session == nil {
		s.cookies.Delete(w, s.cfg.CookieName)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return nil
	}
	return session
}

// deviceInfo fills in user-agent derived device details unless the caller
// supplied them explicitly.
func deviceInfo(r *http.Request, provided map[string]any) map[string]any {
	if provided != nil {
		return provided
	}

	ua := useragent.Parse(r.UserAgent())
	if ua.Browser == "" && ua.OS == "" {
		return nil
	}
	return map[string]any{
		"browser": ua.Browser,
		"os":      ua.OS,
		"device":  string(ua.Device),
	}
}
