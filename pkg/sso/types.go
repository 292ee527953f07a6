package sso

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Identity is the snapshot of a user captured at login time. Sessions carry
// the snapshot so modules can establish local identity without a user
// lookup; it is not refreshed during the session's lifetime.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
}

// Session identifies an authenticated browser across every participating
// domain for a bounded window. Sessions are owned by the Service; the
// logout sync service is the only component allowed to destroy one.
type Session struct {
	ID           string         `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Domains      []string       `json:"domains"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	DeviceInfo   map[string]any `json:"device_info,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	ExpiresAt    time.Time      `json:"expires_at"`
	DestroyedAt  *time.Time     `json:"destroyed_at,omitempty"`
	Active       bool           `json:"active"`
}

// IsExpired reports whether the session is past its expiry. Expiry is
// detected lazily on read; nothing sweeps sessions proactively.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

// IsLive reports whether the session can still authenticate requests.
func (s *Session) IsLive() bool {
	return s != nil && s.Active && !s.IsExpired()
}

// AddDomain records that the session has been established on domain.
// The domain set only grows while the session is active; adding an already
// present domain is a no-op. Reports whether the set changed.
func (s *Session) AddDomain(domain string) bool {
	if domain == "" || slices.Contains(s.Domains, domain) {
		return false
	}
	s.Domains = append(s.Domains, domain)
	return true
}

// HandoffToken is a single-use, short-lived credential letting the primary
// domain prove a session's validity to another domain without shared
// cookies. It is bound to the (session, module, domain) triple it was
// minted for, and its lifetime is deliberately far shorter than the
// session's to bound exposure from a leaked token.
type HandoffToken struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ModuleID  string    `json:"module_id"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the token is past its expiry.
func (t *HandoffToken) IsExpired() bool {
	return t != nil && time.Now().After(t.ExpiresAt)
}

// ModuleRegistration describes one independently deployed domain
// participating in the shared sign-on. Registration is a deployment-time
// operation, not user-triggered.
type ModuleRegistration struct {
	ID             string    `json:"id"`
	Domain         string    `json:"domain"`
	AllowedOrigins []string  `json:"allowed_origins"`
	PublicKey      string    `json:"public_key,omitempty"`
	Active         bool      `json:"active"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastSeen       time.Time `json:"last_seen"`
}

// OriginWildcard in a module's allowed origins permits any target domain.
const OriginWildcard = "*"

// AllowsOrigin reports whether a handoff token may be minted for domain.
func (m *ModuleRegistration) AllowsOrigin(domain string) bool {
	if m == nil || domain == "" {
		return false
	}
	for _, origin := range m.AllowedOrigins {
		if origin == OriginWildcard || origin == domain {
			return true
		}
	}
	return false
}

// LogoutReason classifies why a session was destroyed.
type LogoutReason string

const (
	ReasonManual   LogoutReason = "manual"
	ReasonExpired  LogoutReason = "expired"
	ReasonSecurity LogoutReason = "security"
	ReasonAdmin    LogoutReason = "admin"
)

// LogoutEvent is one append-only audit record of a session leaving the
// active state. Events are immutable once recorded.
type LogoutEvent struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	UserID      uuid.UUID      `json:"user_id"`
	Domains     []string       `json:"domains"`
	Reason      LogoutReason   `json:"reason"`
	InitiatedBy string         `json:"initiated_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// TokenValidation is the result of a successful handoff redemption.
type TokenValidation struct {
	Session *Session
	Module  *ModuleRegistration
}
