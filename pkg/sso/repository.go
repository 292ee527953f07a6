package sso

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DurableStore is the relational source of truth for sessions, module
// registrations, and the append-only logout audit. It is consulted on cold
// cache reads and is authoritative whenever cache and durable state
// disagree.
type DurableStore interface {
	CreateSession(ctx context.Context, session *Session) error

	// GetSession returns the stored record regardless of its active flag so
	// business layers can distinguish "destroyed" from "never existed".
	// Returns ErrSessionNotFound when no record exists.
	GetSession(ctx context.Context, id string) (*Session, error)

	// UpdateSession persists mutable session fields: domains, last activity,
	// and expiry.
	UpdateSession(ctx context.Context, session *Session) error

	// DeactivateSession marks the session destroyed. Deactivating an already
	// inactive session is a no-op, not an error.
	DeactivateSession(ctx context.Context, id string, at time.Time) error

	// ListActiveSessions returns the user's sessions that are active and unexpired.
	ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error)

	// UpsertModule registers or updates a module registration, preserving
	// the original registration time on update.
	UpsertModule(ctx context.Context, module *ModuleRegistration) error

	// GetModule returns a module registration regardless of its active flag.
	// Returns ErrModuleNotRegistered when no record exists.
	GetModule(ctx context.Context, id string) (*ModuleRegistration, error)

	// TouchModule updates the module's last-seen timestamp.
	TouchModule(ctx context.Context, id string, lastSeen time.Time) error

	// InsertLogoutEvent appends one immutable audit record.
	InsertLogoutEvent(ctx context.Context, event *LogoutEvent) error
}
