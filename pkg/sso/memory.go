package sso

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDurableStore is an in-memory DurableStore for tests and
// single-process development setups. It mirrors the Postgres semantics,
// including the append-only logout event log.
type MemoryDurableStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	modules  map[string]*ModuleRegistration
	events   []*LogoutEvent
}

// NewMemoryDurableStore creates an empty in-memory durable store.
func NewMemoryDurableStore() *MemoryDurableStore {
	return &MemoryDurableStore{
		sessions: make(map[string]*Session),
		modules:  make(map[string]*ModuleRegistration),
	}
}

func (m *MemoryDurableStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryDurableStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(session), nil
}

func (m *MemoryDurableStore) UpdateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[session.ID]
	if !ok {
		return ErrSessionNotFound
	}
	stored.Domains = slices.Clone(session.Domains)
	stored.LastActivity = session.LastActivity
	stored.ExpiresAt = session.ExpiresAt
	return nil
}

func (m *MemoryDurableStore) DeactivateSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok || !session.Active {
		return nil
	}
	session.Active = false
	destroyedAt := at
	session.DestroyedAt = &destroyedAt
	return nil
}

func (m *MemoryDurableStore) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, session := range m.sessions {
		if session.UserID == userID && session.Active && !session.IsExpired() {
			sessions = append(sessions, copySession(session))
		}
	}
	return sessions, nil
}

func (m *MemoryDurableStore) UpsertModule(ctx context.Context, module *ModuleRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *module
	stored.AllowedOrigins = slices.Clone(module.AllowedOrigins)
	if existing, ok := m.modules[module.ID]; ok {
		stored.RegisteredAt = existing.RegisteredAt
	}
	m.modules[module.ID] = &stored
	return nil
}

func (m *MemoryDurableStore) GetModule(ctx context.Context, id string) (*ModuleRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	module, ok := m.modules[id]
	if !ok {
		return nil, ErrModuleNotRegistered
	}
	copied := *module
	copied.AllowedOrigins = slices.Clone(module.AllowedOrigins)
	return &copied, nil
}

func (m *MemoryDurableStore) TouchModule(ctx context.Context, id string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if module, ok := m.modules[id]; ok {
		module.LastSeen = lastSeen
	}
	return nil
}

func (m *MemoryDurableStore) InsertLogoutEvent(ctx context.Context, event *LogoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	copied.Domains = slices.Clone(event.Domains)
	if event.Metadata != nil {
		copied.Metadata = maps.Clone(event.Metadata)
	}
	m.events = append(m.events, &copied)
	return nil
}

// LogoutEvents returns a snapshot of the audit log in insertion order.
func (m *MemoryDurableStore) LogoutEvents() []*LogoutEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.events)
}

func copySession(session *Session) *Session {
	copied := *session
	copied.Domains = slices.Clone(session.Domains)
	if session.DeviceInfo != nil {
		copied.DeviceInfo = maps.Clone(session.DeviceInfo)
	}
	if session.DestroyedAt != nil {
		destroyedAt := *session.DestroyedAt
		copied.DestroyedAt = &destroyedAt
	}
	return &copied
}
