package sso

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the DurableStore backed by the shared relational
// database. Schema lives in the migrations directory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed durable store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) CreateSession(ctx context.Context, session *Session) error {
	domains, err := json.Marshal(session.Domains)
	if err != nil {
		return err
	}
	deviceInfo, err := json.Marshal(session.DeviceInfo)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (
			session_id, user_id, email, user_name, user_role, domains,
			ip_address, user_agent, device_info,
			created_at, last_activity, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, true)`,
		session.ID, session.UserID, session.Email, session.Name, session.Role,
		domains, session.IPAddress, session.UserAgent, deviceInfo,
		session.CreatedAt, session.LastActivity, session.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT session_id, user_id, email, user_name, user_role, domains,
		       ip_address, user_agent, device_info,
		       created_at, last_activity, expires_at, destroyed_at, is_active
		FROM sessions WHERE session_id = $1`, id)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (p *PostgresStore) UpdateSession(ctx context.Context, session *Session) error {
	domains, err := json.Marshal(session.Domains)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		UPDATE sessions
		SET domains = $2, last_activity = $3, expires_at = $4
		WHERE session_id = $1`,
		session.ID, domains, session.LastActivity, session.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) DeactivateSession(ctx context.Context, id string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false, destroyed_at = $2
		WHERE session_id = $1 AND is_active = true`,
		id, at,
	)
	return err
}

func (p *PostgresStore) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, user_id, email, user_name, user_role, domains,
		       ip_address, user_agent, device_info,
		       created_at, last_activity, expires_at, destroyed_at, is_active
		FROM sessions
		WHERE user_id = $1 AND is_active = true AND expires_at > now()
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (p *PostgresStore) UpsertModule(ctx context.Context, module *ModuleRegistration) error {
	origins, err := json.Marshal(module.AllowedOrigins)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO modules (
			module_id, domain, allowed_origins, public_key,
			is_active, registered_at, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (module_id) DO UPDATE SET
			domain = EXCLUDED.domain,
			allowed_origins = EXCLUDED.allowed_origins,
			public_key = EXCLUDED.public_key,
			is_active = EXCLUDED.is_active,
			last_seen = EXCLUDED.last_seen`,
		module.ID, module.Domain, origins, module.PublicKey,
		module.Active, module.RegisteredAt, module.LastSeen,
	)
	return err
}

func (p *PostgresStore) GetModule(ctx context.Context, id string) (*ModuleRegistration, error) {
	var (
		module  ModuleRegistration
		origins []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT module_id, domain, allowed_origins, public_key,
		       is_active, registered_at, last_seen
		FROM modules WHERE module_id = $1`, id).Scan(
		&module.ID, &module.Domain, &origins, &module.PublicKey,
		&module.Active, &module.RegisteredAt, &module.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrModuleNotRegistered
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(origins, &module.AllowedOrigins); err != nil {
		return nil, err
	}
	return &module, nil
}

func (p *PostgresStore) TouchModule(ctx context.Context, id string, lastSeen time.Time) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE modules SET last_seen = $2 WHERE module_id = $1`, id, lastSeen)
	return err
}

func (p *PostgresStore) InsertLogoutEvent(ctx context.Context, event *LogoutEvent) error {
	domains, err := json.Marshal(event.Domains)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO logout_events (
			event_id, session_id, user_id, domains,
			reason, initiated_by, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.SessionID, event.UserID, domains,
		string(event.Reason), event.InitiatedBy, metadata, event.Timestamp,
	)
	return err
}

// scanSession reads one session row from either QueryRow or Query results.
func scanSession(row pgx.Row) (*Session, error) {
	var (
		session    Session
		domains    []byte
		deviceInfo []byte
	)
	err := row.Scan(
		&session.ID, &session.UserID, &session.Email, &session.Name, &session.Role,
		&domains, &session.IPAddress, &session.UserAgent, &deviceInfo,
		&session.CreatedAt, &session.LastActivity, &session.ExpiresAt,
		&session.DestroyedAt, &session.Active,
	)
	if err != nil {
		return nil, err
	}

	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &session.Domains); err != nil {
			return nil, err
		}
	}
	if len(deviceInfo) > 0 {
		if err := json.Unmarshal(deviceInfo, &session.DeviceInfo); err != nil {
			return nil, err
		}
	}
	return &session, nil
}
