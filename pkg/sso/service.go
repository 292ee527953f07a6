package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrymomot/ssokit/pkg/sessionstore"
)

// Config holds SSO service settings.
type Config struct {
	// PrimaryDomain is the domain the login flow and session cookie live on.
	// New sessions start with this domain in their domain set.
	PrimaryDomain string `env:"SSO_PRIMARY_DOMAIN"`

	// SessionTTL is the default session lifetime.
	SessionTTL time.Duration `env:"SSO_SESSION_TTL" envDefault:"24h"`

	// TokenTTL is the handoff token lifetime. Deliberately far shorter than
	// the session TTL to bound exposure from a leaked token.
	TokenTTL time.Duration `env:"SSO_TOKEN_TTL" envDefault:"5m"`

	// ModuleCacheSize and ModuleCacheTTL tune the in-process module
	// registry cache.
	ModuleCacheSize int           `env:"SSO_MODULE_CACHE_SIZE" envDefault:"128"`
	ModuleCacheTTL  time.Duration `env:"SSO_MODULE_CACHE_TTL" envDefault:"1m"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:      24 * time.Hour,
		TokenTTL:        5 * time.Minute,
		ModuleCacheSize: 128,
		ModuleCacheTTL:  time.Minute,
	}
}

// Option configures the Service.
type Option func(*Service)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Service owns the Session, HandoffToken, and ModuleRegistration
// lifecycles. It never destroys sessions itself; that transition belongs
// exclusively to the logout sync service.
type Service struct {
	cache   *sessionstore.Store
	durable DurableStore
	modules *expirable.LRU[string, *ModuleRegistration]
	cfg     Config
	log     *slog.Logger
}

// NewService creates the SSO service. Both collaborators are required: the
// session store for fast reads and tokens, the durable store as source of
// truth.
func NewService(cache *sessionstore.Store, durable DurableStore, opts ...Option) *Service {
	if cache == nil {
		panic("sso: session store is required")
	}
	if durable == nil {
		panic("sso: durable store is required")
	}

	s := &Service{
		cache:   cache,
		durable: durable,
		cfg:     DefaultConfig(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.SessionTTL <= 0 {
		s.cfg.SessionTTL = 24 * time.Hour
	}
	if s.cfg.TokenTTL <= 0 {
		s.cfg.TokenTTL = 5 * time.Minute
	}
	s.modules = expirable.NewLRU[string, *ModuleRegistration](
		max(s.cfg.ModuleCacheSize, 1), nil, s.cfg.ModuleCacheTTL)

	return s
}

// CreateSession starts a session for an already-authenticated identity.
// The caller (the login flow) is responsible for credential verification;
// this service only records the outcome. The returned session id is set as
// a first-party cookie on the primary domain.
func (s *Service) CreateSession(ctx context.Context, identity Identity, ipAddress, userAgent string, deviceInfo map[string]any) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:           id,
		UserID:       identity.UserID,
		Email:        identity.Email,
		Name:         identity.Name,
		Role:         identity.Role,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		DeviceInfo:   deviceInfo,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
		Active:       true,
	}
	if s.cfg.PrimaryDomain != "" {
		session.Domains = []string{s.cfg.PrimaryDomain}
	}

	// Durable first: the session must exist in the source of truth before
	// any process can be asked to validate it.
	if err := s.durable.CreateSession(ctx, session); err != nil {
		return nil, errors.Join(ErrDurableWriteFailed, err)
	}

	s.cacheSession(ctx, session)
	s.cache.AddToSet(ctx, userSessionsKey(identity.UserID), session.ID, s.cfg.SessionTTL)

	s.log.InfoContext(ctx, "session created",
		"session_id", session.ID, "user_id", identity.UserID)

	return session, nil
}

// GetSession returns the live session for id, or (nil, nil) when there is
// none — a missing or expired session means "unauthenticated", not an
// error. Cold cache reads reconcile from the durable store and repopulate
// the cache with the record's remaining lifetime.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	session, cached, err := s.resolveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	if !session.IsLive() {
		if cached {
			// The cache outlived the session; drop the stale entry.
			s.DropCachedSession(ctx, session.ID, session.UserID)
		}
		return nil, nil
	}

	if !cached {
		s.cacheSession(ctx, session)
	}

	return session, nil
}

// UpdateSessionActivity bumps the session's last-activity timestamp and,
// when domain is non-empty, idempotently adds it to the session's domain
// set. It never extends the session expiry; that happens only through
// TouchSession.
func (s *Service) UpdateSessionActivity(ctx context.Context, id, domain string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	session.LastActivity = time.Now()
	session.AddDomain(domain)

	if err := s.durable.UpdateSession(ctx, session); err != nil {
		return errors.Join(ErrDurableWriteFailed, err)
	}
	s.cacheSession(ctx, session)

	return nil
}

// TouchSession is the explicit expiry extension: it pushes the session's
// expiry SessionTTL into the future. Reads never extend expiry implicitly.
func (s *Service) TouchSession(ctx context.Context, id string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	session.LastActivity = time.Now()
	session.ExpiresAt = time.Now().Add(s.cfg.SessionTTL)

	if err := s.durable.UpdateSession(ctx, session); err != nil {
		return errors.Join(ErrDurableWriteFailed, err)
	}
	s.cacheSession(ctx, session)

	return nil
}

// GenerateToken mints a single-use handoff token for a cross-domain
// redirect. The session must be live, the module registered and active,
// and targetDomain inside the module's origin allowlist.
func (s *Service) GenerateToken(ctx context.Context, sessionID, moduleID, targetDomain string) (*HandoffToken, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	module, err := s.module(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !module.Active {
		return nil, ErrModuleInactive
	}
	if !module.AllowsOrigin(targetDomain) {
		return nil, ErrOriginForbidden
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &HandoffToken{
		ID:        id,
		SessionID: sessionID,
		ModuleID:  moduleID,
		Domain:    targetDomain,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, tokenKey(token.ID), payload, s.cfg.TokenTTL)

	// Index the token under its session so logout can clean up outstanding
	// tokens without scanning the key space.
	s.cache.AddToSet(ctx, sessionTokensKey(sessionID), token.ID, s.cfg.SessionTTL)

	return token, nil
}

// ValidateToken atomically consumes a handoff token and re-checks session
// and module liveness at redemption time — both may have changed since
// minting. domain is the redeeming domain; a token presented on any domain
// other than the one it was bound to is denied, and since the token is
// consumed first, a mis-aimed or probed token is burned either way. On
// success the redeeming domain is added to the session's domain set. A
// second call with the same token always fails, regardless of remaining
// TTL, and is indistinguishable from a token that never existed.
func (s *Service) ValidateToken(ctx context.Context, tokenID, domain string) (*TokenValidation, error) {
	payload, ok := s.cache.ConsumeToken(ctx, tokenKey(tokenID))
	if !ok {
		return nil, ErrTokenInvalid
	}

	var token HandoffToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, ErrTokenInvalid
	}
	if domain != "" && token.Domain != domain {
		return nil, ErrTokenInvalid
	}
	// The store TTL normally enforces this; the explicit check covers
	// fallback entries carried across a degraded period.
	if token.IsExpired() {
		return nil, ErrTokenExpired
	}

	session, err := s.GetSession(ctx, token.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	module, err := s.module(ctx, token.ModuleID)
	if err != nil {
		return nil, err
	}
	if !module.Active {
		return nil, ErrModuleInactive
	}

	if err := s.UpdateSessionActivity(ctx, session.ID, token.Domain); err != nil {
		return nil, err
	}
	session.LastActivity = time.Now()
	session.AddDomain(token.Domain)

	s.cache.RemoveFromSet(ctx, sessionTokensKey(session.ID), tokenID)

	if err := s.durable.TouchModule(ctx, module.ID, time.Now()); err != nil {
		s.log.WarnContext(ctx, "failed to update module last-seen",
			"module_id", module.ID, "error", err)
	}

	s.log.InfoContext(ctx, "handoff token redeemed",
		"session_id", session.ID, "module_id", module.ID, "domain", token.Domain)

	return &TokenValidation{Session: session, Module: module}, nil
}

// RegisterModule upserts a module registration. The operation is
// idempotent and intended for deployment tooling, not end users.
func (s *Service) RegisterModule(ctx context.Context, moduleID, domain string, allowedOrigins []string, publicKey string) (*ModuleRegistration, error) {
	now := time.Now()
	module := &ModuleRegistration{
		ID:             moduleID,
		Domain:         domain,
		AllowedOrigins: allowedOrigins,
		PublicKey:      publicKey,
		Active:         true,
		RegisteredAt:   now,
		LastSeen:       now,
	}

	if err := s.durable.UpsertModule(ctx, module); err != nil {
		return nil, errors.Join(ErrDurableWriteFailed, err)
	}
	s.modules.Add(moduleID, module)

	s.log.InfoContext(ctx, "module registered",
		"module_id", moduleID, "domain", domain)

	return module, nil
}

// DeactivateModule disables a module registration. Outstanding tokens for
// the module fail at redemption time since liveness is re-checked there.
func (s *Service) DeactivateModule(ctx context.Context, moduleID string) error {
	module, err := s.durable.GetModule(ctx, moduleID)
	if err != nil {
		return err
	}

	module.Active = false
	if err := s.durable.UpsertModule(ctx, module); err != nil {
		return errors.Join(ErrDurableWriteFailed, err)
	}
	s.modules.Remove(moduleID)

	return nil
}

// ListUserSessions returns the user's live sessions from the durable store.
func (s *Service) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	return s.durable.ListActiveSessions(ctx, userID)
}

// TrackedSessionIDs returns the session ids tracked for the user in the
// fast store. The set may lag the durable store; global logout unions both.
func (s *Service) TrackedSessionIDs(ctx context.Context, userID uuid.UUID) []string {
	return s.cache.SetMembers(ctx, userSessionsKey(userID))
}

// ResolveSession returns the session record from cache or durable store
// regardless of liveness, so logout can recover user and domains even for
// a session whose cache entry is already gone. Returns (nil, nil) when no
// record exists anywhere.
func (s *Service) ResolveSession(ctx context.Context, id string) (*Session, error) {
	session, _, err := s.resolveSession(ctx, id)
	return session, err
}

// DropCachedSession removes the session's cache entry and its membership
// in the user's tracked set. Storage only; durable state is untouched.
func (s *Service) DropCachedSession(ctx context.Context, id string, userID uuid.UUID) {
	s.cache.Delete(ctx, sessionKey(id))
	if userID != uuid.Nil {
		s.cache.RemoveFromSet(ctx, userSessionsKey(userID), id)
	}
}

// CleanupSessionTokens removes every outstanding handoff token minted for
// the session, using the per-session token index.
func (s *Service) CleanupSessionTokens(ctx context.Context, id string) {
	indexKey := sessionTokensKey(id)
	for _, tokenID := range s.cache.SetMembers(ctx, indexKey) {
		s.cache.Delete(ctx, tokenKey(tokenID))
	}
	s.cache.Delete(ctx, indexKey)
}

// resolveSession reads the session from cache, falling back to the durable
// store. The second result reports whether the record came from cache.
func (s *Service) resolveSession(ctx context.Context, id string) (*Session, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	if payload, ok := s.cache.Get(ctx, sessionKey(id)); ok {
		var session Session
		if err := json.Unmarshal(payload, &session); err == nil {
			return &session, true, nil
		}
		// Unreadable cache entries are dropped and re-read from durable.
		s.cache.Delete(ctx, sessionKey(id))
	}

	session, err := s.durable.GetSession(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// cacheSession writes the session to the fast store with a TTL equal to
// its remaining lifetime.
func (s *Service) cacheSession(ctx context.Context, session *Session) {
	remaining := time.Until(session.ExpiresAt)
	if remaining <= 0 {
		return
	}
	payload, err := json.Marshal(session)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to marshal session for cache",
			"session_id", session.ID, "error", err)
		return
	}
	s.cache.Set(ctx, sessionKey(session.ID), payload, remaining)
}

// module returns the registration from the in-process cache or the durable
// store. Inactive modules are returned as-is; callers decide whether
// inactivity matters.
func (s *Service) module(ctx context.Context, id string) (*ModuleRegistration, error) {
	if module, ok := s.modules.Get(id); ok {
		return module, nil
	}

	module, err := s.durable.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	s.modules.Add(id, module)
	return module, nil
}

// newID creates a cryptographically random, URL-safe identifier.
func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
