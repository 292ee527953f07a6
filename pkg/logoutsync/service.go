package logoutsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/sessionstore"
	"github.com/dmitrymomot/ssokit/pkg/sso"
	"github.com/dmitrymomot/ssokit/pkg/webhook"
)

// Topic is the fan-out topic carrying logout events between processes.
const Topic = "sso:logout"

// WebhookEndpoint is one third-party subscriber to logout notifications.
type WebhookEndpoint struct {
	URL    string
	Secret string
}

// Listener receives logout events emitted in this process.
type Listener func(event sso.LogoutEvent)

// WebhookPayload is the outward notification contract.
type WebhookPayload struct {
	Type      string          `json:"type"`
	Data      sso.LogoutEvent `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Service is the sole authority for moving a session out of the active
// state: Active -> LoggingOut (the pipeline below) -> Destroyed, terminal.
// Session ids are never reused.
type Service struct {
	sessions *sso.Service
	store    *sessionstore.Store
	durable  sso.DurableStore
	sender   *webhook.Sender
	log      *slog.Logger

	endpoints      []WebhookEndpoint
	webhookTimeout time.Duration

	mu        sync.RWMutex
	listeners []Listener

	deliveries sync.WaitGroup
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithWebhookSender overrides the default webhook sender.
func WithWebhookSender(sender *webhook.Sender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithWebhookEndpoints registers third-party logout notification endpoints.
func WithWebhookEndpoints(endpoints ...WebhookEndpoint) Option {
	return func(s *Service) {
		s.endpoints = append(s.endpoints, endpoints...)
	}
}

// WithWebhookTimeout bounds each webhook delivery including retries.
func WithWebhookTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.webhookTimeout = d
		}
	}
}

// New creates the logout sync service.
func New(sessions *sso.Service, store *sessionstore.Store, durable sso.DurableStore, opts ...Option) *Service {
	if sessions == nil || store == nil || durable == nil {
		panic("logoutsync: sessions, store, and durable store are required")
	}

	s := &Service{
		sessions:       sessions,
		store:          store,
		durable:        durable,
		sender:         webhook.NewSender(),
		log:            slog.Default(),
		webhookTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterListener adds an in-process listener for logout events. Listeners
// are invoked synchronously during the pipeline; they should be fast and
// must not call back into this service.
func (s *Service) RegisterListener(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// LogoutSession destroys one session. The session is resolved through the
// cache and then the durable store, so user and domains are recovered even
// when the cache entry is already gone. A session that cannot be resolved,
// or is already destroyed, is a successful no-op: logout is idempotent and
// never an error for "already gone".
func (s *Service) LogoutSession(ctx context.Context, sessionID string, reason sso.LogoutReason, initiatedBy string, metadata map[string]any) error {
	session, err := s.sessions.ResolveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil || !session.Active {
		return nil
	}

	return s.process(ctx, session, reason, initiatedBy, metadata)
}

// LogoutAllSessions destroys every tracked session of the user. Sessions
// are processed independently: one failure never blocks the rest, and
// callers must not assume all-or-nothing atomicity across the set.
func (s *Service) LogoutAllSessions(ctx context.Context, userID uuid.UUID, reason sso.LogoutReason, initiatedBy string, metadata map[string]any) error {
	ids := make(map[string]struct{})
	for _, id := range s.sessions.TrackedSessionIDs(ctx, userID) {
		ids[id] = struct{}{}
	}

	// The durable store is the backstop for sessions the fast store no
	// longer tracks (degraded periods, other processes' fallback writes).
	durableSessions, err := s.durable.ListActiveSessions(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "global logout: durable session listing failed, proceeding with tracked ids",
			"user_id", userID, "error", err)
	}
	for _, session := range durableSessions {
		ids[session.ID] = struct{}{}
	}

	var errs []error
	for id := range ids {
		if err := s.LogoutSession(ctx, id, reason, initiatedBy, metadata); err != nil {
			s.log.ErrorContext(ctx, "global logout: session failed",
				"session_id", id, "user_id", userID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// process executes the logout pipeline in fixed order. The ordering is
// deliberate: the durable audit precedes the durable invalidation so a
// mid-pipeline crash still leaves forensic evidence, and the durable
// invalidation precedes the broadcast so a cold-cache validator reading
// straight from the durable store never observes a stale "active" session
// after the audit point.
func (s *Service) process(ctx context.Context, session *sso.Session, reason sso.LogoutReason, initiatedBy string, metadata map[string]any) error {
	now := time.Now()
	event := sso.LogoutEvent{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		UserID:      session.UserID,
		Domains:     slices.Clone(session.Domains),
		Reason:      reason,
		InitiatedBy: initiatedBy,
		Metadata:    metadata,
		Timestamp:   now,
	}

	// (1) Append-only audit. Losing the audit silently is unacceptable.
	if err := s.durable.InsertLogoutEvent(ctx, &event); err != nil {
		return errors.Join(ErrAuditWriteFailed, err)
	}

	// (2) Durable invalidation is mandatory; cache invalidation is
	// best-effort since the durable record is authoritative either way.
	if err := s.durable.DeactivateSession(ctx, session.ID, now); err != nil {
		return errors.Join(sso.ErrDurableWriteFailed, err)
	}
	s.sessions.DropCachedSession(ctx, session.ID, session.UserID)

	// (3) Best-effort fan-out to other processes.
	if payload, err := json.Marshal(event); err == nil {
		s.store.Publish(ctx, Topic, payload)
	} else {
		s.log.ErrorContext(ctx, "failed to marshal logout event for broadcast",
			"session_id", session.ID, "error", err)
	}

	// (4) Local emission always runs so same-process listeners are
	// reliably informed regardless of broadcast state.
	s.emit(event)

	// (5) Fire-and-forget webhook notification.
	s.notifyWebhooks(ctx, event)

	// (6) Derivative cleanup: outstanding handoff tokens and cached
	// per-session lookups. Non-fatal.
	s.sessions.CleanupSessionTokens(ctx, session.ID)

	s.log.InfoContext(ctx, "session destroyed",
		"session_id", session.ID, "user_id", session.UserID, "reason", reason)

	return nil
}

func (s *Service) emit(event sso.LogoutEvent) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (s *Service) notifyWebhooks(ctx context.Context, event sso.LogoutEvent) {
	if len(s.endpoints) == 0 {
		return
	}

	payload := WebhookPayload{
		Type:      "user.logout",
		Data:      event,
		Timestamp: time.Now(),
	}

	for _, endpoint := range s.endpoints {
		s.deliveries.Add(1)
		go func() {
			defer s.deliveries.Done()

			// Deliveries outlive the request; only the timeout bounds them.
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.webhookTimeout)
			defer cancel()

			opts := []webhook.SendOption{}
			if endpoint.Secret != "" {
				opts = append(opts, webhook.WithSignature(endpoint.Secret))
			}
			if err := s.sender.Send(sendCtx, endpoint.URL, payload, opts...); err != nil {
				s.log.Warn("logout webhook delivery failed",
					"url", endpoint.URL, "session_id", event.SessionID, "error", err)
			}
		}()
	}
}

// Run subscribes to the logout topic and invalidates this process's local
// cache entry for every event, including events originated elsewhere.
// There is no acknowledgment or consensus step: propagation is typically
// sub-second but not bounded-guaranteed, and the durable store remains the
// correctness backstop for processes that miss a broadcast.
func (s *Service) Run(ctx context.Context) {
	s.store.Subscribe(ctx, Topic, func(payload []byte) {
		var event sso.LogoutEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			s.log.Warn("discarding malformed logout broadcast", "error", err)
			return
		}
		s.sessions.DropCachedSession(context.WithoutCancel(ctx), event.SessionID, event.UserID)
	})
}

// Close waits for outstanding webhook deliveries to finish.
func (s *Service) Close() error {
	s.deliveries.Wait()
	return nil
}
