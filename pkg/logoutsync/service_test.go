package logoutsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/logoutsync"
	"github.com/dmitrymomot/ssokit/pkg/sessionstore"
	"github.com/dmitrymomot/ssokit/pkg/sso"
	"github.com/dmitrymomot/ssokit/pkg/webhook"
)

type logoutFixture struct {
	svc      *logoutsync.Service
	sessions *sso.Service
	durable  *sso.MemoryDurableStore
	store    *sessionstore.Store
	redis    *miniredis.Miniredis
}

func setupLogout(t *testing.T, opts ...logoutsync.Option) *logoutFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := sessionstore.New(sessionstore.WithClient(client))
	t.Cleanup(func() { _ = store.Close() })

	durable := sso.NewMemoryDurableStore()

	cfg := sso.DefaultConfig()
	cfg.PrimaryDomain = "primary.example"
	sessions := sso.NewService(store, durable, sso.WithConfig(cfg))

	svc := logoutsync.New(sessions, store, durable, opts...)
	t.Cleanup(func() { _ = svc.Close() })

	return &logoutFixture{svc: svc, sessions: sessions, durable: durable, store: store, redis: mr}
}

func createSession(t *testing.T, f *logoutFixture) *sso.Session {
	t.Helper()

	session, err := f.sessions.CreateSession(context.Background(), sso.Identity{
		UserID: uuid.New(),
		Email:  "jo@example.com",
		Name:   "Jo",
		Role:   "member",
	}, "203.0.113.7", "test-agent", nil)
	require.NoError(t, err)
	return session
}

func TestService_LogoutSession(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	session := createSession(t, f)

	err := f.svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", map[string]any{"via": "settings"})
	require.NoError(t, err)

	got, err := f.sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "destroyed session must look unauthenticated")

	stored, err := f.durable.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	require.NotNil(t, stored.DestroyedAt)

	events := f.durable.LogoutEvents()
	require.Len(t, events, 1)
	assert.Equal(t, session.ID, events[0].SessionID)
	assert.Equal(t, session.UserID, events[0].UserID)
	assert.Equal(t, sso.ReasonManual, events[0].Reason)
	assert.Equal(t, []string{"primary.example"}, events[0].Domains)
	assert.Equal(t, "user", events[0].InitiatedBy)
}

func TestService_LogoutSession_Idempotent(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	session := createSession(t, f)

	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil))
	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil))
	require.NoError(t, f.svc.LogoutSession(ctx, "never-existed", sso.ReasonManual, "user", nil))

	assert.Len(t, f.durable.LogoutEvents(), 1,
		"repeated and unknown logouts are no-ops without audit rows")
}

func TestService_LogoutSession_RevokesOutstandingTokens(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	session := createSession(t, f)
	_, err := f.sessions.RegisterModule(ctx, "crm", "crm.example", []string{"crm.example"}, "")
	require.NoError(t, err)

	token, err := f.sessions.GenerateToken(ctx, session.ID, "crm", "crm.example")
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonSecurity, "admin", nil))

	_, err = f.sessions.ValidateToken(ctx, token.ID, "crm.example")
	assert.ErrorIs(t, err, sso.ErrTokenInvalid)
}

func TestService_LogoutAllSessions(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	identity := sso.Identity{UserID: uuid.New(), Email: "jo@example.com"}
	for range 3 {
		_, err := f.sessions.CreateSession(ctx, identity, "", "", nil)
		require.NoError(t, err)
	}
	other := createSession(t, f)

	require.NoError(t, f.svc.LogoutAllSessions(ctx, identity.UserID, sso.ReasonSecurity, "admin", nil))

	assert.Len(t, f.durable.LogoutEvents(), 3)

	remaining, err := f.durable.ListActiveSessions(ctx, identity.UserID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// The other user's session is untouched.
	got, err := f.sessions.GetSession(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestService_LogoutAllSessions_CoversUntrackedSessions(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	identity := sso.Identity{UserID: uuid.New(), Email: "jo@example.com"}
	session, err := f.sessions.CreateSession(ctx, identity, "", "", nil)
	require.NoError(t, err)

	// Wipe the fast store so the tracked set is empty; the durable listing
	// must still find the session.
	f.redis.FlushAll()
	require.Empty(t, f.sessions.TrackedSessionIDs(ctx, identity.UserID))

	require.NoError(t, f.svc.LogoutAllSessions(ctx, identity.UserID, sso.ReasonAdmin, "admin", nil))

	stored, err := f.durable.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

type failingAuditStore struct {
	sso.DurableStore
}

func (f *failingAuditStore) InsertLogoutEvent(ctx context.Context, event *sso.LogoutEvent) error {
	return errors.New("disk full")
}

func TestService_LogoutSession_AuditFailureAborts(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := sessionstore.New(sessionstore.WithClient(client))
	t.Cleanup(func() { _ = store.Close() })

	durable := sso.NewMemoryDurableStore()
	sessions := sso.NewService(store, durable)
	svc := logoutsync.New(sessions, store, &failingAuditStore{DurableStore: durable})

	ctx := context.Background()
	session, err := sessions.CreateSession(ctx, sso.Identity{UserID: uuid.New()}, "", "", nil)
	require.NoError(t, err)

	err = svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil)
	assert.ErrorIs(t, err, logoutsync.ErrAuditWriteFailed)

	// Nothing past the audit step ran: the session is still live.
	got, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	stored, err := durable.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
}

type failingDeactivateStore struct {
	sso.DurableStore
}

func (f *failingDeactivateStore) DeactivateSession(ctx context.Context, id string, at time.Time) error {
	return errors.New("connection reset")
}

func TestService_LogoutSession_DeactivateFailurePropagates(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := sessionstore.New(sessionstore.WithClient(client))
	t.Cleanup(func() { _ = store.Close() })

	durable := sso.NewMemoryDurableStore()
	sessions := sso.NewService(store, durable)
	svc := logoutsync.New(sessions, store, &failingDeactivateStore{DurableStore: durable})

	ctx := context.Background()
	session, err := sessions.CreateSession(ctx, sso.Identity{UserID: uuid.New()}, "", "", nil)
	require.NoError(t, err)

	err = svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil)
	assert.ErrorIs(t, err, sso.ErrDurableWriteFailed)

	// The audit row was already written before the failure.
	assert.Len(t, durable.LogoutEvents(), 1)
}

func TestService_Listeners(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []sso.LogoutEvent
	)
	f.svc.RegisterListener(func(event sso.LogoutEvent) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})

	session := createSession(t, f)
	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonExpired, "system", nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, session.ID, events[0].SessionID)
	assert.Equal(t, sso.ReasonExpired, events[0].Reason)
}

func TestService_ListenersEmitWhenBroadcastDown(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx := context.Background()

	session := createSession(t, f)

	var called bool
	f.svc.RegisterListener(func(event sso.LogoutEvent) { called = true })

	// Broadcast transport is gone; local emission still happens.
	f.redis.Close()

	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil))
	assert.True(t, called)
}

func TestService_WebhookDelivery(t *testing.T) {
	t.Parallel()

	type received struct {
		body      []byte
		signature string
		timestamp string
	}
	ch := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- received{
			body:      body,
			signature: r.Header.Get("X-Webhook-Signature"),
			timestamp: r.Header.Get("X-Webhook-Timestamp"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := setupLogout(t,
		logoutsync.WithWebhookSender(webhook.NewSender()),
		logoutsync.WithWebhookEndpoints(logoutsync.WebhookEndpoint{URL: srv.URL, Secret: "whsec_test"}),
		logoutsync.WithWebhookTimeout(5*time.Second),
	)
	ctx := context.Background()

	session := createSession(t, f)
	require.NoError(t, f.svc.LogoutSession(ctx, session.ID, sso.ReasonManual, "user", nil))
	require.NoError(t, f.svc.Close())

	select {
	case got := <-ch:
		var payload logoutsync.WebhookPayload
		require.NoError(t, json.Unmarshal(got.body, &payload))
		assert.Equal(t, "user.logout", payload.Type)
		assert.Equal(t, session.ID, payload.Data.SessionID)
		assert.NotEmpty(t, got.signature)

		ts, err := strconv.ParseInt(got.timestamp, 10, 64)
		require.NoError(t, err)
		require.NoError(t, webhook.VerifySignature("whsec_test", got.body, webhook.SignatureHeaders{
			Signature: got.signature,
			Timestamp: ts,
		}, time.Minute))
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestService_Run_DropsCacheOnBroadcast(t *testing.T) {
	t.Parallel()

	f := setupLogout(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	session := createSession(t, f)
	require.True(t, f.redis.Exists("sso:session:"+session.ID))

	f.svc.Run(ctx)

	// Simulate a logout broadcast from another process.
	event := sso.LogoutEvent{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		UserID:    session.UserID,
		Reason:    sso.ReasonManual,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		f.store.Publish(ctx, logoutsync.Topic, payload)
		return !f.redis.Exists("sso:session:" + session.ID)
	}, 3*time.Second, 50*time.Millisecond)
}
