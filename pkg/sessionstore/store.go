package sessionstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/ssokit/pkg/broadcast"
)

// Store is the storage layer for sessions, handoff tokens, and per-user
// session sets. It prefers the shared Redis backend and degrades
// transparently to a private in-process store on any transport error:
// no transport failure ever crosses this boundary as an error.
//
// Entries written during a degraded period live only in this process and
// are not reconciled back into the shared backend on recovery. That is an
// accepted availability-over-consistency trade-off: cross-process session
// validity is openly inconsistent until the affected sessions expire or
// are re-established.
type Store struct {
	client           redis.UniversalClient
	local            *memoryStore
	localBus         *broadcast.MemoryBroadcaster
	log              *slog.Logger
	opTimeout        time.Duration
	recoveryInterval time.Duration

	degraded atomic.Bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Store. Without WithClient the store runs purely in-process,
// which is the supported single-process deployment mode.
func New(opts ...Option) *Store {
	s := &Store{
		local:            newMemoryStore(),
		localBus:         broadcast.NewMemoryBroadcaster(64),
		log:              slog.Default(),
		opTimeout:        2 * time.Second,
		recoveryInterval: 5 * time.Second,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client != nil {
		s.wg.Add(1)
		go s.recoveryLoop()
	}

	return s
}

// NewFromConfig creates a Store from environment configuration.
func NewFromConfig(cfg Config, opts ...Option) *Store {
	all := []Option{
		WithOperationTimeout(cfg.OperationTimeout),
		WithRecoveryInterval(cfg.RecoveryInterval),
	}
	all = append(all, opts...)
	return New(all...)
}

// Config holds session store tuning knobs.
type Config struct {
	// OperationTimeout bounds each shared-backend call so an unreachable
	// backend degrades the store instead of stalling requests.
	OperationTimeout time.Duration `env:"SESSION_STORE_OP_TIMEOUT" envDefault:"2s"`

	// RecoveryInterval is how often a degraded store probes the backend.
	RecoveryInterval time.Duration `env:"SESSION_STORE_RECOVERY_INTERVAL" envDefault:"5s"`
}

// Option configures a Store.
type Option func(*Store)

// WithClient attaches the shared Redis backend.
func WithClient(client redis.UniversalClient) Option {
	return func(s *Store) { s.client = client }
}

// WithLogger sets the logger used for degradation and recovery events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithOperationTimeout bounds individual shared-backend calls.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithRecoveryInterval sets the degraded-mode probe interval.
func WithRecoveryInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.recoveryInterval = d
		}
	}
}

// Degraded reports whether the store is currently serving from its
// in-process fallback.
func (s *Store) Degraded() bool {
	return s.client == nil || s.degraded.Load()
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		err := s.client.Set(opCtx, key, value, ttl).Err()
		cancel()
		if err == nil {
			return
		}
		s.degrade("set", err)
	}
	s.local.set(key, value, ttl)
}

// Get returns the value stored under key. The second result is false when
// the key is missing or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		value, err := s.client.Get(opCtx, key).Bytes()
		cancel()
		if err == nil {
			return value, true
		}
		if errors.Is(err, redis.Nil) {
			return nil, false
		}
		s.degrade("get", err)
	}
	return s.local.get(key)
}

// Exists reports whether key is present and unexpired.
func (s *Store) Exists(ctx context.Context, key string) bool {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		n, err := s.client.Exists(opCtx, key).Result()
		cancel()
		if err == nil {
			return n > 0
		}
		s.degrade("exists", err)
	}
	return s.local.exists(key)
}

// Delete removes key. Removing an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		err := s.client.Del(opCtx, key).Err()
		cancel()
		if err != nil {
			s.degrade("delete", err)
		}
	}
	// Always clear the fallback copy so entries written during a past
	// degraded period cannot resurface.
	s.local.delete(key)
}

// Touch resets the TTL of an existing key, reporting whether the key exists.
func (s *Store) Touch(ctx context.Context, key string, ttl time.Duration) bool {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		ok, err := s.client.Expire(opCtx, key, ttl).Result()
		cancel()
		if err == nil {
			return ok
		}
		s.degrade("touch", err)
	}
	return s.local.touch(key, ttl)
}

// ConsumeToken atomically fetches and deletes key. Two concurrent calls for
// the same key can never both succeed: the shared backend uses GETDEL as a
// single atomic operation, and the fallback store serializes access under
// its own lock.
func (s *Store) ConsumeToken(ctx context.Context, key string) ([]byte, bool) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		value, err := s.client.GetDel(opCtx, key).Bytes()
		cancel()
		if err == nil {
			return value, true
		}
		if errors.Is(err, redis.Nil) {
			return nil, false
		}
		s.degrade("consume_token", err)
	}
	return s.local.consume(key)
}

// AddToSet adds member to the set stored under key and refreshes the set's
// TTL. Used to index a user's session ids and a session's outstanding
// handoff tokens.
func (s *Store) AddToSet(ctx context.Context, key, member string, ttl time.Duration) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		pipe := s.client.TxPipeline()
		pipe.SAdd(opCtx, key, member)
		if ttl > 0 {
			pipe.Expire(opCtx, key, ttl)
		}
		_, err := pipe.Exec(opCtx)
		cancel()
		if err == nil {
			return
		}
		s.degrade("add_to_set", err)
	}
	s.local.addToSet(key, member, ttl)
}

// SetMembers returns all members of the set stored under key.
func (s *Store) SetMembers(ctx context.Context, key string) []string {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		members, err := s.client.SMembers(opCtx, key).Result()
		cancel()
		if err == nil {
			return members
		}
		s.degrade("set_members", err)
	}
	return s.local.setMembers(key)
}

// RemoveFromSet removes member from the set stored under key.
func (s *Store) RemoveFromSet(ctx context.Context, key, member string) {
	if s.shared() {
		opCtx, cancel := s.opContext(ctx)
		err := s.client.SRem(opCtx, key, member).Err()
		cancel()
		if err != nil {
			s.degrade("remove_from_set", err)
		}
	}
	s.local.removeFromSet(key, member)
}

// Close stops background goroutines and releases the local broadcaster.
// The Redis client is owned by the caller and is not closed here.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.localBus.Close()
}

// shared reports whether the shared backend should be tried for this call.
func (s *Store) shared() bool {
	return s.client != nil && !s.degraded.Load()
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// degrade flips the store into fallback mode. The recovery loop flips it
// back once the backend answers pings again.
func (s *Store) degrade(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.log.Warn("session store degraded to in-process fallback",
			"operation", op, "error", err)
	}
}

func (s *Store) recoveryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.recoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.degraded.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
			err := s.client.Ping(ctx).Err()
			cancel()
			if err == nil && s.degraded.CompareAndSwap(true, false) {
				s.log.Info("session store recovered, shared backend reachable again")
			}
		}
	}
}
