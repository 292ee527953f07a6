package sessionstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/sessionstore"
)

func setupShared(t *testing.T) (*sessionstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := sessionstore.New(
		sessionstore.WithClient(client),
		sessionstore.WithOperationTimeout(time.Second),
		sessionstore.WithRecoveryInterval(50*time.Millisecond),
	)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func setupMemoryOnly(t *testing.T) *sessionstore.Store {
	t.Helper()

	store := sessionstore.New()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SetGetDelete(t *testing.T) {
	t.Parallel()

	store, _ := setupShared(t)
	ctx := context.Background()

	store.Set(ctx, "k1", []byte("v1"), time.Minute)

	value, ok := store.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)
	assert.True(t, store.Exists(ctx, "k1"))

	store.Delete(ctx, "k1")
	_, ok = store.Get(ctx, "k1")
	assert.False(t, ok)
	assert.False(t, store.Exists(ctx, "k1"))
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	store, mr := setupShared(t)
	ctx := context.Background()

	store.Set(ctx, "k1", []byte("v1"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := store.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestStore_Touch(t *testing.T) {
	t.Parallel()

	store, mr := setupShared(t)
	ctx := context.Background()

	store.Set(ctx, "k1", []byte("v1"), time.Minute)
	require.True(t, store.Touch(ctx, "k1", time.Hour))

	mr.FastForward(30 * time.Minute)
	_, ok := store.Get(ctx, "k1")
	assert.True(t, ok, "touched entry must outlive its original TTL")

	assert.False(t, store.Touch(ctx, "missing", time.Hour))
}

func TestStore_ConsumeToken_SingleUse(t *testing.T) {
	t.Parallel()

	store, _ := setupShared(t)
	ctx := context.Background()

	store.Set(ctx, "token:abc", []byte("payload"), time.Minute)

	value, ok := store.ConsumeToken(ctx, "token:abc")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), value)

	_, ok = store.ConsumeToken(ctx, "token:abc")
	assert.False(t, ok, "a consumed token must always be rejected afterwards")
}

func TestStore_ConsumeToken_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	store, _ := setupShared(t)
	ctx := context.Background()

	const attempts = 16
	store.Set(ctx, "token:race", []byte("payload"), time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := store.ConsumeToken(ctx, "token:race")
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent redemption may succeed")
}

func TestStore_Sets(t *testing.T) {
	t.Parallel()

	store, _ := setupShared(t)
	ctx := context.Background()

	store.AddToSet(ctx, "user:sessions", "s1", time.Hour)
	store.AddToSet(ctx, "user:sessions", "s2", time.Hour)
	store.AddToSet(ctx, "user:sessions", "s2", time.Hour) // idempotent

	members := store.SetMembers(ctx, "user:sessions")
	assert.ElementsMatch(t, []string{"s1", "s2"}, members)

	store.RemoveFromSet(ctx, "user:sessions", "s1")
	assert.ElementsMatch(t, []string{"s2"}, store.SetMembers(ctx, "user:sessions"))
}

func TestStore_PubSub_SharedBackend(t *testing.T) {
	t.Parallel()

	store, _ := setupShared(t)
	ctx := context.Background()

	received := make(chan []byte, 1)
	store.Subscribe(ctx, "logout", func(payload []byte) {
		received <- payload
	})

	// Subscription setup races with the first publish; retry until delivered.
	require.Eventually(t, func() bool {
		store.Publish(ctx, "logout", []byte("bye"))
		select {
		case msg := <-received:
			return string(msg) == "bye"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStore_MemoryOnlyMode(t *testing.T) {
	t.Parallel()

	store := setupMemoryOnly(t)
	ctx := context.Background()

	assert.True(t, store.Degraded())

	store.Set(ctx, "k1", []byte("v1"), time.Minute)
	value, ok := store.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)

	_, ok = store.ConsumeToken(ctx, "k1")
	require.True(t, ok)
	_, ok = store.ConsumeToken(ctx, "k1")
	assert.False(t, ok)

	received := make(chan []byte, 1)
	store.Subscribe(ctx, "logout", func(payload []byte) {
		received <- payload
	})
	require.Eventually(t, func() bool {
		store.Publish(ctx, "logout", []byte("bye"))
		select {
		case <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStore_MemoryOnly_Expiry(t *testing.T) {
	t.Parallel()

	store := setupMemoryOnly(t)
	ctx := context.Background()

	store.Set(ctx, "k1", []byte("v1"), 30*time.Millisecond)
	_, ok := store.Get(ctx, "k1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = store.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestStore_DegradesWithoutErrors(t *testing.T) {
	t.Parallel()

	store, mr := setupShared(t)
	ctx := context.Background()

	assert.False(t, store.Degraded())

	// Kill the backend; every operation must keep succeeding locally.
	mr.Close()

	store.Set(ctx, "k1", []byte("v1"), time.Minute)
	assert.True(t, store.Degraded())

	value, ok := store.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)

	store.Set(ctx, "token:t1", []byte("p"), time.Minute)
	_, ok = store.ConsumeToken(ctx, "token:t1")
	require.True(t, ok)
	_, ok = store.ConsumeToken(ctx, "token:t1")
	assert.False(t, ok)

	store.AddToSet(ctx, "set1", "m1", time.Minute)
	assert.ElementsMatch(t, []string{"m1"}, store.SetMembers(ctx, "set1"))

	// Publish must not error or panic either.
	store.Publish(ctx, "logout", []byte("bye"))
}

func TestStore_RecoversAfterBackendReturns(t *testing.T) {
	t.Parallel()

	store, mr := setupShared(t)
	ctx := context.Background()

	mr.Close()
	store.Set(ctx, "k1", []byte("v1"), time.Minute)
	require.True(t, store.Degraded())

	require.NoError(t, mr.Restart())

	assert.Eventually(t, func() bool {
		return !store.Degraded()
	}, 5*time.Second, 25*time.Millisecond)

	// Fallback-period writes are intentionally not reconciled into the
	// shared backend.
	store.Set(ctx, "k2", []byte("v2"), time.Minute)
	_, ok := store.Get(ctx, "k2")
	assert.True(t, ok)
}
