package sessionstore

import (
	"sync"
	"time"
)

// memoryStore is the private in-process fallback. Expiry is computed with
// absolute local timestamps and enforced lazily on read; nothing sweeps
// proactively since the fallback only holds entries from degraded periods
// or single-process deployments.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	sets    map[string]memSet
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

type memSet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries: make(map[string]memEntry),
		sets:    make(map[string]memSet),
	}
}

func (m *memoryStore) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.liveEntry(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (m *memoryStore) exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.liveEntry(key)
	return ok
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

func (m *memoryStore) touch(key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.liveEntry(key)
	if !ok {
		return false
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	m.entries[key] = entry
	return true
}

// consume is the fallback's fetch-and-delete. Atomicity is trivial here:
// all access is serialized by the store mutex.
func (m *memoryStore) consume(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.liveEntry(key)
	if !ok {
		return nil, false
	}
	delete(m.entries, key)
	return entry.value, true
}

func (m *memoryStore) addToSet(key, member string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.liveSet(key)
	if !ok {
		set = memSet{members: make(map[string]struct{})}
	}
	set.members[member] = struct{}{}
	if ttl > 0 {
		set.expiresAt = time.Now().Add(ttl)
	}
	m.sets[key] = set
}

func (m *memoryStore) setMembers(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.liveSet(key)
	if !ok {
		return nil
	}
	members := make([]string, 0, len(set.members))
	for member := range set.members {
		members = append(members, member)
	}
	return members
}

func (m *memoryStore) removeFromSet(key, member string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.liveSet(key)
	if !ok {
		return
	}
	delete(set.members, member)
	if len(set.members) == 0 {
		delete(m.sets, key)
	}
}

// liveEntry returns the entry for key, dropping it if expired.
// Caller must hold the mutex.
func (m *memoryStore) liveEntry(key string) (memEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return memEntry{}, false
	}
	return entry, true
}

func (m *memoryStore) liveSet(key string) (memSet, bool) {
	set, ok := m.sets[key]
	if !ok {
		return memSet{}, false
	}
	if !set.expiresAt.IsZero() && time.Now().After(set.expiresAt) {
		delete(m.sets, key)
		return memSet{}, false
	}
	return set, true
}
