package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store using an in-process map. All data is lost
// when the process exits, which is acceptable for rate-limit buckets and
// cache entries (both self-expire) and for single-instance job queues that
// tolerate loss on restart.
//
// Expired entries are dropped lazily on read and swept periodically by a
// janitor goroutine.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	sweepEvery time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

type memoryEntry struct {
	value []byte
	// expiresAt is zero for entries without a TTL.
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSweepInterval sets how often the janitor removes expired entries.
// Default: 1 minute.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.sweepEvery = d }
}

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an in-memory store and starts its janitor.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		sweepEvery: time.Minute,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent := m.liveEntryLocked(key)
	if ent == nil {
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(ent.value))
	copy(out, ent.value)
	return out, nil
}

// Set stores value under key with the given TTL.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	ent := &memoryEntry{value: stored}
	if ttl > 0 {
		ent.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = ent
	return nil
}

// Delete removes the key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// IncrementWithTTL atomically adds delta to the counter under key.
// The map mutex serializes all increments, so callers observe a total
// order with no lost updates.
func (m *MemoryStore) IncrementWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent := m.liveEntryLocked(key)
	if ent == nil {
		// New counter: expiry is set here and never again.
		ent = &memoryEntry{value: []byte(strconv.FormatInt(delta, 10))}
		if ttl > 0 {
			ent.expiresAt = m.now().Add(ttl)
		}
		m.entries[key] = ent
		return delta, nil
	}

	current, err := strconv.ParseInt(string(ent.value), 10, 64)
	if err != nil {
		return 0, ErrNotCounter
	}

	current += delta
	ent.value = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// Len returns the number of live entries. Useful for monitoring and tests.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for _, ent := range m.entries {
		if ent.expiresAt.IsZero() || ent.expiresAt.After(now) {
			n++
		}
	}
	return n
}

// liveEntryLocked returns the entry for key, dropping it if expired.
// Caller must hold mu.
func (m *MemoryStore) liveEntryLocked(key string) *memoryEntry {
	ent, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !ent.expiresAt.IsZero() && !ent.expiresAt.After(m.now()) {
		delete(m.entries, key)
		return nil
	}
	return ent
}

// sweepLoop periodically removes expired entries so idle keys do not
// accumulate between reads.
func (m *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, ent := range m.entries {
		if !ent.expiresAt.IsZero() && !ent.expiresAt.After(now) {
			delete(m.entries, key)
		}
	}
}
