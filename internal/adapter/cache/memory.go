package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps entries in a map and checks expiry on read. An optional
// sweeper evicts expired entries in the background until Close.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memEntry
	now   func() time.Time

	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock injects a time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates a store. A positive sweepEvery starts the sweeper.
func NewMemoryStore(sweepEvery time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{items: make(map[string]memEntry), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	if sweepEvery > 0 {
		m.stopSweep = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.sweepLoop(sweepEvery)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.items[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	now := m.now()
	m.mu.Lock()
	m.items[key] = memEntry{value: value, expiresAt: now.Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.items {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if now.Before(e.expiresAt) {
			n++
		}
		delete(m.items, k)
	}
	return n, nil
}

// Len returns the number of physically present entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Sweep evicts expired entries and returns how many it removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) sweepLoop(every time.Duration) {
	defer close(m.sweepDone)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("response cache sweep", slog.Int("evicted", n))
			}
		case <-m.stopSweep:
			return
		}
	}
}

func (m *MemoryStore) Kind() string { return "memory" }

// Close stops the sweeper and waits for it to exit. Safe to call twice.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		if m.stopSweep != nil {
			close(m.stopSweep)
			<-m.sweepDone
		}
	})
	return nil
}
