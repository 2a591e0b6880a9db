package store

import (
	"context"
	"sync"
	"time"

	"github.com/verifiq/phone-api-go/internal/ratelimit"
)

// MemoryKV is an in-memory implementation of ratelimit.KV. Entries are
// lazily expired on read and swept by a background janitor. Suitable for
// single-instance deployments and tests; nothing survives a restart.
type MemoryKV struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

const janitorInterval = time.Minute

// NewMemoryKV creates an in-memory KV binding and starts its janitor.
func NewMemoryKV() *MemoryKV {
	kv := &MemoryKV{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
	}

	kv.wg.Add(1)
	go kv.janitor()

	return kv
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ratelimit.ErrKeyNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	return value, nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)

	return nil
}

func (m *MemoryKV) Ping(_ context.Context) error {
	return nil
}

// Shutdown stops the janitor goroutine. Safe to call more than once;
// the injector and test cleanups may both trigger it.
func (m *MemoryKV) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	return nil
}

func (m *MemoryKV) janitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryKV) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

var _ ratelimit.KV = (*MemoryKV)(nil)
