package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory is an in-process Store backed by ristretto. It exists for tests
// and for deployments that run without Redis. Ristretto has no native
// wildcard deletion, so Memory keeps a secondary index of live keys and
// their expiries and answers DeletePattern from that index.
type Memory struct {
	rc      *ristretto.Cache[string, []byte]
	metrics *Metrics

	mu   sync.Mutex
	keys map[string]time.Time
}

// NewMemory creates a Memory store holding at most maxEntries entries.
func NewMemory(maxEntries int64, metrics *Metrics) (*Memory, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{rc: rc, metrics: metrics, keys: make(map[string]time.Time)}, nil
}

// Get retrieves a value by key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.rc.Get(key)
	if !ok {
		m.dropExpired(key)
		m.metrics.Miss()
		return nil, false, nil
	}
	m.metrics.Hit()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a value under key with the given TTL.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < time.Second {
		return fmt.Errorf("cache: ttl %v below 1s for key %s", ttl, key)
	}
	stored := make([]byte, len(val))
	copy(stored, val)

	m.mu.Lock()
	m.keys[key] = time.Now().Add(ttl)
	m.mu.Unlock()

	m.rc.SetWithTTL(key, stored, 1, ttl)
	m.rc.Wait()
	return nil
}

// Delete removes a single entry.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	m.rc.Del(key)
	return nil
}

// DeletePattern removes every entry whose key starts with prefix,
// answered from the secondary index.
func (m *Memory) DeletePattern(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	matched := make([]string, 0)
	now := time.Now()
	deleted := 0
	for k, exp := range m.keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		matched = append(matched, k)
		delete(m.keys, k)
		if exp.After(now) {
			deleted++
		}
	}
	m.mu.Unlock()

	for _, k := range matched {
		m.rc.Del(k)
	}
	return deleted, nil
}

// Ping always succeeds; the store is in-process.
func (m *Memory) Ping(context.Context) error { return nil }

// Stats reports the live key count and the process-local counters.
func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	now := time.Now()
	var live int64
	for k, exp := range m.keys {
		if exp.After(now) {
			live++
		} else {
			delete(m.keys, k)
		}
	}
	m.mu.Unlock()

	hits, misses := m.metrics.Counts()
	return Stats{
		Connected: true,
		Keys:      live,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate(hits, misses),
	}, nil
}

// Close releases the ristretto cache.
func (m *Memory) Close() error {
	m.rc.Close()
	return nil
}

// dropExpired prunes an index entry whose backing value is gone.
func (m *Memory) dropExpired(key string) {
	m.mu.Lock()
	if exp, ok := m.keys[key]; ok && !exp.After(time.Now()) {
		delete(m.keys, key)
	}
	m.mu.Unlock()
}
