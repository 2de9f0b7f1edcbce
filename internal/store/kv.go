// Package store persists nodes, collections, collection credentials and
// sessions as JSON documents in a key-value backend.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// KV is the minimal contract of a document backend. Values are opaque.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open returns a backend for dsn. "" and "memory" select the in-process
// map; "sqlite:<path>" or any other value is a SQLite database path.
func Open(dsn string) (KV, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryKV(), nil
	default:
		kv, err := OpenSQLite(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("open store %q: %w", dsn, err)
		}
		return kv, nil
	}
}

type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
