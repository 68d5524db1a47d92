package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Provider that keeps everything in process memory. Used in
// tests and when local storage cannot be opened.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte

	// FailWrites makes every Put and Delete fail with this error when set.
	FailWrites error
	// FailReads makes every Get fail with this error when set.
	FailReads error
}

// NewMemoryStore creates an empty in-memory provider.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Init(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Path() string { return ":memory:" }

func (m *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := ValidateKey(namespace, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	if err := ValidateKey(namespace, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.data[namespace], key)
	return nil
}

func (m *MemoryStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SetFailWrites toggles write failures under the store lock.
func (m *MemoryStore) SetFailWrites(err error) {
	m.mu.Lock()
	m.FailWrites = err
	m.mu.Unlock()
}
