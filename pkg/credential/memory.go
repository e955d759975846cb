package credential

import (
	"context"
	"sync"
)

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]Record)}
}

func memoryKey(namespace, account string) string {
	return namespace + "\x00" + account
}

func (m *MemoryStorage) Get(_ context.Context, namespace, account string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[memoryKey(namespace, account)]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (m *MemoryStorage) Create(_ context.Context, namespace, account string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(namespace, account)
	if _, ok := m.records[key]; ok {
		return ErrAlreadyExists
	}
	m.records[key] = record.Clone()
	return nil
}

func (m *MemoryStorage) Update(_ context.Context, namespace, account string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(namespace, account)
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	m.records[key] = record.Clone()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
