package storage

import (
	"errors"
	"sync"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

var errNilRecord = errors.New("record must not be nil")

// MemoryStore is the in-process HistoryStore. Records are stored and returned
// by value so callers never share a record with the map.
type MemoryStore struct {
	data map[string]models.LastLoginRecord // key: UserID
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]models.LastLoginRecord),
	}
}

func (m *MemoryStore) GetLastRecord(userID string) (*models.LastLoginRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if record, exists := m.data[userID]; exists {
		return &record, nil
	}
	return nil, nil
}

func (m *MemoryStore) SaveRecord(record *models.LastLoginRecord) error {
	if record == nil {
		return errNilRecord
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[record.UserID] = *record
	return nil
}

func (m *MemoryStore) SwapRecord(record models.LastLoginRecord) (*models.LastLoginRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.data[record.UserID]
	m.data[record.UserID] = record
	if !exists {
		return nil, nil
	}
	return &prev, nil
}

// Len reports the number of users with a baseline.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
