package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Backend. Scan returns items in insertion order.
type Memory struct {
	mu    sync.Mutex
	order []string
	items map[string]Item
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]Item)}
}

func (m *Memory) Put(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.AlertID]; !ok {
		m.order = append(m.order, item.AlertID)
	}
	m.items[item.AlertID] = item
	return nil
}

func (m *Memory) Get(_ context.Context, alertID string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[alertID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (m *Memory) Scan(_ context.Context, limit int) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	items := make([]Item, 0, n)
	for _, id := range m.order[:n] {
		items = append(items, m.items[id])
	}
	return items, nil
}

func (m *Memory) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

// DeleteExpired removes items whose expiry is before the given instant.
func (m *Memory) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	var removed int64
	for _, id := range m.order {
		if m.items[id].Expiry.Before(before) {
			delete(m.items, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

var (
	_ Backend        = (*Memory)(nil)
	_ ExpiredDeleter = (*Memory)(nil)
)
