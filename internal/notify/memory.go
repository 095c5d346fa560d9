package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps notifications in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*Notification
}

// NewMemoryRepository creates an empty in-memory notification store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Notification)}
}

func (m *MemoryRepository) Insert(ctx context.Context, n Notification) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := n
	m.items[n.ID] = &cp
	return n, nil
}

func (m *MemoryRepository) collect(limit int, match func(*Notification) bool) []Notification {
	var res []Notification
	for _, n := range m.items {
		if match(n) {
			res = append(res, *n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

func (m *MemoryRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(limit, func(n *Notification) bool {
		return n.UserID != nil && *n.UserID == userID
	}), nil
}

func (m *MemoryRepository) ListForAdmins(ctx context.Context, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(limit, func(n *Notification) bool { return n.UserID == nil }), nil
}

func (m *MemoryRepository) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.items[id]; ok {
		n.Read = true
	}
	return nil
}
