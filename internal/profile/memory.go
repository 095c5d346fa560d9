package profile

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps profiles in process memory for tests and dev runs.
type MemoryRepository struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	hashes   map[string]string
	tokens   map[string]*RefreshToken
}

// NewMemoryRepository creates an empty in-memory profile store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[string]*Profile),
		hashes:   make(map[string]string),
		tokens:   make(map[string]*RefreshToken),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, p Profile, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	cp := p
	m.profiles[p.ID] = &cp
	m.hashes[p.ID] = passwordHash
	return nil
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*Profile, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			cp := *p
			return &cp, m.hashes[p.ID], nil
		}
	}
	return nil, "", nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryRepository) List(ctx context.Context, role Role) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Profile
	for _, p := range m.profiles {
		if role != "" && p.Role != role {
			continue
		}
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *MemoryRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.profiles {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *MemoryRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	cp := *rt
	return &cp, nil
}

func (m *MemoryRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.tokens[token]; ok {
		rt.Revoked = true
	}
	return nil
}
