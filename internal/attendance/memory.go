package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the ledger in process memory. It backs tests and
// STORE_BACKEND=memory dev runs; one mutex is the whole concurrency story,
// so the conditional-update guards hold the same way they do in Postgres.
type MemoryRepository struct {
	mu       sync.Mutex
	records  map[string]*Record
	requests map[string]*Request
}

// NewMemoryRepository creates an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]*Record),
		requests: make(map[string]*Request),
	}
}

func copyRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	out := *rec
	if rec.SignIn != nil {
		t := *rec.SignIn
		out.SignIn = &t
	}
	if rec.SignOut != nil {
		t := *rec.SignOut
		out.SignOut = &t
	}
	return &out
}

func copyRequest(req *Request) *Request {
	if req == nil {
		return nil
	}
	out := *req
	if req.SignOut != nil {
		t := *req.SignOut
		out.SignOut = &t
	}
	if req.DecidedAt != nil {
		t := *req.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

func (m *MemoryRepository) findRecord(userID, date string) *Record {
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Date == date {
			return rec
		}
	}
	return nil
}

func (m *MemoryRepository) GetRecord(ctx context.Context, userID, date string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.findRecord(userID, date)), nil
}

func (m *MemoryRepository) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.records[id]), nil
}

func (m *MemoryRepository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = DeriveStatus(rec.SignIn, rec.SignOut)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = copyRecord(&rec)
	return rec, nil
}

func (m *MemoryRepository) SetRecordSignIn(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.SignIn != nil {
		return false, nil
	}
	t := at
	rec.SignIn = &t
	rec.Status = StatusPartial
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) SetRecordSignOut(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.SignIn == nil || rec.SignOut != nil {
		return false, nil
	}
	t := at
	rec.SignOut = &t
	rec.Status = StatusPresent
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) UpdateRecordTimes(ctx context.Context, id string, signIn, signOut *time.Time, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.SignIn = nil
	if signIn != nil {
		t := *signIn
		rec.SignIn = &t
	}
	rec.SignOut = nil
	if signOut != nil {
		t := *signOut
		rec.SignOut = &t
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) ListRecords(ctx context.Context, f ListFilter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var res []Record
	for _, rec := range m.records {
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.From != "" && rec.Date < f.From {
			continue
		}
		if f.To != "" && rec.Date > f.To {
			continue
		}
		res = append(res, *copyRecord(rec))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Date != res[j].Date {
			return res[i].Date > res[j].Date
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (m *MemoryRepository) SignInDates(ctx context.Context, userID, from, to string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dates := make(map[string]struct{})
	for _, rec := range m.records {
		if rec.UserID != userID || rec.SignIn == nil {
			continue
		}
		if rec.Date < from || rec.Date > to {
			continue
		}
		dates[rec.Date] = struct{}{}
	}
	return dates, nil
}

func (m *MemoryRepository) CountSignedIn(ctx context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.Date == date && rec.SignIn != nil {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) GetRequest(ctx context.Context, id string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRequest(m.requests[id]), nil
}

func (m *MemoryRepository) OpenRequest(ctx context.Context, userID, date string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.UserID == userID && req.Date == date && req.Status == RequestPending {
			return copyRequest(req), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = RequestPending
	}
	req.CreatedAt = time.Now().UTC()
	m.requests[req.ID] = copyRequest(&req)
	return req, nil
}

func (m *MemoryRepository) SetRequestSignOut(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != RequestPending || req.SignOut != nil {
		return false, nil
	}
	t := at
	req.SignOut = &t
	return true, nil
}

func (m *MemoryRepository) ApproveRequest(ctx context.Context, id string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != RequestPending {
		return nil, false, nil
	}
	now := time.Now().UTC()
	req.Status = RequestApproved
	req.DecidedAt = &now

	signIn := req.SignIn
	rec := m.findRecord(req.UserID, req.Date)
	if rec == nil {
		rec = &Record{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			Date:      req.Date,
			CreatedAt: now,
		}
		m.records[rec.ID] = rec
	}
	rec.SignIn = &signIn
	rec.SignOut = nil
	if req.SignOut != nil {
		t := *req.SignOut
		rec.SignOut = &t
	}
	rec.Status = DeriveStatus(rec.SignIn, rec.SignOut)
	rec.UpdatedAt = now
	return copyRecord(rec), true, nil
}

func (m *MemoryRepository) RejectRequest(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != RequestPending {
		return false, nil
	}
	now := time.Now().UTC()
	req.Status = RequestRejected
	req.DecidedAt = &now
	return true, nil
}

func (m *MemoryRepository) ListRequests(ctx context.Context, status RequestStatus, limit, offset int) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var res []Request
	for _, req := range m.requests {
		if req.Status == status {
			res = append(res, *copyRequest(req))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SignIn.After(res[j].SignIn) })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
