package importapp

import (
	"context"
	"sync"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

type storeKey struct {
	org    uuid.UUID
	entity string
	key    string
}

// memStore is an in-memory RecordStore with failure injection.
type memStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*bulk.Record
	keys     map[storeKey]uuid.UUID
	writes   int
	lookups  int
	failCall map[int]error
	onWrite  func(rec *bulk.Record) error
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[uuid.UUID]*bulk.Record),
		keys:     make(map[storeKey]uuid.UUID),
		failCall: make(map[int]error),
	}
}

func (s *memStore) ExistingKeys(_ context.Context, orgID uuid.UUID, entity string, keys []string) (map[string]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if err, ok := s.failCall[s.lookups]; ok {
		return nil, err
	}
	out := make(map[string]uuid.UUID)
	for _, k := range keys {
		if id, ok := s.keys[storeKey{orgID, entity, k}]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, rec *bulk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onWrite != nil {
		if err := s.onWrite(rec); err != nil {
			return err
		}
	}
	sk := storeKey{rec.OrgID, rec.Entity, rec.Key}
	if _, dup := s.keys[sk]; dup {
		return bulk.ErrConstraintViolation
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	stored.Fields = rec.Fields.Clone()
	s.records[rec.ID] = &stored
	s.keys[sk] = rec.ID
	s.writes++
	return nil
}

func (s *memStore) Update(_ context.Context, rec *bulk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onWrite != nil {
		if err := s.onWrite(rec); err != nil {
			return err
		}
	}
	existing, ok := s.records[rec.ID]
	if !ok || existing.OrgID != rec.OrgID {
		return shared.ErrNotFound
	}
	existing.Fields = rec.Fields.Clone()
	existing.Status = rec.Status
	existing.UpdatedAt = time.Now()
	s.writes++
	return nil
}

func (s *memStore) Query(_ context.Context, orgID uuid.UUID, q bulk.RecordQuery) ([]bulk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bulk.Record
	for _, r := range s.records {
		if r.OrgID == orgID && r.Entity == q.Entity {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) LoadRelations(context.Context, uuid.UUID, string, string, []uuid.UUID) (map[uuid.UUID][]bulk.RelationSummary, error) {
	return map[uuid.UUID][]bulk.RelationSummary{}, nil
}

func (s *memStore) OwnersOf(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out[id] = r.OrgID
		}
	}
	return out, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// memberships is a fixed membership table.
type memberships map[[2]uuid.UUID]*identity.Membership

func (m memberships) FindByOrgAndUser(_ context.Context, orgID, userID uuid.UUID) (*identity.Membership, error) {
	if mem, ok := m[[2]uuid.UUID{orgID, userID}]; ok {
		return mem, nil
	}
	return nil, shared.ErrNotFound
}

func (m memberships) Save(_ context.Context, mem *identity.Membership) error {
	m[[2]uuid.UUID{mem.OrgID, mem.UserID}] = mem
	return nil
}

func (m memberships) ListByOrg(_ context.Context, orgID uuid.UUID) ([]identity.Membership, error) {
	var out []identity.Membership
	for k, mem := range m {
		if k[0] == orgID {
			out = append(out, *mem)
		}
	}
	return out, nil
}

// recordingActivity keeps every logged entry.
type recordingActivity struct {
	mu      sync.Mutex
	entries []bulk.ActivityEntry
}

func (r *recordingActivity) Log(_ context.Context, e bulk.ActivityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingActivity) count(action bulk.ActivityAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// memHistory is an in-memory ImportHistoryRepository.
type memHistory struct {
	mu    sync.Mutex
	items map[uuid.UUID]*bulk.ImportHistory
	saves int
}

func newMemHistory() *memHistory {
	return &memHistory{items: make(map[uuid.UUID]*bulk.ImportHistory)}
}

func (h *memHistory) FindByID(_ context.Context, orgID, id uuid.UUID) (*bulk.ImportHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if item, ok := h.items[id]; ok && item.OrgID == orgID {
		return item, nil
	}
	return nil, shared.ErrNotFound
}

func (h *memHistory) FindAll(_ context.Context, orgID uuid.UUID, filter bulk.ImportHistoryFilter) (*bulk.ImportHistoryListResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := &bulk.ImportHistoryListResult{Page: filter.Page, PageSize: filter.PageSize}
	for _, item := range h.items {
		if item.OrgID == orgID && (filter.Entity == "" || item.Entity == filter.Entity) {
			res.Items = append(res.Items, item)
		}
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (h *memHistory) Save(_ context.Context, item *bulk.ImportHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[item.ID] = item
	h.saves++
	return nil
}

// recordingPublisher counts progress publications.
type recordingPublisher struct {
	snapshots []bulk.ImportProgress
}

func (p *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, progress bulk.ImportProgress) error {
	p.snapshots = append(p.snapshots, progress)
	return nil
}
