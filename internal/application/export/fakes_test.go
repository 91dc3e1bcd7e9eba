package exportapp

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is an in-memory RecordStore that honours export filters.
type memStore struct {
	mu        sync.Mutex
	order     []uuid.UUID
	records   map[uuid.UUID]*bulk.Record
	relations map[string]map[uuid.UUID][]bulk.RelationSummary
	queries   int
	queryErr  error
}

func newMemStore() *memStore {
	return &memStore{
		records:   make(map[uuid.UUID]*bulk.Record),
		relations: make(map[string]map[uuid.UUID][]bulk.RelationSummary),
	}
}

func (s *memStore) ExistingKeys(_ context.Context, orgID uuid.UUID, entity string, keys []string) (map[string]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uuid.UUID)
	for _, r := range s.records {
		if r.OrgID == orgID && r.Entity == entity && slices.Contains(keys, r.Key) {
			out[r.Key] = r.ID
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, rec *bulk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.OrgID == rec.OrgID && r.Entity == rec.Entity && r.Key == rec.Key {
			return bulk.ErrConstraintViolation
		}
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now().Add(time.Duration(len(s.order)) * time.Millisecond)
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	stored.Fields = rec.Fields.Clone()
	s.records[rec.ID] = &stored
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *memStore) Update(_ context.Context, rec *bulk.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[rec.ID]
	if !ok || existing.OrgID != rec.OrgID {
		return shared.ErrNotFound
	}
	existing.Fields = rec.Fields.Clone()
	existing.Status = rec.Status
	existing.Category = rec.Category
	existing.RecordDate = rec.RecordDate
	existing.SearchText = rec.SearchText
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Query(_ context.Context, orgID uuid.UUID, q bulk.RecordQuery) ([]bulk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []bulk.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.OrgID != orgID || r.Entity != q.Entity || !matches(r, q.Filter) {
			continue
		}
		out = append(out, *r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matches(r *bulk.Record, f bulk.ExportFilter) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, r.Status) {
		return false
	}
	if len(f.Category) > 0 && !slices.Contains(f.Category, r.Category) {
		return false
	}
	if f.DateFrom != nil && (r.RecordDate == nil || r.RecordDate.Before(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && (r.RecordDate == nil || r.RecordDate.After(*f.DateTo)) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.SearchText), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (s *memStore) LoadRelations(_ context.Context, _ uuid.UUID, _, relation string, ids []uuid.UUID) (map[uuid.UUID][]bulk.RelationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID][]bulk.RelationSummary)
	for _, id := range ids {
		if members, ok := s.relations[relation][id]; ok {
			out[id] = members
		}
	}
	return out, nil
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

func (s *memStore) all() []bulk.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bulk.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

func (s *memStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
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

func (r *recordingActivity) actions() []bulk.ActivityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bulk.ActivityAction, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

// fakeStorage records uploads.
type fakeStorage struct {
	keys []string
	err  error
}

func (f *fakeStorage) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://objects.example.com/" + key + "?sig=1", nil
}

// fakeRenderer returns a fixed payload or an error.
type fakeRenderer struct {
	html []byte
	err  error
}

var errChromeGone = errors.New("chrome not reachable")

func (f *fakeRenderer) RenderPDF(_ context.Context, html []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.html = html
	return []byte("%PDF-1.4 fake"), nil
}
