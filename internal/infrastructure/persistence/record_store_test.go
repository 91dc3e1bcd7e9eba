package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(bulk.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newProjectRecord(orgID uuid.UUID, key, status, category, date string) *bulk.Record {
	d := day(date)
	return &bulk.Record{
		OrgID:      orgID,
		Entity:     "projects",
		Key:        key,
		Status:     status,
		Category:   category,
		RecordDate: &d,
		SearchText: key + " " + category,
		Fields: bulk.Fields{
			"code":      bulk.StringValue(key),
			"status":    bulk.StringValue(status),
			"category":  bulk.StringValue(category),
			"startDate": bulk.DateValue(d),
			"budget":    bulk.NumberValue(decimal.RequireFromString("1250.50")),
			"billable":  bulk.BoolValue(true),
			"notes":     bulk.NullValue(),
		},
	}
}

func seedProjects(t *testing.T, store *GormRecordStore, orgID uuid.UUID) []*bulk.Record {
	t.Helper()
	ctx := context.Background()
	recs := []*bulk.Record{
		newProjectRecord(orgID, "alpha", "active", "internal", "2024-01-10"),
		newProjectRecord(orgID, "bravo", "done", "client", "2024-02-15"),
		newProjectRecord(orgID, "charlie", "active", "client", "2024-03-20"),
		newProjectRecord(orgID, "delta", "paused", "internal", "2024-04-25"),
	}
	for i, r := range recs {
		r.CreatedAt = time.Date(2024, 5, 1, 0, 0, i, 0, time.UTC)
		require.NoError(t, store.Create(ctx, r))
	}
	return recs
}

func keysOf(recs []bulk.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func TestGormRecordStore_CreateAndExistingKeys(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()
	recs := seedProjects(t, store, orgID)

	for _, r := range recs {
		assert.NotEqual(t, uuid.Nil, r.ID)
	}

	found, err := store.ExistingKeys(ctx, orgID, "projects", []string{"alpha", "charlie", "zulu"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"alpha": recs[0].ID, "charlie": recs[2].ID}, found)

	t.Run("scoped to organization and entity", func(t *testing.T) {
		found, err := store.ExistingKeys(ctx, uuid.New(), "projects", []string{"alpha"})
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = store.ExistingKeys(ctx, orgID, "people", []string{"alpha"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("large key lists are chunked", func(t *testing.T) {
		keys := make([]string, 0, 1200)
		for i := range 1200 {
			keys = append(keys, fmt.Sprintf("missing-%d", i))
		}
		keys = append(keys, "delta")
		found, err := store.ExistingKeys(ctx, orgID, "projects", keys)
		require.NoError(t, err)
		assert.Equal(t, map[string]uuid.UUID{"delta": recs[3].ID}, found)
	})
}

func TestGormRecordStore_DuplicateKey(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	orgID := uuid.New()
	seedProjects(t, store, orgID)

	err := store.Create(context.Background(), newProjectRecord(orgID, "alpha", "active", "client", "2024-06-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, bulk.ErrConstraintViolation)

	// Same key in another organization is fine.
	require.NoError(t, store.Create(context.Background(), newProjectRecord(uuid.New(), "alpha", "active", "client", "2024-06-01")))
}

func TestGormRecordStore_FieldsRoundTrip(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	orgID := uuid.New()
	recs := seedProjects(t, store, orgID)

	got, err := store.Query(context.Background(), orgID, bulk.RecordQuery{Entity: "projects", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	want := recs[0].Fields
	require.ElementsMatch(t, want.Names(), got[0].Fields.Names())
	for name, v := range want {
		assert.Truef(t, v.Equal(got[0].Fields[name]), "field %s: want %s got %s", name, v, got[0].Fields[name])
	}
	assert.Equal(t, recs[0].ID, got[0].ID)
	assert.Equal(t, "alpha", got[0].Key)
	require.NotNil(t, got[0].RecordDate)
	assert.True(t, got[0].RecordDate.Equal(day("2024-01-10")))
}

func TestGormRecordStore_Update(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()
	recs := seedProjects(t, store, orgID)

	rec := *recs[1]
	rec.Status = "active"
	rec.Fields = rec.Fields.Clone()
	rec.Fields["status"] = bulk.StringValue("active")
	require.NoError(t, store.Update(ctx, &rec))

	got, err := store.Query(ctx, orgID, bulk.RecordQuery{
		Entity: "projects",
		Filter: bulk.ExportFilter{Status: []string{"active"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, keysOf(got))
	assert.Equal(t, "active", got[1].Fields["status"].Str())

	t.Run("unknown id", func(t *testing.T) {
		missing := rec
		missing.ID = uuid.New()
		assert.ErrorIs(t, store.Update(ctx, &missing), shared.ErrNotFound)
	})

	t.Run("record of another organization", func(t *testing.T) {
		foreign := rec
		foreign.OrgID = uuid.New()
		assert.ErrorIs(t, store.Update(ctx, &foreign), shared.ErrNotFound)
	})
}

func TestGormRecordStore_QueryFilters(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	orgID := uuid.New()
	seedProjects(t, store, orgID)
	seedProjects(t, store, uuid.New())

	from, to := day("2024-02-01"), day("2024-03-31")
	tests := []struct {
		name   string
		filter bulk.ExportFilter
		limit  int
		want   []string
	}{
		{"no filter keeps creation order", bulk.ExportFilter{}, 0, []string{"alpha", "bravo", "charlie", "delta"}},
		{"status", bulk.ExportFilter{Status: []string{"active", "paused"}}, 0, []string{"alpha", "charlie", "delta"}},
		{"category", bulk.ExportFilter{Category: []string{"client"}}, 0, []string{"bravo", "charlie"}},
		{"date range inclusive", bulk.ExportFilter{DateFrom: &from, DateTo: &to}, 0, []string{"bravo", "charlie"}},
		{"search is case-insensitive", bulk.ExportFilter{Search: "CHAR"}, 0, []string{"charlie"}},
		{"combined", bulk.ExportFilter{Status: []string{"active"}, Category: []string{"internal"}}, 0, []string{"alpha"}},
		{"limit", bulk.ExportFilter{}, 2, []string{"alpha", "bravo"}},
		{"no match", bulk.ExportFilter{Status: []string{"archived"}}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(context.Background(), orgID, bulk.RecordQuery{
				Entity: "projects",
				Filter: tt.filter,
				Limit:  tt.limit,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(got))
		})
	}
}

func TestGormRecordStore_SearchMatchesWildcardsLiterally(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()
	for i, key := range []string{"rate-50%", "rate-500", "snake_case", "snakeXcase", `dir\bin`, "dirXbin"} {
		rec := newProjectRecord(orgID, key, "active", "internal", "2024-01-10")
		rec.CreatedAt = time.Date(2024, 5, 1, 0, 0, i, 0, time.UTC)
		require.NoError(t, store.Create(ctx, rec))
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"50%", []string{"rate-50%"}},
		{"e_c", []string{"snake_case"}},
		{`r\b`, []string{`dir\bin`}},
		{"rate", []string{"rate-50%", "rate-500"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got, err := store.Query(ctx, orgID, bulk.RecordQuery{
				Entity: "projects",
				Filter: bulk.ExportFilter{Search: tt.search},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(got))
		})
	}
}

func TestGormRecordStore_Relations(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()
	recs := seedProjects(t, store, orgID)

	ada := bulk.RelationSummary{ID: uuid.New(), Label: "Ada Lovelace", Status: "active"}
	alan := bulk.RelationSummary{ID: uuid.New(), Label: "Alan Turing"}
	require.NoError(t, store.Link(ctx, orgID, "projects", "members", recs[0].ID, ada))
	require.NoError(t, store.Link(ctx, orgID, "projects", "members", recs[0].ID, alan))
	require.NoError(t, store.Link(ctx, orgID, "projects", "members", recs[2].ID, alan))
	require.NoError(t, store.Link(ctx, orgID, "projects", "milestones", recs[0].ID, bulk.RelationSummary{ID: uuid.New(), Label: "Kickoff"}))

	got, err := store.LoadRelations(ctx, orgID, "projects", "members", []uuid.UUID{recs[0].ID, recs[1].ID, recs[2].ID})
	require.NoError(t, err)
	assert.Equal(t, []bulk.RelationSummary{ada, alan}, got[recs[0].ID])
	assert.Equal(t, []bulk.RelationSummary{alan}, got[recs[2].ID])
	assert.NotContains(t, got, recs[1].ID)

	other, err := store.LoadRelations(ctx, uuid.New(), "projects", "members", []uuid.UUID{recs[0].ID})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGormRecordStore_OwnersOf(t *testing.T) {
	store := NewGormRecordStore(newTestDB(t))
	orgA, orgB := uuid.New(), uuid.New()
	a := seedProjects(t, store, orgA)
	b := seedProjects(t, store, orgB)

	owners, err := store.OwnersOf(context.Background(), []uuid.UUID{a[0].ID, b[1].ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]uuid.UUID{a[0].ID: orgA, b[1].ID: orgB}, owners)
}
