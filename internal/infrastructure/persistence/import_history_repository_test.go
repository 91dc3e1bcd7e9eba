package persistence

import (
	"context"
	"testing"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistory(t *testing.T, orgID uuid.UUID, entity string) *bulk.ImportHistory {
	t.Helper()
	job := bulk.NewImportJob(orgID, uuid.New(), bulk.ImportRequest{Entity: entity, Format: bulk.FormatCSV})
	h, err := bulk.NewImportHistory(job)
	require.NoError(t, err)
	return h
}

func TestGormImportHistoryRepository_SaveAndFind(t *testing.T) {
	repo := NewGormImportHistoryRepository(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()

	h := newHistory(t, orgID, "people")
	require.NoError(t, h.StartProcessing(3))
	require.NoError(t, repo.Save(ctx, h))

	require.NoError(t, h.Finish(&bulk.ImportResult{
		Successful: 2,
		Failed:     1,
		Created:    2,
		Errors:     []bulk.RowError{{Row: 2, Field: "email", Code: bulk.CodeRequired, Message: "Email is required"}},
	}))
	require.NoError(t, repo.Save(ctx, h))

	got, err := repo.FindByID(ctx, orgID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, got.Status)
	assert.Equal(t, 3, got.TotalRows)
	assert.Equal(t, 2, got.CreatedRows)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, h.ErrorDetails, got.ErrorDetails)
	assert.NotNil(t, got.CompletedAt)

	_, err = repo.FindByID(ctx, uuid.New(), h.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormImportHistoryRepository_FindAll(t *testing.T) {
	repo := NewGormImportHistoryRepository(newTestDB(t))
	ctx := context.Background()
	orgID := uuid.New()

	for _, entity := range []string{"people", "people", "projects", "finance", "people"} {
		h := newHistory(t, orgID, entity)
		require.NoError(t, h.StartProcessing(1))
		if entity == "finance" {
			require.NoError(t, h.Fail([]bulk.RowError{{Message: "boom"}}))
		}
		require.NoError(t, repo.Save(ctx, h))
	}
	require.NoError(t, repo.Save(ctx, newHistory(t, uuid.New(), "people")))

	failed := bulk.ImportStatusFailed
	tests := []struct {
		name      string
		filter    bulk.ImportHistoryFilter
		wantTotal int64
		wantItems int
	}{
		{"all", bulk.ImportHistoryFilter{Filter: shared.DefaultFilter()}, 5, 5},
		{"by entity", bulk.ImportHistoryFilter{Filter: shared.DefaultFilter(), Entity: "people"}, 3, 3},
		{"by status", bulk.ImportHistoryFilter{Filter: shared.DefaultFilter(), Status: &failed}, 1, 1},
		{"second page", bulk.ImportHistoryFilter{Filter: shared.Filter{Page: 2, PageSize: 2}}, 5, 2},
		{"past the end", bulk.ImportHistoryFilter{Filter: shared.Filter{Page: 4, PageSize: 2}}, 5, 0},
		{"bad sort field falls back", bulk.ImportHistoryFilter{Filter: shared.Filter{OrderBy: "1; DROP TABLE x", OrderDir: "asc"}}, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.FindAll(ctx, orgID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, result.TotalCount)
			assert.Len(t, result.Items, tt.wantItems)
			for _, item := range result.Items {
				assert.Equal(t, orgID, item.OrgID)
			}
		})
	}
}
