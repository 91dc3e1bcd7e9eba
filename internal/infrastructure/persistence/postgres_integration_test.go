//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/infrastructure/migration"
	"github.com/erp/bulkops/migrations"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newPostgresDB starts a throwaway postgres, applies the embedded migrations
// and returns a GORM handle on it.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bulkops_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migrations.FS, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db
}

func TestPostgres_RecordStore(t *testing.T) {
	db := newPostgresDB(t)
	store := NewGormRecordStore(db)
	ctx := context.Background()
	orgID := uuid.New()
	recs := seedProjects(t, store, orgID)

	found, err := store.ExistingKeys(ctx, orgID, "projects", []string{"alpha", "zulu"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"alpha": recs[0].ID}, found)

	err = store.Create(ctx, newProjectRecord(orgID, "alpha", "active", "client", "2024-06-01"))
	assert.ErrorIs(t, err, bulk.ErrConstraintViolation)

	from := day("2024-02-01")
	got, err := store.Query(ctx, orgID, bulk.RecordQuery{
		Entity: "projects",
		Filter: bulk.ExportFilter{DateFrom: &from, Search: "Client"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, keysOf(got))

	require.NoError(t, store.Link(ctx, orgID, "projects", "members", recs[1].ID, bulk.RelationSummary{ID: uuid.New(), Label: "Grace Hopper"}))
	rel, err := store.LoadRelations(ctx, orgID, "projects", "members", []uuid.UUID{recs[1].ID})
	require.NoError(t, err)
	require.Len(t, rel[recs[1].ID], 1)
	assert.Equal(t, "Grace Hopper", rel[recs[1].ID][0].Label)
}

func TestPostgres_Memberships(t *testing.T) {
	repo := NewGormMembershipRepository(newPostgresDB(t))
	ctx := context.Background()
	orgID, userID := uuid.New(), uuid.New()

	m, err := identity.NewMembership(orgID, userID, identity.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, m))

	again, err := identity.NewMembership(orgID, userID, identity.RoleManager)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, again))

	got, err := repo.FindByOrgAndUser(ctx, orgID, userID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleManager, got.Role)
}
