package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestNewDatabase(t *testing.T) {
	t.Run("sqlite in memory", func(t *testing.T) {
		db, err := NewDatabase(&config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			Path:         ":memory:",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			LogLevel:     "silent",
		}, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, db.AutoMigrate())
		require.NoError(t, db.Ping())

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
	})
}

func TestTranslateError(t *testing.T) {
	other := errors.New("syntax error")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"not found", gorm.ErrRecordNotFound, shared.ErrNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, bulk.ErrConstraintViolation},
		{"bad conn", driver.ErrBadConn, bulk.ErrStoreUnavailable},
		{"conn done", sql.ErrConnDone, bulk.ErrStoreUnavailable},
		{"network", fmt.Errorf("query: %w", refused()), bulk.ErrStoreUnavailable},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestGormRecordStore_Unavailable(t *testing.T) {
	db, mock := newMockDatabase(t)
	store := NewGormRecordStore(db.DB)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, natural_key FROM "records"`).WillReturnError(refused())
	_, err := store.ExistingKeys(ctx, uuid.New(), "people", []string{"a@example.com"})
	assert.ErrorIs(t, err, bulk.ErrStoreUnavailable)

	mock.ExpectQuery(`SELECT \* FROM "records"`).WillReturnError(refused())
	_, err = store.Query(ctx, uuid.New(), bulk.RecordQuery{Entity: "people"})
	assert.ErrorIs(t, err, bulk.ErrStoreUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRecordStore_QuerySQL(t *testing.T) {
	db, mock := newMockDatabase(t)
	store := NewGormRecordStore(db.DB)
	orgID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "records" WHERE \(org_id = \$1 AND entity = \$2\) AND status IN \(\$3,\$4\) AND search_text LIKE \$5 ORDER BY created_at ASC, id ASC LIMIT \$6`).
		WithArgs(orgID.String(), "projects", "active", "paused", "%apollo%", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "entity", "natural_key", "fields"}))

	got, err := store.Query(context.Background(), orgID, bulk.RecordQuery{
		Entity: "projects",
		Filter: bulk.ExportFilter{Status: []string{"active", "paused"}, Search: " Apollo "},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
