package bulk

import (
	"context"

	"github.com/google/uuid"
)

// RecordQuery selects records of one entity within an organization.
type RecordQuery struct {
	Entity string
	Filter ExportFilter
	// Limit caps the number of rows returned; 0 means no cap.
	Limit int
}

// RecordStore is the external persistence collaborator.
// Implementations wrap unique-key rejections in ErrConstraintViolation and
// connectivity failures in ErrStoreUnavailable.
type RecordStore interface {
	// ExistingKeys returns the record ids of the given natural keys that already exist.
	ExistingKeys(ctx context.Context, orgID uuid.UUID, entity string, keys []string) (map[string]uuid.UUID, error)
	// Create inserts rec and assigns its ID.
	Create(ctx context.Context, rec *Record) error
	// Update replaces the fields of the record identified by rec.ID.
	Update(ctx context.Context, rec *Record) error
	// Query returns records in creation order.
	Query(ctx context.Context, orgID uuid.UUID, q RecordQuery) ([]Record, error)
	// LoadRelations returns related summaries keyed by owning record id.
	LoadRelations(ctx context.Context, orgID uuid.UUID, entity, relation string, ids []uuid.UUID) (map[uuid.UUID][]RelationSummary, error)
	// OwnersOf returns the owning organization of each known record id.
	OwnersOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}
