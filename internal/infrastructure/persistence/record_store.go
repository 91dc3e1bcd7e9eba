package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/erp/bulkops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// keyLookupChunk bounds the size of IN lists sent to the database.
const keyLookupChunk = 500

// GormRecordStore implements bulk.RecordStore using GORM
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore creates a new GormRecordStore
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

// ExistingKeys returns the ids of records whose natural key is among keys.
func (s *GormRecordStore) ExistingKeys(ctx context.Context, orgID uuid.UUID, entity string, keys []string) (map[string]uuid.UUID, error) {
	found := make(map[string]uuid.UUID, len(keys))
	for start := 0; start < len(keys); start += keyLookupChunk {
		chunk := keys[start:min(start+keyLookupChunk, len(keys))]
		var rows []struct {
			ID         uuid.UUID
			NaturalKey string
		}
		err := s.db.WithContext(ctx).Model(&models.RecordModel{}).
			Select("id, natural_key").
			Where("org_id = ? AND entity = ? AND natural_key IN ?", orgID, entity, chunk).
			Scan(&rows).Error
		if err != nil {
			return nil, translateError(err)
		}
		for _, r := range rows {
			found[r.NaturalKey] = r.ID
		}
	}
	return found, nil
}

// Create inserts rec and assigns its ID and timestamps.
func (s *GormRecordStore) Create(ctx context.Context, rec *bulk.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	model, err := models.RecordModelFromDomain(rec)
	if err != nil {
		return err
	}
	return translateError(s.db.WithContext(ctx).Create(model).Error)
}

// Update replaces the fields and derived columns of an existing record.
func (s *GormRecordStore) Update(ctx context.Context, rec *bulk.Record) error {
	fields, err := models.EncodeFields(rec.Fields)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()

	result := s.db.WithContext(ctx).Model(&models.RecordModel{}).
		Where("id = ? AND org_id = ?", rec.ID, rec.OrgID).
		Updates(map[string]any{
			"natural_key": rec.Key,
			"status":      rec.Status,
			"category":    rec.Category,
			"record_date": rec.RecordDate,
			"search_text": rec.SearchText,
			"fields":      fields,
			"updated_at":  rec.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Query returns matching records in creation order.
func (s *GormRecordStore) Query(ctx context.Context, orgID uuid.UUID, q bulk.RecordQuery) ([]bulk.Record, error) {
	query := s.db.WithContext(ctx).Model(&models.RecordModel{}).
		Where("org_id = ? AND entity = ?", orgID, q.Entity)
	query = applyExportFilter(query, q.Filter).Order("created_at ASC, id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []models.RecordModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	out := make([]bulk.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func applyExportFilter(query *gorm.DB, f bulk.ExportFilter) *gorm.DB {
	if len(f.Status) > 0 {
		query = query.Where("status IN ?", f.Status)
	}
	if len(f.Category) > 0 {
		query = query.Where("category IN ?", f.Category)
	}
	if f.DateFrom != nil {
		query = query.Where("record_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		query = query.Where("record_date <= ?", *f.DateTo)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query = query.Where(`search_text LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
	}
	return query
}

// LoadRelations returns related summaries grouped by owning record.
func (s *GormRecordStore) LoadRelations(ctx context.Context, orgID uuid.UUID, entity, relation string, ids []uuid.UUID) (map[uuid.UUID][]bulk.RelationSummary, error) {
	out := make(map[uuid.UUID][]bulk.RelationSummary, len(ids))
	for start := 0; start < len(ids); start += keyLookupChunk {
		chunk := ids[start:min(start+keyLookupChunk, len(ids))]
		var links []models.RecordLinkModel
		err := s.db.WithContext(ctx).
			Where("org_id = ? AND entity = ? AND relation = ? AND record_id IN ?", orgID, entity, relation, chunk).
			Order("created_at ASC, id ASC").
			Find(&links).Error
		if err != nil {
			return nil, translateError(err)
		}
		for i := range links {
			out[links[i].RecordID] = append(out[links[i].RecordID], links[i].ToSummary())
		}
	}
	return out, nil
}

// OwnersOf returns the owning organization of each known record id.
func (s *GormRecordStore) OwnersOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(ids))
	for start := 0; start < len(ids); start += keyLookupChunk {
		chunk := ids[start:min(start+keyLookupChunk, len(ids))]
		var rows []struct {
			ID    uuid.UUID
			OrgID uuid.UUID
		}
		err := s.db.WithContext(ctx).Model(&models.RecordModel{}).
			Select("id, org_id").
			Where("id IN ?", chunk).
			Scan(&rows).Error
		if err != nil {
			return nil, translateError(err)
		}
		for _, r := range rows {
			out[r.ID] = r.OrgID
		}
	}
	return out, nil
}

// Link attaches a related summary to a record.
func (s *GormRecordStore) Link(ctx context.Context, orgID uuid.UUID, entity, relation string, recordID uuid.UUID, target bulk.RelationSummary) error {
	link := &models.RecordLinkModel{
		ID:        uuid.New(),
		OrgID:     orgID,
		Entity:    entity,
		Relation:  relation,
		RecordID:  recordID,
		TargetID:  target.ID,
		Label:     target.Label,
		Status:    target.Status,
		CreatedAt: time.Now(),
	}
	return translateError(s.db.WithContext(ctx).Create(link).Error)
}

// Compile-time interface compliance check
var _ bulk.RecordStore = (*GormRecordStore)(nil)
