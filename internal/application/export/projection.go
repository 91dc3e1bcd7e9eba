package exportapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Columns every record carries besides its schema fields.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

type column struct {
	name  string
	value bulk.Value
}

// row is one projected record. Scalar columns keep projection order;
// relations are only set when the request expands them.
type row struct {
	columns   []column
	relations []relation
}

type relation struct {
	name    string
	members []bulk.RelationSummary
}

// MarshalJSON writes the row as an object with columns first, in order.
func (r row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(i int, name string, v any) error {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		buf.Write(data)
		return nil
	}
	for i, c := range r.columns {
		if err := write(i, c.name, c.value); err != nil {
			return nil, err
		}
	}
	for i, rel := range r.relations {
		if err := write(len(r.columns)+i, rel.name, rel.members); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// projection resolves a field allow-list against a schema.
type projection struct {
	fields   []string
	warnings []string
}

// newProjection keeps the known names of req.Fields in request order.
// An empty list or the wildcard selects id, every schema field and the timestamps.
func newProjection(schema *bulk.EntitySchema, req bulk.ExportRequest) projection {
	if req.WantsAllFields() {
		fields := append([]string{ColumnID}, schema.FieldNames()...)
		return projection{fields: append(fields, ColumnCreatedAt, ColumnUpdatedAt)}
	}

	var p projection
	seen := make(map[string]struct{}, len(req.Fields))
	for _, name := range req.Fields {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if !isKnownColumn(schema, name) {
			p.warnings = append(p.warnings, fmt.Sprintf("unknown field %q ignored", name))
			continue
		}
		p.fields = append(p.fields, name)
	}
	return p
}

func isKnownColumn(schema *bulk.EntitySchema, name string) bool {
	switch name {
	case ColumnID, ColumnCreatedAt, ColumnUpdatedAt:
		return true
	}
	_, ok := schema.FieldRule(name)
	return ok
}

// apply projects rec. Fields the record does not carry are omitted.
func (p projection) apply(rec bulk.Record) row {
	r := row{columns: make([]column, 0, len(p.fields))}
	for _, name := range p.fields {
		switch name {
		case ColumnID:
			r.columns = append(r.columns, column{name, bulk.StringValue(rec.ID.String())})
		case ColumnCreatedAt:
			r.columns = append(r.columns, column{name, bulk.StringValue(rec.CreatedAt.UTC().Format(timestampLayout))})
		case ColumnUpdatedAt:
			r.columns = append(r.columns, column{name, bulk.StringValue(rec.UpdatedAt.UTC().Format(timestampLayout))})
		default:
			if v, ok := rec.Fields[name]; ok {
				r.columns = append(r.columns, column{name, v})
			}
		}
	}
	return r
}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// expandRelations loads every relation of schema for records, one store call per relation,
// with at most workers calls in flight. The result is keyed by relation then record id.
func expandRelations(
	ctx context.Context,
	store bulk.RecordStore,
	orgID uuid.UUID,
	schema *bulk.EntitySchema,
	records []bulk.Record,
	workers int,
) (map[string]map[uuid.UUID][]bulk.RelationSummary, error) {
	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	var mu sync.Mutex
	out := make(map[string]map[uuid.UUID][]bulk.RelationSummary, len(schema.Relations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, name := range schema.Relations {
		g.Go(func() error {
			loaded, err := store.LoadRelations(gctx, orgID, schema.Name, name, ids)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			mu.Lock()
			out[name] = loaded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// attachRelations adds the expanded relations to r in schema order.
// Records without related rows get an empty list.
func attachRelations(r *row, schema *bulk.EntitySchema, id uuid.UUID, loaded map[string]map[uuid.UUID][]bulk.RelationSummary) {
	for _, name := range schema.Relations {
		members := loaded[name][id]
		if members == nil {
			members = []bulk.RelationSummary{}
		}
		r.relations = append(r.relations, relation{name: name, members: members})
	}
}
