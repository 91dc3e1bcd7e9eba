package importapp

import (
	"fmt"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/google/uuid"
)

// DeduplicationResolver assigns a disposition to every valid record of one job.
// It remembers the keys it has seen so that repeats across batches of the
// same job are caught. Not safe for concurrent use.
type DeduplicationResolver struct {
	schema *bulk.EntitySchema
	opts   bulk.ImportOptions
	seen   map[string]int
}

// NewDeduplicationResolver creates a resolver for one import job
func NewDeduplicationResolver(schema *bulk.EntitySchema, opts bulk.ImportOptions) *DeduplicationResolver {
	return &DeduplicationResolver{
		schema: schema,
		opts:   opts,
		seen:   make(map[string]int),
	}
}

// Classify decides create, update, skip or reject for each record of batch.
// existing maps normalized natural keys to stored record ids.
func (r *DeduplicationResolver) Classify(batch []bulk.NormalizedRecord, existing map[string]uuid.UUID) []bulk.Classified {
	out := make([]bulk.Classified, 0, len(batch))
	for _, rec := range batch {
		out = append(out, r.classify(rec, existing))
	}
	return out
}

func (r *DeduplicationResolver) classify(rec bulk.NormalizedRecord, existing map[string]uuid.UUID) bulk.Classified {
	c := bulk.Classified{Record: rec}

	if firstRow, dup := r.seen[rec.Key]; dup {
		if r.opts.SkipDuplicates {
			c.Disposition = bulk.DispositionSkipDuplicate
			return c
		}
		c.Disposition = bulk.DispositionRejectDuplicate
		c.Reason = &bulk.RowError{
			Row:     rec.Row,
			Field:   r.schema.NaturalKey,
			Message: fmt.Sprintf("%s %q also appears in row %d", r.keyLabel(), r.keyText(rec), firstRow),
			Code:    bulk.CodeDuplicateInFile,
		}
		return c
	}
	r.seen[rec.Key] = rec.Row

	id, collides := existing[rec.Key]
	switch {
	case !collides:
		c.Disposition = bulk.DispositionCreate
	case r.opts.UpdateExisting:
		c.Disposition = bulk.DispositionUpdate
		c.ExistingID = id
	case r.opts.SkipDuplicates:
		c.Disposition = bulk.DispositionSkipDuplicate
		c.ExistingID = id
	default:
		c.Disposition = bulk.DispositionRejectDuplicate
		c.ExistingID = id
		c.Reason = &bulk.RowError{
			Row:     rec.Row,
			Field:   r.schema.NaturalKey,
			Message: fmt.Sprintf("%s %q already exists", r.keyLabel(), r.keyText(rec)),
			Code:    bulk.CodeDuplicateInStore,
		}
	}
	return c
}

func (r *DeduplicationResolver) keyLabel() string {
	if rule, ok := r.schema.FieldRule(r.schema.NaturalKey); ok {
		return rule.Label
	}
	return r.schema.NaturalKey
}

func (r *DeduplicationResolver) keyText(rec bulk.NormalizedRecord) string {
	if v, ok := rec.Fields[r.schema.NaturalKey]; ok {
		return v.Text()
	}
	return rec.Key
}

// batchKeys returns the distinct natural keys of batch in first-seen order.
func batchKeys(batch []bulk.NormalizedRecord) []string {
	seen := make(map[string]struct{}, len(batch))
	keys := make([]string, 0, len(batch))
	for _, rec := range batch {
		if _, ok := seen[rec.Key]; ok {
			continue
		}
		seen[rec.Key] = struct{}{}
		keys = append(keys, rec.Key)
	}
	return keys
}
