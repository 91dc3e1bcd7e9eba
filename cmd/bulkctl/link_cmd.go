package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type linkOptions struct {
	org      string
	caller   string
	entity   string
	key      string
	relation string
	targetID string
	label    string
	status   string
}

// linkResult is printed after a relation was attached.
type linkResult struct {
	Entity   string               `json:"entity"`
	Key      string               `json:"key"`
	RecordID uuid.UUID            `json:"recordId"`
	Relation string               `json:"relation"`
	Target   bulk.RelationSummary `json:"target"`
}

func newLinkCmd(root *rootOptions) *cobra.Command {
	var opts linkOptions

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Attach a related summary to a record, for exports with --include-relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.org, "org", "", "Organization UUID (required)")
	f.StringVar(&opts.caller, "caller", "", "Caller user UUID (required)")
	f.StringVar(&opts.entity, "entity", "", "Entity type of the owning record (required)")
	f.StringVar(&opts.key, "key", "", "Natural key of the owning record (required)")
	f.StringVar(&opts.relation, "relation", "", "Relation name declared by the entity (required)")
	f.StringVar(&opts.label, "label", "", "Label of the related item (required)")
	f.StringVar(&opts.targetID, "target-id", "", "UUID of the related item (default: generated)")
	f.StringVar(&opts.status, "status", "", "Status of the related item")
	for _, name := range []string{"org", "caller", "entity", "key", "relation", "label"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runLink(ctx context.Context, out io.Writer, root *rootOptions, opts linkOptions) error {
	orgID, err := uuid.Parse(strings.TrimSpace(opts.org))
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
	}
	callerID, err := uuid.Parse(strings.TrimSpace(opts.caller))
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("invalid --caller: %w", err))
	}
	target := bulk.RelationSummary{
		ID:     uuid.New(),
		Label:  strings.TrimSpace(opts.label),
		Status: strings.TrimSpace(opts.status),
	}
	if target.Label == "" {
		return withCode(exitUsage, errors.New("--label must not be blank"))
	}
	if opts.targetID != "" {
		if target.ID, err = uuid.Parse(strings.TrimSpace(opts.targetID)); err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --target-id: %w", err))
		}
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

	schema, err := a.registry.Get(opts.entity)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if !schema.HasRelation(opts.relation) {
		return withCode(exitUsage, fmt.Errorf("entity %s has no relation %q (known: %s)",
			schema.Name, opts.relation, strings.Join(schema.Relations, ", ")))
	}

	actions := append([]identity.Action{identity.ActionEdit}, schema.ImportActions...)
	if _, err := a.evaluator.Require(ctx, callerID, orgID, actions...); err != nil {
		return withCode(exitDenied, err)
	}

	key := bulk.NormalizeKey(opts.key)
	ids, err := a.store.ExistingKeys(ctx, orgID, schema.Name, []string{key})
	if err != nil {
		return withCode(exitStore, err)
	}
	recordID, ok := ids[key]
	if !ok {
		return withCode(exitUsage, fmt.Errorf("%s %q not found", schema.Name, key))
	}

	if err := a.store.Link(ctx, orgID, schema.Name, opts.relation, recordID, target); err != nil {
		return withCode(exitStore, fmt.Errorf("link %s %q: %w", schema.Name, key, err))
	}
	a.log.Info("Relation linked",
		zap.String("entity", schema.Name),
		zap.String("key", key),
		zap.String("relation", opts.relation),
		zap.String("target_id", target.ID.String()))

	return writeJSON(out, linkResult{
		Entity:   schema.Name,
		Key:      key,
		RecordID: recordID,
		Relation: opts.relation,
		Target:   target,
	})
}
