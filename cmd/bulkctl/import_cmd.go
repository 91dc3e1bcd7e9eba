package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	csvimport "github.com/erp/bulkops/internal/infrastructure/import"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOptions struct {
	org       string
	caller    string
	entity    string
	file      string
	format    string
	batchSize int
	bulk.ImportOptions
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from a CSV, JSON or tab-separated file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.org, "org", "", "Organization UUID (required)")
	f.StringVar(&opts.caller, "caller", "", "Caller user UUID (required)")
	f.StringVar(&opts.entity, "entity", "", "Entity type, e.g. people or projects (required)")
	f.StringVar(&opts.file, "file", "", "Input file, - for stdin (required)")
	f.StringVar(&opts.format, "format", "", "csv, json or spreadsheet (default: from file extension)")
	f.BoolVar(&opts.UpdateExisting, "update-existing", false, "Update records whose key already exists")
	f.BoolVar(&opts.SkipDuplicates, "skip-duplicates", false, "Skip records whose key already exists")
	f.BoolVar(&opts.ValidateOnly, "validate-only", false, "Validate without writing")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Records per batch (default: import.default_batch_size)")
	for _, name := range []string{"org", "caller", "entity", "file"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runImport(ctx context.Context, out io.Writer, stdin io.Reader, root *rootOptions, opts importOptions) error {
	orgID, callerID, err := parseOrgAndCaller(opts.org, opts.caller)
	if err != nil {
		return err
	}
	format, err := resolveImportFormat(opts.format, opts.file)
	if err != nil {
		return withCode(exitUsage, err)
	}

	in := stdin
	if opts.file != "-" {
		file, err := os.Open(opts.file)
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("open input: %w", err))
		}
		defer file.Close()
		in = file
	}
	records, warnings, err := csvimport.DecodeRecords(format, in)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("decode %s input: %w", format, err))
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

	req := bulk.ImportRequest{
		Entity:        opts.entity,
		Format:        format,
		ImportOptions: opts.ImportOptions,
		Warnings:      warnings,
	}
	req.SetRecords(records)
	req.BatchSize = opts.batchSize
	if req.BatchSize == 0 {
		req.BatchSize = a.cfg.Import.DefaultBatchSize
	}

	result, err := a.importPipeline().Import(ctx, orgID, callerID, req, func(p bulk.ImportProgress) {
		a.log.Debug("Import progress",
			zap.Int("processed", p.Processed),
			zap.Int("total", p.Total),
			zap.Int("failed", p.Failed))
	})
	if result != nil {
		if werr := writeJSON(out, result); werr != nil {
			return werr
		}
	}
	if err != nil {
		return classifyPipelineError(err)
	}
	if !result.Success {
		if result.Cancelled {
			return withCode(exitFailed, errors.New("import cancelled"))
		}
		return withCode(exitFailed, fmt.Errorf("import finished with %d failed rows", result.Failed))
	}
	return nil
}

// resolveImportFormat parses flag, falling back to the file extension.
func resolveImportFormat(flag, file string) (bulk.Format, error) {
	if flag != "" {
		return bulk.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return bulk.FormatCSV, nil
	case ".json":
		return bulk.FormatJSON, nil
	case ".tsv", ".tab":
		return bulk.FormatSpreadsheet, nil
	}
	return "", fmt.Errorf("cannot infer format of %q, pass --format", file)
}

func parseOrgAndCaller(org, caller string) (uuid.UUID, uuid.UUID, error) {
	orgID, err := uuid.Parse(strings.TrimSpace(org))
	if err != nil {
		return uuid.Nil, uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
	}
	callerID, err := uuid.Parse(strings.TrimSpace(caller))
	if err != nil {
		return uuid.Nil, uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --caller: %w", err))
	}
	return orgID, callerID, nil
}

// classifyPipelineError maps the error of a rejected job to an exit code.
func classifyPipelineError(err error) error {
	var authErr *identity.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return withCode(exitDenied, err)
	case errors.Is(err, bulk.ErrMalformedRequest):
		return withCode(exitUsage, err)
	case errors.Is(err, bulk.ErrStoreUnavailable):
		return withCode(exitStore, err)
	}
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
