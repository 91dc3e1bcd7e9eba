package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type exportOptions struct {
	org              string
	caller           string
	entity           string
	format           string
	fields           []string
	status           []string
	category         []string
	from             string
	to               string
	search           string
	includeRelations bool
	filename         string
	out              string
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as CSV, JSON, spreadsheet or document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.org, "org", "", "Organization UUID (required)")
	f.StringVar(&opts.caller, "caller", "", "Caller user UUID (required)")
	f.StringVar(&opts.entity, "entity", "", "Entity type (required)")
	f.StringVar(&opts.format, "format", "csv", "csv, json, spreadsheet or document")
	f.StringSliceVar(&opts.fields, "fields", nil, "Fields to include, * for all")
	f.StringSliceVar(&opts.status, "status", nil, "Keep records with one of these statuses")
	f.StringSliceVar(&opts.category, "category", nil, "Keep records in one of these categories")
	f.StringVar(&opts.from, "from", "", "Earliest record date, YYYY-MM-DD")
	f.StringVar(&opts.to, "to", "", "Latest record date, YYYY-MM-DD")
	f.StringVar(&opts.search, "search", "", "Case-insensitive text search")
	f.BoolVar(&opts.includeRelations, "include-relations", false, "Embed related record summaries")
	f.StringVar(&opts.filename, "filename", "", "Suggested filename of the export")
	f.StringVar(&opts.out, "out", "", "Write the payload here instead of printing the result")
	for _, name := range []string{"org", "caller", "entity"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// buildExportRequest turns flags into a request. Bad dates are usage errors.
func buildExportRequest(opts exportOptions) (bulk.ExportRequest, error) {
	format, err := bulk.ParseFormat(opts.format)
	if err != nil {
		return bulk.ExportRequest{}, withCode(exitUsage, err)
	}
	req := bulk.ExportRequest{
		Entity: opts.entity,
		Format: format,
		Fields: opts.fields,
		Filters: bulk.ExportFilter{
			Status:   opts.status,
			Category: opts.category,
			Search:   opts.search,
		},
		IncludeRelations: opts.includeRelations,
		Filename:         opts.filename,
	}
	if req.Filters.DateFrom, err = parseDateFlag("from", opts.from); err != nil {
		return bulk.ExportRequest{}, err
	}
	if req.Filters.DateTo, err = parseDateFlag("to", opts.to); err != nil {
		return bulk.ExportRequest{}, err
	}
	return req, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --%s: %w", name, err))
	}
	return &t, nil
}

func runExport(ctx context.Context, out io.Writer, root *rootOptions, opts exportOptions) error {
	orgID, callerID, err := parseOrgAndCaller(opts.org, opts.caller)
	if err != nil {
		return err
	}
	req, err := buildExportRequest(opts)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

	pipeline, err := a.exportPipeline(ctx)
	if err != nil {
		return withCode(exitStore, err)
	}
	result, err := pipeline.Export(ctx, orgID, callerID, req)
	if err != nil {
		if result != nil {
			_ = writeJSON(out, result)
		}
		return classifyPipelineError(err)
	}

	if opts.out != "" && len(result.Data) > 0 {
		if err := os.WriteFile(opts.out, result.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.out, err)
		}
		// The payload is on disk; print only the summary.
		result.Data = nil
	}
	if err := writeJSON(out, result); err != nil {
		return err
	}
	if !result.Success {
		return withCode(exitFailed, fmt.Errorf("export failed: %s", result.Error))
	}
	return nil
}
