package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	importapp "github.com/erp/bulkops/internal/application/import"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past import jobs",
	}
	cmd.AddCommand(newHistoryListCmd(root), newHistoryErrorsCmd(root))
	return cmd
}

func newHistoryListCmd(root *rootOptions) *cobra.Command {
	var (
		org    string
		filter importapp.ListHistoryFilter
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(strings.TrimSpace(org))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			page, err := a.history.List(cmd.Context(), orgID, filter)
			if err != nil {
				return withCode(exitStore, err)
			}
			return writeJSON(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")
	cmd.Flags().StringVar(&filter.Entity, "entity", "", "Only jobs for this entity")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only jobs in this status")
	cmd.Flags().IntVar(&filter.PageSize, "limit", 20, "Jobs per page")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newHistoryErrorsCmd(root *rootOptions) *cobra.Command {
	var org, id string

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Print the row errors of an import job as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(strings.TrimSpace(org))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
			}
			historyID, err := uuid.Parse(strings.TrimSpace(id))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --id: %w", err))
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			data, _, err := a.history.ErrorsCSV(cmd.Context(), orgID, historyID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return withCode(exitUsage, fmt.Errorf("import %s not found", historyID))
				}
				return withCode(exitStore, err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")
	cmd.Flags().StringVar(&id, "id", "", "Import history UUID (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
