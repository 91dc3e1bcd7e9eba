package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMemberCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage organization memberships",
	}
	cmd.AddCommand(newMemberGrantCmd(root), newMemberRevokeCmd(root), newMemberListCmd(root))
	return cmd
}

func parseOrgAndUser(org, user string) (uuid.UUID, uuid.UUID, error) {
	orgID, err := uuid.Parse(strings.TrimSpace(org))
	if err != nil {
		return uuid.Nil, uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
	}
	userID, err := uuid.Parse(strings.TrimSpace(user))
	if err != nil {
		return uuid.Nil, uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --user: %w", err))
	}
	return orgID, userID, nil
}

func newMemberGrantCmd(root *rootOptions) *cobra.Command {
	var org, user, roleName string

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a role, creating the membership if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, userID, err := parseOrgAndUser(org, user)
			if err != nil {
				return err
			}
			role, err := identity.ParseRole(roleName)
			if err != nil {
				return withCode(exitUsage, err)
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			dto, err := a.memberships.Grant(cmd.Context(), orgID, userID, role)
			if err != nil {
				return withCode(exitStore, err)
			}
			return writeJSON(cmd.OutOrStdout(), dto)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")
	cmd.Flags().StringVar(&user, "user", "", "User UUID (required)")
	cmd.Flags().StringVar(&roleName, "role", "", "owner, admin, manager, member or viewer (required)")
	for _, name := range []string{"org", "user", "role"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newMemberRevokeCmd(root *rootOptions) *cobra.Command {
	var org, user string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate a membership",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, userID, err := parseOrgAndUser(org, user)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			if err := a.memberships.Revoke(cmd.Context(), orgID, userID); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return withCode(exitUsage, fmt.Errorf("user %s has no membership in %s", userID, orgID))
				}
				return withCode(exitStore, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s in %s\n", userID, orgID)
			return err
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")
	cmd.Flags().StringVar(&user, "user", "", "User UUID (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newMemberListCmd(root *rootOptions) *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the memberships of an organization",
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

			members, err := a.memberships.List(cmd.Context(), orgID)
			if err != nil {
				return withCode(exitStore, err)
			}
			return writeJSON(cmd.OutOrStdout(), members)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization UUID (required)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
