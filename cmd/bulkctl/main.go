// Command bulkctl runs bulk imports and exports against the record store and
// administers the memberships that authorize them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitOK         = 0
	exitFailed     = 1 // the job ran but did not succeed
	exitUsage      = 2
	exitDenied     = 3
	exitStore      = 4
	exitUnexpected = 5
)

// codedError carries the process exit code of a failed command.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUnexpected
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bulkctl",
		Short:         "Bulk import and export of organization records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&opts.env, "env", "", "Override app.env (development, production)")

	root.AddCommand(
		newImportCmd(opts),
		newExportCmd(opts),
		newMemberCmd(opts),
		newMigrateCmd(opts),
		newHistoryCmd(opts),
		newLinkCmd(opts),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bulkctl:", err)
	}
	stop()
	os.Exit(exitCode(err))
}
