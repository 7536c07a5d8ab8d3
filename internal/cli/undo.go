package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/history"
)

// UndoOptions holds flags for the undo command.
type UndoOptions struct {
	*RootOptions
	actorFlags
	DryRun bool
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UndoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo <id> <version>",
		Short: "Revert one version while keeping later edits",
		Long: `Revert the edit a single version made and save the result as a new
version. Fields changed by later versions keep their latest values.

Array and nested object fields are reverted only when no later version
changed them; otherwise they keep their latest value. Either way the undo
is saved and a warning names the fields.

Examples:
  rewind undo rec-1 1 --user admin
  rewind undo rec-1 1 --user admin --reason "bad import"
  rewind undo rec-1 1 --user admin --dry-run`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return runUndo(cmd.Context(), opts, args[0], version, cmd)
		},
	}

	addActorFlags(cmd, &opts.actorFlags)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute the result without saving it")

	return cmd
}

func runUndo(ctx context.Context, opts *UndoOptions, id string, version int64, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out, err := e.svc.Undo(ctx, id, version, opts.actor(), history.UndoOptions{DryRun: opts.DryRun})
	var partial *history.PartialUndoError
	if err != nil && !errors.As(err, &partial) {
		return serviceError("undo failed", err)
	}

	var warnings []string
	if partial != nil {
		warnings = append(warnings, fmt.Sprintf("fields may not be fully reverted: %s", strings.Join(partial.Fields, ", ")))
	}

	if opts.Format == "json" {
		return e.out.Success(map[string]any{
			"id":      id,
			"undone":  version,
			"dry_run": opts.DryRun,
			"outcome": out,
		}, warnings...)
	}

	w := cmd.OutOrStdout()
	for _, warning := range warnings {
		e.out.Warning(warning)
	}

	switch {
	case opts.DryRun:
		fmt.Fprintf(w, "Undoing version %d of %s would give:\n", version, id)
		for _, key := range out.Snapshot.SortedKeys() {
			fmt.Fprintf(w, "  %s: %s\n", key, render(out.Snapshot[key]))
		}
	case out.Entry == nil:
		fmt.Fprintf(w, "Undoing version %d of %s changed nothing (version %d)\n", version, id, out.Record.Version)
	default:
		fmt.Fprintf(w, "Undid version %d of %s (now version %d)\n", version, id, out.Record.Version)
	}
	return nil
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Check that every logged version reconstructs to its checksum",
		Long: `Walk a record's diff log from the latest version back to creation and
compare each reconstructed snapshot with the checksum stored when that
version was saved.

Exit codes:
  0 - Every version matches
  1 - A version does not reconstruct to its checksum
  2 - Command error (record not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runVerify(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.svc.Verify(ctx, id)
	if err != nil {
		return serviceError("verify failed", err)
	}

	switch {
	case opts.Format == "json":
		if err := e.out.Success(report); err != nil {
			return err
		}
	case report.OK:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d version(s) verified\n", id, report.Checked)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: version %d does not match its checksum\n", id, report.Mismatch)
	}

	if !report.OK {
		return reportedFailure(fmt.Sprintf("history of %s is inconsistent at version %d", id, report.Mismatch))
	}
	return nil
}
