package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/reconcile"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List who changed a record, when, and which fields",
		Long: `List every version of a record, oldest first, starting with its
creation. Each line names the user, the reason given, and the fields the
version touched.

Examples:
  rewind history rec-1
  rewind history rec-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runHistory(ctx context.Context, opts *RootOptions, id string, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	items, err := e.svc.History(ctx, id)
	if err != nil {
		return serviceError("history failed", err)
	}

	if opts.Format == "json" {
		return e.out.Success(map[string]any{"id": id, "history": items})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tUSER\tAT\tREASON\tCHANGES")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			item.Version, item.User, item.At.Format(timeFormat), item.Reason, item.Comment)
	}
	return tw.Flush()
}

// ChangesOptions holds flags for the changes command.
type ChangesOptions struct {
	*RootOptions
	Field string
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "changes <id> <version>",
		Short: "Show what a version changed",
		Long: `Show the fields a version changed, each with the value it held
just before and just after the edit. With --field, classify the elements
of an array field as added, updated, removed or unchanged, matching them
by the configured identity key.

Examples:
  rewind changes rec-1 2
  rewind changes rec-1 1 --field phones`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return runChanges(cmd.Context(), opts, args[0], version, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "", "array field whose elements to classify")

	return cmd
}

func runChanges(ctx context.Context, opts *ChangesOptions, id string, version int64, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.svc.Changes(ctx, id, version)
	if err != nil {
		return serviceError("changes failed", err)
	}

	var elements []reconcile.ElementChange
	if opts.Field != "" {
		elements, err = e.svc.ArrayChanges(ctx, id, version, opts.Field)
		if err != nil {
			return serviceError("changes failed", err)
		}
	}

	if opts.Format == "json" {
		data := map[string]any{"id": id, "view": view}
		if opts.Field != "" {
			data["field"] = opts.Field
			data["array_changes"] = elements
		}
		return e.out.Success(data)
	}

	w := cmd.OutOrStdout()
	writeView(w, view)
	if opts.Field != "" {
		fmt.Fprintf(w, "\n%s:\n", opts.Field)
		writeElementChanges(w, elements)
	}
	return nil
}

func writeView(w io.Writer, view *history.View) {
	header := fmt.Sprintf("Version %d by %s at %s", view.Version, view.By.Username, view.At.Format(timeFormat))
	if view.By.Reason != "" {
		header += fmt.Sprintf(" (%s)", view.By.Reason)
	}
	fmt.Fprintln(w, header)

	if len(view.Changed) == 0 {
		fmt.Fprintln(w, "  no changes")
		return
	}
	for _, field := range view.Changed {
		fmt.Fprintf(w, "  %s: %s -> %s\n", field, render(view.PreviousValues[field]), render(view.Current[field]))
	}
}

var actionMarks = map[reconcile.Action]string{
	reconcile.ActionAdd:    "+",
	reconcile.ActionUpdate: "~",
	reconcile.ActionRemove: "-",
	reconcile.ActionNone:   " ",
}

func writeElementChanges(w io.Writer, changes []reconcile.ElementChange) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, c := range changes {
		fmt.Fprintf(w, "  %s %s\n", actionMarks[c.Action], render(c.Element))
	}
}

// parseVersion reads a version argument.
func parseVersion(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid version %q: must be a non-negative integer", raw))
	}
	return v, nil
}
