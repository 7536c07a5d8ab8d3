package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Key string
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <current-file> <previous-file>",
		Short: "Classify the elements of two arrays by identity",
		Long: `Compare two arrays of objects read from YAML or JSON files and mark
each element as added, updated, removed or unchanged. Elements are
matched by the identity key, so reordering alone is never reported as a
change.

Examples:
  rewind reconcile phones-now.json phones-before.json
  rewind reconcile new.yaml old.yaml --key sku --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "identity key (default: configured identity key)")

	return cmd
}

func runReconcile(opts *ReconcileOptions, currentFile, previousFile string, cmd *cobra.Command) error {
	key := opts.Key
	if key == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		key = cfg.IdentityKey
	}

	current, err := readArrayFile(currentFile)
	if err != nil {
		return err
	}
	previous, err := readArrayFile(previousFile)
	if err != nil {
		return err
	}

	changes, err := reconcile.Reconcile(current, previous, key)
	if err != nil {
		return WrapExitError(ExitCommandError, "reconcile failed", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]any{"key": key, "changes": changes})
	}
	writeElementChanges(cmd.OutOrStdout(), changes)
	summarize(cmd, changes)
	return nil
}

func summarize(cmd *cobra.Command, changes []reconcile.ElementChange) {
	counts := make(map[reconcile.Action]int, 4)
	for _, c := range changes {
		counts[c.Action]++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d added, %d updated, %d removed, %d unchanged\n",
		counts[reconcile.ActionAdd], counts[reconcile.ActionUpdate],
		counts[reconcile.ActionRemove], counts[reconcile.ActionNone])
}
