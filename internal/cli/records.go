package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/history"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	actorFlags
	fieldInput
	Collection string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record at version 0",
		Long: `Create a new record. Fields come from an inline JSON object, a YAML
or JSON file, or key=value pairs.

Examples:
  rewind create --collection people --user john --fields '{"name":"Doe"}'
  rewind create --collection people --user john --file person.yaml
  rewind create --collection people --user john --set name=Doe --set age=42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection the record belongs to (required)")
	addActorFlags(cmd, &opts.actorFlags)
	addFieldFlags(cmd, &opts.fieldInput, false)
	cmd.MarkFlagRequired("collection")

	return cmd
}

func runCreate(ctx context.Context, opts *CreateOptions, cmd *cobra.Command) error {
	fields, err := opts.resolve(nil)
	if err != nil {
		return err
	}

	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.svc.Create(ctx, opts.Collection, fields, opts.actor())
	if err != nil {
		return serviceError("create failed", err)
	}

	if opts.Format == "json" {
		return e.out.Success(rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s in %s (version %d)\n", rec.ID, rec.Collection, rec.Version)
	return nil
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	actorFlags
	fieldInput
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <id>",
		Short: "Save new field values as the next version",
		Long: `Save a record. --fields and --file replace the whole field set;
--set and --unset edit the latest values in place. Saving values that
match the latest version records nothing.

Examples:
  rewind save rec-1 --user jane --set name=Roe
  rewind save rec-1 --user jane --unset nickname --reason "cleanup"
  rewind save rec-1 --user jane --file person.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd.Context(), opts, args[0], cmd)
		},
	}

	addActorFlags(cmd, &opts.actorFlags)
	addFieldFlags(cmd, &opts.fieldInput, true)

	return cmd
}

func runSave(ctx context.Context, opts *SaveOptions, id string, cmd *cobra.Command) error {
	if opts.fieldInput.empty() {
		return NewExitError(ExitCommandError, "nothing to save: pass --fields, --file, --set or --unset")
	}

	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	latest, err := e.svc.Get(ctx, id)
	if err != nil {
		return serviceError("save failed", err)
	}
	fields, err := opts.resolve(latest.Fields)
	if err != nil {
		return err
	}

	rec, entry, err := e.svc.Save(ctx, id, fields, opts.actor())
	if err != nil {
		return serviceError("save failed", err)
	}

	if opts.Format == "json" {
		return e.out.Success(map[string]any{
			"record":  rec,
			"entry":   entry,
			"changed": entry != nil,
		})
	}
	w := cmd.OutOrStdout()
	if entry == nil {
		fmt.Fprintf(w, "No changes to %s (version %d)\n", rec.ID, rec.Version)
		return nil
	}
	fmt.Fprintf(w, "Saved %s (version %d)\n", rec.ID, rec.Version)
	return nil
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Version int64
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record, optionally as it was at a past version",
		Long: `Show the latest fields of a record, or reconstruct the fields as
they were at --version by walking the diff log backwards.

Examples:
  rewind show rec-1
  rewind show rec-1 --version 0
  rewind show rec-1 --version 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Version, "version", -1, "version to reconstruct (default: latest)")

	return cmd
}

func runShow(ctx context.Context, opts *ShowOptions, id string, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.svc.Get(ctx, id)
	if err != nil {
		return serviceError("show failed", err)
	}

	version := rec.Version
	fields := rec.Fields
	if opts.Version >= 0 && opts.Version != rec.Version {
		version = opts.Version
		fields, err = e.svc.StateAt(ctx, id, version)
		if err != nil {
			return serviceError("show failed", err)
		}
	}

	if opts.Format == "json" {
		return e.out.Success(map[string]any{
			"id":         rec.ID,
			"collection": rec.Collection,
			"version":    version,
			"latest":     rec.Version,
			"fields":     fields,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%s) version %d of %d\n", rec.ID, rec.Collection, version, rec.Version)
	for _, key := range fields.SortedKeys() {
		fmt.Fprintf(w, "  %s: %s\n", key, render(fields[key]))
	}
	return nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Collection string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "only list records of this collection")

	return cmd
}

func runList(ctx context.Context, opts *ListOptions, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	recs, err := e.svc.List(ctx, opts.Collection)
	if err != nil {
		return serviceError("list failed", err)
	}
	if recs == nil {
		recs = []*history.Record{}
	}

	if opts.Format == "json" {
		return e.out.Success(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOLLECTION\tVERSION\tUPDATED")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", rec.ID, rec.Collection, rec.Version, rec.UpdatedAt.Format(timeFormat))
	}
	return tw.Flush()
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	actorFlags
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a record and its diff log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), opts, args[0], cmd)
		},
	}

	addActorFlags(cmd, &opts.actorFlags)

	return cmd
}

func runDelete(ctx context.Context, opts *DeleteOptions, id string, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.svc.Delete(ctx, id, opts.actor()); err != nil {
		return serviceError("delete failed", err)
	}

	if opts.Format == "json" {
		return e.out.Success(map[string]string{"id": id, "deleted": "true"})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	return nil
}

const timeFormat = "2006-01-02 15:04:05Z07:00"

func addActorFlags(cmd *cobra.Command, a *actorFlags) {
	cmd.Flags().StringVarP(&a.User, "user", "u", "", "username the change is attributed to (required)")
	cmd.Flags().StringVar(&a.Reason, "reason", "", "why the change was made")
	cmd.MarkFlagRequired("user")
}

func addFieldFlags(cmd *cobra.Command, in *fieldInput, withUnset bool) {
	cmd.Flags().StringVar(&in.Fields, "fields", "", "fields as a JSON object")
	cmd.Flags().StringVarP(&in.File, "file", "f", "", "fields from a YAML or JSON file")
	cmd.Flags().StringArrayVar(&in.Set, "set", nil, "set one field (key=value, value parsed as JSON when valid)")
	if withUnset {
		cmd.Flags().StringArrayVar(&in.Unset, "unset", nil, "remove one field")
	}
}
