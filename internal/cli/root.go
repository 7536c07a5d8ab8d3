package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rewind CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are written to stderr, or to stdout as a JSON error response
// when --format json is in effect.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.reported {
		format := opts.Format
		if !isValidFormat(format) {
			format = "text"
		}
		f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
		f.Error(ErrorCode(err), err.Error(), nil) //nolint:errcheck // best effort on the way out
	}
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	// Cobra's own failures (unknown flags, wrong arity) are usage errors.
	return ExitCommandError
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "rewind - per-record history with selective undo",
		Long: `Keep a diff log for every record, reconstruct any past version,
show what changed and who changed it, and undo a single version while
keeping every edit made after it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./rewind.yaml or $HOME/.rewind/rewind.yaml)")
	flags.String("db", "", "path to SQLite database (overrides "+config.KeyDBPath+")")
	flags.String("identity-key", "", "identity key for array elements (overrides "+config.KeyIdentityKey+")")

	// Errors are impossible here: both flags were just registered.
	_ = opts.viper.BindPFlag(config.KeyDBPath, flags.Lookup("db"))
	_ = opts.viper.BindPFlag(config.KeyIdentityKey, flags.Lookup("identity-key"))

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewChangesCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves configuration from flags, environment and the
// config file, in that order of precedence.
func (o *RootOptions) loadConfig() (config.Config, error) {
	v := o.viper
	if v == nil {
		v = config.New()
		o.viper = v
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the structured logger described by cfg. Verbose forces
// debug level.
func (o *RootOptions) newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// env is what a command needs to talk to the history service.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	svc    *history.Service
	out    *OutputFormatter
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv loads configuration, opens the store and builds the service.
// Callers must Close the returned env.
func (o *RootOptions) openEnv(cmd *cobra.Command, svcOpts ...history.Option) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cfg, cmd.ErrOrStderr())

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("database opened", "path", cfg.DBPath, "config", cfg.File)

	opts := append([]history.Option{
		history.WithLogger(logger),
		history.WithIdentityKey(cfg.IdentityKey),
	}, svcOpts...)

	out := o.formatter(cmd)
	out.VerboseLog("using database %s (identity key %q)", cfg.DBPath, cfg.IdentityKey)

	return &env{
		cfg:    cfg,
		logger: logger,
		store:  st,
		svc:    history.NewService(st, st, opts...),
		out:    out,
	}, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
