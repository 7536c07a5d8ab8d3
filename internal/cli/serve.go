package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/api"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/metrics"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen          string
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history API over HTTP",
		Long: `Serve records, history, changes and undo over HTTP, with Prometheus
metrics on /metrics and a liveness probe on /health.

Mutating requests name their user in the X-Rewind-User header and may
give a reason in X-Rewind-Reason.

Examples:
  rewind serve
  rewind serve --listen :9090 --db ./records.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (overrides server.listen)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	m := metrics.New()
	e, err := opts.openEnv(cmd, history.WithMetrics(m))
	if err != nil {
		return err
	}
	defer e.Close()

	addr := e.cfg.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	srv := api.NewServer(addr, e.svc, m.Handler(), e.logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s (db %s). Press Ctrl-C to stop.\n", addr, e.cfg.DBPath)

	select {
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	if err := <-errCh; err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	e.logger.Info("server stopped gracefully")
	return nil
}
