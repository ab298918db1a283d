package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"itemstore/config"
	"itemstore/internal/item/repository"
	"itemstore/internal/item/service"
	"itemstore/pkg/logger"
	"itemstore/router"
	"itemstore/socket"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Store StoreFlags
	Addr  string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the item API",
		Long: `Serve the item API and the /ws change feed until SIGINT or SIGTERM.

Configuration comes from the environment (and a .env file); flags override it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	opts.Store.register(cmd)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address or port, overrides PORT")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Store)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		addr, err := config.ParseAddr(opts.Addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --addr", err)
		}
		cfg.Server.Addr = addr
	}
	if err := initLogging(cfg.LogLevel, os.Stdout); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open store", err)
	}
	defer repo.Close()

	hub := socket.NewHub()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Setup(service.NewItemService(repo), hub, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar.Infof("itemstore listening on %s (store backend: %s)", cfg.Server.Addr, cfg.Store.Backend)
	if err := runServer(ctx, srv); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Sugar.Info("itemstore stopped")
	return nil
}

// runServer blocks until the server fails or ctx is done, then shuts it down.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
