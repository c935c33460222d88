package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"inbox/internal/config"
	inboxhttp "inbox/internal/http"
	"inbox/internal/logging"
	"inbox/internal/relay"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type relayOptions struct {
	addr      string
	adminAddr string
}

func newRelayCommand(root *rootOptions) *cobra.Command {
	opts := &relayOptions{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the reference chat relay",
		Long: `Run a relay that accepts chat clients on GET /ws and fans message,
typing and stopTyping events out to every other connected client.

Presence (GET /presence) and Prometheus metrics (GET /metrics) are served
on the admin address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			root.apply(cfg)
			if opts.addr != "" {
				cfg.RelayAddr = opts.addr
			}
			if opts.adminAddr != "" {
				cfg.AdminAddr = opts.adminAddr
			}
			if err := cfg.Validate(false); err != nil {
				return err
			}

			logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return err
			}
			return runRelay(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address for clients (overrides RELAY_ADDR)")
	cmd.Flags().StringVar(&opts.adminAddr, "admin-addr", "", "listen address for presence and metrics (overrides RELAY_ADMIN_ADDR)")

	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	relayServer := relay.NewServer(relay.Config{
		Rate:   cfg.RelayRate,
		Burst:  cfg.RelayBurst,
		Logger: logger,
	})

	g, gCtx := errgroup.WithContext(ctx)

	apiServer := inboxhttp.NewAPIServer(gCtx, relayServer, cfg.RelayAddr)
	adminServer := inboxhttp.NewAdminServer(relayServer, cfg.AdminAddr)

	// Start Admin Server
	g.Go(func() error {
		return adminServer.Start()
	})

	// Start API Server
	g.Go(func() error {
		return apiServer.Start()
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown error", "error", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
