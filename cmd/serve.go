package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/longkey1/lome/internal/server"
	"github.com/spf13/cobra"
)

var (
	listenAddr  string
	devPersonas bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	Long: `Run the HTTP server that stores conversations and streams replies from
OpenRouter to clients configured with server_url.

Clients authenticate with session tokens signed with session_secret (see
'lome token'). With --dev-personas, POST /api/dev/session issues tokens for
@dev.lome-chat.com and @test.lome-chat.com personas without a secret on the
client side. Prometheus metrics are served at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ttl, err := cfg.SessionTTLDuration()
		if err != nil {
			return err
		}
		issuer, err := auth.NewIssuer(cfg.SessionSecret, ttl)
		if err != nil {
			return fmt.Errorf("creating token issuer: %w", err)
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		metrics := server.NewMetrics()
		svc := newService(cfg, st, logger, service.WithHooks(metrics.Hooks()))

		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = listenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting server",
			"addr", addr,
			"store_driver", cfg.StoreDriver,
			"data_dir", cfg.DataDir,
			"default_model", cfg.Model,
			"dev_personas", devPersonas,
		)
		srv := server.New(svc, issuer, server.Options{
			Addr:        addr,
			Logger:      logger,
			Metrics:     metrics,
			DevPersonas: devPersonas,
		})
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", server.DefaultAddr, "Address to listen on (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&devPersonas, "dev-personas", false, "Enable POST /api/dev/session for development personas")
}
