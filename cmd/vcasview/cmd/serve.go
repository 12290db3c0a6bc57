package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas/mockserver"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock channel server",
	Long: `Run a standalone mock channel server for offline development.

The server builds its channel catalog from a collected snapshot file
when one is configured (or given with --snapshot), falling back to a
built-in taxonomy otherwise. Every channel updates on its own
randomized schedule and updates fan out to all subscribed clients.

Examples:
  vcasview serve
  vcasview serve --listen 127.0.0.1:20041
  vcasview serve --snapshot catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveListen   string
	serveSnapshot string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveSnapshot, "snapshot", "", "catalog snapshot file (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen := cfg.MockListen()
	if serveListen != "" {
		listen = serveListen
	}
	snapshot := cfg.MockSnapshot()
	if serveSnapshot != "" {
		snapshot = serveSnapshot
	}

	host, port := splitListenAddr(listen)
	catalog := mockserver.BuildCatalog(snapshot, host, port, logger)

	server, err := mockserver.NewServer().
		WithAddr(listen).
		WithCatalog(catalog).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
	if err := server.Stop(); err != nil {
		logger.Warn("errors during shutdown", zap.Error(err))
	}
	return nil
}
