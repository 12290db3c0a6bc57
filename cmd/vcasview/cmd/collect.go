package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas/mockserver"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <output-file>",
	Short: "Collect a server's catalog into a snapshot file",
	Long: `Connect to the configured server, walk its full channel list, and
save every channel's descriptor and current value into a snapshot file
the mock server can serve later.

Examples:
  vcasview collect catalog.yaml --config production.hcl`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

var collectDialTimeout time.Duration

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().DurationVar(&collectDialTimeout, "dial-timeout", 10*time.Second, "connect timeout")
}

func runCollect(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server == nil {
		return fmt.Errorf("configuration has no server block")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	collector := mockserver.NewCollector(addr, logger)
	snap, err := collector.Collect(collectDialTimeout)
	if err != nil {
		return err
	}

	out := args[0]
	if err := snap.Save(out); err != nil {
		return err
	}
	logger.Info("snapshot saved",
		zap.String("file", out),
		zap.Int("channels", snap.ChannelCount()))
	return nil
}
