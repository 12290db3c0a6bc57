package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <channel>",
	Short: "Fetch channel history",
	Long: `Fetch the recent history of one channel and print its
timestamp/value samples.

Examples:
  vcasview history TEST/SimpleChannel
  vcasview history BEP/Currents/ePMT --duration 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyDuration time.Duration
	historyTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().DurationVar(&historyDuration, "duration", 5*time.Minute, "history window")
	historyCmd.Flags().DurationVar(&historyTimeout, "timeout", 15*time.Second, "response timeout")
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := args[0]
	connected := make(chan struct{}, 1)
	done := make(chan []vcas.HistoryPoint, 1)
	errCh := make(chan string, 1)
	callbacks := &vcas.Callbacks{
		OnConnected: func() {
			select {
			case connected <- struct{}{}:
			default:
			}
		},
		OnHistory: func(channel string, points []vcas.HistoryPoint) {
			if channel != name {
				return
			}
			select {
			case done <- points:
			default:
			}
		},
		OnError: func(message string) {
			select {
			case errCh <- message:
			default:
			}
		},
	}

	builder, err := newClientBuilder(cfg, logger)
	if err != nil {
		return err
	}
	client, err := builder.WithCallbacks(callbacks).Build()
	if err != nil {
		return err
	}
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()

	select {
	case <-connected:
	case msg := <-errCh:
		return fmt.Errorf("connect failed: %s", msg)
	case <-time.After(historyTimeout):
		return fmt.Errorf("connect timed out after %s", historyTimeout)
	}

	client.RequestHistory(name, int(historyDuration.Seconds()))

	select {
	case points := <-done:
		for _, p := range points {
			fmt.Printf("%s\t%s\n", p.Timestamp, p.Value)
		}
		return nil
	case msg := <-errCh:
		return fmt.Errorf("request failed: %s", msg)
	case <-time.After(historyTimeout):
		return fmt.Errorf("no response after %s", historyTimeout)
	}
}
