package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// channelsCmd represents the channels command
var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the server's channels",
	Long: `Fetch and print the server's full channel list, one name per line.

Examples:
  vcasview channels
  vcasview channels --config production.hcl`,
	Args: cobra.NoArgs,
	RunE: runChannels,
}

var channelsTimeout time.Duration

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().DurationVar(&channelsTimeout, "timeout", 10*time.Second, "response timeout")
}

func runChannels(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	done := make(chan []string, 1)
	errCh := make(chan string, 1)
	callbacks := &vcas.Callbacks{
		OnChannelsChanged: func(channels []string) {
			select {
			case done <- channels:
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
	case channels := <-done:
		for _, name := range channels {
			fmt.Println(name)
		}
		return nil
	case msg := <-errCh:
		return fmt.Errorf("request failed: %s", msg)
	case <-time.After(channelsTimeout):
		return fmt.Errorf("no response after %s", channelsTimeout)
	}
}
