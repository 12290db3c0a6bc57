package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <channel> <value>",
	Short: "Write a channel value",
	Long: `Write a value to a writable channel.

Examples:
  vcasview set TEST/SimpleChannel 3.14
  vcasview set BEP/Injection/State SUSPEND`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var setTimeout time.Duration

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().DurationVar(&setTimeout, "timeout", 10*time.Second, "connect timeout")
}

func runSet(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	connected := make(chan struct{}, 1)
	errCh := make(chan string, 1)
	callbacks := &vcas.Callbacks{
		OnConnected: func() {
			select {
			case connected <- struct{}{}:
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
	case <-time.After(setTimeout):
		return fmt.Errorf("connect timed out after %s", setTimeout)
	}

	if err := client.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s <- %s\n", args[0], args[1])
	return nil
}
