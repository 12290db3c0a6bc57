package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <channel> [channels...]",
	Short: "Read channel descriptors",
	Long: `Read the full descriptor (type, units, description, current value)
of one or more channels and print them.

Examples:
  vcasview get TEST/SimpleChannel
  vcasview get BEP/Currents/ePMT BEP/Currents/pPMT`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

var getTimeout time.Duration

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().DurationVar(&getTimeout, "timeout", 10*time.Second, "response timeout")
}

func runGet(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	done := make(chan []vcas.ChannelInfo, 1)
	errCh := make(chan string, 1)
	callbacks := &vcas.Callbacks{
		OnConnected: nil, // requests are issued below, after connect
		OnChannelInfo: func(info vcas.ChannelInfo) {
			select {
			case done <- []vcas.ChannelInfo{info}:
			default:
			}
		},
		OnMultiChannelInfo: func(infos []vcas.ChannelInfo) {
			select {
			case done <- infos:
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

	connected := make(chan struct{}, 1)
	callbacks.OnConnected = func() {
		select {
		case connected <- struct{}{}:
		default:
		}
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
	case <-time.After(getTimeout):
		return fmt.Errorf("connect timed out after %s", getTimeout)
	}

	client.RequestMultiChannelInfo(args)

	select {
	case infos := <-done:
		for _, info := range infos {
			fmt.Printf("%s\ttype=%s units=%s val=%s\t%s\n",
				info.Name, info.Type, info.Units, info.Val, info.Descr)
		}
		return nil
	case msg := <-errCh:
		return fmt.Errorf("request failed: %s", msg)
	case <-time.After(getTimeout):
		return fmt.Errorf("no response after %s", getTimeout)
	}
}
