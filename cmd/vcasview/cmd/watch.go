package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas"
	"github.com/binp-acc/vcasview/pkg/vcas/cbutil"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <channel-or-pattern> [more...]",
	Short: "Subscribe to channels and print live updates",
	Long: `Subscribe to one or more channels and print every update until
interrupted. Arguments containing "+" or "#" are treated as MQTT-style
patterns matched against the server's channel list ("+" matches one
path segment, "#" the rest).

Examples:
  vcasview watch TEST/SimpleChannel
  vcasview watch "BEP/BPM/+/x"
  vcasview watch "BEP/Currents/#" VEPP/Energy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var client *vcas.Client
	printing := &vcas.Callbacks{
		OnChannelsChanged: func(channels []string) {
			// Patterns can only be resolved once the list is known; plain
			// names were subscribed on connect already.
			for _, arg := range args {
				if !isPattern(arg) {
					continue
				}
				matched := client.SubscribeMatching(arg, vcas.StringMappers)
				logger.Info("pattern resolved",
					zap.String("pattern", arg), zap.Int("channels", len(matched)))
			}
		},
		OnChannelUpdate: func(snap vcas.ChannelSnapshot) {
			fmt.Printf("%s\t%s\t%v\n", vcas.FormatTime(snap.LocalTime), snap.Name, snap.Value)
		},
		OnError: func(message string) {
			fmt.Fprintf(os.Stderr, "error: %s\n", message)
		},
	}

	// Updates arrive on the I/O goroutine; marshal printing onto one
	// consumer goroutine so slow terminals never stall the socket.
	async := cbutil.NewAsync(printing, 1000)
	defer async.Close()

	builder, err := newClientBuilder(cfg, logger)
	if err != nil {
		return err
	}
	client, err = builder.WithCallbacks(async.Callbacks()).Build()
	if err != nil {
		return err
	}

	for _, arg := range args {
		if !isPattern(arg) {
			client.Subscribe(arg, vcas.StringMappers)
		}
	}

	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("watching for updates... (Press Ctrl+C to exit)")
	sig := <-sigChan
	logger.Debug("signal received, exiting", zap.String("signal", sig.String()))
	return nil
}

func isPattern(arg string) bool {
	return strings.ContainsAny(arg, "+#")
}
