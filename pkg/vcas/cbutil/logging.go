package cbutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// Logging returns a Callbacks set that logs every client event at the
// given level. Useful on its own for CLI tools, or combined with a real
// consumer via Tee.
func Logging(logger *zap.Logger, level zapcore.Level) *vcas.Callbacks {
	return &vcas.Callbacks{
		OnConnected: func() {
			logger.Log(level, "client connected")
		},
		OnDisconnected: func() {
			logger.Log(level, "client disconnected")
		},
		OnError: func(message string) {
			logger.Log(level, "client error", zap.String("message", message))
		},
		OnChannelsChanged: func(channels []string) {
			logger.Log(level, "channel list changed", zap.Int("count", len(channels)))
		},
		OnChannelUpdate: func(snapshot vcas.ChannelSnapshot) {
			logger.Log(level, "channel update",
				zap.String("channel", snapshot.Name),
				zap.Any("value", snapshot.Value),
			)
		},
		OnChannelInfo: func(info vcas.ChannelInfo) {
			logger.Log(level, "channel info",
				zap.String("channel", info.Name),
				zap.String("type", info.Type),
				zap.String("units", info.Units),
			)
		},
		OnMultiChannelInfo: func(infos []vcas.ChannelInfo) {
			logger.Log(level, "multi channel info", zap.Int("count", len(infos)))
		},
		OnHistory: func(name string, points []vcas.HistoryPoint) {
			logger.Log(level, "history received",
				zap.String("channel", name),
				zap.Int("points", len(points)),
			)
		},
	}
}

// Tee fans every callback out to each of the given sets in order.
func Tee(sets ...*vcas.Callbacks) *vcas.Callbacks {
	return &vcas.Callbacks{
		OnConnected: func() {
			for _, s := range sets {
				if s.OnConnected != nil {
					s.OnConnected()
				}
			}
		},
		OnDisconnected: func() {
			for _, s := range sets {
				if s.OnDisconnected != nil {
					s.OnDisconnected()
				}
			}
		},
		OnError: func(message string) {
			for _, s := range sets {
				if s.OnError != nil {
					s.OnError(message)
				}
			}
		},
		OnChannelsChanged: func(channels []string) {
			for _, s := range sets {
				if s.OnChannelsChanged != nil {
					s.OnChannelsChanged(channels)
				}
			}
		},
		OnChannelUpdate: func(snapshot vcas.ChannelSnapshot) {
			for _, s := range sets {
				if s.OnChannelUpdate != nil {
					s.OnChannelUpdate(snapshot)
				}
			}
		},
		OnChannelInfo: func(info vcas.ChannelInfo) {
			for _, s := range sets {
				if s.OnChannelInfo != nil {
					s.OnChannelInfo(info)
				}
			}
		},
		OnMultiChannelInfo: func(infos []vcas.ChannelInfo) {
			for _, s := range sets {
				if s.OnMultiChannelInfo != nil {
					s.OnMultiChannelInfo(infos)
				}
			}
		},
		OnHistory: func(name string, points []vcas.HistoryPoint) {
			for _, s := range sets {
				if s.OnHistory != nil {
					s.OnHistory(name, points)
				}
			}
		},
	}
}
