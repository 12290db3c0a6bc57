package cmd

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas"
	"github.com/binp-acc/vcasview/pkg/vcas/config"
)

// loadConfig returns the configuration from --config, or the built-in
// default (mock server on loopback) when no file was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

// newClientBuilder preconfigures a client builder from the loaded
// configuration. Callers add their callbacks and Build.
func newClientBuilder(cfg *config.Config, logger *zap.Logger) (*vcas.ClientBuilder, error) {
	if cfg.Server == nil {
		return nil, fmt.Errorf("configuration has no server block")
	}
	serverType, err := cfg.ServerType()
	if err != nil {
		return nil, err
	}
	return vcas.NewClient().
		WithAddress(cfg.Server.Host, cfg.Server.Port).
		WithServerType(serverType).
		WithLogger(logger).
		WithDialTimeout(cfg.DialTimeout()).
		WithRefreshInterval(cfg.RefreshInterval()), nil
}

// splitListenAddr splits a host:port listen address; the pieces end up
// in served channel descriptors. A bad address yields empty fields,
// never an error.
func splitListenAddr(addr string) (host, port string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", ""
	}
	return host, port
}
