// Package config loads viewer configuration from HCL files. Attribute
// expressions can reference environment variables through the env
// object, e.g. `snapshot = env.VCAS_SNAPSHOT`.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultDialTimeout     = 5 * time.Second
	defaultMockListen      = "127.0.0.1:20041"
)

// Config is the root of a viewer configuration file.
type Config struct {
	Server *ServerBlock `hcl:"server,block"`
	Mock   *MockBlock   `hcl:"mock,block"`
	Viewer *ViewerBlock `hcl:"viewer,block"`
}

// ServerBlock selects the instrument server to connect to.
type ServerBlock struct {
	Host string `hcl:"host"`
	Port int    `hcl:"port"`
	Type string `hcl:"type,optional"` // "channel" (default) or "pulse"
}

// MockBlock configures the built-in mock server.
type MockBlock struct {
	Listen   string `hcl:"listen,optional"`
	Snapshot string `hcl:"snapshot,optional"`
}

// ViewerBlock holds client-side tunables.
type ViewerBlock struct {
	RefreshInterval string `hcl:"refresh_interval,optional"`
	DialTimeout     string `hcl:"dial_timeout,optional"`
}

// Load reads and decodes one HCL configuration file.
func Load(path string) (*Config, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": GetEnvObject(),
		},
	}

	var cfg Config
	if err := hclsimple.DecodeFile(path, evalCtx, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given: a mock
// server on the loopback default port.
func Default() *Config {
	return &Config{
		Server: &ServerBlock{Host: "127.0.0.1", Port: 20041},
		Mock:   &MockBlock{Listen: defaultMockListen},
	}
}

func (c *Config) validate() error {
	if c.Server != nil {
		if c.Server.Host == "" {
			return fmt.Errorf("server block requires a host")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server port %d is out of range", c.Server.Port)
		}
		if _, err := c.ServerType(); err != nil {
			return err
		}
	}
	if c.Viewer != nil {
		if _, err := parseOptionalDuration(c.Viewer.RefreshInterval); err != nil {
			return fmt.Errorf("refresh_interval: %w", err)
		}
		if _, err := parseOptionalDuration(c.Viewer.DialTimeout); err != nil {
			return fmt.Errorf("dial_timeout: %w", err)
		}
	}
	return nil
}

// ServerType maps the configured type string onto a wire dialect.
func (c *Config) ServerType() (vcas.ServerType, error) {
	if c.Server == nil {
		return vcas.ServerTypeChannel, nil
	}
	switch c.Server.Type {
	case "", "channel":
		return vcas.ServerTypeChannel, nil
	case "pulse":
		return vcas.ServerTypePulse, nil
	default:
		return 0, fmt.Errorf("unknown server type %q", c.Server.Type)
	}
}

// RefreshInterval returns the channel-list refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	if c.Viewer == nil {
		return defaultRefreshInterval
	}
	d, err := parseOptionalDuration(c.Viewer.RefreshInterval)
	if err != nil || d == 0 {
		return defaultRefreshInterval
	}
	return d
}

// DialTimeout returns the per-attempt connect timeout.
func (c *Config) DialTimeout() time.Duration {
	if c.Viewer == nil {
		return defaultDialTimeout
	}
	d, err := parseOptionalDuration(c.Viewer.DialTimeout)
	if err != nil || d == 0 {
		return defaultDialTimeout
	}
	return d
}

// MockListen returns the mock server listen address.
func (c *Config) MockListen() string {
	if c.Mock == nil || c.Mock.Listen == "" {
		return defaultMockListen
	}
	return c.Mock.Listen
}

// MockSnapshot returns the snapshot path for the mock catalog, or "".
func (c *Config) MockSnapshot() string {
	if c.Mock == nil {
		return ""
	}
	return c.Mock.Snapshot
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
