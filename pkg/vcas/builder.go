package vcas

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas/o11y"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultRefreshInterval = 30 * time.Second
	defaultPollInterval    = 1 * time.Second
)

// ClientBuilder provides a fluent interface for building clients.
type ClientBuilder struct {
	addr            string
	serverType      ServerType
	logger          *zap.Logger
	callbacks       *Callbacks
	dialTimeout     time.Duration
	refreshEvery    time.Duration
	pollEvery       time.Duration
	metricsProvider o11y.MetricsProvider
}

// NewClient creates a client builder with defaults: channel dialect,
// no-op logger, five second dial timeout, thirty second list refresh,
// one second register polling.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		logger:       zap.NewNop(),
		dialTimeout:  defaultDialTimeout,
		refreshEvery: defaultRefreshInterval,
		pollEvery:    defaultPollInterval,
	}
}

// WithAddress sets the server host and port.
func (b *ClientBuilder) WithAddress(host string, port int) *ClientBuilder {
	b.addr = net.JoinHostPort(host, strconv.Itoa(port))
	return b
}

// WithAddr sets the server address as a single host:port string.
func (b *ClientBuilder) WithAddr(addr string) *ClientBuilder {
	b.addr = addr
	return b
}

// WithServerType selects the wire dialect.
func (b *ClientBuilder) WithServerType(t ServerType) *ClientBuilder {
	b.serverType = t
	return b
}

// WithLogger sets the logger.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithCallbacks sets the callback set invoked from the I/O goroutine.
func (b *ClientBuilder) WithCallbacks(callbacks *Callbacks) *ClientBuilder {
	b.callbacks = callbacks
	return b
}

// WithDialTimeout sets the per-attempt connect timeout.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithRefreshInterval sets the periodic channel-list refresh interval.
// Zero disables the periodic refresh.
func (b *ClientBuilder) WithRefreshInterval(interval time.Duration) *ClientBuilder {
	b.refreshEvery = interval
	return b
}

// WithPollInterval sets the register-server polling interval.
func (b *ClientBuilder) WithPollInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.pollEvery = interval
	}
	return b
}

// WithMetricsProvider enables metrics instrumentation.
func (b *ClientBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// Build validates the configuration and returns a client in the
// Disconnected state.
func (b *ClientBuilder) Build() (*Client, error) {
	if b.addr == "" {
		return nil, fmt.Errorf("server address is required")
	}

	callbacks := b.callbacks
	if callbacks == nil {
		callbacks = &Callbacks{}
	}

	c := &Client{
		addr:         b.addr,
		serverType:   b.serverType,
		dialect:      DialectFor(b.serverType),
		logger:       b.logger,
		callbacks:    callbacks,
		dialTimeout:  b.dialTimeout,
		refreshEvery: b.refreshEvery,
		pollEvery:    b.pollEvery,
		ctx:          context.Background(),
		backoff:      newBackoff(),
		registry:     make(map[string]*ChannelState),
		infoCache:    make(map[string]ChannelInfo),
		historyCache: make(map[string][]HistoryPoint),
		multiInfo:    make(map[string]ChannelInfo),
	}

	if b.metricsProvider != nil {
		c.linesCounter = b.metricsProvider.Counter("vcas_client_lines_decoded_total")
		c.reconnectCounter = b.metricsProvider.Counter("vcas_client_reconnects_total")
		c.errorCounter = b.metricsProvider.Counter("vcas_client_errors_total")
		c.subscriberGauge = b.metricsProvider.Gauge("vcas_client_subscribed_channels")
	}

	return c, nil
}
