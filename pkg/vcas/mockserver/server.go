package mockserver

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas"
	"github.com/binp-acc/vcasview/pkg/vcas/o11y"
)

const (
	updateMinInterval = 500 * time.Millisecond
	updateMaxInterval = 3 * time.Second
	writeTimeout      = 5 * time.Second
	defaultHistoryLen = 60
)

// Server is the mock channel server: one TCP listener, a generated
// catalog, per-channel randomized update loops, and subscription
// fan-out to every connected client.
type Server struct {
	catalog *Catalog
	logger  *zap.Logger
	addr    string
	tracing o11y.TracingProvider

	mu      sync.Mutex
	ln      net.Listener
	clients map[*clientConn]struct{}
	subs    map[string]map[*clientConn]struct{}
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	commandCounter o11y.Counter
	pushCounter    o11y.Counter
	clientGauge    o11y.Gauge
}

// clientConn is one accepted client socket. Writes from the command
// loop and the update loops interleave, so every write goes through
// writeMu.
type clientConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// ServerBuilder provides a fluent interface for building mock servers.
type ServerBuilder struct {
	addr            string
	catalog         *Catalog
	logger          *zap.Logger
	metricsProvider o11y.MetricsProvider
	tracingProvider o11y.TracingProvider
}

// NewServer creates a server builder with defaults: no-op logger, no
// instrumentation.
func NewServer() *ServerBuilder {
	return &ServerBuilder{logger: zap.NewNop()}
}

// WithAddr sets the listen address. Use ":0" for an ephemeral port.
func (b *ServerBuilder) WithAddr(addr string) *ServerBuilder {
	b.addr = addr
	return b
}

// WithAddress sets the listen host and port.
func (b *ServerBuilder) WithAddress(host string, port int) *ServerBuilder {
	b.addr = net.JoinHostPort(host, strconv.Itoa(port))
	return b
}

// WithCatalog sets the channel catalog to serve.
func (b *ServerBuilder) WithCatalog(catalog *Catalog) *ServerBuilder {
	b.catalog = catalog
	return b
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(logger *zap.Logger) *ServerBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithMetricsProvider enables metrics instrumentation.
func (b *ServerBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ServerBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables per-command tracing.
func (b *ServerBuilder) WithTracingProvider(provider o11y.TracingProvider) *ServerBuilder {
	b.tracingProvider = provider
	return b
}

// Build validates the configuration and returns a stopped server.
func (b *ServerBuilder) Build() (*Server, error) {
	if b.addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if b.catalog == nil || b.catalog.Len() == 0 {
		return nil, fmt.Errorf("a non-empty catalog is required")
	}

	s := &Server{
		catalog: b.catalog,
		logger:  b.logger,
		addr:    b.addr,
		tracing: b.tracingProvider,
		clients: make(map[*clientConn]struct{}),
		subs:    make(map[string]map[*clientConn]struct{}),
	}
	if b.metricsProvider != nil {
		s.commandCounter = b.metricsProvider.Counter("vcas_mock_commands_total")
		s.pushCounter = b.metricsProvider.Counter("vcas_mock_pushed_updates_total")
		s.clientGauge = b.metricsProvider.Gauge("vcas_mock_connected_clients")
	}
	return s, nil
}

// Start binds the listener and launches the accept loop and every
// channel's update loop. Channels update for the server's lifetime;
// only Stop cancels them.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return vcas.ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.started = true
	s.stopCh = make(chan struct{})

	s.logger.Info("mock server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("channels", s.catalog.Len()))

	s.wg.Add(1)
	go s.acceptLoop(ln)

	for _, name := range s.catalog.Names() {
		s.wg.Add(1)
		go s.updateLoop(name)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener and every client socket and waits for all
// loops to exit. Safe to call once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.stopCh)
	err := s.ln.Close()
	for cc := range s.clients {
		err = multierr.Append(err, cc.conn.Close())
	}
	s.clients = make(map[*clientConn]struct{})
	s.subs = make(map[string]map[*clientConn]struct{})
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("mock server stopped")
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.logger.Warn("accept failed", zap.Error(err))
			return
		}

		cc := &clientConn{conn: conn}
		s.mu.Lock()
		s.clients[cc] = struct{}{}
		n := len(s.clients)
		s.mu.Unlock()
		s.setClientGauge(n)

		s.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
		s.wg.Add(1)
		go s.serveClient(cc)
	}
}

// serveClient runs one client's receive-dispatch-respond loop until the
// peer closes, the socket fails, or the server stops.
func (s *Server) serveClient(cc *clientConn) {
	defer s.wg.Done()
	defer s.dropClient(cc)

	framer := vcas.NewFramer(s.logger)
	dialect := vcas.ChannelDialect{}
	buf := make([]byte, 4096)
	for {
		n, err := cc.conn.Read(buf)
		if err != nil {
			s.logger.Info("client disconnected",
				zap.String("remote", cc.conn.RemoteAddr().String()))
			return
		}
		for _, line := range framer.Feed(buf[:n]) {
			msg, err := dialect.Decode(line)
			if err != nil || msg.Len() == 0 {
				continue
			}
			if !s.dispatch(cc, msg) {
				return
			}
		}
	}
}

// dispatch handles one decoded command. Returns false when the reply
// could not be written and the connection should be dropped.
func (s *Server) dispatch(cc *clientConn, msg *vcas.Message) bool {
	method := msg.GetOr(vcas.KeyMethod, "")
	name := msg.Name()
	s.countCommand(method)

	var span o11y.Span
	if s.tracing != nil {
		_, span = s.tracing.StartSpan(context.Background(), "mockserver.command")
		span.SetAttributes(
			o11y.Label{Key: "method", Value: method},
			o11y.Label{Key: "channel", Value: name},
		)
		defer span.End()
	}

	switch {
	case method == vcas.MethodGet && name == vcas.ChannelsList:
		reply := vcas.NewMessage().
			Set(vcas.KeyName, vcas.ChannelsList).
			Set(vcas.KeyVal, strings.Join(s.catalog.Names(), ","))
		return s.write(cc, reply)

	case method == vcas.MethodGet && s.catalog.Has(name):
		val, _ := s.catalog.Value(name)
		return s.write(cc, updateMessage(name, val))

	case method == vcas.MethodGetFull && s.catalog.Has(name):
		d, _ := s.catalog.Get(name)
		reply := vcas.NewMessage().
			Set(vcas.KeyName, name).
			Set(vcas.KeyType, d.Type).
			Set(vcas.KeyUnits, d.Units).
			Set(vcas.KeyDescr, d.Descr).
			Set(vcas.KeyVal, d.Val).
			Set(vcas.KeyHost, d.Host).
			Set(vcas.KeyPort, d.Port)
		return s.write(cc, reply)

	case method == vcas.MethodSet && s.catalog.Has(name):
		val := msg.Value()
		if val == "" {
			val, _ = s.catalog.Regenerate(name)
		} else {
			s.catalog.SetValue(name, val)
		}
		// Writers see their own set reflected in the next push.
		s.push(name, val)
		return true

	case method == vcas.MethodGetHistory && s.catalog.Has(name):
		return s.write(cc, s.historyReply(name, msg.GetOr(vcas.KeyDuration, "")))

	case method == vcas.MethodSubscribe && s.catalog.Has(name):
		s.mu.Lock()
		if s.subs[name] == nil {
			s.subs[name] = make(map[*clientConn]struct{})
		}
		s.subs[name][cc] = struct{}{}
		s.mu.Unlock()
		val, _ := s.catalog.Value(name)
		return s.write(cc, updateMessage(name, val))

	default:
		if span != nil {
			span.SetStatus(o11y.SpanStatusError, "unrecognized command")
		}
		reply := vcas.NewMessage().
			Set(vcas.KeyValue, vcas.ErrSentinel).
			Set(vcas.KeyDescr, fmt.Sprintf("unknown command %q for channel %q", method, name))
		return s.write(cc, reply)
	}
}

// historyReply synthesizes duration one-second-spaced samples ending
// now, each within ±5% of the channel's current numeric value.
// Non-numeric values repeat unchanged.
func (s *Server) historyReply(name, duration string) *vcas.Message {
	n, err := strconv.Atoi(duration)
	if err != nil || n <= 0 {
		n = defaultHistoryLen
	}

	current, _ := s.catalog.Value(name)
	base, numErr := strconv.ParseFloat(current, 64)

	timestamps := make([]string, n)
	values := make([]string, n)
	start := time.Now().Add(-time.Duration(n-1) * time.Second)
	for i := 0; i < n; i++ {
		timestamps[i] = vcas.FormatTime(start.Add(time.Duration(i) * time.Second))
		if numErr == nil {
			values[i] = fmt.Sprintf("%.3f", base*(1+0.05*(rand.Float64()-0.5)*2))
		} else {
			values[i] = current
		}
	}

	return vcas.NewMessage().
		Set(vcas.KeyName, name).
		Set(vcas.KeyMethod, vcas.MethodGetHistory).
		Set(vcas.KeyDuration, strconv.Itoa(n)).
		Set(vcas.KeyTimes, strings.Join(timestamps, ",")).
		Set(vcas.KeyValues, strings.Join(values, ","))
}

// updateLoop regenerates one channel's value on its own randomized
// schedule and fans the update out to subscribers. Each iteration
// sleeps an independent uniform interval, so channels never beat in
// lockstep.
func (s *Server) updateLoop(name string) {
	defer s.wg.Done()
	for {
		jitter := updateMinInterval +
			time.Duration(rand.Float64()*float64(updateMaxInterval-updateMinInterval))
		select {
		case <-s.stopCh:
			return
		case <-time.After(jitter):
		}

		val, ok := s.catalog.Regenerate(name)
		if !ok {
			return
		}
		s.push(name, val)
	}
}

// push sends a current-value update to every subscriber of a channel.
// A failed send drops that subscriber's connection.
func (s *Server) push(name, val string) {
	s.mu.Lock()
	targets := make([]*clientConn, 0, len(s.subs[name]))
	for cc := range s.subs[name] {
		targets = append(targets, cc)
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	msg := updateMessage(name, val)
	for _, cc := range targets {
		if !s.write(cc, msg) {
			s.dropClient(cc)
		}
	}
	if s.pushCounter != nil {
		s.pushCounter.Add(context.Background(), int64(len(targets)),
			o11y.Label{Key: "channel", Value: name})
	}
}

// write encodes and sends one message, reporting success.
func (s *Server) write(cc *clientConn, msg *vcas.Message) bool {
	data := vcas.ChannelDialect{}.Encode(msg)

	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	_ = cc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := cc.conn.Write(data); err != nil {
		s.logger.Warn("write to client failed",
			zap.String("remote", cc.conn.RemoteAddr().String()), zap.Error(err))
		return false
	}
	return true
}

// dropClient removes a client from the client set and every
// subscription list and closes its socket. Idempotent.
func (s *Server) dropClient(cc *clientConn) {
	s.mu.Lock()
	_, present := s.clients[cc]
	delete(s.clients, cc)
	for name, set := range s.subs {
		delete(set, cc)
		if len(set) == 0 {
			delete(s.subs, name)
		}
	}
	n := len(s.clients)
	s.mu.Unlock()

	if present {
		_ = cc.conn.Close()
		s.setClientGauge(n)
	}
}

func (s *Server) countCommand(method string) {
	if s.commandCounter != nil {
		s.commandCounter.Add(context.Background(), 1,
			o11y.Label{Key: "method", Value: method})
	}
}

func (s *Server) setClientGauge(n int) {
	if s.clientGauge != nil {
		s.clientGauge.Set(context.Background(), float64(n))
	}
}

func updateMessage(name, val string) *vcas.Message {
	return vcas.NewMessage().
		Set(vcas.KeyName, name).
		Set(vcas.KeyTime, vcas.FormatTime(time.Now())).
		Set(vcas.KeyVal, val)
}
