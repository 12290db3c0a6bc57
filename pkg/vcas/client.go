package vcas

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas/o11y"
)

// ConnState is the client's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Client owns one TCP connection to a channel or register server. It
// frames the byte stream, decodes messages, dispatches them to the
// subscription registry, and reconnects with exponential backoff after
// failures, replaying subscriptions on every reconnect.
//
// All failures are recovered internally and surfaced through Callbacks;
// nothing propagates as a fault past the client boundary.
type Client struct {
	addr         string
	serverType   ServerType
	dialect      Dialect
	logger       *zap.Logger
	callbacks    *Callbacks
	dialTimeout  time.Duration
	refreshEvery time.Duration
	pollEvery    time.Duration

	ctx context.Context

	mu             sync.Mutex
	state          ConnState
	conn           net.Conn
	connGen        uint64
	closed         bool
	backoff        *backoff
	reconnectTimer *time.Timer
	refreshCron    *cron.Cron
	pollStop       chan struct{}

	writeMu sync.Mutex

	// Subscription registry, in subscription order for replay.
	registry map[string]*ChannelState
	order    []string

	// Caches carried across reconnects.
	channels     []string
	infoCache    map[string]ChannelInfo
	historyCache map[string][]HistoryPoint

	// Multi-channel getfull aggregation.
	pendingMulti []string
	multiInfo    map[string]ChannelInfo

	// Observability (nil-safe).
	linesCounter     o11y.Counter
	reconnectCounter o11y.Counter
	errorCounter     o11y.Counter
	subscriberGauge  o11y.Gauge
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect initiates a non-blocking connection attempt. The outcome is
// observable only through the connected/disconnected/error callbacks.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.closed = false
	c.state = StateConnecting
	gen := c.connGen
	c.mu.Unlock()

	go c.dial(gen)
	return nil
}

// Disconnect forces the Disconnected state and cancels any pending
// reconnect timer. This is the only user-initiated terminal transition;
// the subscription registry is kept so a later Connect replays it.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	wasConnected := c.state == StateConnected
	c.teardownLocked()
	c.state = StateDisconnected
	c.connGen++
	c.mu.Unlock()

	c.logger.Info("disconnected from server", zap.String("addr", c.addr))
	if wasConnected {
		c.callbacks.disconnected()
	}
}

// dial performs one connection attempt.
func (c *Client) dial(gen uint64) {
	c.logger.Info("connecting", zap.String("addr", c.addr), zap.Stringer("server_type", c.serverType))

	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)

	c.mu.Lock()
	if c.closed || gen != c.connGen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.reportError(fmt.Sprintf("connect to %s: %v", c.addr, err))
		return
	}

	c.conn = conn
	c.state = StateConnected
	c.backoff.Reset()
	go c.readLoop(conn, gen, NewFramer(c.logger))
	c.startRefreshLocked()
	replay := c.replayPlanLocked()
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("addr", c.addr))
	for _, name := range replay {
		c.sendSubscribe(name)
	}
	if c.serverType == ServerTypePulse {
		c.startPolling(gen)
	}
	c.callbacks.connected()

	// Fetch the channel list right away; the periodic refresh takes over
	// from here.
	if c.serverType == ServerTypeChannel {
		c.RefreshChannels()
	}
}

// replayPlanLocked returns the channels to re-subscribe on this connect,
// in registry order. Pulse servers have no subscribe command; polling
// covers every registered channel instead.
func (c *Client) replayPlanLocked() []string {
	if c.serverType != ServerTypeChannel {
		return nil
	}
	plan := make([]string, len(c.order))
	copy(plan, c.order)
	return plan
}

// readLoop feeds raw socket bytes through the framer and dispatches each
// decoded message. It exits when the connection dies or is replaced.
func (c *Client) readLoop(conn net.Conn, gen uint64, framer *Framer) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				c.handleLine(line)
			}
		}
		if err != nil {
			c.connectionLost(gen, err)
			return
		}
	}
}

// handleLine decodes one framed line and dispatches it. Decode errors
// are per-request failures (the pulse dialect's fixed error strings);
// they surface via the error callback and never touch the connection.
func (c *Client) handleLine(line string) {
	if c.linesCounter != nil {
		c.linesCounter.Add(c.ctx, 1)
	}

	msg, err := c.dialect.Decode(line)
	if err != nil {
		c.reportError(err.Error())
		return
	}
	if msg.Len() == 0 {
		return
	}
	c.dispatch(msg)
}

// dispatch routes a decoded message: channel list, history response,
// protocol error, channel descriptor, or subscribed-channel update.
// Updates for channels not in the registry are dropped silently; fan-out
// servers may push updates other clients asked for.
func (c *Client) dispatch(msg *Message) {
	switch {
	case msg.Name() == ChannelsList:
		c.handleChannelsList(msg)
	case msg.GetOr(KeyMethod, "") == MethodGetHistory:
		c.handleHistory(msg)
	case msg.Value() == ErrSentinel:
		c.reportError(fmt.Sprintf("server error: %s", msg.GetOr(KeyDescr, "unknown")))
	default:
		if _, ok := msg.Get(KeyType); ok {
			c.handleChannelInfo(msg)
			return
		}
		c.handleUpdate(msg)
	}
}

func (c *Client) handleUpdate(msg *Message) {
	name := msg.Name()
	if name == "" {
		return
	}

	c.mu.Lock()
	state, ok := c.registry[name]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("update for unsubscribed channel dropped", zap.String("channel", name))
		return
	}

	snap, err := state.apply(msg)
	if err != nil {
		c.logger.Warn("channel mapper failed", zap.String("channel", name), zap.Error(err))
		return
	}
	c.callbacks.channelUpdate(snap)
}

// handleChannelsList processes a ChannelsList response and emits the
// changed-list callback only when the sorted membership differs from the
// previous list. Permutations of the same membership never fire.
func (c *Client) handleChannelsList(msg *Message) {
	val := msg.Value()
	if val == "" || val == "none" {
		c.logger.Warn("server returned empty channel list")
		return
	}

	var channels []string
	for _, name := range strings.Split(val, ",") {
		if name = strings.TrimSpace(name); name != "" {
			channels = append(channels, name)
		}
	}

	c.mu.Lock()
	changed := channelsDiffer(c.channels, channels)
	if changed {
		c.channels = channels
	}
	c.mu.Unlock()

	if !changed {
		c.logger.Debug("channel list unchanged, update skipped")
		return
	}
	c.logger.Info("channel list changed", zap.Int("count", len(channels)))
	c.callbacks.channelsChanged(channels)
}

// channelsDiffer compares channel lists by sorted membership.
func channelsDiffer(old, new []string) bool {
	if len(old) != len(new) {
		return true
	}
	a := append([]string(nil), old...)
	b := append([]string(nil), new...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

func (c *Client) handleChannelInfo(msg *Message) {
	name := msg.Name()
	if name == "" {
		return
	}

	info := ChannelInfo{
		Name:  name,
		Type:  msg.GetOr(KeyType, ""),
		Units: msg.GetOr(KeyUnits, ""),
		Descr: msg.GetOr(KeyDescr, ""),
		Val:   msg.Value(),
		Host:  msg.GetOr(KeyHost, ""),
		Port:  msg.GetOr(KeyPort, ""),
	}

	c.mu.Lock()
	c.infoCache[name] = info
	pending := c.pendingMulti
	var complete []ChannelInfo
	if pending != nil && containsString(pending, name) {
		c.multiInfo[name] = info
		if len(c.multiInfo) == len(pending) {
			complete = make([]ChannelInfo, 0, len(pending))
			for _, n := range pending {
				complete = append(complete, c.multiInfo[n])
			}
			c.pendingMulti = nil
			c.multiInfo = make(map[string]ChannelInfo)
		}
		c.mu.Unlock()
		if complete != nil {
			c.callbacks.multiChannelInfo(complete)
		}
		return
	}
	c.mu.Unlock()

	c.callbacks.channelInfo(info)
}

// connectionLost handles a dead socket: tear down, notify, and schedule
// a backoff-delayed reconnect. Stale generations (already replaced
// connections) are ignored.
func (c *Client) connectionLost(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.connGen {
		c.mu.Unlock()
		return
	}
	c.connGen++
	c.teardownLocked()
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.reportError(fmt.Sprintf("connection lost: %v", err))
	c.callbacks.disconnected()
}

// teardownLocked closes the socket and stops the periodic refresh and
// the pulse polling timer. Callers hold c.mu.
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.refreshCron != nil {
		c.refreshCron.Stop()
		c.refreshCron = nil
	}
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

// scheduleReconnectLocked arms the reconnect timer with the current
// backoff delay and doubles the delay for the next failure.
func (c *Client) scheduleReconnectLocked() {
	delay := c.backoff.Next()
	c.logger.Info("scheduling reconnect", zap.Duration("delay", delay))
	if c.reconnectCounter != nil {
		c.reconnectCounter.Add(c.ctx, 1)
	}

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		gen := c.connGen
		c.mu.Unlock()
		c.dial(gen)
	})
}

// startRefreshLocked starts the periodic channel-list refresh. Callers
// hold c.mu. The register server has no ChannelsList command.
func (c *Client) startRefreshLocked() {
	if c.serverType != ServerTypeChannel || c.refreshEvery <= 0 {
		return
	}
	c.refreshCron = cron.New()
	c.refreshCron.AddFunc("@every "+c.refreshEvery.String(), c.RefreshChannels)
	c.refreshCron.Start()
}

// startPolling runs the register-server polling loop that stands in for
// subscriptions: every poll interval each registered channel is fetched
// with GET ALL. Stopped via pollStop when the connection goes down.
func (c *Client) startPolling(gen uint64) {
	stop := make(chan struct{})
	c.mu.Lock()
	if c.closed || gen != c.connGen {
		c.mu.Unlock()
		return
	}
	c.pollStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				names := make([]string, len(c.order))
				copy(names, c.order)
				c.mu.Unlock()
				for _, name := range names {
					c.send(NewMessage().Set(KeyName, name).Set(KeyMethod, "GET ALL"))
				}
			}
		}
	}()
}

// send encodes and writes one request. When not connected it is a
// logged no-op, never an error: commands issued while reconnecting are
// simply dropped.
func (c *Client) send(msg *Message) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	gen := c.connGen
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Debug("send while not connected, dropped", zap.String("name", msg.Name()))
		return
	}

	data := c.dialect.Encode(msg)
	c.writeMu.Lock()
	_, err := conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.connectionLost(gen, err)
		return
	}
	c.logger.Debug("sent command", zap.ByteString("line", data[:len(data)-1]))
}

func (c *Client) sendSubscribe(name string) {
	c.send(NewMessage().Set(KeyName, name).Set(KeyMethod, MethodSubscribe))
}

// Subscribe registers a channel with its mapper pair and returns its
// state handle. Subscribing an already-registered channel returns the
// existing state without re-sending the wire command. While
// disconnected the wire send is deferred to the next connect, which
// replays the whole registry.
func (c *Client) Subscribe(name string, mappers MapperPair) *ChannelState {
	if name == "" {
		return nil
	}

	c.mu.Lock()
	if state, ok := c.registry[name]; ok {
		c.mu.Unlock()
		return state
	}
	state := newChannelState(name, mappers)
	c.registry[name] = state
	c.order = append(c.order, name)
	connected := c.state == StateConnected
	if c.subscriberGauge != nil {
		c.subscriberGauge.Set(c.ctx, float64(len(c.registry)))
	}
	c.mu.Unlock()

	if connected && c.serverType == ServerTypeChannel {
		c.sendSubscribe(name)
	}
	return state
}

// Subscribed returns the state handle for a registered channel.
func (c *Client) Subscribed(name string) (*ChannelState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.registry[name]
	return state, ok
}

// Channels returns the last known channel list.
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.channels))
	copy(out, c.channels)
	return out
}

// RefreshChannels requests the full channel list. The changed-list
// callback fires only if the membership actually changed.
func (c *Client) RefreshChannels() {
	c.send(NewMessage().Set(KeyName, ChannelsList).Set(KeyMethod, MethodGet))
}

// ForceRefreshChannels clears all caches and re-requests the list.
func (c *Client) ForceRefreshChannels() {
	c.ClearCache()
	c.RefreshChannels()
}

// ClearCache drops the channel list, descriptor and history caches and
// any in-flight multi-channel aggregation.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.channels = nil
	c.infoCache = make(map[string]ChannelInfo)
	c.historyCache = make(map[string][]HistoryPoint)
	c.pendingMulti = nil
	c.multiInfo = make(map[string]ChannelInfo)
	c.mu.Unlock()
	c.logger.Info("channel caches cleared")
}

// Get requests the current value of a channel.
func (c *Client) Get(name string) {
	if name == "" {
		return
	}
	c.send(NewMessage().Set(KeyName, name).Set(KeyMethod, MethodGet))
}

// Set writes a value to a channel. The output mapper of the channel's
// subscription renders the value; unsubscribed channels use the string
// mapper.
func (c *Client) Set(name string, value any) error {
	if name == "" {
		return fmt.Errorf("set: empty channel name")
	}

	c.mu.Lock()
	mappers := StringMappers
	if state, ok := c.registry[name]; ok {
		mappers = state.mappers
	}
	c.mu.Unlock()

	fields, err := mappers.Out(value)
	if err != nil {
		return err
	}

	msg := NewMessage().Set(KeyName, name).Set(KeyMethod, MethodSet)
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		msg.Set(k, v)
	}
	c.send(msg)
	return nil
}

// RequestChannelInfo requests the full descriptor of one channel. A
// cached descriptor is delivered immediately without a wire request.
func (c *Client) RequestChannelInfo(name string) {
	if name == "" {
		return
	}

	c.mu.Lock()
	cached, ok := c.infoCache[name]
	c.mu.Unlock()
	if ok {
		c.callbacks.channelInfo(cached)
		return
	}
	c.send(NewMessage().Set(KeyName, name).Set(KeyMethod, MethodGetFull))
}

// RequestMultiChannelInfo requests descriptors for several channels and
// delivers them in one aggregated callback once all have arrived.
// Channels already cached are not re-requested.
func (c *Client) RequestMultiChannelInfo(names []string) {
	if len(names) == 0 {
		return
	}
	if len(names) == 1 {
		c.RequestChannelInfo(names[0])
		return
	}

	c.mu.Lock()
	var missing []string
	collected := make(map[string]ChannelInfo)
	for _, name := range names {
		if info, ok := c.infoCache[name]; ok {
			collected[name] = info
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		infos := make([]ChannelInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, collected[name])
		}
		c.mu.Unlock()
		c.callbacks.multiChannelInfo(infos)
		return
	}
	c.pendingMulti = append([]string(nil), names...)
	c.multiInfo = collected
	c.mu.Unlock()

	for _, name := range missing {
		c.send(NewMessage().Set(KeyName, name).Set(KeyMethod, MethodGetFull))
	}
}

func (c *Client) reportError(message string) {
	c.logger.Error(message)
	if c.errorCounter != nil {
		c.errorCounter.Add(c.ctx, 1)
	}
	c.callbacks.error(message)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
