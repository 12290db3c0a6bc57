package vcas

// HistoryPoint is one (timestamp, value) sample from a gethistory
// response. Raw wire strings are kept alongside the parsed timestamp so
// callers can dedup live updates by exact timestamp equality.
type HistoryPoint struct {
	Timestamp string
	Value     string
}

// ChannelInfo is the descriptor returned by a getfull request.
type ChannelInfo struct {
	Name  string
	Type  string
	Units string
	Descr string
	Val   string
	Host  string
	Port  string
}

// Callbacks is the client's entire observable surface. All callbacks are
// invoked from the client's I/O goroutine; implementations must not
// block. Nil fields are skipped. Use cbutil.Async to marshal delivery
// onto a consumer goroutine.
type Callbacks struct {
	// OnConnected fires after the socket connects and subscriptions have
	// been replayed.
	OnConnected func()

	// OnDisconnected fires on peer close, socket error, or an explicit
	// Disconnect call.
	OnDisconnected func()

	// OnError receives a human-readable message for every recovered
	// failure: connect errors, protocol-level error replies, malformed
	// responses. Errors never propagate as faults past the client.
	OnError func(message string)

	// OnChannelsChanged receives the full channel list, but only when its
	// sorted membership differs from the previous list.
	OnChannelsChanged func(channels []string)

	// OnChannelUpdate fires for every dispatched update of a subscribed
	// channel.
	OnChannelUpdate func(snapshot ChannelSnapshot)

	// OnChannelInfo fires for a getfull response.
	OnChannelInfo func(info ChannelInfo)

	// OnMultiChannelInfo fires once when every descriptor requested by
	// MultiChannelInfo has arrived, in request order.
	OnMultiChannelInfo func(infos []ChannelInfo)

	// OnHistory delivers a reassembled gethistory response.
	OnHistory func(name string, points []HistoryPoint)
}

func (c *Callbacks) connected() {
	if c.OnConnected != nil {
		c.OnConnected()
	}
}

func (c *Callbacks) disconnected() {
	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}
}

func (c *Callbacks) error(message string) {
	if c.OnError != nil {
		c.OnError(message)
	}
}

func (c *Callbacks) channelsChanged(channels []string) {
	if c.OnChannelsChanged != nil {
		c.OnChannelsChanged(channels)
	}
}

func (c *Callbacks) channelUpdate(snap ChannelSnapshot) {
	if c.OnChannelUpdate != nil {
		c.OnChannelUpdate(snap)
	}
}

func (c *Callbacks) channelInfo(info ChannelInfo) {
	if c.OnChannelInfo != nil {
		c.OnChannelInfo(info)
	}
}

func (c *Callbacks) multiChannelInfo(infos []ChannelInfo) {
	if c.OnMultiChannelInfo != nil {
		c.OnMultiChannelInfo(infos)
	}
}

func (c *Callbacks) history(name string, points []HistoryPoint) {
	if c.OnHistory != nil {
		c.OnHistory(name, points)
	}
}
