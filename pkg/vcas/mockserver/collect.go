package mockserver

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

const collectReadTimeout = 10 * time.Second

// Collector captures a real server's channel set into a Snapshot file,
// so the mock can later serve a faithful copy of a production catalog.
// It speaks the channel dialect synchronously on one socket: list the
// channels, then getfull each one.
type Collector struct {
	addr   string
	logger *zap.Logger

	conn    net.Conn
	framer  *vcas.Framer
	dialect vcas.ChannelDialect
	queue   []*vcas.Message
}

// NewCollector returns a collector for the given server address.
func NewCollector(addr string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{addr: addr, logger: logger}
}

// Collect connects, walks the full channel list, and returns the
// assembled snapshot. Channels whose getfull fails are logged and
// skipped rather than aborting the run.
func (c *Collector) Collect(dialTimeout time.Duration) (*Snapshot, error) {
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	defer conn.Close()
	c.conn = conn
	c.framer = vcas.NewFramer(c.logger)

	names, err := c.channelList()
	if err != nil {
		return nil, err
	}
	c.logger.Info("channel list received", zap.Int("channels", len(names)))

	snap := &Snapshot{
		Metadata: SnapshotMetadata{
			Server:      c.addr,
			CollectedAt: time.Now(),
		},
		Directories:    make(map[string][]string),
		ChannelDetails: make(map[string]ChannelRecord),
	}

	for i, name := range names {
		record, err := c.describe(name)
		if err != nil {
			c.logger.Warn("channel description failed",
				zap.String("channel", name), zap.Error(err))
			continue
		}
		snap.ChannelDetails[name] = record

		segments := vcas.SplitPath(name)
		top := segments[0]
		snap.Directories[top] = append(snap.Directories[top], name)

		if (i+1)%100 == 0 {
			c.logger.Info("collecting", zap.Int("done", i+1), zap.Int("total", len(names)))
		}
	}

	snap.Metadata.TotalChannels = len(snap.ChannelDetails)
	return snap, nil
}

// channelList requests and parses the full channel name list.
func (c *Collector) channelList() ([]string, error) {
	req := vcas.NewMessage().
		Set(vcas.KeyMethod, vcas.MethodGet).
		Set(vcas.KeyName, vcas.ChannelsList)
	reply, err := c.roundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("channel list: %w", err)
	}
	raw := reply.Value()
	if raw == "" {
		return nil, fmt.Errorf("channel list: empty response")
	}
	return strings.Split(raw, ","), nil
}

// describe getfulls one channel into a snapshot record.
func (c *Collector) describe(name string) (ChannelRecord, error) {
	req := vcas.NewMessage().
		Set(vcas.KeyMethod, vcas.MethodGetFull).
		Set(vcas.KeyName, name)
	reply, err := c.roundTrip(req)
	if err != nil {
		return ChannelRecord{}, err
	}
	if reply.Value() == vcas.ErrSentinel {
		return ChannelRecord{}, fmt.Errorf("server error: %s", reply.GetOr(vcas.KeyDescr, "unknown"))
	}
	return ChannelRecord{
		Type:        reply.GetOr(vcas.KeyType, ""),
		Units:       reply.GetOr(vcas.KeyUnits, ""),
		Description: reply.GetOr(vcas.KeyDescr, ""),
		Value:       reply.Value(),
	}, nil
}

// roundTrip writes one request and returns the next non-empty reply.
// Unsolicited pushes for other channels may arrive interleaved; they
// are queued and drained in order, which is safe because replies on one
// socket preserve request order.
func (c *Collector) roundTrip(req *vcas.Message) (*vcas.Message, error) {
	if _, err := c.conn.Write(c.dialect.Encode(req)); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return c.nextMessage()
}

func (c *Collector) nextMessage() (*vcas.Message, error) {
	for {
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue = c.queue[1:]
			return msg, nil
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(collectReadTimeout))
		buf := make([]byte, 4096)
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		for _, line := range c.framer.Feed(buf[:n]) {
			msg, err := c.dialect.Decode(line)
			if err != nil || msg.Len() == 0 {
				continue
			}
			c.queue = append(c.queue, msg)
		}
	}
}
