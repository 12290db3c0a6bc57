package vcas

import (
	"sync"
	"time"
)

// ChannelSnapshot is a copy of a channel's state at one point in time.
// UI code running on other goroutines reads snapshots, never the live
// state, to avoid torn reads.
type ChannelSnapshot struct {
	Name       string
	Value      any
	LocalTime  time.Time
	ServerTime time.Time
	HasServer  bool
}

// ChannelState holds the subscription state for one channel: its mapper
// pair, the last decoded value, and the local and server-reported update
// times. It is created on first subscription and survives reconnects;
// only a permanent disconnect discards it.
type ChannelState struct {
	name    string
	mappers MapperPair

	mu         sync.RWMutex
	value      any
	localTime  time.Time
	serverTime time.Time
	hasServer  bool
}

func newChannelState(name string, mappers MapperPair) *ChannelState {
	return &ChannelState{name: name, mappers: mappers}
}

// Name returns the channel name.
func (c *ChannelState) Name() string { return c.name }

// apply runs the input mapper on a dispatched message and updates the
// stored value and timestamps. Called only from the I/O goroutine.
func (c *ChannelState) apply(msg *Message) (ChannelSnapshot, error) {
	value, err := c.mappers.In(msg)
	if err != nil {
		return ChannelSnapshot{}, err
	}

	c.mu.Lock()
	c.value = value
	c.localTime = time.Now()
	if t, ok := msg.Time(); ok {
		c.serverTime = t
		c.hasServer = true
	} else {
		c.serverTime = time.Time{}
		c.hasServer = false
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	return snap, nil
}

// Snapshot returns a copy of the current state.
func (c *ChannelState) Snapshot() ChannelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *ChannelState) snapshotLocked() ChannelSnapshot {
	return ChannelSnapshot{
		Name:       c.name,
		Value:      c.value,
		LocalTime:  c.localTime,
		ServerTime: c.serverTime,
		HasServer:  c.hasServer,
	}
}
