package cbutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

func TestAsyncDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string
	done := make(chan struct{})

	wrapped := &vcas.Callbacks{
		OnConnected: func() {
			mu.Lock()
			events = append(events, "connected")
			mu.Unlock()
		},
		OnChannelUpdate: func(snap vcas.ChannelSnapshot) {
			mu.Lock()
			events = append(events, "update:"+snap.Name)
			mu.Unlock()
		},
		OnDisconnected: func() {
			mu.Lock()
			events = append(events, "disconnected")
			mu.Unlock()
			close(done)
		},
	}

	async := NewAsync(wrapped, 10)
	cbs := async.Callbacks()

	cbs.OnConnected()
	cbs.OnChannelUpdate(vcas.ChannelSnapshot{Name: "X"})
	cbs.OnChannelUpdate(vcas.ChannelSnapshot{Name: "Y"})
	cbs.OnDisconnected()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callbacks never delivered")
	}
	async.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connected", "update:X", "update:Y", "disconnected"}, events)
}

func TestAsyncDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	count := 0
	wrapped := &vcas.Callbacks{
		OnError: func(string) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	}

	async := NewAsync(wrapped, 100)
	cbs := async.Callbacks()
	for i := 0; i < 50; i++ {
		cbs.OnError("event")
	}

	// Close must deliver everything still queued before returning.
	async.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}

func TestAsyncDropsOnOverflow(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once
	wrapped := &vcas.Callbacks{
		OnError: func(string) {
			startedOnce.Do(func() { close(started) })
			<-block
		},
	}

	var mu sync.Mutex
	drops := 0
	async := NewAsync(wrapped, 1).OnDrop(func() {
		mu.Lock()
		drops++
		mu.Unlock()
	})
	cbs := async.Callbacks()

	// First invocation occupies the delivery goroutine, the second fills
	// the queue, everything after that overflows.
	cbs.OnError("first")
	<-started
	cbs.OnError("second")
	require.Eventually(t, func() bool {
		cbs.OnError("overflow")
		mu.Lock()
		defer mu.Unlock()
		return drops > 0
	}, 5*time.Second, 10*time.Millisecond)

	close(block)
	async.Close()
}

func TestAsyncNilCallbacksSkipped(t *testing.T) {
	async := NewAsync(&vcas.Callbacks{}, 10)
	cbs := async.Callbacks()

	// Nothing registered; none of these may panic or queue work.
	cbs.OnConnected()
	cbs.OnError("x")
	cbs.OnHistory("X", nil)
	async.Close()
}
