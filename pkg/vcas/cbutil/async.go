// Package cbutil provides helpers around the client callback surface:
// asynchronous delivery onto a consumer goroutine, logging, and fan-out.
package cbutil

import (
	"errors"
	"sync"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

// ErrQueueFull is logged (not returned) when the async queue overflows;
// the overflowing callback invocation is dropped.
var ErrQueueFull = errors.New("callback queue is full")

// Async wraps a Callbacks set and delivers every invocation on a single
// background goroutine through a buffered queue. The client's I/O
// goroutine returns immediately after queueing, so slow consumers never
// stall the socket; single-threaded consumers get all callbacks
// marshaled onto one goroutine.
type Async struct {
	wrapped   *vcas.Callbacks
	queue     chan func()
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	onDrop    func()
}

// NewAsync creates an Async wrapper with the given queue size and starts
// its delivery goroutine. Call Close to drain and stop it.
func NewAsync(wrapped *vcas.Callbacks, queueSize int) *Async {
	if queueSize <= 0 {
		queueSize = 100
	}
	a := &Async{
		wrapped: wrapped,
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case fn := <-a.queue:
				fn()
			case <-a.done:
				// Drain whatever is still queued before exiting.
				for {
					select {
					case fn := <-a.queue:
						fn()
					default:
						return
					}
				}
			}
		}
	}()

	return a
}

// OnDrop registers a hook invoked when the queue overflows and an
// invocation is discarded. Must be set before the wrapper is used.
func (a *Async) OnDrop(fn func()) *Async {
	a.onDrop = fn
	return a
}

// Callbacks returns the callback set to hand to the client builder.
func (a *Async) Callbacks() *vcas.Callbacks {
	w := a.wrapped
	return &vcas.Callbacks{
		OnConnected: func() {
			if w.OnConnected != nil {
				a.enqueue(w.OnConnected)
			}
		},
		OnDisconnected: func() {
			if w.OnDisconnected != nil {
				a.enqueue(w.OnDisconnected)
			}
		},
		OnError: func(message string) {
			if w.OnError != nil {
				a.enqueue(func() { w.OnError(message) })
			}
		},
		OnChannelsChanged: func(channels []string) {
			if w.OnChannelsChanged != nil {
				a.enqueue(func() { w.OnChannelsChanged(channels) })
			}
		},
		OnChannelUpdate: func(snapshot vcas.ChannelSnapshot) {
			if w.OnChannelUpdate != nil {
				a.enqueue(func() { w.OnChannelUpdate(snapshot) })
			}
		},
		OnChannelInfo: func(info vcas.ChannelInfo) {
			if w.OnChannelInfo != nil {
				a.enqueue(func() { w.OnChannelInfo(info) })
			}
		},
		OnMultiChannelInfo: func(infos []vcas.ChannelInfo) {
			if w.OnMultiChannelInfo != nil {
				a.enqueue(func() { w.OnMultiChannelInfo(infos) })
			}
		},
		OnHistory: func(name string, points []vcas.HistoryPoint) {
			if w.OnHistory != nil {
				a.enqueue(func() { w.OnHistory(name, points) })
			}
		},
	}
}

func (a *Async) enqueue(fn func()) {
	select {
	case a.queue <- fn:
	case <-a.done:
	default:
		if a.onDrop != nil {
			a.onDrop()
		}
	}
}

// Close stops the delivery goroutine after draining queued invocations.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}
