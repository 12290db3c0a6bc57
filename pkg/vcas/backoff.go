package vcas

import (
	"sync"
	"time"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 300 * time.Second
)

// backoff tracks the reconnect delay: starts at one second, doubles on
// every failure, caps at five minutes, resets on the first successful
// connect. Safe for use from the dial and timer goroutines.
type backoff struct {
	mu    sync.Mutex
	delay time.Duration
}

func newBackoff() *backoff {
	return &backoff{delay: initialReconnectDelay}
}

// Next returns the delay to wait before the upcoming attempt and doubles
// the delay stored for the one after it.
func (b *backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.delay
	b.delay *= 2
	if b.delay > maxReconnectDelay {
		b.delay = maxReconnectDelay
	}
	return d
}

// Reset restores the initial delay after a successful connect.
func (b *backoff) Reset() {
	b.mu.Lock()
	b.delay = initialReconnectDelay
	b.mu.Unlock()
}

// Current reports the delay the next failure would use, for logging.
func (b *backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}
