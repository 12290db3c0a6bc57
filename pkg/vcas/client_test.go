package vcas

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, addr string, callbacks *Callbacks) *Client {
	t.Helper()
	client, err := NewClient().
		WithAddr(addr).
		WithLogger(zaptest.NewLogger(t)).
		WithCallbacks(callbacks).
		WithRefreshInterval(0). // periodic refresh off, tests drive requests
		Build()
	require.NoError(t, err)
	return client
}

func TestBuilderRequiresAddress(t *testing.T) {
	_, err := NewClient().Build()
	assert.Error(t, err)
}

func TestChannelsDiffer(t *testing.T) {
	tests := []struct {
		name     string
		old, new []string
		differ   bool
	}{
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, false},
		{"permutation", []string{"a", "b", "c"}, []string{"c", "b", "a"}, false},
		{"removed member", []string{"a", "b", "c"}, []string{"a", "b"}, true},
		{"replaced member", []string{"a", "b", "c"}, []string{"a", "b", "d"}, true},
		{"added member", []string{"a", "b"}, []string{"a", "b", "c"}, true},
		{"from empty", nil, []string{"a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.differ, channelsDiffer(tt.old, tt.new))
		})
	}
}

func TestChannelListDedup(t *testing.T) {
	var calls [][]string
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnChannelsChanged: func(channels []string) {
			calls = append(calls, channels)
		},
	})

	// Built from a wire line so the value alias is normalized, exactly
	// as dispatch sees it.
	list := func(names string) *Message {
		msg, err := ChannelDialect{}.Decode("name:ChannelsList|val:" + names)
		require.NoError(t, err)
		return msg
	}

	client.handleChannelsList(list("a,b,c"))
	require.Len(t, calls, 1)

	// A permutation of the same membership must not fire the callback.
	client.handleChannelsList(list("c,b,a"))
	assert.Len(t, calls, 1)

	// A membership change must fire it.
	client.handleChannelsList(list("a,b"))
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"a", "b"}, calls[1])
}

func TestChannelListIgnoresEmptyResponse(t *testing.T) {
	fired := false
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnChannelsChanged: func([]string) { fired = true },
	})

	client.handleChannelsList(NewMessage().Set(KeyName, ChannelsList).Set(KeyValue, ""))
	client.handleChannelsList(NewMessage().Set(KeyName, ChannelsList).Set(KeyValue, "none"))
	assert.False(t, fired)
}

func TestSubscribeIdempotent(t *testing.T) {
	client := newTestClient(t, "127.0.0.1:1", nil)

	first := client.Subscribe("TEST/SimpleChannel", StringMappers)
	second := client.Subscribe("TEST/SimpleChannel", FloatMappers)
	assert.Same(t, first, second)

	state, ok := client.Subscribed("TEST/SimpleChannel")
	require.True(t, ok)
	assert.Same(t, first, state)
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	errors := 0
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnError: func(string) { errors++ },
	})

	// None of these may panic, error, or block while disconnected.
	client.Get("TEST/SimpleChannel")
	client.RefreshChannels()
	client.RequestHistory("TEST/SimpleChannel", 10)
	require.NoError(t, client.Set("TEST/SimpleChannel", "1"))
	assert.Zero(t, errors)
}

func TestDispatchUnknownChannelDroppedSilently(t *testing.T) {
	updates := 0
	errors := 0
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnChannelUpdate: func(ChannelSnapshot) { updates++ },
		OnError:         func(string) { errors++ },
	})

	client.dispatch(NewMessage().
		Set(KeyName, "SOME/Other/Channel").
		Set(KeyValue, "1.5"))
	assert.Zero(t, updates)
	assert.Zero(t, errors)
}

func TestDispatchSubscribedChannelUpdate(t *testing.T) {
	var got ChannelSnapshot
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnChannelUpdate: func(snap ChannelSnapshot) { got = snap },
	})
	client.Subscribe("TEST/SimpleChannel", FloatMappers)

	client.dispatch(NewMessage().
		Set(KeyName, "TEST/SimpleChannel").
		Set(KeyTime, "25.08.2026 10_00_00.000000").
		Set(KeyValue, "3.5"))

	assert.Equal(t, "TEST/SimpleChannel", got.Name)
	assert.Equal(t, 3.5, got.Value)
	assert.True(t, got.HasServer)
}

func TestDispatchErrorSentinel(t *testing.T) {
	var message string
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnError: func(m string) { message = m },
	})

	client.dispatch(NewMessage().
		Set(KeyValue, ErrSentinel).
		Set(KeyDescr, "no such channel"))
	assert.Contains(t, message, "no such channel")
}

func TestChannelInfoCaching(t *testing.T) {
	var infos []ChannelInfo
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnChannelInfo: func(info ChannelInfo) { infos = append(infos, info) },
	})

	client.dispatch(NewMessage().
		Set(KeyName, "TEST/SimpleChannel").
		Set(KeyType, "rw").
		Set(KeyUnits, "V").
		Set(KeyValue, "1.0"))
	require.Len(t, infos, 1)
	assert.Equal(t, "V", infos[0].Units)
	assert.Equal(t, "1.0", infos[0].Val)

	// Cached descriptors are delivered without a wire request even while
	// disconnected.
	client.RequestChannelInfo("TEST/SimpleChannel")
	require.Len(t, infos, 2)
	assert.Equal(t, infos[0], infos[1])

	client.ClearCache()
	client.RequestChannelInfo("TEST/SimpleChannel")
	assert.Len(t, infos, 2)
}

func TestMultiChannelInfoAggregation(t *testing.T) {
	var batches [][]ChannelInfo
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnMultiChannelInfo: func(infos []ChannelInfo) { batches = append(batches, infos) },
	})

	client.RequestMultiChannelInfo([]string{"A", "B"})
	require.Empty(t, batches)

	// Descriptors arrive out of request order; delivery is in request
	// order once all are present.
	client.dispatch(NewMessage().Set(KeyName, "B").Set(KeyType, "ro").Set(KeyUnits, "Hz"))
	require.Empty(t, batches)
	client.dispatch(NewMessage().Set(KeyName, "A").Set(KeyType, "rw").Set(KeyUnits, "V"))

	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "A", batches[0][0].Name)
	assert.Equal(t, "B", batches[0][1].Name)
}

// collectLines accepts one connection and streams its decoded lines.
func collectLines(t *testing.T, ln net.Listener, lines chan<- string) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	t.Cleanup(func() { conn.Close() })

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func TestSubscriptionReplayOnConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 16)
	go collectLines(t, ln, lines)

	connected := make(chan struct{}, 1)
	client := newTestClient(t, ln.Addr().String(), &Callbacks{
		OnConnected: func() {
			select {
			case connected <- struct{}{}:
			default:
			}
		},
	})

	// Subscribed while disconnected: sends are deferred to connect.
	client.Subscribe("X", StringMappers)
	client.Subscribe("Y", StringMappers)

	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}

	var received []string
	deadline := time.After(5 * time.Second)
	for len(received) < 3 {
		select {
		case line := <-lines:
			received = append(received, line)
		case <-deadline:
			t.Fatalf("timed out, received so far: %v", received)
		}
	}

	// Exactly one subscribe per channel, in registry order, then the
	// initial channel-list request.
	assert.Equal(t, "name:X|method:subscribe", received[0])
	assert.Equal(t, "name:Y|method:subscribe", received[1])
	assert.Equal(t, "name:ChannelsList|method:get", received[2])

	// A spurious second connect without an intervening disconnect must
	// not replay anything.
	assert.ErrorIs(t, client.Connect(), ErrAlreadyStarted)
	select {
	case line := <-lines:
		if strings.Contains(line, MethodSubscribe) {
			t.Fatalf("duplicate subscribe sent: %q", line)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeWhileConnectedSendsImmediately(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 16)
	go collectLines(t, ln, lines)

	connected := make(chan struct{}, 1)
	client := newTestClient(t, ln.Addr().String(), &Callbacks{
		OnConnected: func() {
			select {
			case connected <- struct{}{}:
			default:
			}
		},
	})
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}

	client.Subscribe("Z", StringMappers)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case line := <-lines:
			if line == "name:Z|method:subscribe" {
				return
			}
		case <-deadline:
			t.Fatal("subscribe for Z never sent")
		}
	}
}

func TestConnectFailureSchedulesReconnect(t *testing.T) {
	// A listener that is immediately closed yields a connection-refused
	// address nothing else will bind meanwhile.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	var mu sync.Mutex
	var errors []string
	client := newTestClient(t, addr, &Callbacks{
		OnError: func(m string) {
			mu.Lock()
			errors = append(errors, m)
			mu.Unlock()
		},
	})
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errors) > 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, StateDisconnected, client.State())
	mu.Lock()
	assert.Contains(t, errors[0], "connect")
	mu.Unlock()
}
