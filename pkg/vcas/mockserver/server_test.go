package mockserver

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/binp-acc/vcasview/pkg/vcas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, catalog *Catalog) *Server {
	t.Helper()
	server, err := NewServer().
		WithAddr("127.0.0.1:0").
		WithCatalog(catalog).
		WithLogger(zaptest.NewLogger(t)).
		Build()
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
	})
	return server
}

func smallCatalog() *Catalog {
	return NewCatalog(map[string]*Descriptor{
		"TEST/SimpleChannel": {Type: "rw", Units: "V", Descr: "Simple test channel", Val: "1.5"},
		"TEST/TextChannel":   {Type: "rw", Units: "Text", Val: "SUSPEND"},
	})
}

// rawClient drives the wire protocol directly, one line at a time.
type rawClient struct {
	t       *testing.T
	conn    net.Conn
	scanner *bufio.Scanner
}

func dialRaw(t *testing.T, server *Server) *rawClient {
	t.Helper()
	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawClient{t: t, conn: conn, scanner: bufio.NewScanner(conn)}
}

func (c *rawClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *rawClient) recv() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.True(c.t, c.scanner.Scan(), "no reply: %v", c.scanner.Err())
	return c.scanner.Text()
}

func (c *rawClient) recvFields(t *testing.T) map[string]string {
	t.Helper()
	msg, err := vcas.ChannelDialect{}.Decode(c.recv())
	require.NoError(t, err)
	fields := make(map[string]string)
	for _, k := range msg.Keys() {
		v, _ := msg.Get(k)
		fields[k] = v
	}
	return fields
}

func TestServerChannelsListAndGetFull(t *testing.T) {
	server := startServer(t, fallbackCatalog("127.0.0.1", "20041"))
	client := dialRaw(t, server)

	client.send("method:get|name:ChannelsList")
	fields := client.recvFields(t)
	require.Equal(t, "ChannelsList", fields["name"])
	assert.Contains(t, strings.Split(fields["value"], ","), "TEST/SimpleChannel")

	client.send("method:getfull|name:TEST/SimpleChannel")
	fields = client.recvFields(t)
	assert.Equal(t, "TEST/SimpleChannel", fields["name"])
	assert.Equal(t, "rw", fields["type"])
	assert.Equal(t, "V", fields["units"])
	assert.NotEmpty(t, fields["value"])
}

func TestServerGet(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:get|name:TEST/SimpleChannel")
	fields := client.recvFields(t)
	assert.Equal(t, "TEST/SimpleChannel", fields["name"])
	assert.NotEmpty(t, fields["value"])

	_, err := vcas.ParseTime(fields["time"])
	assert.NoError(t, err)
}

func TestServerHistoryShape(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:gethistory|name:TEST/SimpleChannel|duration:10")
	fields := client.recvFields(t)
	require.Equal(t, "gethistory", fields["method"])
	require.Equal(t, "10", fields["duration"])

	timestamps := strings.Split(fields["timestamps"], ",")
	values := strings.Split(fields["values"], ",")
	require.Len(t, timestamps, 10)
	require.Len(t, values, 10)

	prev, err := vcas.ParseTime(timestamps[0])
	require.NoError(t, err)
	for _, raw := range timestamps[1:] {
		ts, err := vcas.ParseTime(raw)
		require.NoError(t, err)
		assert.False(t, ts.Before(prev), "timestamps must be non-decreasing")
		prev = ts
	}
}

func TestServerHistoryNonNumericRepeats(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:gethistory|name:TEST/TextChannel|duration:5")
	fields := client.recvFields(t)
	for _, v := range strings.Split(fields["values"], ",") {
		assert.Equal(t, "SUSPEND", v)
	}
}

func TestServerSubscribePushesImmediately(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:subscribe|name:TEST/SimpleChannel")
	fields := client.recvFields(t)
	assert.Equal(t, "TEST/SimpleChannel", fields["name"])
	assert.NotEmpty(t, fields["value"])

	// The channel's own update loop keeps pushing afterwards.
	fields = client.recvFields(t)
	assert.Equal(t, "TEST/SimpleChannel", fields["name"])
}

func TestServerSetOverwritesValue(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:set|name:TEST/SimpleChannel|val:7.77")
	client.send("method:get|name:TEST/SimpleChannel")
	fields := client.recvFields(t)
	assert.Equal(t, "7.77", fields["value"])
}

func TestServerSetWithoutValueRegenerates(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:set|name:TEST/SimpleChannel")
	client.send("method:get|name:TEST/SimpleChannel")
	fields := client.recvFields(t)
	assert.NotEmpty(t, fields["value"])
}

func TestServerUnknownCommandsError(t *testing.T) {
	server := startServer(t, smallCatalog())
	client := dialRaw(t, server)

	client.send("method:get|name:NO/Such/Channel")
	fields := client.recvFields(t)
	assert.Equal(t, vcas.ErrSentinel, fields["value"])
	assert.NotEmpty(t, fields["descr"])

	client.send("method:frobnicate|name:TEST/SimpleChannel")
	fields = client.recvFields(t)
	assert.Equal(t, vcas.ErrSentinel, fields["value"])
}

func TestServerMultipleSubscribersFanOut(t *testing.T) {
	server := startServer(t, smallCatalog())
	first := dialRaw(t, server)
	second := dialRaw(t, server)

	first.send("method:subscribe|name:TEST/SimpleChannel")
	second.send("method:subscribe|name:TEST/SimpleChannel")
	first.recvFields(t)
	second.recvFields(t)

	// A set through one connection reaches both subscribers.
	first.send("method:set|name:TEST/SimpleChannel|val:3.33")

	waitForValue := func(c *rawClient) {
		for {
			fields := c.recvFields(t)
			if fields["value"] == "3.33" {
				return
			}
		}
	}
	waitForValue(first)
	waitForValue(second)
}

func TestClientAgainstMockServer(t *testing.T) {
	server := startServer(t, smallCatalog())

	listChanged := make(chan []string, 1)
	updates := make(chan vcas.ChannelSnapshot, 16)
	callbacks := &vcas.Callbacks{
		OnChannelsChanged: func(channels []string) {
			select {
			case listChanged <- channels:
			default:
			}
		},
		OnChannelUpdate: func(snap vcas.ChannelSnapshot) {
			select {
			case updates <- snap:
			default:
			}
		},
	}

	client, err := vcas.NewClient().
		WithAddr(server.Addr().String()).
		WithLogger(zaptest.NewLogger(t)).
		WithCallbacks(callbacks).
		WithRefreshInterval(0).
		Build()
	require.NoError(t, err)

	client.Subscribe("TEST/SimpleChannel", vcas.FloatMappers)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	select {
	case channels := <-listChanged:
		assert.Contains(t, channels, "TEST/SimpleChannel")
		assert.Contains(t, channels, "TEST/TextChannel")
	case <-time.After(5 * time.Second):
		t.Fatal("channel list never arrived")
	}

	select {
	case snap := <-updates:
		assert.Equal(t, "TEST/SimpleChannel", snap.Name)
		assert.IsType(t, float64(0), snap.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no update for subscribed channel")
	}
}
