package mockserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollectorAgainstMockServer(t *testing.T) {
	server := startServer(t, smallCatalog())

	collector := NewCollector(server.Addr().String(), zaptest.NewLogger(t))
	snap, err := collector.Collect(5 * time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.ChannelCount())
	assert.Equal(t, server.Addr().String(), snap.Metadata.Server)

	ch, ok := snap.ChannelDetails["TEST/SimpleChannel"]
	require.True(t, ok)
	assert.Equal(t, "rw", ch.Type)
	assert.Equal(t, "V", ch.Units)
	assert.NotEmpty(t, ch.Value)

	assert.Equal(t, []string{"TEST/SimpleChannel", "TEST/TextChannel"}, snap.Directories["TEST"])
}

func TestCollectorConnectFailure(t *testing.T) {
	collector := NewCollector("127.0.0.1:1", zaptest.NewLogger(t))
	_, err := collector.Collect(200 * time.Millisecond)
	assert.Error(t, err)
}
