package vcas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyResponse(name, times, values string) *Message {
	return NewMessage().
		Set(KeyName, name).
		Set(KeyMethod, MethodGetHistory).
		Set(KeyDuration, "3").
		Set(KeyTimes, times).
		Set(KeyValues, values)
}

func TestParseHistory(t *testing.T) {
	msg := historyResponse("X",
		"25.08.2026 10_00_00.000000,25.08.2026 10_00_01.000000,25.08.2026 10_00_02.000000",
		"1.0,1.1,1.2")

	points, err := parseHistory(msg)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "25.08.2026 10_00_01.000000", points[1].Timestamp)
	assert.Equal(t, "1.1", points[1].Value)
}

func TestParseHistoryLengthMismatch(t *testing.T) {
	msg := historyResponse("X", "t1,t2,t3", "1.0,1.1")

	_, err := parseHistory(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedHistory)
}

func TestHandleHistoryDeliversAndCaches(t *testing.T) {
	var deliveries int
	var lastName string
	var lastPoints []HistoryPoint
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnHistory: func(name string, points []HistoryPoint) {
			deliveries++
			lastName = name
			lastPoints = points
		},
	})

	client.handleHistory(historyResponse("X", "t1,t2,t3", "1.0,1.1,1.2"))
	require.Equal(t, 1, deliveries)
	assert.Equal(t, "X", lastName)
	assert.Len(t, lastPoints, 3)

	// A repeated request for the same channel and window is served from
	// the cache, without a connection.
	client.RequestHistory("X", 3)
	assert.Equal(t, 2, deliveries)
}

func TestHandleHistoryMalformedReportsError(t *testing.T) {
	var deliveries, errors int
	client := newTestClient(t, "127.0.0.1:1", &Callbacks{
		OnHistory: func(string, []HistoryPoint) { deliveries++ },
		OnError:   func(string) { errors++ },
	})

	client.handleHistory(historyResponse("X", "t1,t2", "1.0"))
	assert.Zero(t, deliveries)
	assert.Equal(t, 1, errors)
}
