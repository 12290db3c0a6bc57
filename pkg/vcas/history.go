package vcas

import (
	"fmt"
	"strconv"
	"strings"
)

// RequestHistory issues a bounded-duration history query for a channel.
// The reassembled response arrives through the OnHistory callback. A
// cached response for the same channel and duration is delivered
// immediately without a wire request.
//
// The channel is also subscribed so that new points keep arriving as
// live updates after the historical window; callers merge the two by
// timestamp. Channels not yet registered get the string mapper.
func (c *Client) RequestHistory(name string, durationSeconds int) {
	if name == "" || durationSeconds <= 0 {
		return
	}

	key := historyCacheKey(name, durationSeconds)
	c.mu.Lock()
	cached, ok := c.historyCache[key]
	c.mu.Unlock()
	if ok {
		c.callbacks.history(name, cached)
		return
	}

	c.send(NewMessage().
		Set(KeyName, name).
		Set(KeyMethod, MethodGetHistory).
		Set(KeyDuration, strconv.Itoa(durationSeconds)))
	c.Subscribe(name, StringMappers)
}

// handleHistory reassembles a gethistory response into parallel
// timestamp/value sequences. A length mismatch is a malformed response:
// reported through the error callback, never fatal.
func (c *Client) handleHistory(msg *Message) {
	name := msg.Name()
	if name == "" {
		return
	}

	points, err := parseHistory(msg)
	if err != nil {
		c.reportError(fmt.Sprintf("history for %s: %v", name, err))
		return
	}

	duration := msg.GetOr(KeyDuration, "300")
	c.mu.Lock()
	c.historyCache[name+"_"+duration] = points
	c.mu.Unlock()

	c.callbacks.history(name, points)
}

func parseHistory(msg *Message) ([]HistoryPoint, error) {
	rawTimes := msg.GetOr(KeyTimes, "")
	rawValues := msg.GetOr(KeyValues, "")
	if rawTimes == "" && rawValues == "" {
		return nil, nil
	}

	times := strings.Split(rawTimes, ",")
	values := strings.Split(rawValues, ",")
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps vs %d values",
			ErrMalformedHistory, len(times), len(values))
	}

	points := make([]HistoryPoint, len(times))
	for i := range times {
		points[i] = HistoryPoint{
			Timestamp: strings.TrimSpace(times[i]),
			Value:     strings.TrimSpace(values[i]),
		}
	}
	return points, nil
}

func historyCacheKey(name string, durationSeconds int) string {
	return name + "_" + strconv.Itoa(durationSeconds)
}
