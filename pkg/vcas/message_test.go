package vcas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFieldOrderPreserved(t *testing.T) {
	msg := NewMessage().
		Set(KeyName, "BEP/Currents/ePMT").
		Set(KeyMethod, MethodGet).
		Set(KeyVal, "42")

	assert.Equal(t, []string{"name", "method", "val"}, msg.Keys())

	// Re-setting an existing key keeps its original position.
	msg.Set(KeyName, "other")
	assert.Equal(t, []string{"name", "method", "val"}, msg.Keys())
	assert.Equal(t, "other", msg.Name())
}

func TestValueAliasNormalization(t *testing.T) {
	// val, value and v must all decode to the same canonical mapping.
	for _, line := range []string{"val:5", "value:5", "v:5"} {
		msg, err := ChannelDialect{}.Decode(line)
		require.NoError(t, err)
		assert.Equal(t, "5", msg.Value(), "line %q", line)
		assert.Equal(t, []string{KeyValue}, msg.Keys(), "line %q", line)
	}
}

func TestValueAliasFirstOccurrenceWins(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"val:first|value:second|v:third", "first"},
		// The literal "value" key arriving after a winning alias must
		// not erase the canonical entry.
		{"val:first|value:second", "first"},
		{"v:first|value:second", "first"},
		{"value:first|val:second", "first"},
		{"value:first|v:second|val:third", "first"},
	}

	for _, tt := range tests {
		msg, err := ChannelDialect{}.Decode(tt.line)
		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.want, msg.Value(), "line %q", tt.line)
		assert.Equal(t, []string{KeyValue}, msg.Keys(), "line %q", tt.line)
	}
}

func TestTimeFormatRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 25, 14, 30, 45, 123456000, time.UTC)

	formatted := FormatTime(ts)
	assert.Equal(t, "25.08.2026 14_30_45.123456", formatted)

	parsed, err := ParseTime(formatted)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	_, err := ParseTime("2026-08-25T14:30:45Z")
	assert.Error(t, err)
}

func TestMessageTime(t *testing.T) {
	msg := NewMessage().Set(KeyTime, "25.08.2026 14_30_45.000001")
	ts, ok := msg.Time()
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())

	_, ok = NewMessage().Time()
	assert.False(t, ok)

	msg = NewMessage().Set(KeyTime, "not a timestamp")
	_, ok = msg.Time()
	assert.False(t, ok)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
	}{
		{"BEP/Currents/ePMT", []string{"BEP", "Currents", "ePMT"}},
		{"BEP.Currents.ePMT", []string{"BEP", "Currents", "ePMT"}},
		// Slash wins when both separators appear; thermo sensors carry a
		// dot inside the leaf segment.
		{"BEP/Thermo/B1.1", []string{"BEP", "Thermo", "B1.1"}},
		{"Energy", []string{"Energy"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SplitPath(tt.name), "name %q", tt.name)
	}
}
