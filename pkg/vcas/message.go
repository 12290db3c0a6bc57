// Package vcas implements a client for the VCAS accelerator channel
// protocol: newline-terminated, pipe-delimited key:value lines exchanged
// over a raw TCP socket.
package vcas

import (
	"strings"
	"time"
)

// Well-known field keys of the channel protocol.
const (
	KeyName      = "name"
	KeyMethod    = "method"
	KeyValue     = "value"
	KeyTime      = "time"
	KeyDuration  = "duration"
	KeyVal       = "val"
	KeyDescr     = "descr"
	KeyType      = "type"
	KeyUnits     = "units"
	KeyHost      = "host"
	KeyPort      = "port"
	KeyTimes     = "timestamps"
	KeyValues    = "values"
	ErrSentinel  = "error"
	ChannelsList = "ChannelsList"
)

// Methods understood by a channel server.
const (
	MethodGet        = "get"
	MethodGetFull    = "getfull"
	MethodSet        = "set"
	MethodGetHistory = "gethistory"
	MethodSubscribe  = "subscribe"
)

// TimeLayout is the exact timestamp format the reference server produces
// and expects: day.month.year, then hour_minute_second.microseconds.
const TimeLayout = "02.01.2006 15_04_05.000000"

// valueAliases are the keys a server may use for the bare value field.
// Decoding normalizes all of them to KeyValue, first occurrence wins.
var valueAliases = [...]string{"val", "value", "v"}

// Message is one protocol message: an ordered mapping of string keys to
// string values. Field order is preserved so encoded requests keep the
// name/method ordering the reference server logs expect. A Message is
// built fresh per decoded line and not mutated after dispatch.
type Message struct {
	keys   []string
	fields map[string]string
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{fields: make(map[string]string)}
}

// Set adds or replaces a field, preserving first-set ordering.
func (m *Message) Set(key, value string) *Message {
	if _, ok := m.fields[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.fields[key] = value
	return m
}

// Get returns the value for key and whether it is present.
func (m *Message) Get(key string) (string, bool) {
	v, ok := m.fields[key]
	return v, ok
}

// GetOr returns the value for key, or def when absent.
func (m *Message) GetOr(key, def string) string {
	if v, ok := m.fields[key]; ok {
		return v
	}
	return def
}

// Name returns the channel name field, or "".
func (m *Message) Name() string {
	return m.fields[KeyName]
}

// Value returns the normalized value field, or "".
func (m *Message) Value() string {
	return m.fields[KeyValue]
}

// Len returns the number of fields.
func (m *Message) Len() int {
	return len(m.keys)
}

// Keys returns the field keys in insertion order.
func (m *Message) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Time parses the server-reported timestamp field, when present.
func (m *Message) Time() (time.Time, bool) {
	raw, ok := m.fields[KeyTime]
	if !ok {
		return time.Time{}, false
	}
	t, err := ParseTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// normalizeValueAlias folds the val/value/v aliases into KeyValue. The
// first alias present in wire order supplies the value; later aliases
// are discarded.
func (m *Message) normalizeValueAlias() {
	normalized := false
	keys := m.keys
	m.keys = m.keys[:0]
	for _, k := range keys {
		if isValueAlias(k) {
			if !normalized {
				v := m.fields[k]
				if k != KeyValue {
					delete(m.fields, k)
				}
				m.fields[KeyValue] = v
				m.keys = append(m.keys, KeyValue)
				normalized = true
			} else if k != KeyValue {
				// A later literal "value" key must not clobber the
				// canonical entry the winning alias established.
				delete(m.fields, k)
			}
			continue
		}
		m.keys = append(m.keys, k)
	}
}

func isValueAlias(key string) bool {
	for _, a := range valueAliases {
		if key == a {
			return true
		}
	}
	return false
}

// FormatTime renders t in the wire timestamp format.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, strings.TrimSpace(s))
}

// SplitPath splits a hierarchical channel name into its segments. The
// canonical separator is "/"; some legacy names use "." instead. A name
// containing neither is a single top-level leaf.
func SplitPath(name string) []string {
	switch {
	case strings.Contains(name, "/"):
		return strings.Split(name, "/")
	case strings.Contains(name, "."):
		return strings.Split(name, ".")
	default:
		return []string{name}
	}
}
