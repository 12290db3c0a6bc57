package vcas

import (
	"fmt"
	"strings"
)

// ServerType selects the wire dialect a client speaks.
type ServerType int

const (
	// ServerTypeChannel is the primary key:value|key:value dialect used
	// by the channel server.
	ServerTypeChannel ServerType = iota
	// ServerTypePulse is the space-delimited "Pulse <name> <METHOD>"
	// dialect used by the register server.
	ServerTypePulse
)

func (t ServerType) String() string {
	switch t {
	case ServerTypeChannel:
		return "channel"
	case ServerTypePulse:
		return "pulse"
	default:
		return fmt.Sprintf("ServerType(%d)", int(t))
	}
}

// Dialect encodes requests to and decodes lines from one server flavor.
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Encode renders a request message as one wire line, including the
	// trailing newline.
	Encode(msg *Message) []byte

	// Decode parses one wire line (without the newline) into a Message.
	// A line with no usable tokens yields an empty message and no error;
	// the dispatcher drops empty messages. A non-nil error marks a
	// recoverable per-request failure, never a connection fault.
	Decode(line string) (*Message, error)
}

// DialectFor returns the Dialect for a server type.
func DialectFor(t ServerType) Dialect {
	if t == ServerTypePulse {
		return PulseDialect{}
	}
	return ChannelDialect{}
}

// ChannelDialect implements the primary dialect: fields joined as
// "key:value" tokens with "|", newline terminated.
type ChannelDialect struct{}

func (ChannelDialect) Encode(msg *Message) []byte {
	var b strings.Builder
	for i, k := range msg.keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(msg.fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func (ChannelDialect) Decode(line string) (*Message, error) {
	msg := NewMessage()
	for _, token := range strings.Split(line, "|") {
		k, v, ok := strings.Cut(token, ":")
		if !ok {
			// Tokens without a colon are skipped silently.
			continue
		}
		msg.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	msg.normalizeValueAlias()
	return msg, nil
}

// pulseErrors are the fixed literal strings the register server answers
// with for a bad name or a malformed request. They signal a recoverable
// failure and must never be delivered as channel data.
var pulseErrors = [...]string{
	"Element, Register or KVCH not found",
	"ERROR: Wrong Server Header",
}

// PulseDialect implements the secondary dialect of the register server.
// Requests look like "Pulse <name> <METHOD>"; responses carry the value
// in field 1 of the pipe-split line and the name inside field 0.
type PulseDialect struct{}

func (PulseDialect) Encode(msg *Message) []byte {
	return []byte("Pulse " + msg.Name() + " " + msg.GetOr(KeyMethod, "") + "\n")
}

func (PulseDialect) Decode(line string) (*Message, error) {
	tokens := strings.Split(line, "|")
	if len(tokens) < 2 {
		return NewMessage(), nil
	}

	value := tokens[1]
	for _, e := range pulseErrors {
		if value == e {
			return nil, fmt.Errorf("%w: %s", ErrServerError, value)
		}
	}

	head := strings.Split(tokens[0], " ")
	if len(head) < 2 {
		return NewMessage(), nil
	}

	msg := NewMessage()
	msg.Set(KeyName, head[1])
	msg.Set(KeyValue, value)
	return msg, nil
}
