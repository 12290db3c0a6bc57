package vcas

import (
	"fmt"
	"strconv"
)

// InputMapper interprets a decoded wire message as a typed value.
type InputMapper func(msg *Message) (any, error)

// OutputMapper renders a typed value as the wire fields of a request.
// The returned message carries only the value fields; name and method
// are filled in by the sender.
type OutputMapper func(value any) (*Message, error)

// MapperPair is the (wire to typed, typed to wire) function pair bound
// to a channel at subscription time.
type MapperPair struct {
	In  InputMapper
	Out OutputMapper
}

// FloatMappers interprets channel values as float64, written back under
// the "val" key the channel server expects.
var FloatMappers = MapperPair{
	In: func(msg *Message) (any, error) {
		v := msg.Value()
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as float: %w", v, err)
		}
		return f, nil
	},
	Out: func(value any) (*Message, error) {
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("float mapper: unsupported value %T", value)
		}
		return NewMessage().Set(KeyVal, strconv.FormatFloat(f, 'g', -1, 64)), nil
	},
}

// StringMappers passes channel values through untouched.
var StringMappers = MapperPair{
	In: func(msg *Message) (any, error) {
		return msg.Value(), nil
	},
	Out: func(value any) (*Message, error) {
		return NewMessage().Set(KeyVal, fmt.Sprintf("%v", value)), nil
	},
}

// BoolMappers interprets the ON/OFF tokens used by register channels.
var BoolMappers = MapperPair{
	In: func(msg *Message) (any, error) {
		return msg.Value() == "ON", nil
	},
	Out: func(value any) (*Message, error) {
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("bool mapper: unsupported value %T", value)
		}
		token := "OFF"
		if b {
			token = "ON"
		}
		return NewMessage().Set(KeyVal, token), nil
	},
}
