// internal/bridge/codec.go
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tamzrod/regmap/internal/value"
)

var ErrBadPayload = errors.New("bridge: bad payload")

// Message is the state payload published for every channel update.
type Message struct {
	Value any    `json:"value" cbor:"value"`
	Kind  string `json:"kind" cbor:"kind"`
	Unit  string `json:"unit,omitempty" cbor:"unit,omitempty"`
	TS    int64  `json:"ts" cbor:"ts"` // unix milliseconds
}

// Codec turns channel values into payloads and set requests back into
// values.
type Codec interface {
	Name() string
	Encode(v value.Value, unit string, at time.Time) ([]byte, error)
	Decode(payload []byte) (value.Value, error)
}

// NewCodec returns the codec for a config name ("json" or "cbor").
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		return cborCodec{}, nil
	}
	return nil, fmt.Errorf("bridge: unknown payload format %q", name)
}

func message(v value.Value, unit string, at time.Time) Message {
	return Message{
		Value: v.Interface(),
		Kind:  v.Kind().String(),
		Unit:  unit,
		TS:    at.UnixMilli(),
	}
}

// ---- json ----

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v value.Value, unit string, at time.Time) ([]byte, error) {
	return json.Marshal(message(v, unit, at))
}

// Decode accepts {"value": x} or a bare JSON scalar. Anything that is
// not JSON is taken as a string.
func (jsonCodec) Decode(payload []byte) (value.Value, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return value.Null(), fmt.Errorf("%w: empty", ErrBadPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var x any
	if err := dec.Decode(&x); err != nil {
		return value.String(strings.TrimSpace(string(payload))), nil
	}
	if m, ok := x.(map[string]any); ok {
		inner, ok := m["value"]
		if !ok {
			return value.Null(), fmt.Errorf("%w: object without value", ErrBadPayload)
		}
		x = inner
	}
	if n, ok := x.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return value.Int64(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return value.Null(), fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return value.Float64(f), nil
	}
	return scalar(x)
}

// ---- cbor ----

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Encode(v value.Value, unit string, at time.Time) ([]byte, error) {
	return cbor.Marshal(message(v, unit, at))
}

// Decode accepts a map with a "value" key or a bare CBOR item.
func (cborCodec) Decode(payload []byte) (value.Value, error) {
	var x any
	if err := cbor.Unmarshal(payload, &x); err != nil {
		return value.Null(), fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	switch m := x.(type) {
	case map[any]any:
		inner, ok := m["value"]
		if !ok {
			return value.Null(), fmt.Errorf("%w: map without value", ErrBadPayload)
		}
		x = inner
	case map[string]any:
		inner, ok := m["value"]
		if !ok {
			return value.Null(), fmt.Errorf("%w: map without value", ErrBadPayload)
		}
		x = inner
	}
	return scalar(x)
}

func scalar(x any) (value.Value, error) {
	switch x.(type) {
	case map[string]any, map[any]any, []any:
		return value.Null(), fmt.Errorf("%w: %T is not a scalar", ErrBadPayload, x)
	}
	v, err := value.FromInterface(x)
	if err != nil {
		return value.Null(), fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return v, nil
}
