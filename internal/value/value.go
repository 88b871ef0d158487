// internal/value/value.go
package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Kind is the closed set of value kinds carried between elements,
// converters and channels.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "int16", "short":
		return KindInt16, nil
	case "int32", "integer":
		return KindInt32, nil
	case "int64", "long":
		return KindInt64, nil
	case "float32", "float":
		return KindFloat32, nil
	case "float64", "double":
		return KindFloat64, nil
	case "string":
		return KindString, nil
	case "bytes":
		return KindBytes, nil
	}
	return KindNull, fmt.Errorf("value: unknown kind %q", s)
}

// Integral reports whether k is one of the signed integer kinds.
func (k Kind) Integral() bool {
	return k == KindInt16 || k == KindInt32 || k == KindInt64
}

// Floating reports whether k is a floating point kind.
func (k Kind) Floating() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Numeric reports whether k carries a number.
func (k Kind) Numeric() bool {
	return k.Integral() || k.Floating()
}

// Value is an immutable tagged value.
// The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

func Null() Value             { return Value{} }
func Bool(v bool) Value       { return Value{kind: KindBool, i: b2i(v)} }
func Int16(v int16) Value     { return Value{kind: KindInt16, i: int64(v)} }
func Int32(v int32) Value     { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value     { return Value{kind: KindInt64, i: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }
func String(v string) Value   { return Value{kind: KindString, s: v} }

// Bytes copies b.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, b: append([]byte(nil), b...)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	return v.i != 0, v.kind == KindBool
}

// Int returns the integer payload of an integral kind.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind.Integral()
}

// Float returns the payload of a floating kind.
func (v Value) Float() (float64, bool) {
	return v.f, v.kind.Floating()
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Raw returns a copy of a Bytes payload.
func (v Value) Raw() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), v.b...), true
}

// AsFloat64 returns any numeric or bool payload as float64.
func (v Value) AsFloat64() (float64, bool) {
	switch {
	case v.kind == KindBool, v.kind.Integral():
		return float64(v.i), true
	case v.kind.Floating():
		return v.f, true
	}
	return 0, false
}

// Equal compares kind and payload. Float payloads compare bitwise-equal
// except that NaN never equals NaN.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch {
	case v.kind == KindNull:
		return true
	case v.kind == KindBool, v.kind.Integral():
		return v.i == o.i
	case v.kind.Floating():
		return v.f == o.f
	case v.kind == KindString:
		return v.s == o.s
	case v.kind == KindBytes:
		return bytes.Equal(v.b, o.b)
	}
	return false
}

// Interface returns the payload as a plain Go value (nil for Null).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.i != 0
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return append([]byte(nil), v.b...)
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("% x", v.b)
	}
	return "?"
}

// FromInterface wraps a plain Go value. It is used by transports that
// decode loosely typed payloads (JSON numbers arrive as float64).
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int8:
		return Int16(int16(t)), nil
	case uint8:
		return Int16(int16(t)), nil
	case int16:
		return Int16(t), nil
	case uint16:
		return Int32(int32(t)), nil
	case int32:
		return Int32(t), nil
	case uint32:
		return Int64(int64(t)), nil
	case int:
		return Int64(int64(t)), nil
	case int64:
		return Int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float64(float64(t)), nil
		}
		return Int64(int64(t)), nil
	case float32:
		return Float32(t), nil
	case float64:
		return Float64(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	}
	return Null(), fmt.Errorf("value: unsupported go type %T", x)
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
