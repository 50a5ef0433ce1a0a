// Package value implements the typed variable abstraction spec §3/§9 calls
// for: a tagged union keyed by ValueType, represented as a single small
// struct rather than heap-allocated boxes per value — grounded on the
// IsX()/FromX() tagged-value idiom used throughout the teacher's
// NaN-boxed Value type, simplified here to an explicit (tag, payload) pair
// since there is no need to pack the tag into the payload's bits.
package value

import "math"

// Type is the ValueType tag from spec §3.
type Type byte

const (
	Invalid           Type = 0
	Int32             Type = 1
	Int64             Type = 2
	NativeInt         Type = 4
	NativeUnsignedInt Type = 8
	Float             Type = 16
	O                 Type = 32
	Pointer           Type = 64
)

// Size returns the fixed byte size of a tag's payload per spec §3: Int32 is
// 4 bytes, everything else that holds a value is 8.
func (t Type) Size() int {
	switch t {
	case Int32:
		return 4
	case Int64, NativeInt, NativeUnsignedInt, Float, O, Pointer:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case NativeInt:
		return "NativeInt"
	case NativeUnsignedInt:
		return "NativeUnsignedInt"
	case Float:
		return "F"
	case O:
		return "O"
	case Pointer:
		return "Pointer"
	default:
		return "Invalid"
	}
}

// Variable is the (tag, payload) pair spec §3 names "typed variable".
// Payload always holds the value zero-extended into 64 bits; Size()
// determines how many of those bytes are meaningful on the wire.
type Variable struct {
	Type    Type
	Payload uint64
}

func FromInt32(v int32) Variable             { return Variable{Type: Int32, Payload: uint64(uint32(v))} }
func FromInt64(v int64) Variable             { return Variable{Type: Int64, Payload: uint64(v)} }
func FromNativeInt(v int64) Variable         { return Variable{Type: NativeInt, Payload: uint64(v)} }
func FromNativeUint(v uint64) Variable       { return Variable{Type: NativeUnsignedInt, Payload: v} }
func FromFloat64(v float64) Variable         { return Variable{Type: Float, Payload: math.Float64bits(v)} }
func FromObjectHandle(handle uint64) Variable { return Variable{Type: O, Payload: handle} }
func FromPointer(addr uint64) Variable       { return Variable{Type: Pointer, Payload: addr} }

func (v Variable) IsInt32() bool   { return v.Type == Int32 }
func (v Variable) IsInt64() bool   { return v.Type == Int64 }
func (v Variable) IsFloat() bool   { return v.Type == Float }
func (v Variable) IsObject() bool  { return v.Type == O }
func (v Variable) IsPointer() bool { return v.Type == Pointer }
func (v Variable) IsInvalid() bool { return v.Type == Invalid }

func (v Variable) Int32() int32       { return int32(uint32(v.Payload)) }
func (v Variable) Int64() int64       { return int64(v.Payload) }
func (v Variable) NativeInt() int64   { return int64(v.Payload) }
func (v Variable) NativeUint() uint64 { return v.Payload }
func (v Variable) Float64() float64   { return math.Float64frombits(v.Payload) }
func (v Variable) ObjectHandle() uint64 { return v.Payload }
func (v Variable) PointerAddr() uint64  { return v.Payload }
