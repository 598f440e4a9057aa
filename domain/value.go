// Package domain holds the data model shared by every layer of the
// kernel: primitive Value Types, Function Signatures, and the small
// interfaces lower-level packages implement so higher-level packages
// (namespace, event, kernel) can depend on behavior without importing
// concrete types and creating import cycles.
package domain

import "unsafe"

// ValueKind is the closed enumeration of primitive kinds that may cross
// the call boundary (§3 Value Type). Aggregate values never cross
// directly; they are passed as opaque Pointer values.
type ValueKind int

const (
	KindI32 ValueKind = iota
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindBool
	KindPointer
	KindString
	KindVoid
	// KindError is never a valid argument kind. It only ever appears as
	// a Signature's return kind (malformed parse) or a Value's kind
	// (failed call), per §4.1 and §7.
	KindError
)

// tokens maps each ValueKind to its lowercase textual spelling (§4.1).
// KindError renders as "error" but is a marker, not a parseable type:
// ValueKindFromToken rejects it.
var tokens = [...]string{
	KindI32:     "i32",
	KindU32:     "u32",
	KindI64:     "i64",
	KindU64:     "u64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindBool:    "bool",
	KindPointer: "pointer",
	KindString:  "string",
	KindVoid:    "void",
	KindError:   "error",
}

// String renders the lowercase token spelling for k, or "error" if k is
// out of the known range (never produced by Parse, but keeps String
// total).
func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(tokens) {
		return "error"
	}
	return tokens[k]
}

// ValueKindFromToken looks up the ValueKind for a lowercase type token.
// Unknown tokens (including "error", which is not parseable) report ok=false.
func ValueKindFromToken(tok string) (ValueKind, bool) {
	switch tok {
	case "i32":
		return KindI32, true
	case "u32":
		return KindU32, true
	case "i64":
		return KindI64, true
	case "u64":
		return KindU64, true
	case "f32":
		return KindF32, true
	case "f64":
		return KindF64, true
	case "bool":
		return KindBool, true
	case "pointer":
		return KindPointer, true
	case "string":
		return KindString, true
	case "void":
		return KindVoid, true
	default:
		return KindError, false
	}
}

// Value is a typed, boundary-crossing value (§3). Exactly one payload
// field is meaningful for a given Kind; the rest are zero. Integer kinds
// of every width share the I64 field (sign-extended for signed kinds,
// stored verbatim for unsigned), and both float widths share F64, since
// Go has no ABI reason to keep them apart once off the native stack.
type Value struct {
	Kind ValueKind
	I64  int64
	F64  float64
	Bool bool
	Str  string
	Ptr  unsafe.Pointer
	// Err carries the human-readable cause when Kind == KindError (§7).
	Err string
}

func ValueI32(v int32) Value   { return Value{Kind: KindI32, I64: int64(v)} }
func ValueU32(v uint32) Value  { return Value{Kind: KindU32, I64: int64(v)} }
func ValueI64(v int64) Value   { return Value{Kind: KindI64, I64: v} }
func ValueU64(v uint64) Value  { return Value{Kind: KindU64, I64: int64(v)} }
func ValueF32(v float32) Value { return Value{Kind: KindF32, F64: float64(v)} }
func ValueF64(v float64) Value { return Value{Kind: KindF64, F64: v} }
func ValueBool(v bool) Value   { return Value{Kind: KindBool, Bool: v} }
func ValueString(v string) Value { return Value{Kind: KindString, Str: v} }
func ValuePointer(p unsafe.Pointer) Value { return Value{Kind: KindPointer, Ptr: p} }
func ValueVoid() Value { return Value{Kind: KindVoid} }

// ValueError builds an error-typed Value carrying msg, the universal
// failure representation for call paths (§7 kind 4).
func ValueError(msg string) Value {
	return Value{Kind: KindError, Err: msg}
}

// IsError reports whether v represents a failed call or operation.
func (v Value) IsError() bool { return v.Kind == KindError }

func (v Value) I32() int32   { return int32(v.I64) }
func (v Value) U32() uint32  { return uint32(v.I64) }
func (v Value) U64() uint64  { return uint64(v.I64) }
func (v Value) F32Val() float32 { return float32(v.F64) }

// AsBool reports whether v should be treated as boolean-true for
// consumption semantics (§4.7): only an explicit KindBool value with
// Bool == true counts. Every other kind, including errors and void, is
// "not consumed".
func (v Value) AsBool() bool {
	return v.Kind == KindBool && v.Bool
}
