// Package event implements the Event Bus (§4.7): a code-indexed fanout
// of typed payloads through Function Handles, with insertion-ordered
// dispatch and short-circuit consumption semantics.
package event

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/mrmaniac/vos/callable"
	"github.com/mrmaniac/vos/domain"
)

// MaxEventCode is the exclusive upper bound on event codes (§3: "for
// each event code in [0, MAX_EVENT_CODE)"; §8 boundary behavior: "the
// MAX_EVENT_CODE-th event code" must be rejected).
const MaxEventCode = 256

// Data is the Event Data contract (§3): a fixed 16-byte payload whose
// layout is agreed out-of-band between a trigger call site and its
// listeners. The underlying storage is two 8-byte words; §9 recommends
// typed accessors over a raw union, so callers reinterpret Lo/Hi through
// AsPointers, AsF64Pair, AsU32Quad, and friends instead of touching the
// fields directly.
type Data struct {
	Lo uint64
	Hi uint64
}

// DataFromPointers packs two pointers into an Event Data payload.
func DataFromPointers(a, b unsafe.Pointer) Data {
	return Data{Lo: uint64(uintptr(a)), Hi: uint64(uintptr(b))}
}

// DataFromF64Pair packs two float64s into an Event Data payload.
func DataFromF64Pair(a, b float64) Data {
	return Data{Lo: math.Float64bits(a), Hi: math.Float64bits(b)}
}

// DataFromU32Quad packs four uint32s into an Event Data payload, two per
// word, low half first.
func DataFromU32Quad(a, b, c, d uint32) Data {
	return Data{
		Lo: uint64(a) | uint64(b)<<32,
		Hi: uint64(c) | uint64(d)<<32,
	}
}

// AsPointers reinterprets the payload as two opaque pointers.
func (d Data) AsPointers() (unsafe.Pointer, unsafe.Pointer) {
	return unsafe.Pointer(uintptr(d.Lo)), unsafe.Pointer(uintptr(d.Hi))
}

// AsF64Pair reinterprets the payload as two float64s.
func (d Data) AsF64Pair() (float64, float64) {
	return math.Float64frombits(d.Lo), math.Float64frombits(d.Hi)
}

// AsU32Quad reinterprets the payload as four uint32s, low half of each
// word first.
func (d Data) AsU32Quad() (a, b, c, d32 uint32) {
	return uint32(d.Lo), uint32(d.Lo >> 32), uint32(d.Hi), uint32(d.Hi >> 32)
}

// AsI64Pair reinterprets the payload as two signed 64-bit integers.
func (d Data) AsI64Pair() (int64, int64) {
	return int64(d.Lo), int64(d.Hi)
}

// AsU64Pair reinterprets the payload as its two raw 64-bit words.
func (d Data) AsU64Pair() (uint64, uint64) {
	return d.Lo, d.Hi
}

// listener is one Event Listener (§3): a code (redundant with its bag
// slot, kept for safety), optional opaque context, and the handle to
// invoke.
type listener struct {
	code    int
	context domain.Value
	handle  *callable.FunctionHandle
}

// Bus is the Event Bus (§4.7).
type Bus struct {
	bags [MaxEventCode][]listener
}

// NewBus builds an empty Event Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Listen appends a listener to bag[code] (§4.7 listen). No
// deduplication: the same handle may be registered more than once and
// will be invoked once per registration.
func (b *Bus) Listen(code int, handle *callable.FunctionHandle, context domain.Value) error {
	if code < 0 || code >= MaxEventCode {
		return fmt.Errorf("event: listen: code %d out of range [0, %d)", code, MaxEventCode)
	}
	b.bags[code] = append(b.bags[code], listener{code: code, context: context, handle: handle})
	return nil
}

// Unlisten removes the first listener in bag[code] whose handle is the
// same handle struct as the argument (identity comparison, not
// signature equality), per §4.7 unlisten. Reports whether one was
// removed.
func (b *Bus) Unlisten(code int, handle *callable.FunctionHandle) bool {
	if code < 0 || code >= MaxEventCode {
		return false
	}
	bag := b.bags[code]
	for i, l := range bag {
		if l.handle == handle {
			b.bags[code] = append(bag[:i], bag[i+1:]...)
			return true
		}
	}
	return false
}

// Trigger iterates a snapshot of bag[code] in insertion order (§5
// re-entrancy guarantee: "the event bus must snapshot its listener list
// before iterating"), invoking each listener's handle with data and its
// registration-time context. The first listener whose result is
// boolean-true short-circuits the remaining listeners and Trigger
// returns true ("event consumed"); any other result (including errors
// and void) means "not consumed" and iteration continues. Returns false
// if no listener consumed the event.
func (b *Bus) Trigger(code int, data Data) bool {
	if code < 0 || code >= MaxEventCode {
		return false
	}

	snapshot := make([]listener, len(b.bags[code]))
	copy(snapshot, b.bags[code])

	payload := dataValue(data)
	for _, l := range snapshot {
		result := callable.Call(l.handle, payload, l.context)
		if result.AsBool() {
			return true
		}
	}
	return false
}

// dataValue carries Data across the Function Handle boundary as an
// opaque pointer, the same way §3 describes Event Data being
// reinterpreted by prior agreement rather than carrying a type tag.
func dataValue(d Data) domain.Value {
	copyD := d
	return domain.Value{Kind: domain.KindPointer, Ptr: unsafe.Pointer(&copyD)}
}
