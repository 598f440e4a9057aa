package ffi

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/mrmaniac/vos/domain"
)

// Call performs an ABI-correct invocation of the native function at addr
// per s, with args supplied in signature order, and returns a typed
// result matching s.Return (§4.2 contract table).
//
// The callee's real Go function type is not known at compile time, so it
// is built at runtime via reflect.FuncOf and bound to addr with
// purego.RegisterFunc — the same mechanism purego's own typed examples
// use (`var fn func(int32) int32; purego.RegisterFunc(&fn, addr)`), just
// with fn's type constructed dynamically instead of declared in source.
//
// If a called function faults across the native boundary, behavior is
// the platform's (§4.2); any recoverable Go-level panic is converted to
// an error-typed Value one layer up, in callable.Call.
func Call(addr uintptr, s domain.Signature, args []domain.Value) domain.Value {
	if len(args) != len(s.Args) {
		return domain.ValueError(fmt.Sprintf("ffi: %s: expected %d arguments, got %d", s.Name, len(s.Args), len(args)))
	}

	inTypes := make([]reflect.Type, len(s.Args))
	inVals := make([]reflect.Value, len(s.Args))
	for i, kind := range s.Args {
		t, err := goType(kind)
		if err != nil {
			return domain.ValueError(fmt.Sprintf("ffi: %s: arg %d: %v", s.Name, i, err))
		}
		inTypes[i] = t
		v, err := toReflect(args[i], kind)
		if err != nil {
			return domain.ValueError(fmt.Sprintf("ffi: %s: arg %d: %v", s.Name, i, err))
		}
		inVals[i] = v
	}

	var outTypes []reflect.Type
	if s.Return != domain.KindVoid {
		rt, err := goType(s.Return)
		if err != nil {
			return domain.ValueError(fmt.Sprintf("ffi: %s: return: %v", s.Name, err))
		}
		outTypes = []reflect.Type{rt}
	}

	fnType := reflect.FuncOf(inTypes, outTypes, false)
	fnPtr := reflect.New(fnType)
	purego.RegisterFunc(fnPtr.Interface(), addr)

	results := fnPtr.Elem().Call(inVals)
	return fromResults(results, s.Return)
}

func goType(kind domain.ValueKind) (reflect.Type, error) {
	switch kind {
	case domain.KindI32:
		return reflect.TypeOf(int32(0)), nil
	case domain.KindU32:
		return reflect.TypeOf(uint32(0)), nil
	case domain.KindI64:
		return reflect.TypeOf(int64(0)), nil
	case domain.KindU64:
		return reflect.TypeOf(uint64(0)), nil
	case domain.KindF32:
		return reflect.TypeOf(float32(0)), nil
	case domain.KindF64:
		return reflect.TypeOf(float64(0)), nil
	case domain.KindBool:
		return reflect.TypeOf(false), nil
	case domain.KindPointer:
		return reflect.TypeOf(uintptr(0)), nil
	case domain.KindString:
		return reflect.TypeOf(""), nil
	default:
		return nil, fmt.Errorf("unsupported value kind %q for native marshalling", kind)
	}
}

func toReflect(v domain.Value, kind domain.ValueKind) (reflect.Value, error) {
	if v.Kind == domain.KindError {
		return reflect.Value{}, fmt.Errorf("cannot pass an error value as an argument")
	}
	switch kind {
	case domain.KindI32:
		return reflect.ValueOf(v.I32()), nil
	case domain.KindU32:
		return reflect.ValueOf(v.U32()), nil
	case domain.KindI64:
		return reflect.ValueOf(v.I64), nil
	case domain.KindU64:
		return reflect.ValueOf(v.U64()), nil
	case domain.KindF32:
		return reflect.ValueOf(v.F32Val()), nil
	case domain.KindF64:
		return reflect.ValueOf(v.F64), nil
	case domain.KindBool:
		return reflect.ValueOf(v.Bool), nil
	case domain.KindPointer:
		return reflect.ValueOf(uintptr(v.Ptr)), nil
	case domain.KindString:
		return reflect.ValueOf(v.Str), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported value kind %q", kind)
	}
}

func fromResults(results []reflect.Value, ret domain.ValueKind) domain.Value {
	if ret == domain.KindVoid || len(results) == 0 {
		return domain.ValueVoid()
	}
	r := results[0]
	switch ret {
	case domain.KindI32:
		return domain.ValueI32(int32(r.Int()))
	case domain.KindU32:
		return domain.ValueU32(uint32(r.Uint()))
	case domain.KindI64:
		return domain.ValueI64(r.Int())
	case domain.KindU64:
		return domain.ValueU64(r.Uint())
	case domain.KindF32:
		return domain.ValueF32(float32(r.Float()))
	case domain.KindF64:
		return domain.ValueF64(r.Float())
	case domain.KindBool:
		return domain.ValueBool(r.Bool())
	case domain.KindPointer:
		return domain.ValuePointer(unsafe.Pointer(uintptr(r.Uint())))
	case domain.KindString:
		return domain.ValueString(r.String())
	default:
		return domain.ValueError(fmt.Sprintf("unsupported return kind %q", ret))
	}
}
