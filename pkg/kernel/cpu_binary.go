package kernel

import (
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

// numeric is the set of Go types backing hodu's arithmetic dtypes.
// bf16/f16/f8 are handled separately (cpu_float_narrow.go) since they
// need widen/narrow conversions around the actual math.
type numeric interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

func init() {
	registerBinaryArith(op.Add, func(a, b float64) float64 { return a + b })
	registerBinaryArith(op.Sub, func(a, b float64) float64 { return a - b })
	registerBinaryArith(op.Mul, func(a, b float64) float64 { return a * b })
	registerBinaryArith(op.Div, func(a, b float64) float64 { return a / b })

	registerCompare(op.Eq, func(a, b float64) bool { return a == b })
	registerCompare(op.Ne, func(a, b float64) bool { return a != b })
	registerCompare(op.Lt, func(a, b float64) bool { return a < b })
	registerCompare(op.Le, func(a, b float64) bool { return a <= b })
	registerCompare(op.Gt, func(a, b float64) bool { return a > b })
	registerCompare(op.Ge, func(a, b float64) bool { return a >= b })
}

// directNumericDTypes lists the dtypes whose in-memory Go type matches
// their mathematical type directly; bf16/f16/f8 are excluded here and
// registered in cpu_float_narrow.go.
var directNumericDTypes = []dtype.DType{
	dtype.U8, dtype.U16, dtype.U32, dtype.U64,
	dtype.I8, dtype.I16, dtype.I32, dtype.I64,
	dtype.F32, dtype.F64,
}

func registerBinaryArith(k op.Kind, fn func(a, b float64) float64) {
	for _, dt := range directNumericDTypes {
		dt := dt
		launcher := func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error {
			return dispatchNumeric(dt, lhs, rhs, out, md, fn)
		}
		RegisterBinary("cpu", k, dt, launcher)
	}
}

func registerCompare(k op.Kind, fn func(a, b float64) bool) {
	for _, dt := range directNumericDTypes {
		dt := dt
		RegisterBinary("cpu", k, dt, func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error {
			return dispatchCompare(dt, lhs, rhs, out, md, fn)
		})
	}
}

func dispatchNumeric(dt dtype.DType, lhs, rhs, out storage.Storage, md layout.Metadata, fn func(a, b float64) float64) error {
	switch dt {
	case dtype.U8:
		return runBinaryArith[uint8](lhs, rhs, out, md, fn)
	case dtype.U16:
		return runBinaryArith[uint16](lhs, rhs, out, md, fn)
	case dtype.U32:
		return runBinaryArith[uint32](lhs, rhs, out, md, fn)
	case dtype.U64:
		return runBinaryArith[uint64](lhs, rhs, out, md, fn)
	case dtype.I8:
		return runBinaryArith[int8](lhs, rhs, out, md, fn)
	case dtype.I16:
		return runBinaryArith[int16](lhs, rhs, out, md, fn)
	case dtype.I32:
		return runBinaryArith[int32](lhs, rhs, out, md, fn)
	case dtype.I64:
		return runBinaryArith[int64](lhs, rhs, out, md, fn)
	case dtype.F32:
		return runBinaryArith[float32](lhs, rhs, out, md, fn)
	case dtype.F64:
		return runBinaryArith[float64](lhs, rhs, out, md, fn)
	default:
		return newBackendError("call_ops_binary_arith: unsupported dtype " + dt.String())
	}
}

func dispatchCompare(dt dtype.DType, lhs, rhs, out storage.Storage, md layout.Metadata, fn func(a, b float64) bool) error {
	switch dt {
	case dtype.U8:
		return runCompare[uint8](lhs, rhs, out, md, fn)
	case dtype.U16:
		return runCompare[uint16](lhs, rhs, out, md, fn)
	case dtype.U32:
		return runCompare[uint32](lhs, rhs, out, md, fn)
	case dtype.U64:
		return runCompare[uint64](lhs, rhs, out, md, fn)
	case dtype.I8:
		return runCompare[int8](lhs, rhs, out, md, fn)
	case dtype.I16:
		return runCompare[int16](lhs, rhs, out, md, fn)
	case dtype.I32:
		return runCompare[int32](lhs, rhs, out, md, fn)
	case dtype.I64:
		return runCompare[int64](lhs, rhs, out, md, fn)
	case dtype.F32:
		return runCompare[float32](lhs, rhs, out, md, fn)
	case dtype.F64:
		return runCompare[float64](lhs, rhs, out, md, fn)
	default:
		return newBackendError("call_ops_compare: unsupported dtype " + dt.String())
	}
}

func runBinaryArith[T numeric](lhs, rhs, out storage.Storage, md layout.Metadata, fn func(a, b float64) float64) error {
	lv, err := storage.View[T](lhs)
	if err != nil {
		return err
	}
	rv, err := storage.View[T](rhs)
	if err != nil {
		return err
	}
	ov, err := storage.View[T](out)
	if err != nil {
		return err
	}
	idx := newBinaryIndexer(md)
	for i := range ov {
		li, ri := idx.binaryOffsets(i)
		ov[i] = T(fn(float64(lv[li]), float64(rv[ri])))
	}
	return nil
}

func runCompare[T numeric](lhs, rhs, out storage.Storage, md layout.Metadata, fn func(a, b float64) bool) error {
	lv, err := storage.View[T](lhs)
	if err != nil {
		return err
	}
	rv, err := storage.View[T](rhs)
	if err != nil {
		return err
	}
	ov, err := storage.View[bool](out)
	if err != nil {
		return err
	}
	idx := newBinaryIndexer(md)
	for i := range ov {
		li, ri := idx.binaryOffsets(i)
		ov[i] = fn(float64(lv[li]), float64(rv[ri]))
	}
	return nil
}
