package kernel

import (
	"math"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

func init() {
	registerUnaryMath(op.Neg, func(a float64) float64 { return -a })
	registerUnaryMath(op.Abs, math.Abs)
	registerUnaryMath(op.Sqrt, math.Sqrt)
	registerUnaryMath(op.Exp, math.Exp)
	registerUnaryMath(op.Log, math.Log)
	registerUnaryMath(op.Relu, func(a float64) float64 {
		if a < 0 {
			return 0
		}
		return a
	})

	registerUnaryScalar(op.AddScalar, func(a, scalar float64) float64 { return a + scalar })
	registerUnaryScalar(op.MulScalar, func(a, scalar float64) float64 { return a * scalar })

	for _, dt := range directNumericDTypes {
		RegisterUnary("cpu", op.ToDtype, dt, runToDtype)
		RegisterUnary("cpu", op.ToDevice, dt, runIdentityCopy)
	}
}

func registerUnaryMath(k op.Kind, fn func(a float64) float64) {
	for _, dt := range directNumericDTypes {
		dt := dt
		RegisterUnary("cpu", k, dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
			return dispatchUnaryNumeric(dt, in, out, md, fn)
		})
	}
}

func registerUnaryScalar(k op.Kind, fn func(a, scalar float64) float64) {
	for _, dt := range directNumericDTypes {
		dt := dt
		RegisterUnary("cpu", k, dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
			scalar := params.Scalar
			return dispatchUnaryNumeric(dt, in, out, md, func(a float64) float64 { return fn(a, scalar) })
		})
	}
}

func dispatchUnaryNumeric(dt dtype.DType, in, out storage.Storage, md layout.Metadata, fn func(a float64) float64) error {
	switch dt {
	case dtype.U8:
		return runUnaryMath[uint8](in, out, md, fn)
	case dtype.U16:
		return runUnaryMath[uint16](in, out, md, fn)
	case dtype.U32:
		return runUnaryMath[uint32](in, out, md, fn)
	case dtype.U64:
		return runUnaryMath[uint64](in, out, md, fn)
	case dtype.I8:
		return runUnaryMath[int8](in, out, md, fn)
	case dtype.I16:
		return runUnaryMath[int16](in, out, md, fn)
	case dtype.I32:
		return runUnaryMath[int32](in, out, md, fn)
	case dtype.I64:
		return runUnaryMath[int64](in, out, md, fn)
	case dtype.F32:
		return runUnaryMath[float32](in, out, md, fn)
	case dtype.F64:
		return runUnaryMath[float64](in, out, md, fn)
	default:
		return newBackendError("call_ops_unary: unsupported dtype " + dt.String())
	}
}

func runUnaryMath[T numeric](in, out storage.Storage, md layout.Metadata, fn func(a float64) float64) error {
	iv, err := storage.View[T](in)
	if err != nil {
		return err
	}
	ov, err := storage.View[T](out)
	if err != nil {
		return err
	}
	idx := newUnaryIndexer(md)
	for i := range ov {
		si := idx.unaryOffset(i)
		ov[i] = T(fn(float64(iv[si])))
	}
	return nil
}

// runToDtype widens every element of in to float64 through its source
// dtype's view and narrows it back through the output storage's own
// dtype, so one registration per source dtype handles every possible
// target the façade might request.
func runToDtype(in, out storage.Storage, md layout.Metadata, params op.Params) error {
	idx := newUnaryIndexer(md)
	n := out.NumElements()
	vals := make([]float64, n)
	if err := readAsFloat64(in, idx, vals); err != nil {
		return err
	}
	return writeFromFloat64(out, vals)
}

func readAsFloat64(in storage.Storage, idx unaryIndexer, dst []float64) error {
	switch in.DType() {
	case dtype.U8:
		return readTyped[uint8](in, idx, dst)
	case dtype.U16:
		return readTyped[uint16](in, idx, dst)
	case dtype.U32:
		return readTyped[uint32](in, idx, dst)
	case dtype.U64:
		return readTyped[uint64](in, idx, dst)
	case dtype.I8:
		return readTyped[int8](in, idx, dst)
	case dtype.I16:
		return readTyped[int16](in, idx, dst)
	case dtype.I32:
		return readTyped[int32](in, idx, dst)
	case dtype.I64:
		return readTyped[int64](in, idx, dst)
	case dtype.F32:
		return readTyped[float32](in, idx, dst)
	case dtype.F64:
		return readTyped[float64](in, idx, dst)
	case dtype.BOOL:
		return readTyped[bool](in, idx, dst)
	case dtype.BF16:
		return readNarrow(in, idx, dst, func(b dtype.Bits16) float32 { return dtype.BF16ToFloat32(b) })
	case dtype.F16:
		return readNarrow(in, idx, dst, func(b dtype.Bits16) float32 { return dtype.F16ToFloat32(b) })
	case dtype.F8E4M3:
		return readNarrow8(in, idx, dst, dtype.F8E4M3ToFloat32)
	case dtype.F8E5M2:
		return readNarrow8(in, idx, dst, dtype.F8E5M2ToFloat32)
	default:
		return newBackendError("to_dtype: unsupported source dtype " + in.DType().String())
	}
}

func readTyped[T numeric | bool](in storage.Storage, idx unaryIndexer, dst []float64) error {
	iv, err := storage.View[T](in)
	if err != nil {
		return err
	}
	for i := range dst {
		si := idx.unaryOffset(i)
		if b, ok := any(iv[si]).(bool); ok {
			if b {
				dst[i] = 1
			}
			continue
		}
		dst[i] = toFloat64(iv[si])
	}
	return nil
}

func toFloat64[T any](v T) float64 {
	switch x := any(v).(type) {
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func readNarrow(in storage.Storage, idx unaryIndexer, dst []float64, widen func(dtype.Bits16) float32) error {
	iv, err := storage.View[dtype.Bits16](in)
	if err != nil {
		return err
	}
	for i := range dst {
		si := idx.unaryOffset(i)
		dst[i] = float64(widen(iv[si]))
	}
	return nil
}

func readNarrow8(in storage.Storage, idx unaryIndexer, dst []float64, widen func(uint8) float32) error {
	iv, err := storage.View[uint8](in)
	if err != nil {
		return err
	}
	for i := range dst {
		si := idx.unaryOffset(i)
		dst[i] = float64(widen(iv[si]))
	}
	return nil
}

func writeFromFloat64(out storage.Storage, src []float64) error {
	switch out.DType() {
	case dtype.U8:
		return writeTyped[uint8](out, src)
	case dtype.U16:
		return writeTyped[uint16](out, src)
	case dtype.U32:
		return writeTyped[uint32](out, src)
	case dtype.U64:
		return writeTyped[uint64](out, src)
	case dtype.I8:
		return writeTyped[int8](out, src)
	case dtype.I16:
		return writeTyped[int16](out, src)
	case dtype.I32:
		return writeTyped[int32](out, src)
	case dtype.I64:
		return writeTyped[int64](out, src)
	case dtype.F32:
		return writeTyped[float32](out, src)
	case dtype.F64:
		return writeTyped[float64](out, src)
	case dtype.BOOL:
		ov, err := storage.View[bool](out)
		if err != nil {
			return err
		}
		for i, v := range src {
			ov[i] = v != 0
		}
		return nil
	case dtype.BF16:
		ov, err := storage.View[dtype.Bits16](out)
		if err != nil {
			return err
		}
		for i, v := range src {
			ov[i] = dtype.Float32ToBF16(float32(v))
		}
		return nil
	case dtype.F16:
		ov, err := storage.View[dtype.Bits16](out)
		if err != nil {
			return err
		}
		for i, v := range src {
			ov[i] = dtype.Float32ToF16(float32(v))
		}
		return nil
	case dtype.F8E4M3:
		ov, err := storage.View[uint8](out)
		if err != nil {
			return err
		}
		for i, v := range src {
			ov[i] = dtype.Float32ToF8E4M3(float32(v))
		}
		return nil
	case dtype.F8E5M2:
		ov, err := storage.View[uint8](out)
		if err != nil {
			return err
		}
		for i, v := range src {
			ov[i] = dtype.Float32ToF8E5M2(float32(v))
		}
		return nil
	default:
		return newBackendError("to_dtype: unsupported target dtype " + out.DType().String())
	}
}

func writeTyped[T numeric](out storage.Storage, src []float64) error {
	ov, err := storage.View[T](out)
	if err != nil {
		return err
	}
	for i, v := range src {
		ov[i] = T(v)
	}
	return nil
}

// runIdentityCopy backs to_device for the only transfer the CPU
// launcher itself performs: a same-host byte copy when the façade
// resolves source and destination to the same backend. Cross-backend
// moves are staged by the owning backend, not this table.
func runIdentityCopy(in, out storage.Storage, md layout.Metadata, params op.Params) error {
	if in.DType() != out.DType() {
		return newBackendError("to_device: dtype must not change")
	}
	copy(out.Bytes(), in.Bytes())
	return nil
}
