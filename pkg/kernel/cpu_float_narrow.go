package kernel

import (
	"math"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

// narrowFloat widens/narrows a software float (bf16, f16, f8e4m3,
// f8e5m2) around every arithmetic op, the same compute-in-f32 strategy
// hodu_core's narrow-float kernels use: there is no native arithmetic
// on these bit patterns, so every op round-trips through float32.
type narrowFloat struct {
	dt     dtype.DType
	widen  func(v uint32) float32
	narrow func(f float32) uint32
	width  int
}

var narrowFloats = []narrowFloat{
	{
		dt:     dtype.BF16,
		widen:  func(v uint32) float32 { return dtype.BF16ToFloat32(dtype.Bits16(v)) },
		narrow: func(f float32) uint32 { return uint32(dtype.Float32ToBF16(f)) },
		width:  2,
	},
	{
		dt:     dtype.F16,
		widen:  func(v uint32) float32 { return dtype.F16ToFloat32(dtype.Bits16(v)) },
		narrow: func(f float32) uint32 { return uint32(dtype.Float32ToF16(f)) },
		width:  2,
	},
	{
		dt:     dtype.F8E4M3,
		widen:  func(v uint32) float32 { return dtype.F8E4M3ToFloat32(uint8(v)) },
		narrow: func(f float32) uint32 { return uint32(dtype.Float32ToF8E4M3(f)) },
		width:  1,
	},
	{
		dt:     dtype.F8E5M2,
		widen:  func(v uint32) float32 { return dtype.F8E5M2ToFloat32(uint8(v)) },
		narrow: func(f float32) uint32 { return uint32(dtype.Float32ToF8E5M2(f)) },
		width:  1,
	},
}

func init() {
	for _, nf := range narrowFloats {
		nf := nf
		registerNarrowBinaryArith(nf, op.Add, func(a, b float64) float64 { return a + b })
		registerNarrowBinaryArith(nf, op.Sub, func(a, b float64) float64 { return a - b })
		registerNarrowBinaryArith(nf, op.Mul, func(a, b float64) float64 { return a * b })
		registerNarrowBinaryArith(nf, op.Div, func(a, b float64) float64 { return a / b })

		registerNarrowCompare(nf, op.Eq, func(a, b float64) bool { return a == b })
		registerNarrowCompare(nf, op.Ne, func(a, b float64) bool { return a != b })
		registerNarrowCompare(nf, op.Lt, func(a, b float64) bool { return a < b })
		registerNarrowCompare(nf, op.Le, func(a, b float64) bool { return a <= b })
		registerNarrowCompare(nf, op.Gt, func(a, b float64) bool { return a > b })
		registerNarrowCompare(nf, op.Ge, func(a, b float64) bool { return a >= b })

		registerNarrowUnary(nf, op.Neg, func(a float64) float64 { return -a })
		registerNarrowUnary(nf, op.Abs, math.Abs)
		registerNarrowUnary(nf, op.Sqrt, math.Sqrt)
		registerNarrowUnary(nf, op.Exp, math.Exp)
		registerNarrowUnary(nf, op.Log, math.Log)
		registerNarrowUnary(nf, op.Relu, func(a float64) float64 {
			if a < 0 {
				return 0
			}
			return a
		})

		registerNarrowUnaryScalar(nf, op.AddScalar, func(a, scalar float64) float64 { return a + scalar })
		registerNarrowUnaryScalar(nf, op.MulScalar, func(a, scalar float64) float64 { return a * scalar })

		RegisterUnary("cpu", op.ToDtype, nf.dt, runToDtype)
		RegisterUnary("cpu", op.ToDevice, nf.dt, runIdentityCopy)
	}
}

func (nf narrowFloat) readView(s storage.Storage) ([]uint32, func(int, uint32), error) {
	switch nf.width {
	case 1:
		v, err := storage.View[uint8](s)
		if err != nil {
			return nil, nil, err
		}
		buf := make([]uint32, len(v))
		for i, x := range v {
			buf[i] = uint32(x)
		}
		return buf, func(i int, val uint32) { v[i] = uint8(val) }, nil
	default:
		v, err := storage.View[dtype.Bits16](s)
		if err != nil {
			return nil, nil, err
		}
		buf := make([]uint32, len(v))
		for i, x := range v {
			buf[i] = uint32(x)
		}
		return buf, func(i int, val uint32) { v[i] = dtype.Bits16(val) }, nil
	}
}

func registerNarrowBinaryArith(nf narrowFloat, k op.Kind, fn func(a, b float64) float64) {
	RegisterBinary("cpu", k, nf.dt, func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error {
		lv, _, err := nf.readView(lhs)
		if err != nil {
			return err
		}
		rv, _, err := nf.readView(rhs)
		if err != nil {
			return err
		}
		_, setOut, err := nf.readView(out)
		if err != nil {
			return err
		}
		idx := newBinaryIndexer(md)
		for i := 0; i < out.NumElements(); i++ {
			li, ri := idx.binaryOffsets(i)
			result := fn(float64(nf.widen(lv[li])), float64(nf.widen(rv[ri])))
			setOut(i, nf.narrow(float32(result)))
		}
		return nil
	})
}

func registerNarrowCompare(nf narrowFloat, k op.Kind, fn func(a, b float64) bool) {
	RegisterBinary("cpu", k, nf.dt, func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error {
		lv, _, err := nf.readView(lhs)
		if err != nil {
			return err
		}
		rv, _, err := nf.readView(rhs)
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
			ov[i] = fn(float64(nf.widen(lv[li])), float64(nf.widen(rv[ri])))
		}
		return nil
	})
}

func registerNarrowUnary(nf narrowFloat, k op.Kind, fn func(a float64) float64) {
	RegisterUnary("cpu", k, nf.dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
		iv, _, err := nf.readView(in)
		if err != nil {
			return err
		}
		_, setOut, err := nf.readView(out)
		if err != nil {
			return err
		}
		idx := newUnaryIndexer(md)
		for i := 0; i < out.NumElements(); i++ {
			si := idx.unaryOffset(i)
			result := fn(float64(nf.widen(iv[si])))
			setOut(i, nf.narrow(float32(result)))
		}
		return nil
	})
}

func registerNarrowUnaryScalar(nf narrowFloat, k op.Kind, fn func(a, scalar float64) float64) {
	RegisterUnary("cpu", k, nf.dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
		scalar := params.Scalar
		iv, _, err := nf.readView(in)
		if err != nil {
			return err
		}
		_, setOut, err := nf.readView(out)
		if err != nil {
			return err
		}
		idx := newUnaryIndexer(md)
		for i := 0; i < out.NumElements(); i++ {
			si := idx.unaryOffset(i)
			result := fn(float64(nf.widen(iv[si])), scalar)
			setOut(i, nf.narrow(float32(result)))
		}
		return nil
	})
}
