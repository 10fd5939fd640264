package kernel

import (
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

// The CPU bitwise kernels mirror call_ops_bitwise_binary /
// call_ops_bitwise_unary / call_ops_bitwise_unary_scalar from
// hodu_core/src/be_cpu/storage/ops_bitwise.rs: one typed arm per
// integer dtype, broadcasting via the metadata array's per-axis
// strides (stride 0 reads the same element repeatedly).

func init() {
	registerBitwiseBinary(op.Shl, func(a, b uint64) uint64 { return a << (b & 63) })
	registerBitwiseBinary(op.Shr, func(a, b uint64) uint64 { return a >> (b & 63) })
	registerBitwiseBinary(op.And, func(a, b uint64) uint64 { return a & b })
	registerBitwiseBinary(op.Or, func(a, b uint64) uint64 { return a | b })
	registerBitwiseBinary(op.Xor, func(a, b uint64) uint64 { return a ^ b })

	registerBitwiseUnary(op.Not, func(a uint64, bits int) uint64 { return ^a & mask(bits) })

	registerBitwiseScalar(op.ShlScalar, func(a uint64, shift uint64) uint64 { return a << (shift & 63) })
	registerBitwiseScalar(op.ShrScalar, func(a uint64, shift uint64) uint64 { return a >> (shift & 63) })
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func registerBitwiseBinary(k op.Kind, fn func(a, b uint64) uint64) {
	for _, dt := range dtype.Integers() {
		dt := dt
		RegisterBinary("cpu", k, dt, func(lhs, rhs, out storage.Storage, md layout.Metadata, params op.Params) error {
			return dispatchIntWidth(dt, md, func() error { return runBinaryBitwise[uint8](lhs, rhs, out, md, fn) },
				func() error { return runBinaryBitwise[uint16](lhs, rhs, out, md, fn) },
				func() error { return runBinaryBitwise[uint32](lhs, rhs, out, md, fn) },
				func() error { return runBinaryBitwise[uint64](lhs, rhs, out, md, fn) })
		})
	}
}

func registerBitwiseUnary(k op.Kind, fn func(a uint64, bits int) uint64) {
	for _, dt := range dtype.Integers() {
		dt := dt
		RegisterUnary("cpu", k, dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
			bits := dt.ByteWidth() * 8
			return dispatchIntWidth(dt, md, func() error { return runUnaryBitwise[uint8](in, out, md, func(a uint64) uint64 { return fn(a, bits) }) },
				func() error { return runUnaryBitwise[uint16](in, out, md, func(a uint64) uint64 { return fn(a, bits) }) },
				func() error { return runUnaryBitwise[uint32](in, out, md, func(a uint64) uint64 { return fn(a, bits) }) },
				func() error { return runUnaryBitwise[uint64](in, out, md, func(a uint64) uint64 { return fn(a, bits) }) })
		})
	}
}

func registerBitwiseScalar(k op.Kind, fn func(a uint64, shift uint64) uint64) {
	for _, dt := range dtype.Integers() {
		dt := dt
		RegisterUnary("cpu", k, dt, func(in, out storage.Storage, md layout.Metadata, params op.Params) error {
			shift := params.ShiftAmount
			return dispatchIntWidth(dt, md, func() error { return runUnaryBitwise[uint8](in, out, md, func(a uint64) uint64 { return fn(a, shift) }) },
				func() error { return runUnaryBitwise[uint16](in, out, md, func(a uint64) uint64 { return fn(a, shift) }) },
				func() error { return runUnaryBitwise[uint32](in, out, md, func(a uint64) uint64 { return fn(a, shift) }) },
				func() error { return runUnaryBitwise[uint64](in, out, md, func(a uint64) uint64 { return fn(a, shift) }) })
		})
	}
}

// dispatchIntWidth picks the byte-width-appropriate unsigned-view
// launcher for dt; signed integer dtypes reuse the unsigned view since
// bitwise ops are representation-preserving (two's complement).
func dispatchIntWidth(dt dtype.DType, md layout.Metadata, w8, w16, w32, w64 func() error) error {
	switch dt.ByteWidth() {
	case 1:
		return w8()
	case 2:
		return w16()
	case 4:
		return w32()
	case 8:
		return w64()
	default:
		return newBackendError("unsupported integer width for bitwise op")
	}
}

type uintLike interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func runBinaryBitwise[T uintLike](lhs, rhs, out storage.Storage, md layout.Metadata, fn func(a, b uint64) uint64) error {
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
		ov[i] = T(fn(uint64(lv[li]), uint64(rv[ri])))
	}
	return nil
}

func runUnaryBitwise[T uintLike](in, out storage.Storage, md layout.Metadata, fn func(a uint64) uint64) error {
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
		ov[i] = T(fn(uint64(iv[si])))
	}
	return nil
}
