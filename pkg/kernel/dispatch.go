package kernel

import (
	"hodu/pkg/device"
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/storage"
)

// DispatchBinary selects and invokes exactly one typed kernel for a
// binary op (spec §4.1 "Contract"). outDType lets callers of compare
// ops (which produce BOOL) request a different output dtype than the
// inputs; element-wise arithmetic passes dt again.
func DispatchBinary(backend string, k op.Kind, dt, outDType dtype.DType, lhs, rhs storage.Storage, lhsLayout, rhsLayout layout.Layout, outShape layout.Layout, params op.Params) (storage.Storage, error) {
	if k.Family != op.FamilyBinaryArith && k.Family != op.FamilyBinaryCompare && k.Family != op.FamilyBitwiseBinary {
		return nil, newBackendError("call_ops_binary expects a binary op")
	}
	if k.IsBitwise() {
		if err := requireIntegerDType(dt); err != nil {
			return nil, err
		}
	}

	name := Mangle(backend, k.Name, dt)
	fn, ok := lookupBinary(backend, name)
	if !ok {
		return nil, &ErrNotFound{KernelName: name}
	}

	out, err := allocate(backend, outDType, outShape.Shape.Size(), lhs.Device())
	if err != nil {
		return nil, err
	}

	md := layout.BinaryMetadata(lhsLayout, rhsLayout, outShape)
	if err := fn(lhs, rhs, out, md, params); err != nil {
		return nil, &DeviceError{Msg: "kernel launch failed", Cause: err}
	}
	return out, nil
}

// DispatchUnary selects and invokes exactly one typed kernel for a
// unary op, including the unary-with-scalar bitwise family (shl_scalar,
// shr_scalar), whose shift amount travels in params.ShiftAmount.
func DispatchUnary(backend string, k op.Kind, dt, outDType dtype.DType, in storage.Storage, inLayout, outShape layout.Layout, params op.Params) (storage.Storage, error) {
	switch k.Family {
	case op.FamilyUnary, op.FamilyBitwiseUnary, op.FamilyBitwiseUnaryScalar:
	default:
		return nil, newBackendError("call_ops_unary expects a unary op")
	}
	if k.IsBitwise() {
		if err := requireIntegerDType(dt); err != nil {
			return nil, err
		}
	}

	name := Mangle(backend, k.Name, dt)
	fn, ok := lookupUnary(backend, name)
	if !ok {
		return nil, &ErrNotFound{KernelName: name}
	}

	out, err := allocate(backend, outDType, outShape.Shape.Size(), in.Device())
	if err != nil {
		return nil, err
	}

	md := layout.UnaryMetadata(inLayout, outShape)
	if err := fn(in, out, md, params); err != nil {
		return nil, &DeviceError{Msg: "kernel launch failed", Cause: err}
	}
	return out, nil
}

func requireIntegerDType(dt dtype.DType) error {
	if !dt.IsInteger() {
		return newBackendError("bitwise operations only support integer types")
	}
	return nil
}

func allocate(backend string, dt dtype.DType, numEls int, dev device.Device) (storage.Storage, error) {
	if backend == "cpu" {
		return storage.NewCPU(dt, numEls)
	}
	return nil, &DeviceError{Msg: "backend " + backend + " has no registered allocator in this build (device " + dev.String() + ")"}
}
