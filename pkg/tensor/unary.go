package tensor

import (
	"github.com/google/uuid"

	"hodu/pkg/device"
	"hodu/pkg/dtype"
	"hodu/pkg/kernel"
	"hodu/pkg/layout"
	"hodu/pkg/op"
)

// unaryOp implements the façade template for FamilyUnary,
// FamilyBitwiseUnary and FamilyBitwiseUnaryScalar ops. outDType lets
// to_dtype request a different output dtype than in; every other
// caller passes in.DType().
func unaryOp(k op.Kind, in *Tensor, outDType dtype.DType, params op.Params) (*Tensor, error) {
	outLayout := layout.Contiguous(in.layout.Shape, 0)

	if IsCapturing() {
		out := placeholder(outDType, in.device, outLayout, false)
		currentSnapshot().append(Node{
			Op:           k,
			Params:       params,
			InputIDs:     []uuid.UUID{in.id},
			OutputID:     out.id,
			InputLayouts: []layout.Layout{in.layout},
			OutputLayout: outLayout,
			OutputDType:  outDType,
		})
		return out, nil
	}

	outStorage, err := kernel.DispatchUnary(in.device.Type, k, in.dtype, outDType, in.storage, in.layout, outLayout, params)
	if err != nil {
		return nil, err
	}

	requiresGrad := k.SupportsGrad && in.requiresGrad
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: k, Params: params, InputIDs: []uuid.UUID{in.id}, OutputID: out.id})
	}
	return out, nil
}

func Neg(in *Tensor) (*Tensor, error)  { return unaryOp(op.Neg, in, in.dtype, op.Params{}) }
func Abs(in *Tensor) (*Tensor, error)  { return unaryOp(op.Abs, in, in.dtype, op.Params{}) }
func Sqrt(in *Tensor) (*Tensor, error) { return unaryOp(op.Sqrt, in, in.dtype, op.Params{}) }
func Exp(in *Tensor) (*Tensor, error)  { return unaryOp(op.Exp, in, in.dtype, op.Params{}) }
func Log(in *Tensor) (*Tensor, error)  { return unaryOp(op.Log, in, in.dtype, op.Params{}) }
func Relu(in *Tensor) (*Tensor, error) { return unaryOp(op.Relu, in, in.dtype, op.Params{}) }

func AddScalar(in *Tensor, scalar float64) (*Tensor, error) {
	return unaryOp(op.AddScalar, in, in.dtype, op.Params{Scalar: scalar})
}

func MulScalar(in *Tensor, scalar float64) (*Tensor, error) {
	return unaryOp(op.MulScalar, in, in.dtype, op.Params{Scalar: scalar})
}

// ToDtype converts in to target, narrowing or widening through the
// kernel's float64 pivot (pkg/kernel/cpu_unary.go).
func ToDtype(in *Tensor, target dtype.DType) (*Tensor, error) {
	return unaryOp(op.ToDtype, in, target, op.Params{})
}

// ErrNotSupported models spec §7's NotSupported kind: a requested
// capability is absent in this build.
type ErrNotSupported struct{ Msg string }

func (e *ErrNotSupported) Error() string { return e.Msg }

// ToDevice moves in to target. Only "cpu" is backed by a real
// allocator in this build (spec.md's CUDA/Metal launch-shape math is
// implemented and tested independent of hardware, per SPEC_FULL.md's
// supplemented-features note); any other target returns
// ErrNotSupported rather than silently no-oping.
func ToDevice(in *Tensor, target device.Device) (*Tensor, error) {
	if target.Type != "cpu" {
		return nil, &ErrNotSupported{Msg: "tensor: to_device(" + target.String() + ") has no allocator in this build"}
	}
	if in.device.Equal(target) {
		return in, nil
	}
	return unaryOp(op.ToDevice, in, in.dtype, op.Params{})
}

func Not(in *Tensor) (*Tensor, error) { return unaryOp(op.Not, in, in.dtype, op.Params{}) }

func ShlScalar(in *Tensor, shift uint64) (*Tensor, error) {
	return unaryOp(op.ShlScalar, in, in.dtype, op.Params{ShiftAmount: shift})
}

func ShrScalar(in *Tensor, shift uint64) (*Tensor, error) {
	return unaryOp(op.ShrScalar, in, in.dtype, op.Params{ShiftAmount: shift})
}
