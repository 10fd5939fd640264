package tensor

import (
	"github.com/google/uuid"

	"hodu/pkg/dtype"
	"hodu/pkg/kernel"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/shape"
)

// binaryOp implements the façade template (spec §4.3) for any op in
// FamilyBinaryArith, FamilyBinaryCompare or FamilyBitwiseBinary:
// validate device, broadcast shapes, then branch on the capture
// switch. Dtype-for-op legality (bitwise-on-float) is intentionally
// NOT pre-validated here — it is the dispatcher's BackendError to
// raise (spec §8 scenario S4), not an InvalidArgument the façade
// short-circuits.
func binaryOp(k op.Kind, lhs, rhs *Tensor, params op.Params) (*Tensor, error) {
	if !lhs.device.Equal(rhs.device) {
		return nil, invalidArg("tensor: %s requires both operands on the same device, got %s and %s", k.Name, lhs.device, rhs.device)
	}
	if lhs.dtype != rhs.dtype {
		return nil, invalidArg("tensor: %s requires matching dtypes, got %s and %s", k.Name, lhs.dtype, rhs.dtype)
	}

	outShape, err := shape.Broadcast(lhs.layout.Shape, rhs.layout.Shape)
	if err != nil {
		return nil, invalidArg("tensor: %s: %v", k.Name, err)
	}

	lhsStrides, err := shape.BroadcastStrides(lhs.layout.Strides, lhs.layout.Strides, lhs.layout.Shape, outShape)
	if err != nil {
		return nil, invalidArg("tensor: %s: %v", k.Name, err)
	}
	rhsStrides, err := shape.BroadcastStrides(rhs.layout.Strides, rhs.layout.Strides, rhs.layout.Shape, outShape)
	if err != nil {
		return nil, invalidArg("tensor: %s: %v", k.Name, err)
	}

	lhsLayout := layout.Layout{Shape: outShape, Strides: lhsStrides, Offset: lhs.layout.Offset}
	rhsLayout := layout.Layout{Shape: outShape, Strides: rhsStrides, Offset: rhs.layout.Offset}
	outLayout := layout.Contiguous(outShape, 0)

	outDType := lhs.dtype
	if k.Family == op.FamilyBinaryCompare {
		outDType = dtype.BOOL
	}

	if IsCapturing() {
		out := placeholder(outDType, lhs.device, outLayout, false)
		currentSnapshot().append(Node{
			Op:           k,
			Params:       params,
			InputIDs:     []uuid.UUID{lhs.id, rhs.id},
			OutputID:     out.id,
			InputLayouts: []layout.Layout{lhsLayout, rhsLayout},
			OutputLayout: outLayout,
			OutputDType:  outDType,
		})
		return out, nil
	}

	outStorage, err := kernel.DispatchBinary(lhs.device.Type, k, lhs.dtype, outDType, lhs.storage, rhs.storage, lhsLayout, rhsLayout, outLayout, params)
	if err != nil {
		return nil, err
	}

	requiresGrad := k.SupportsGrad && (lhs.requiresGrad || rhs.requiresGrad)
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: k, Params: params, InputIDs: []uuid.UUID{lhs.id, rhs.id}, OutputID: out.id})
	}
	return out, nil
}

func Add(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Add, lhs, rhs, op.Params{}) }
func Sub(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Sub, lhs, rhs, op.Params{}) }
func Mul(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Mul, lhs, rhs, op.Params{}) }
func Div(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Div, lhs, rhs, op.Params{}) }

func Eq(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Eq, lhs, rhs, op.Params{}) }
func Ne(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Ne, lhs, rhs, op.Params{}) }
func Lt(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Lt, lhs, rhs, op.Params{}) }
func Le(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Le, lhs, rhs, op.Params{}) }
func Gt(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Gt, lhs, rhs, op.Params{}) }
func Ge(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Ge, lhs, rhs, op.Params{}) }

func Shl(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Shl, lhs, rhs, op.Params{}) }
func Shr(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Shr, lhs, rhs, op.Params{}) }
func And(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.And, lhs, rhs, op.Params{}) }
func Or(lhs, rhs *Tensor) (*Tensor, error)  { return binaryOp(op.Or, lhs, rhs, op.Params{}) }
func Xor(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(op.Xor, lhs, rhs, op.Params{}) }
