package tensor

import (
	"github.com/google/uuid"

	"hodu/pkg/kernel"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/shape"
)

// Matmul multiplies batched matrices: lhs and rhs must each be rank >=
// 2 with equal leading batch dims (after broadcasting), contiguous,
// and share the inner (K) dimension. Matmul has no metadata-array
// wire format (pkg/kernel/matmul.go), so unlike binaryOp this goes
// through kernel.DispatchMatmul with an explicit MatmulShape instead
// of a Metadata array.
func Matmul(lhs, rhs *Tensor) (*Tensor, error) {
	if !lhs.device.Equal(rhs.device) {
		return nil, invalidArg("tensor: matmul requires both operands on the same device, got %s and %s", lhs.device, rhs.device)
	}
	if lhs.dtype != rhs.dtype {
		return nil, invalidArg("tensor: matmul requires matching dtypes, got %s and %s", lhs.dtype, rhs.dtype)
	}
	lr, rr := len(lhs.layout.Shape), len(rhs.layout.Shape)
	if lr < 2 || rr < 2 {
		return nil, invalidArg("tensor: matmul requires rank >= 2 operands, got ranks %d and %d", lr, rr)
	}
	m, k := lhs.layout.Shape[lr-2], lhs.layout.Shape[lr-1]
	k2, n := rhs.layout.Shape[rr-2], rhs.layout.Shape[rr-1]
	if k != k2 {
		return nil, invalidArg("tensor: matmul inner dimension mismatch, got %d and %d", k, k2)
	}

	lhsBatch := lhs.layout.Shape[:lr-2]
	rhsBatch := rhs.layout.Shape[:rr-2]
	batchShape, err := shape.Broadcast(lhsBatch, rhsBatch)
	if err != nil {
		return nil, invalidArg("tensor: matmul: incompatible batch dims: %v", err)
	}
	batch := batchShape.Size()

	outShape := append(append(shape.Shape{}, batchShape...), m, n)
	outLayout := layout.Contiguous(outShape, 0)

	if IsCapturing() {
		out := placeholder(lhs.dtype, lhs.device, outLayout, false)
		currentSnapshot().append(Node{
			Op:           op.Matmul,
			InputIDs:     []uuid.UUID{lhs.id, rhs.id},
			OutputID:     out.id,
			InputLayouts: []layout.Layout{lhs.layout, rhs.layout},
			OutputLayout: outLayout,
			OutputDType:  lhs.dtype,
		})
		return out, nil
	}

	if !lhs.layout.IsContiguous() || !rhs.layout.IsContiguous() {
		return nil, invalidArg("tensor: matmul requires contiguous operands; reshape or materialise via index_select first")
	}
	if batchShape.Size() != lhsBatch.Size() || batchShape.Size() != rhsBatch.Size() {
		return nil, invalidArg("tensor: matmul does not broadcast batch dims of differing size (lhs=%v rhs=%v)", lhsBatch, rhsBatch)
	}

	outStorage, err := kernel.DispatchMatmul(lhs.device.Type, lhs.dtype, lhs.storage, rhs.storage, kernel.MatmulShape{Batch: batch, M: m, K: k, N: n})
	if err != nil {
		return nil, err
	}

	requiresGrad := op.Matmul.SupportsGrad && (lhs.requiresGrad || rhs.requiresGrad)
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: op.Matmul, InputIDs: []uuid.UUID{lhs.id, rhs.id}, OutputID: out.id})
	}
	return out, nil
}
