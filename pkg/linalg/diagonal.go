package linalg

import (
	"hodu/pkg/dtype"
	"hodu/pkg/tensor"
)

// Diagonal extracts the k-th diagonal of the (d1,d2) axis pair on a
// rank >= 2 tensor, batched over every other axis (spec.md §4.4
// "diagonal(k, d1, d2)"): permute so (d1,d2) become the trailing axes,
// flatten the leading axes into one batch axis, then gather the
// diagonal of every matrix in the batch at once via a broadcast index
// tensor, and reshape back to batch_dims + [len]. An empty diagonal
// yields batch_dims + [0] (spec.md's resolved Open Question).
func Diagonal(x *tensor.Tensor, k, d1, d2 int) (*tensor.Tensor, error) {
	shp := x.Shape()
	rank := len(shp)
	if rank < 2 {
		return nil, invalidArg("linalg: diagonal requires rank >= 2, got rank %d", rank)
	}
	if d1 == d2 || d1 < 0 || d1 >= rank || d2 < 0 || d2 >= rank {
		return nil, invalidArg("linalg: diagonal: invalid axis pair (%d, %d) for rank %d", d1, d2, rank)
	}

	perm := make([]int, 0, rank)
	for ax := 0; ax < rank; ax++ {
		if ax != d1 && ax != d2 {
			perm = append(perm, ax)
		}
	}
	perm = append(perm, d1, d2)

	permuted, err := tensor.Permute(x, perm)
	if err != nil {
		return nil, err
	}
	flat, err := materialize(permuted)
	if err != nil {
		return nil, err
	}

	batchShape := append([]int(nil), flat.Shape()[:rank-2]...)
	n, m := flat.Shape()[rank-2], flat.Shape()[rank-1]
	batchSize := 1
	for _, d := range batchShape {
		batchSize *= d
	}

	flat, err = tensor.Reshape(flat, []int{batchSize, n, m})
	if err != nil {
		return nil, err
	}

	l := diagLength(n, m, k)
	if l <= 0 {
		return tensor.Zeros(x.DType(), append(batchShape, 0))
	}
	rowStart, colStart := 0, 0
	if k < 0 {
		rowStart = -k
	} else {
		colStart = k
	}

	rowIdx := make([]int, l)
	for i := range rowIdx {
		rowIdx[i] = rowStart + i
	}
	rowsSelected, err := tensor.IndexSelect(flat, 1, rowIdx) // [batch, l, m]
	if err != nil {
		return nil, err
	}

	colIdx, err := tensor.Arange(dtype.I64, l)
	if err != nil {
		return nil, err
	}
	colIdx, err = tensor.AddScalar(colIdx, float64(colStart))
	if err != nil {
		return nil, err
	}
	colIdx, err = tensor.Reshape(colIdx, []int{1, l, 1})
	if err != nil {
		return nil, err
	}
	colIdxBroadcast, err := tensor.Broadcast(colIdx, []int{batchSize, l, 1})
	if err != nil {
		return nil, err
	}

	gathered, err := tensor.Gather(rowsSelected, 2, colIdxBroadcast) // [batch, l, 1]
	if err != nil {
		return nil, err
	}
	return tensor.Reshape(gathered, append(append([]int(nil), batchShape...), l))
}

// Trace sums each matrix's main diagonal (spec.md lists trace alongside
// det/inv as a composite validated the same way); it is expressed
// directly atop Diagonal + Sum rather than its own numeric kernel,
// since summation needs no pivoting concerns the way inversion does.
func Trace(x *tensor.Tensor) (*tensor.Tensor, error) {
	shp := x.Shape()
	rank := len(shp)
	if rank < 2 {
		return nil, invalidArg("linalg: trace requires rank >= 2, got rank %d", rank)
	}
	if shp[rank-2] != shp[rank-1] {
		return nil, invalidArg("linalg: trace requires a square matrix, got %dx%d", shp[rank-2], shp[rank-1])
	}
	diag, err := Diagonal(x, 0, rank-2, rank-1)
	if err != nil {
		return nil, err
	}
	lastAxis := len(diag.Shape()) - 1
	out, err := tensor.Sum(diag, []int{lastAxis}, false)
	if err != nil {
		return nil, err
	}
	if len(out.Shape()) == 0 {
		return tensor.Reshape(out, []int{1})
	}
	return out, nil
}
