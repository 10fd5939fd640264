package linalg

import (
	"golang.org/x/sync/errgroup"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
	"hodu/pkg/tensor"
)

// maxBatchWorkers bounds how many matrices a batched det/inv call
// factors concurrently; each worker owns one matrix's elimination
// workspace so there is no shared mutable state to guard.
const maxBatchWorkers = 8

// squareBatch validates x is rank >= 2 and square on its last two
// axes, and returns its batch count (1 for a bare rank-2 matrix) plus
// side length.
func squareBatch(x *tensor.Tensor, opName string) (batch, side int, err error) {
	shp := x.Shape()
	rank := len(shp)
	if rank < 2 {
		return 0, 0, invalidArg("linalg: %s requires rank >= 2, got rank %d", opName, rank)
	}
	n, m := shp[rank-2], shp[rank-1]
	if n != m {
		return 0, 0, invalidArg("linalg: %s requires a square matrix, got %dx%d", opName, n, m)
	}
	batch = 1
	for _, d := range shp[:rank-2] {
		batch *= d
	}
	return batch, n, nil
}

// toFloat64Batches widens x to contiguous float64 and returns one
// []float64 slice of length side*side per batch entry.
func toFloat64Batches(x *tensor.Tensor, batch, side int) ([][]float64, error) {
	xf64, err := tensor.ToDtype(x, dtype.F64)
	if err != nil {
		return nil, err
	}
	vals, err := storage.View[float64](xf64.Storage())
	if err != nil {
		return nil, err
	}
	out := make([][]float64, batch)
	stride := side * side
	for b := 0; b < batch; b++ {
		m := make([]float64, stride)
		copy(m, vals[b*stride:(b+1)*stride])
		out[b] = m
	}
	return out, nil
}

// runBatched applies fn to every batch index concurrently, bounded by
// maxBatchWorkers; fn owns its own workspace so no synchronisation is
// needed beyond errgroup's own bookkeeping.
func runBatched(batch int, fn func(b int) error) error {
	var g errgroup.Group
	g.SetLimit(maxBatchWorkers)
	for b := 0; b < batch; b++ {
		b := b
		g.Go(func() error { return fn(b) })
	}
	return g.Wait()
}

// gaussJordanDet factors m (side x side, row-major, mutated in place)
// with partial pivoting and returns the determinant. A zero pivot
// means the matrix is singular and the determinant is exactly zero.
func gaussJordanDet(m []float64, side int) float64 {
	det := 1.0
	for col := 0; col < side; col++ {
		pivotRow := col
		best := abs64(m[col*side+col])
		for r := col + 1; r < side; r++ {
			if v := abs64(m[r*side+col]); v > best {
				best = v
				pivotRow = r
			}
		}
		if best == 0 {
			return 0
		}
		if pivotRow != col {
			swapRows(m, side, col, pivotRow)
			det = -det
		}
		pivot := m[col*side+col]
		det *= pivot
		for r := col + 1; r < side; r++ {
			factor := m[r*side+col] / pivot
			if factor == 0 {
				continue
			}
			for c := col; c < side; c++ {
				m[r*side+c] -= factor * m[col*side+c]
			}
		}
	}
	return det
}

// gaussJordanInvert inverts m (side x side, row-major) via full
// Gauss-Jordan elimination with partial pivoting on an augmented
// [m | I] matrix. A singular m drives a pivot to (near) zero, and the
// resulting division produces inf/nan in the output — a documented
// behaviour, not an error (spec.md §4.4).
func gaussJordanInvert(m []float64, side int) []float64 {
	aug := make([]float64, side*2*side)
	for r := 0; r < side; r++ {
		copy(aug[r*2*side:r*2*side+side], m[r*side:(r+1)*side])
		aug[r*2*side+side+r] = 1
	}
	w := 2 * side

	for col := 0; col < side; col++ {
		pivotRow := col
		best := abs64(aug[col*w+col])
		for r := col + 1; r < side; r++ {
			if v := abs64(aug[r*w+col]); v > best {
				best = v
				pivotRow = r
			}
		}
		if pivotRow != col {
			swapRows(aug, w, col, pivotRow)
		}
		pivot := aug[col*w+col]
		for c := 0; c < w; c++ {
			aug[col*w+c] /= pivot
		}
		for r := 0; r < side; r++ {
			if r == col {
				continue
			}
			factor := aug[r*w+col]
			if factor == 0 {
				continue
			}
			for c := 0; c < w; c++ {
				aug[r*w+c] -= factor * aug[col*w+c]
			}
		}
	}

	out := make([]float64, side*side)
	for r := 0; r < side; r++ {
		copy(out[r*side:(r+1)*side], aug[r*w+side:r*w+2*side])
	}
	return out
}

func swapRows(m []float64, width, a, b int) {
	for c := 0; c < width; c++ {
		m[a*width+c], m[b*width+c] = m[b*width+c], m[a*width+c]
	}
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// batchOutputShape strips the last two axes of x's shape, folding an
// empty batch to [1] (spec.md §4.4: "empty batch becomes [1]").
func batchOutputShape(shp []int) []int {
	rank := len(shp)
	batchShape := append([]int(nil), shp[:rank-2]...)
	if len(batchShape) == 0 {
		return []int{1}
	}
	return batchShape
}

// Det computes the determinant of each matrix in x (spec.md §4.4).
func Det(x *tensor.Tensor) (*tensor.Tensor, error) {
	batch, side, err := squareBatch(x, "det")
	if err != nil {
		return nil, err
	}
	matrices, err := toFloat64Batches(x, batch, side)
	if err != nil {
		return nil, err
	}

	results := make([]float64, batch)
	if err := runBatched(batch, func(b int) error {
		results[b] = gaussJordanDet(matrices[b], side)
		return nil
	}); err != nil {
		return nil, err
	}

	outShape := batchOutputShape(x.Shape())
	out, err := floatTensor(results, outShape)
	if err != nil {
		return nil, err
	}
	if x.DType() == dtype.F64 {
		return out, nil
	}
	return tensor.ToDtype(out, x.DType())
}

// Inv inverts each matrix in x via Gauss-Jordan elimination with
// partial pivoting (spec.md §4.4). Output shape equals input shape.
func Inv(x *tensor.Tensor) (*tensor.Tensor, error) {
	batch, side, err := squareBatch(x, "inv")
	if err != nil {
		return nil, err
	}
	matrices, err := toFloat64Batches(x, batch, side)
	if err != nil {
		return nil, err
	}

	results := make([][]float64, batch)
	if err := runBatched(batch, func(b int) error {
		results[b] = gaussJordanInvert(matrices[b], side)
		return nil
	}); err != nil {
		return nil, err
	}

	flat := make([]float64, 0, batch*side*side)
	for _, m := range results {
		flat = append(flat, m...)
	}
	out, err := floatTensor(flat, x.Shape())
	if err != nil {
		return nil, err
	}
	if x.DType() == dtype.F64 {
		return out, nil
	}
	return tensor.ToDtype(out, x.DType())
}

// Solve returns the x solving A @ x = b: inv(A) @ b, with a 1-D b
// lifted to a column vector and squeezed back (spec.md §4.4 "solve").
func Solve(a, b *tensor.Tensor) (*tensor.Tensor, error) {
	inv, err := Inv(a)
	if err != nil {
		return nil, err
	}
	rank := len(b.Shape())
	rhs := b
	lifted := false
	if rank == 1 {
		var err error
		rhs, err = tensor.Reshape(b, append(append([]int(nil), b.Shape()...), 1))
		if err != nil {
			return nil, err
		}
		lifted = true
	}
	out, err := tensor.Matmul(inv, rhs)
	if err != nil {
		return nil, err
	}
	if lifted {
		outShape := out.Shape()
		return tensor.Reshape(out, outShape[:len(outShape)-1])
	}
	return out, nil
}

// floatTensor wraps a flat float64 slice as a fresh contiguous F64
// tensor of the given shape.
func floatTensor(vals []float64, shp []int) (*tensor.Tensor, error) {
	size := 1
	for _, d := range shp {
		size *= d
	}
	s, err := storage.NewCPU(dtype.F64, size)
	if err != nil {
		return nil, err
	}
	v, err := storage.View[float64](s)
	if err != nil {
		return nil, err
	}
	copy(v, vals)
	return tensor.FromStorage(s, layout.Contiguous(append([]int(nil), shp...), 0), false)
}
