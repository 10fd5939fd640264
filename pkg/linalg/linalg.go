// Package linalg implements the linear-algebra composites: tril, triu,
// diag, diagonal, det, inv, trace and solve, each decomposed onto the
// façade primitives in pkg/tensor the way hodu_core's composite layer
// builds on its dispatch core, with det/inv needing a real numerical
// kernel rather than a pure decomposition (see gaussjordan.go).
package linalg

import (
	"fmt"

	"hodu/pkg/dtype"
	"hodu/pkg/tensor"
)

// ErrInvalidArgument mirrors tensor.ErrInvalidArgument for composites
// that validate rank/shape before touching the façade.
type ErrInvalidArgument struct{ Msg string }

func (e *ErrInvalidArgument) Error() string { return e.Msg }

func invalidArg(format string, args ...any) error {
	return &ErrInvalidArgument{Msg: fmt.Sprintf(format, args...)}
}

// materialize forces t into a fresh, contiguous row-major buffer by
// running an identity index_select along axis 0 — index_select already
// reads through arbitrary strides and writes a contiguous result, so
// this is the one primitive operation that can stand in for a "copy"
// composite (spec.md never names one explicitly).
func materialize(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Layout().IsContiguous() {
		return t, nil
	}
	n := t.Shape()[0]
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return tensor.IndexSelect(t, 0, idx)
}

// Tril returns x with every element above the k-th diagonal zeroed:
// tril(x,k)[...,i,j] = x[...,i,j] iff i+k >= j, else 0.
func Tril(x *tensor.Tensor, k int) (*tensor.Tensor, error) {
	return triangularMask(x, k, false)
}

// Triu returns x with every element below the k-th diagonal zeroed:
// triu(x,k)[...,i,j] = x[...,i,j] iff j >= i+k, else 0.
func Triu(x *tensor.Tensor, k int) (*tensor.Tensor, error) {
	return triangularMask(x, k, true)
}

func triangularMask(x *tensor.Tensor, k int, upper bool) (*tensor.Tensor, error) {
	shp := x.Shape()
	if len(shp) < 2 {
		return nil, invalidArg("linalg: tril/triu requires rank >= 2, got rank %d", len(shp))
	}
	n, m := shp[len(shp)-2], shp[len(shp)-1]

	rows, err := tensor.Arange(dtype.I64, n)
	if err != nil {
		return nil, err
	}
	rows, err = tensor.Reshape(rows, []int{n, 1})
	if err != nil {
		return nil, err
	}
	rowsShifted, err := tensor.AddScalar(rows, float64(k))
	if err != nil {
		return nil, err
	}

	cols, err := tensor.Arange(dtype.I64, m)
	if err != nil {
		return nil, err
	}
	cols, err = tensor.Reshape(cols, []int{1, m})
	if err != nil {
		return nil, err
	}

	var mask *tensor.Tensor
	if upper {
		mask, err = tensor.Ge(cols, rowsShifted)
	} else {
		mask, err = tensor.Ge(rowsShifted, cols)
	}
	if err != nil {
		return nil, err
	}

	maskCast, err := tensor.ToDtype(mask, x.DType())
	if err != nil {
		return nil, err
	}
	return tensor.Mul(x, maskCast)
}

// Diag is polymorphic on rank (spec.md's diag(k)): a rank-1 input
// scatters its values onto the k-th diagonal of a fresh square matrix;
// a rank-2 input extracts its k-th diagonal as a 1-D tensor.
func Diag(v *tensor.Tensor, k int) (*tensor.Tensor, error) {
	switch len(v.Shape()) {
	case 1:
		return diagBuild(v, k)
	case 2:
		return diagExtract(v, k)
	default:
		return nil, invalidArg("linalg: diag requires rank 1 or 2, got rank %d", len(v.Shape()))
	}
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// diagBuild implements spec.md's rank-1 -> rank-2 diag: scatter indices
// at base + i*(side+1) into a zeroed side x side matrix, where side =
// n + |k| and base locates the first diagonal element's flat offset.
func diagBuild(v *tensor.Tensor, k int) (*tensor.Tensor, error) {
	n := v.Shape()[0]
	side := n + absInt(k)
	rowStart, colStart := 0, 0
	if k < 0 {
		rowStart = -k
	} else {
		colStart = k
	}
	base := rowStart*side + colStart

	zero, err := tensor.Zeros(v.DType(), []int{side * side})
	if err != nil {
		return nil, err
	}

	idx, err := tensor.Arange(dtype.I64, n)
	if err != nil {
		return nil, err
	}
	idx, err = tensor.MulScalar(idx, float64(side+1))
	if err != nil {
		return nil, err
	}
	idx, err = tensor.AddScalar(idx, float64(base))
	if err != nil {
		return nil, err
	}

	scattered, err := tensor.Scatter(zero, 0, idx, v)
	if err != nil {
		return nil, err
	}
	return tensor.Reshape(scattered, []int{side, side})
}

// diagLength computes the k-th diagonal's length of an NxM matrix,
// per spec.md: min(N, M-k) for k>=0, min(M, N+k) for k<0; non-positive
// means the diagonal is entirely out of range.
func diagLength(n, m, k int) int {
	if k >= 0 {
		return minInt(n, m-k)
	}
	return minInt(m, n+k)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func diagExtract(mat *tensor.Tensor, k int) (*tensor.Tensor, error) {
	n, m := mat.Shape()[0], mat.Shape()[1]
	l := diagLength(n, m, k)
	if l <= 0 {
		return tensor.Zeros(mat.DType(), []int{0})
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
	rowsSelected, err := tensor.IndexSelect(mat, 0, rowIdx)
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
	colIdx, err = tensor.Reshape(colIdx, []int{l, 1})
	if err != nil {
		return nil, err
	}

	gathered, err := tensor.Gather(rowsSelected, 1, colIdx)
	if err != nil {
		return nil, err
	}
	return tensor.Reshape(gathered, []int{l})
}
