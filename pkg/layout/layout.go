// Package layout implements (shape, strides, offset) tuples and the
// flat metadata arrays that are the wire format between the dispatcher
// and every kernel (spec §3, §4.2).
package layout

import (
	"fmt"

	"hodu/pkg/shape"
)

// Layout describes how a logical shape maps onto a linear buffer:
// strides are in element units, not bytes.
type Layout struct {
	Shape   shape.Shape
	Strides []int
	Offset  int
}

// Contiguous builds the canonical row-major layout for shape s at the
// given offset.
func Contiguous(s shape.Shape, offset int) Layout {
	strides := RowMajorStrides(s)
	return Layout{Shape: s.Clone(), Strides: strides, Offset: offset}
}

// RowMajorStrides returns the row-major prefix-product strides for s.
func RowMajorStrides(s shape.Shape) []int {
	n := len(s)
	strides := make([]int, n)
	acc := 1
	for i := n - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// IsContiguous reports whether l's strides equal the row-major
// prefix product of its shape.
func (l Layout) IsContiguous() bool {
	want := RowMajorStrides(l.Shape)
	if len(want) != len(l.Strides) {
		return false
	}
	for i := range want {
		if l.Shape[i] > 1 && want[i] != l.Strides[i] {
			return false
		}
	}
	return true
}

// MaxReachableIndex returns the largest linear index this layout can
// address, used to validate the buffer-size invariant in spec §3.
func (l Layout) MaxReachableIndex() int {
	idx := l.Offset
	for i, d := range l.Shape {
		if d == 0 {
			return l.Offset
		}
		idx += (d - 1) * l.Strides[i]
	}
	return idx
}

// Validate checks offset+maxReachableIndex < bufferSize (spec §3
// invariant).
func (l Layout) Validate(bufferSize int) error {
	if len(l.Shape) != len(l.Strides) {
		return fmt.Errorf("layout: shape rank %d does not match strides rank %d", len(l.Shape), len(l.Strides))
	}
	if max := l.MaxReachableIndex(); max >= bufferSize {
		return fmt.Errorf("layout: max reachable index %d exceeds buffer size %d", max, bufferSize)
	}
	return nil
}

// Permute returns a new layout with axes reordered according to perm
// (perm[i] is the source axis that becomes axis i).
func (l Layout) Permute(perm []int) (Layout, error) {
	if len(perm) != len(l.Shape) {
		return Layout{}, fmt.Errorf("layout: permutation length %d does not match rank %d", len(perm), len(l.Shape))
	}
	seen := make([]bool, len(perm))
	newShape := make(shape.Shape, len(perm))
	newStrides := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(l.Shape) || seen[p] {
			return Layout{}, fmt.Errorf("layout: invalid permutation %v", perm)
		}
		seen[p] = true
		newShape[i] = l.Shape[p]
		newStrides[i] = l.Strides[p]
	}
	return Layout{Shape: newShape, Strides: newStrides, Offset: l.Offset}, nil
}

// Reshape produces a contiguous layout of the new shape; callers are
// responsible for ensuring l is contiguous (or have already
// materialised a contiguous copy) since a strided view cannot in
// general be reshaped without copying.
func Reshape(newShape shape.Shape, offset int) Layout {
	return Contiguous(newShape, offset)
}
