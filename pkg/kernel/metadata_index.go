package kernel

import "hodu/pkg/layout"

// binaryIndexer and unaryIndexer unravel a contiguous output linear
// index into the strided source offset(s) a metadata array describes,
// the same computation every CPU kernel performs from the flat
// metadata buffer (spec §3 "Metadata array").

type binaryIndexer struct {
	numDims                int
	lhsShape, rhsShape     []uint64
	lhsStrides, rhsStrides []uint64
	lhsOffset, rhsOffset   int
}

func newBinaryIndexer(md layout.Metadata) binaryIndexer {
	d := int(md[1])
	return binaryIndexer{
		numDims:    d,
		lhsShape:   md[2 : 2+d],
		rhsShape:   md[2+d : 2+2*d],
		lhsStrides: md[2+2*d : 2+3*d],
		rhsStrides: md[2+3*d : 2+4*d],
		lhsOffset:  int(md[2+4*d]),
		rhsOffset:  int(md[2+4*d+1]),
	}
}

// binaryOffsets returns the (lhs, rhs) linear source offsets for
// output element i, unravelling i against lhsShape (the canonical
// output shape per spec §4.1) in row-major order.
func (b binaryIndexer) binaryOffsets(i int) (int, int) {
	lhsOff, rhsOff := b.lhsOffset, b.rhsOffset
	rem := i
	for axis := b.numDims - 1; axis >= 0; axis-- {
		dim := int(b.lhsShape[axis])
		if dim == 0 {
			dim = 1
		}
		coord := rem % dim
		rem /= dim
		lhsOff += coord * int(b.lhsStrides[axis])
		rhsOff += coord * int(b.rhsStrides[axis])
	}
	return lhsOff, rhsOff
}

type unaryIndexer struct {
	numDims int
	shape   []uint64
	strides []uint64
	offset  int
}

func newUnaryIndexer(md layout.Metadata) unaryIndexer {
	d := int(md[1])
	return unaryIndexer{
		numDims: d,
		shape:   md[2 : 2+d],
		strides: md[2+d : 2+2*d],
		offset:  int(md[2+2*d]),
	}
}

func (u unaryIndexer) unaryOffset(i int) int {
	off := u.offset
	rem := i
	for axis := u.numDims - 1; axis >= 0; axis-- {
		dim := int(u.shape[axis])
		if dim == 0 {
			dim = 1
		}
		coord := rem % dim
		rem /= dim
		off += coord * int(u.strides[axis])
	}
	return off
}
