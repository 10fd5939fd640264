package layout

// Metadata is the flat, platform-sized-unsigned-integer launch
// descriptor passed by pointer+length to CPU kernels and as a device
// buffer to GPU/encoder kernels (spec §3, §6).
type Metadata []uint64

// BinaryMetadata encodes a binary-op launch descriptor:
//
//	[num_els, num_dims, lhs_shape…, rhs_shape…, lhs_strides…, rhs_strides…, lhs_offset, rhs_offset]
//
// Open question resolved (spec §9): offsets are carried solely as the
// two trailing elements, never duplicated inside the shape/stride
// block. lhs/rhs must already share
// a common rank (the caller broadcasts shapes beforehand); num_els is
// the output element count.
func BinaryMetadata(lhs, rhs, out Layout) Metadata {
	numDims := len(out.Shape)
	md := make(Metadata, 0, 2+4*numDims+2)
	md = append(md, uint64(out.Shape.Size()), uint64(numDims))
	md = appendDims(md, lhs.Shape, numDims)
	md = appendDims(md, rhs.Shape, numDims)
	md = appendStrides(md, lhs.Strides, numDims)
	md = appendStrides(md, rhs.Strides, numDims)
	md = append(md, uint64(lhs.Offset), uint64(rhs.Offset))
	return md
}

// UnaryMetadata encodes a unary-op launch descriptor:
//
//	[num_els, num_dims, shape…, strides…, offset]
func UnaryMetadata(in, out Layout) Metadata {
	numDims := len(out.Shape)
	md := make(Metadata, 0, 2+2*numDims+1)
	md = append(md, uint64(out.Shape.Size()), uint64(numDims))
	md = appendDims(md, in.Shape, numDims)
	md = appendStrides(md, in.Strides, numDims)
	md = append(md, uint64(in.Offset))
	return md
}

// appendDims pads a shorter shape's leading axes with 1 (NumPy
// right-alignment), guaranteeing dimension-count consistency even when
// the operand's own rank is lower than numDims.
func appendDims(md Metadata, s []int, numDims int) Metadata {
	pad := numDims - len(s)
	for i := 0; i < pad; i++ {
		md = append(md, 1)
	}
	for _, d := range s {
		md = append(md, uint64(d))
	}
	return md
}

// appendStrides pads a shorter operand's leading axes with stride 0 —
// the broadcast convention (spec §9) — and never emits negative
// numbers, since the supported view set has no negative strides.
func appendStrides(md Metadata, strides []int, numDims int) Metadata {
	pad := numDims - len(strides)
	for i := 0; i < pad; i++ {
		md = append(md, 0)
	}
	for _, s := range strides {
		md = append(md, uint64(s))
	}
	return md
}
