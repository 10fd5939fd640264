package tensor

import (
	"github.com/google/uuid"

	"hodu/pkg/device"
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/shape"
	"hodu/pkg/storage"
)

// shapeOp implements the façade template for pure metadata
// transforms (reshape, permute, broadcast): no kernel launch, the
// output shares the input's storage with a different layout, matching
// spec §3 "two tensors may share storage but have different layouts".
func shapeOp(k op.Kind, in *Tensor, params op.Params, outLayout layout.Layout) *Tensor {
	if IsCapturing() {
		out := placeholder(in.dtype, in.device, outLayout, false)
		currentSnapshot().append(Node{
			Op:           k,
			Params:       params,
			InputIDs:     []uuid.UUID{in.id},
			OutputID:     out.id,
			InputLayouts: []layout.Layout{in.layout},
			OutputLayout: outLayout,
			OutputDType:  in.dtype,
		})
		return out
	}

	requiresGrad := k.SupportsGrad && in.requiresGrad
	out := &Tensor{id: newID(), storage: in.storage, layout: outLayout, dtype: in.dtype, device: in.device, requiresGrad: requiresGrad}
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: k, Params: params, InputIDs: []uuid.UUID{in.id}, OutputID: out.id})
	}
	return out
}

// Reshape produces a contiguous layout of newShape; in must already be
// contiguous (a strided view cannot be reshaped without a copy, spec
// §4.4's Reshape primitive assumes this the way hodu_core's composites
// do).
func Reshape(in *Tensor, newShape []int) (*Tensor, error) {
	if !in.layout.IsContiguous() {
		return nil, invalidArg("tensor: reshape requires a contiguous input")
	}
	if shape.Shape(newShape).Size() != in.layout.Shape.Size() {
		return nil, invalidArg("tensor: reshape cannot change element count (%d -> %d)", in.layout.Shape.Size(), shape.Shape(newShape).Size())
	}
	outLayout := layout.Reshape(append([]int(nil), newShape...), in.layout.Offset)
	return shapeOp(op.Reshape, in, op.Params{Dims: newShape}, outLayout), nil
}

// Permute reorders axes per perm (perm[i] is the source axis feeding
// output axis i).
func Permute(in *Tensor, perm []int) (*Tensor, error) {
	outLayout, err := in.layout.Permute(perm)
	if err != nil {
		return nil, invalidArg("tensor: %v", err)
	}
	return shapeOp(op.Permute, in, op.Params{Dims: perm}, outLayout), nil
}

// Broadcast expands in to targetShape via virtual stride-0 dims,
// without materialising data (spec §9 "Broadcast").
func Broadcast(in *Tensor, targetShape []int) (*Tensor, error) {
	out := shape.Shape(targetShape)
	strides, err := shape.BroadcastStrides(in.layout.Strides, in.layout.Strides, in.layout.Shape, out)
	if err != nil {
		return nil, invalidArg("tensor: broadcast: %v", err)
	}
	outLayout := layout.Layout{Shape: out.Clone(), Strides: strides, Offset: in.layout.Offset}
	return shapeOp(op.Broadcast, in, op.Params{Dims: targetShape}, outLayout), nil
}

// Arange returns a 1-D tensor [0, 1, ..., n-1] of the given dtype on
// the CPU device.
func Arange(dt dtype.DType, n int) (*Tensor, error) {
	outLayout := layout.Contiguous(shape.Shape{n}, 0)

	if IsCapturing() {
		out := placeholder(dt, device.Device{Type: "cpu"}, outLayout, false)
		currentSnapshot().append(Node{Op: op.Arange, Params: op.Params{Dims: []int{n}}, OutputID: out.id, OutputLayout: outLayout, OutputDType: dt})
		return out, nil
	}

	s, err := storage.NewCPU(dt, n)
	if err != nil {
		return nil, err
	}
	if err := fillArange(s, n); err != nil {
		return nil, err
	}
	return wrap(s, outLayout, false), nil
}

func fillArange(s storage.Storage, n int) error {
	switch s.DType() {
	case dtype.U8:
		return arangeInto[uint8](s, n)
	case dtype.U16:
		return arangeInto[uint16](s, n)
	case dtype.U32:
		return arangeInto[uint32](s, n)
	case dtype.U64:
		return arangeInto[uint64](s, n)
	case dtype.I8:
		return arangeInto[int8](s, n)
	case dtype.I16:
		return arangeInto[int16](s, n)
	case dtype.I32:
		return arangeInto[int32](s, n)
	case dtype.I64:
		return arangeInto[int64](s, n)
	case dtype.F32:
		return arangeInto[float32](s, n)
	case dtype.F64:
		return arangeInto[float64](s, n)
	default:
		return invalidArg("tensor: arange does not support dtype %s", s.DType())
	}
}

func arangeInto[T ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64](s storage.Storage, n int) error {
	v, err := storage.View[T](s)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v[i] = T(i)
	}
	return nil
}

// unravel decomposes a row-major linear index into per-axis
// coordinates for shp.
func unravel(i int, shp []int) []int {
	coords := make([]int, len(shp))
	rem := i
	for axis := len(shp) - 1; axis >= 0; axis-- {
		dim := shp[axis]
		if dim == 0 {
			dim = 1
		}
		coords[axis] = rem % dim
		rem /= dim
	}
	return coords
}

func linearOffset(l layout.Layout, coords []int) int {
	off := l.Offset
	for axis, c := range coords {
		off += c * l.Strides[axis]
	}
	return off
}

// IndexSelect gathers in along dim at the given indices (spec §4.4
// composite primitive). CPU only: elements are moved as raw bytes, so
// it works uniformly across every dtype including the narrow floats.
func IndexSelect(in *Tensor, dim int, indices []int) (*Tensor, error) {
	if dim < 0 || dim >= len(in.layout.Shape) {
		return nil, invalidArg("tensor: index_select: dim %d out of range for rank %d", dim, len(in.layout.Shape))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= in.layout.Shape[dim] {
			return nil, invalidArg("tensor: index_select: index %d out of range for dim size %d", idx, in.layout.Shape[dim])
		}
	}

	outShape := append(shape.Shape(nil), in.layout.Shape...)
	outShape[dim] = len(indices)
	outLayout := layout.Contiguous(outShape, 0)

	if IsCapturing() {
		out := placeholder(in.dtype, in.device, outLayout, false)
		currentSnapshot().append(Node{Op: op.IndexSelect, Params: op.Params{Dims: append([]int{dim}, indices...)}, InputIDs: []uuid.UUID{in.id}, OutputID: out.id, InputLayouts: []layout.Layout{in.layout}, OutputLayout: outLayout, OutputDType: in.dtype})
		return out, nil
	}

	width := in.dtype.ByteWidth()
	src := in.storage.Bytes()
	outStorage, err := storage.NewCPU(in.dtype, outShape.Size())
	if err != nil {
		return nil, err
	}
	dst := outStorage.Bytes()

	n := outShape.Size()
	for i := 0; i < n; i++ {
		coords := unravel(i, outShape)
		srcCoords := append([]int(nil), coords...)
		srcCoords[dim] = indices[coords[dim]]
		srcOff := linearOffset(in.layout, srcCoords)
		copy(dst[i*width:(i+1)*width], src[srcOff*width:(srcOff+1)*width])
	}

	requiresGrad := op.IndexSelect.SupportsGrad && in.requiresGrad
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: op.IndexSelect, Params: op.Params{Dims: append([]int{dim}, indices...)}, InputIDs: []uuid.UUID{in.id}, OutputID: out.id})
	}
	return out, nil
}

// Gather reads in.shape-conforming index values (as I64) and produces
// an output of index's shape, out[coords] = in[coords with dim
// replaced by index[coords]] — restricted to an I64 index tensor,
// which every caller in this package (the linalg composites) produces
// via IndexSelect/Arange+ToDtype.
func Gather(in *Tensor, dim int, index *Tensor) (*Tensor, error) {
	if index.dtype != dtype.I64 {
		return nil, invalidArg("tensor: gather requires an i64 index tensor, got %s", index.dtype)
	}
	outShape := index.layout.Shape
	outLayout := layout.Contiguous(outShape, 0)

	if IsCapturing() {
		out := placeholder(in.dtype, in.device, outLayout, false)
		currentSnapshot().append(Node{Op: op.Gather, Params: op.Params{Dims: []int{dim}}, InputIDs: []uuid.UUID{in.id, index.id}, OutputID: out.id, InputLayouts: []layout.Layout{in.layout, index.layout}, OutputLayout: outLayout, OutputDType: in.dtype})
		return out, nil
	}

	idxVals, err := storage.View[int64](index.storage)
	if err != nil {
		return nil, err
	}
	width := in.dtype.ByteWidth()
	src := in.storage.Bytes()
	outStorage, err := storage.NewCPU(in.dtype, outShape.Size())
	if err != nil {
		return nil, err
	}
	dst := outStorage.Bytes()

	n := outShape.Size()
	for i := 0; i < n; i++ {
		coords := unravel(i, outShape)
		idxOff := linearOffset(index.layout, coords)
		srcCoords := append([]int(nil), coords...)
		srcCoords[dim] = int(idxVals[idxOff])
		srcOff := linearOffset(in.layout, srcCoords)
		copy(dst[i*width:(i+1)*width], src[srcOff*width:(srcOff+1)*width])
	}

	requiresGrad := op.Gather.SupportsGrad && in.requiresGrad
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: op.Gather, Params: op.Params{Dims: []int{dim}}, InputIDs: []uuid.UUID{in.id, index.id}, OutputID: out.id})
	}
	return out, nil
}

// Scatter returns a copy of in with values from src written at the
// positions index (both I64-indexed and shaped like src) names along
// dim — the mirror of Gather, used by diag's rank-1-to-2 construction.
func Scatter(in *Tensor, dim int, index, src *Tensor) (*Tensor, error) {
	if index.dtype != dtype.I64 {
		return nil, invalidArg("tensor: scatter requires an i64 index tensor, got %s", index.dtype)
	}
	if !in.layout.IsContiguous() {
		return nil, invalidArg("tensor: scatter requires a contiguous destination")
	}
	outLayout := layout.Contiguous(in.layout.Shape, 0)

	if IsCapturing() {
		out := placeholder(in.dtype, in.device, outLayout, false)
		currentSnapshot().append(Node{Op: op.Scatter, Params: op.Params{Dims: []int{dim}}, InputIDs: []uuid.UUID{in.id, index.id, src.id}, OutputID: out.id, InputLayouts: []layout.Layout{in.layout, index.layout, src.layout}, OutputLayout: outLayout, OutputDType: in.dtype})
		return out, nil
	}

	width := in.dtype.ByteWidth()
	outStorage, err := storage.NewCPU(in.dtype, in.layout.Shape.Size())
	if err != nil {
		return nil, err
	}
	dst := outStorage.Bytes()
	copy(dst, in.storage.Bytes())

	idxVals, err := storage.View[int64](index.storage)
	if err != nil {
		return nil, err
	}
	srcBytes := src.storage.Bytes()

	n := index.layout.Shape.Size()
	for i := 0; i < n; i++ {
		coords := unravel(i, index.layout.Shape)
		idxOff := linearOffset(index.layout, coords)
		dstCoords := append([]int(nil), coords...)
		dstCoords[dim] = int(idxVals[idxOff])
		dstOff := linearOffset(outLayout, dstCoords)
		srcOff := linearOffset(src.layout, coords)
		copy(dst[dstOff*width:(dstOff+1)*width], srcBytes[srcOff*width:(srcOff+1)*width])
	}

	requiresGrad := op.Scatter.SupportsGrad && (in.requiresGrad || src.requiresGrad)
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: op.Scatter, Params: op.Params{Dims: []int{dim}}, InputIDs: []uuid.UUID{in.id, index.id, src.id}, OutputID: out.id})
	}
	return out, nil
}
