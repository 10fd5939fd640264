package tensor

import (
	"github.com/google/uuid"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/shape"
	"hodu/pkg/storage"
)

type reducible interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// reduceOutShape computes the output shape for reducing inShape over
// dims; an empty dims reduces every axis. KeepDims leaves reduced axes
// present with size 1 instead of dropping them.
func reduceOutShape(inShape shape.Shape, dims []int, keepDims bool) shape.Shape {
	reduced := make([]bool, len(inShape))
	if len(dims) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, d := range dims {
			reduced[d] = true
		}
	}
	var out shape.Shape
	for i, d := range inShape {
		if !reduced[i] {
			out = append(out, d)
			continue
		}
		if keepDims {
			out = append(out, 1)
		}
	}
	return out
}

// outputSlotForInput maps an input coordinate to the output coordinate
// it reduces into. An output coordinate has no single input (a
// reduction aggregates many inputs per output), so reduceOp walks
// every input element and accumulates into the slot computed here.
func outputSlotForInput(inCoords []int, dims []int, keepDims bool, rank int) []int {
	reduced := make([]bool, rank)
	if len(dims) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, d := range dims {
			reduced[d] = true
		}
	}
	var out []int
	for i, c := range inCoords {
		if !reduced[i] {
			out = append(out, c)
			continue
		}
		if keepDims {
			out = append(out, 0)
		}
	}
	return out
}

func reduceOp(k op.Kind, in *Tensor, dims []int, keepDims bool, combine func(acc, v float64, first bool) float64, finish func(acc float64, count int) float64) (*Tensor, error) {
	outShape := reduceOutShape(in.layout.Shape, dims, keepDims)
	outLayout := layout.Contiguous(outShape, 0)

	if IsCapturing() {
		out := placeholder(in.dtype, in.device, outLayout, false)
		currentSnapshot().append(Node{Op: k, Params: op.Params{Dims: dims, KeepDims: keepDims}, InputIDs: []uuid.UUID{in.id}, OutputID: out.id, InputLayouts: []layout.Layout{in.layout}, OutputLayout: outLayout, OutputDType: in.dtype})
		return out, nil
	}

	acc := make([]float64, outShape.Size())
	counts := make([]int, outShape.Size())
	seen := make([]bool, outShape.Size())

	n := in.layout.Shape.Size()
	for i := 0; i < n; i++ {
		coords := unravel(i, in.layout.Shape)
		srcOff := linearOffset(in.layout, coords)
		v, err := readScalarFloat64(in.storage, srcOff)
		if err != nil {
			return nil, err
		}
		slot := outputSlotForInput(coords, dims, keepDims, len(in.layout.Shape))
		idx := 0
		if len(outShape) > 0 {
			idx = linearOffset(layout.Contiguous(outShape, 0), slot)
		}
		acc[idx] = combine(acc[idx], v, !seen[idx])
		seen[idx] = true
		counts[idx]++
	}

	outStorage, err := storage.NewCPU(in.dtype, outShape.Size())
	if err != nil {
		return nil, err
	}
	for i := range acc {
		acc[i] = finish(acc[i], counts[i])
	}
	if err := writeScalarsFloat64(outStorage, acc); err != nil {
		return nil, err
	}

	requiresGrad := k.SupportsGrad && in.requiresGrad
	out := wrap(outStorage, outLayout, requiresGrad)
	if requiresGrad {
		defaultTape.append(TapeEntry{Op: k, Params: op.Params{Dims: dims, KeepDims: keepDims}, InputIDs: []uuid.UUID{in.id}, OutputID: out.id})
	}
	return out, nil
}

func readScalarFloat64(s storage.Storage, linearIdx int) (float64, error) {
	switch s.DType() {
	case dtype.U8:
		v, err := storage.View[uint8](s)
		return float64(v[linearIdx]), err
	case dtype.U16:
		v, err := storage.View[uint16](s)
		return float64(v[linearIdx]), err
	case dtype.U32:
		v, err := storage.View[uint32](s)
		return float64(v[linearIdx]), err
	case dtype.U64:
		v, err := storage.View[uint64](s)
		return float64(v[linearIdx]), err
	case dtype.I8:
		v, err := storage.View[int8](s)
		return float64(v[linearIdx]), err
	case dtype.I16:
		v, err := storage.View[int16](s)
		return float64(v[linearIdx]), err
	case dtype.I32:
		v, err := storage.View[int32](s)
		return float64(v[linearIdx]), err
	case dtype.I64:
		v, err := storage.View[int64](s)
		return float64(v[linearIdx]), err
	case dtype.F32:
		v, err := storage.View[float32](s)
		return float64(v[linearIdx]), err
	case dtype.F64:
		v, err := storage.View[float64](s)
		return v[linearIdx], err
	default:
		return 0, invalidArg("tensor: reduction does not support dtype %s", s.DType())
	}
}

func writeScalarsFloat64(s storage.Storage, vals []float64) error {
	switch s.DType() {
	case dtype.U8:
		return writeScalars[uint8](s, vals)
	case dtype.U16:
		return writeScalars[uint16](s, vals)
	case dtype.U32:
		return writeScalars[uint32](s, vals)
	case dtype.U64:
		return writeScalars[uint64](s, vals)
	case dtype.I8:
		return writeScalars[int8](s, vals)
	case dtype.I16:
		return writeScalars[int16](s, vals)
	case dtype.I32:
		return writeScalars[int32](s, vals)
	case dtype.I64:
		return writeScalars[int64](s, vals)
	case dtype.F32:
		return writeScalars[float32](s, vals)
	case dtype.F64:
		return writeScalars[float64](s, vals)
	default:
		return invalidArg("tensor: reduction does not support dtype %s", s.DType())
	}
}

func writeScalars[T reducible](s storage.Storage, vals []float64) error {
	v, err := storage.View[T](s)
	if err != nil {
		return err
	}
	for i, f := range vals {
		v[i] = T(f)
	}
	return nil
}

func Sum(in *Tensor, dims []int, keepDims bool) (*Tensor, error) {
	return reduceOp(op.Sum, in, dims, keepDims,
		func(acc, v float64, first bool) float64 { return acc + v },
		func(acc float64, count int) float64 { return acc })
}

func Mean(in *Tensor, dims []int, keepDims bool) (*Tensor, error) {
	return reduceOp(op.Mean, in, dims, keepDims,
		func(acc, v float64, first bool) float64 { return acc + v },
		func(acc float64, count int) float64 {
			if count == 0 {
				return 0
			}
			return acc / float64(count)
		})
}

func Max(in *Tensor, dims []int, keepDims bool) (*Tensor, error) {
	return reduceOp(op.Max, in, dims, keepDims,
		func(acc, v float64, first bool) float64 {
			if first || v > acc {
				return v
			}
			return acc
		},
		func(acc float64, count int) float64 { return acc })
}

func Min(in *Tensor, dims []int, keepDims bool) (*Tensor, error) {
	return reduceOp(op.Min, in, dims, keepDims,
		func(acc, v float64, first bool) float64 {
			if first || v < acc {
				return v
			}
			return acc
		},
		func(acc float64, count int) float64 { return acc })
}
