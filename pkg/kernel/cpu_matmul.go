package kernel

import (
	"hodu/pkg/dtype"
	"hodu/pkg/storage"
)

// matmulDTypes lists the dtypes the CPU matmul kernel accepts; the
// narrow floats and byte-width-1/2 integers are excluded since
// hodu_core reserves matmul for the wider numeric types.
var matmulDTypes = []dtype.DType{dtype.F32, dtype.F64, dtype.I32, dtype.I64}

func init() {
	for _, dt := range matmulDTypes {
		dt := dt
		RegisterMatmul("cpu", dt, func(lhs, rhs, out storage.Storage, shape MatmulShape) error {
			return dispatchMatmulNumeric(dt, lhs, rhs, out, shape)
		})
	}
}

func dispatchMatmulNumeric(dt dtype.DType, lhs, rhs, out storage.Storage, shape MatmulShape) error {
	switch dt {
	case dtype.F32:
		return runMatmul[float32](lhs, rhs, out, shape)
	case dtype.F64:
		return runMatmul[float64](lhs, rhs, out, shape)
	case dtype.I32:
		return runMatmul[int32](lhs, rhs, out, shape)
	case dtype.I64:
		return runMatmul[int64](lhs, rhs, out, shape)
	default:
		return newBackendError("matmul: unsupported dtype " + dt.String())
	}
}

func runMatmul[T numeric](lhs, rhs, out storage.Storage, shape MatmulShape) error {
	lv, err := storage.View[T](lhs)
	if err != nil {
		return err
	}
	rv, err := storage.View[T](rhs)
	if err != nil {
		return err
	}
	ov, err := storage.View[T](out)
	if err != nil {
		return err
	}

	m, k, n := shape.M, shape.K, shape.N
	for b := 0; b < shape.Batch; b++ {
		lb := lv[b*m*k : (b+1)*m*k]
		rb := rv[b*k*n : (b+1)*k*n]
		ob := ov[b*m*n : (b+1)*m*n]
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var acc T
				for p := 0; p < k; p++ {
					acc += lb[i*k+p] * rb[p*n+j]
				}
				ob[i*n+j] = acc
			}
		}
	}
	return nil
}
