package kernel

import (
	"testing"

	"hodu/pkg/dtype"
	"hodu/pkg/storage"
)

func TestDispatchMatmul2x2(t *testing.T) {
	lhs, _ := storage.NewCPU(dtype.F32, 4)
	rhs, _ := storage.NewCPU(dtype.F32, 4)
	fillF32(t, lhs, []float32{1, 2, 3, 4})
	fillF32(t, rhs, []float32{5, 6, 7, 8})

	out, err := DispatchMatmul("cpu", dtype.F32, lhs, rhs, MatmulShape{Batch: 1, M: 2, K: 2, N: 2})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ov, _ := storage.View[float32](out)
	want := []float32{19, 22, 43, 50}
	for i, w := range want {
		if ov[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, ov[i], w)
		}
	}
}

func TestDispatchMatmulBatched(t *testing.T) {
	lhs, _ := storage.NewCPU(dtype.I32, 8)
	rhs, _ := storage.NewCPU(dtype.I32, 8)
	lv, _ := storage.View[int32](lhs)
	rv, _ := storage.View[int32](rhs)
	copy(lv, []int32{1, 0, 0, 1, 2, 0, 0, 2})
	copy(rv, []int32{1, 2, 3, 4, 5, 6, 7, 8})

	out, err := DispatchMatmul("cpu", dtype.I32, lhs, rhs, MatmulShape{Batch: 2, M: 2, K: 2, N: 2})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ov, _ := storage.View[int32](out)
	want := []int32{1, 2, 3, 4, 10, 12, 14, 16}
	for i, w := range want {
		if ov[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, ov[i], w)
		}
	}
}

func TestDispatchMatmulMissingKernel(t *testing.T) {
	lhs, _ := storage.NewCPU(dtype.U8, 1)
	rhs, _ := storage.NewCPU(dtype.U8, 1)
	_, err := DispatchMatmul("cpu", dtype.U8, lhs, rhs, MatmulShape{Batch: 1, M: 1, K: 1, N: 1})
	if err == nil {
		t.Fatal("expected error for unregistered dtype")
	}
}
