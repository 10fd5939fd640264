package tensor

import (
	"testing"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
)

func mustCPUTensor(t *testing.T, dt dtype.DType, shp []int, vals []float64) *Tensor {
	t.Helper()
	size := 1
	for _, d := range shp {
		size *= d
	}
	s, err := storage.NewCPU(dt, size)
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	if vals != nil {
		if err := writeScalarsFloat64(s, vals); err != nil {
			t.Fatalf("writeScalarsFloat64: %v", err)
		}
	}
	tn, err := FromStorage(s, layout.Contiguous(append([]int(nil), shp...), 0), false)
	if err != nil {
		t.Fatalf("FromStorage: %v", err)
	}
	return tn
}

func TestZerosAndAccessors(t *testing.T) {
	tn, err := Zeros(dtype.F32, []int{2, 3})
	if err != nil {
		t.Fatalf("Zeros: %v", err)
	}
	if tn.DType() != dtype.F32 {
		t.Fatalf("DType = %s", tn.DType())
	}
	if tn.Device().Type != "cpu" {
		t.Fatalf("Device = %v", tn.Device())
	}
	if tn.IsPlaceholder() {
		t.Fatalf("Zeros tensor should not be a placeholder")
	}
	if got := tn.Shape(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("Shape = %v", got)
	}
}

func TestFromStorageRejectsMismatchedLayout(t *testing.T) {
	s, err := storage.NewCPU(dtype.F32, 4)
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	_, err = FromStorage(s, layout.Contiguous([]int{3, 3}, 0), false)
	if err == nil {
		t.Fatalf("expected a validation error for a layout requiring 9 elements against 4-element storage")
	}
}

func TestIDsAreUnique(t *testing.T) {
	a, _ := Zeros(dtype.F32, []int{1})
	b, _ := Zeros(dtype.F32, []int{1})
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct ids")
	}
}
