package kernel

import (
	"testing"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
	"hodu/pkg/shape"
	"hodu/pkg/storage"
)

func TestDispatchBitwiseAnd(t *testing.T) {
	lhs, _ := storage.NewCPU(dtype.U32, 2)
	rhs, _ := storage.NewCPU(dtype.U32, 2)
	lv, _ := storage.View[uint32](lhs)
	rv, _ := storage.View[uint32](rhs)
	copy(lv, []uint32{0b1100, 0b1010})
	copy(rv, []uint32{0b1010, 0b0110})

	l := layout.Contiguous(shape.Shape{2}, 0)
	out, err := DispatchBinary("cpu", op.And, dtype.U32, dtype.U32, lhs, rhs, l, l, l, op.Params{})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ov, _ := storage.View[uint32](out)
	want := []uint32{0b1000, 0b0010}
	for i, w := range want {
		if ov[i] != w {
			t.Errorf("out[%d] = %b, want %b", i, ov[i], w)
		}
	}
}

func TestDispatchBitwiseNotMasksToWidth(t *testing.T) {
	in, _ := storage.NewCPU(dtype.U8, 1)
	iv, _ := storage.View[uint8](in)
	iv[0] = 0x0f

	l := layout.Contiguous(shape.Shape{1}, 0)
	out, err := DispatchUnary("cpu", op.Not, dtype.U8, dtype.U8, in, l, l, op.Params{})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ov, _ := storage.View[uint8](out)
	if ov[0] != 0xf0 {
		t.Errorf("not = %#x, want 0xf0", ov[0])
	}
}

func TestDispatchShlScalar(t *testing.T) {
	in, _ := storage.NewCPU(dtype.I32, 1)
	iv, _ := storage.View[int32](in)
	iv[0] = 1

	l := layout.Contiguous(shape.Shape{1}, 0)
	out, err := DispatchUnary("cpu", op.ShlScalar, dtype.I32, dtype.I32, in, l, l, op.Params{ShiftAmount: 4})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ov, _ := storage.View[int32](out)
	if ov[0] != 16 {
		t.Errorf("shl_scalar = %v, want 16", ov[0])
	}
}

func TestDispatchBitwiseRejectsFloatBinary(t *testing.T) {
	lhs, _ := storage.NewCPU(dtype.F32, 1)
	rhs, _ := storage.NewCPU(dtype.F32, 1)
	l := layout.Contiguous(shape.Shape{1}, 0)
	_, err := DispatchBinary("cpu", op.Xor, dtype.F32, dtype.F32, lhs, rhs, l, l, l, op.Params{})
	if err == nil {
		t.Fatal("expected error dispatching xor on float dtype")
	}
}
