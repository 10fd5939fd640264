package tensor

import (
	"errors"
	"testing"

	"hodu/pkg/dtype"
)

func TestAddBroadcasts(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{2, 2}, []float64{1, 2, 3, 4})
	rhs := mustCPUTensor(t, dtype.F32, []int{1, 2}, []float64{10, 20})

	out, err := Add(lhs, rhs)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	view, err := storageView(out)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	want := []float64{11, 22, 13, 24}
	for i, w := range want {
		if view[i] != w {
			t.Fatalf("out[%d] = %v, want %v", i, view[i], w)
		}
	}
}

func storageView(tn *Tensor) ([]float64, error) {
	out := make([]float64, tn.Layout().Shape.Size())
	for i := range out {
		v, err := readScalarFloat64(tn.Storage(), i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestAddRejectsMismatchedDType(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	rhs := mustCPUTensor(t, dtype.I32, []int{2}, []float64{1, 2})
	_, err := Add(lhs, rhs)
	var invalid *ErrInvalidArgument
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAddRejectsIncompatibleShapes(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{2, 3}, nil)
	rhs := mustCPUTensor(t, dtype.F32, []int{4, 3}, nil)
	_, err := Add(lhs, rhs)
	var invalid *ErrInvalidArgument
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidArgument for incompatible shapes, got %v", err)
	}
}

func TestCompareProducesBool(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{3}, []float64{1, 2, 3})
	rhs := mustCPUTensor(t, dtype.F32, []int{3}, []float64{3, 2, 1})
	out, err := Ge(lhs, rhs)
	if err != nil {
		t.Fatalf("Ge: %v", err)
	}
	if out.DType() != dtype.BOOL {
		t.Fatalf("Ge output dtype = %s, want bool", out.DType())
	}
}

func TestCompareNeverRequiresGrad(t *testing.T) {
	lhs := mustGradTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	rhs := mustGradTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	out, err := Eq(lhs, rhs)
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if out.RequiresGrad() {
		t.Fatalf("compare output must never require grad")
	}
}

func TestBitwiseNeverRequiresGrad(t *testing.T) {
	lhs := mustGradIntTensor(t, dtype.I32, []int{2}, []int64{1, 2})
	rhs := mustGradIntTensor(t, dtype.I32, []int{2}, []int64{3, 4})
	out, err := And(lhs, rhs)
	if err != nil {
		t.Fatalf("And: %v", err)
	}
	if out.RequiresGrad() {
		t.Fatalf("bitwise output must never require grad even if inputs do")
	}
}

func TestArithRecordsGradWhenInputRequires(t *testing.T) {
	before := len(defaultTape.Entries())
	lhs := mustGradTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	rhs := mustCPUTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	out, err := Mul(lhs, rhs)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if !out.RequiresGrad() {
		t.Fatalf("expected output to require grad")
	}
	after := defaultTape.Entries()
	if len(after) != before+1 {
		t.Fatalf("expected exactly one new tape entry, got %d new", len(after)-before)
	}
	if after[len(after)-1].OutputID != out.ID() {
		t.Fatalf("tape entry output id mismatch")
	}
}

func mustGradTensor(t *testing.T, dt dtype.DType, shp []int, vals []float64) *Tensor {
	t.Helper()
	tn := mustCPUTensor(t, dt, shp, vals)
	tn.requiresGrad = true
	return tn
}

func mustGradIntTensor(t *testing.T, dt dtype.DType, shp []int, vals []int64) *Tensor {
	t.Helper()
	fvals := make([]float64, len(vals))
	for i, v := range vals {
		fvals[i] = float64(v)
	}
	return mustGradTensor(t, dt, shp, fvals)
}
