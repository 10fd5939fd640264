package tensor

import (
	"testing"

	"hodu/pkg/dtype"
)

func TestReshapeSharesStorage(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	out, err := Reshape(in, []int{3, 2})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if out.Storage() != in.Storage() {
		t.Fatalf("reshape must share the same underlying storage")
	}
	if got := out.Shape(); got[0] != 3 || got[1] != 2 {
		t.Fatalf("Shape = %v", got)
	}
}

func TestReshapeRejectsElementCountMismatch(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{2, 3}, nil)
	_, err := Reshape(in, []int{4, 2})
	if err == nil {
		t.Fatalf("expected an error for a reshape that changes element count")
	}
}

func TestPermuteSwapsAxes(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{2, 3}, nil)
	out, err := Permute(in, []int{1, 0})
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if got := out.Shape(); got[0] != 3 || got[1] != 2 {
		t.Fatalf("Shape = %v", got)
	}
}

func TestBroadcastExpandsShape(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{1, 3}, []float64{1, 2, 3})
	out, err := Broadcast(in, []int{4, 3})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if got := out.Shape(); got[0] != 4 || got[1] != 3 {
		t.Fatalf("Shape = %v", got)
	}
	if out.Layout().Strides[0] != 0 {
		t.Fatalf("broadcast axis should carry stride 0, got %d", out.Layout().Strides[0])
	}
}

func TestArangeProducesSequence(t *testing.T) {
	out, err := Arange(dtype.I64, 5)
	if err != nil {
		t.Fatalf("Arange: %v", err)
	}
	got, err := storageView(out)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for i := 0; i < 5; i++ {
		if got[i] != float64(i) {
			t.Fatalf("arange[%d] = %v, want %d", i, got[i], i)
		}
	}
}

func TestIndexSelectGathersRows(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{3, 2}, []float64{1, 2, 3, 4, 5, 6})
	out, err := IndexSelect(in, 0, []int{2, 0})
	if err != nil {
		t.Fatalf("IndexSelect: %v", err)
	}
	got, _ := storageView(out)
	want := []float64{5, 6, 1, 2}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("out[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestIndexSelectRejectsOutOfRange(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{3}, nil)
	_, err := IndexSelect(in, 0, []int{5})
	if err == nil {
		t.Fatalf("expected an out-of-range error")
	}
}

func TestGatherRequiresI64Index(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{3}, []float64{1, 2, 3})
	badIndex := mustCPUTensor(t, dtype.I32, []int{3}, []float64{0, 1, 2})
	_, err := Gather(in, 0, badIndex)
	if err == nil {
		t.Fatalf("expected an error for a non-i64 index tensor")
	}
}

func TestGatherRoundTrip(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{4}, []float64{10, 20, 30, 40})
	index := mustCPUTensor(t, dtype.I64, []int{2}, []float64{3, 1})
	out, err := Gather(in, 0, index)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got, _ := storageView(out)
	if got[0] != 40 || got[1] != 20 {
		t.Fatalf("got %v", got)
	}
}

func TestScatterWritesAtIndices(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{4}, []float64{0, 0, 0, 0})
	index := mustCPUTensor(t, dtype.I64, []int{2}, []float64{1, 3})
	src := mustCPUTensor(t, dtype.F32, []int{2}, []float64{9, 8})
	out, err := Scatter(in, 0, index, src)
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	got, _ := storageView(out)
	want := []float64{0, 9, 0, 8}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("out[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestScatterDoesNotMutateSource(t *testing.T) {
	in := mustCPUTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	index := mustCPUTensor(t, dtype.I64, []int{1}, []float64{0})
	src := mustCPUTensor(t, dtype.F32, []int{1}, []float64{99})
	_, err := Scatter(in, 0, index, src)
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	got, _ := storageView(in)
	if got[0] != 1 {
		t.Fatalf("scatter must not mutate its input in place, got %v", got[0])
	}
}
