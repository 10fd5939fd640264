package codec

import (
	"path/filepath"
	"testing"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
	"hodu/pkg/tensor"
)

func mustTensor(t *testing.T, vals []float64) *tensor.Tensor {
	t.Helper()
	s, err := storage.NewCPU(dtype.F64, len(vals))
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	v, err := storage.View[float64](s)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	copy(v, vals)
	tn, err := tensor.FromStorage(s, layout.Contiguous([]int{len(vals)}, 0), false)
	if err != nil {
		t.Fatalf("FromStorage: %v", err)
	}
	return tn
}

func TestTensorRoundTrip(t *testing.T) {
	tn := mustTensor(t, []float64{1, 2, 3, 4})
	path := filepath.Join(t.TempDir(), "t.json")

	if err := SaveTensor(tn, path); err != nil {
		t.Fatalf("SaveTensor: %v", err)
	}
	loaded, err := LoadTensor(path)
	if err != nil {
		t.Fatalf("LoadTensor: %v", err)
	}
	if loaded.DType() != tn.DType() {
		t.Fatalf("dtype = %v, want %v", loaded.DType(), tn.DType())
	}
	if len(loaded.Shape()) != 1 || loaded.Shape()[0] != 4 {
		t.Fatalf("shape = %v", loaded.Shape())
	}
	v, err := storage.View[float64](loaded.Storage())
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("data = %v, want %v", v, want)
		}
	}
}

func TestSaveTensorRejectsPlaceholder(t *testing.T) {
	sn := tensor.BeginCapture()
	defer tensor.EndCapture()
	placeholder, err := tensor.Neg(mustTensor(t, []float64{1}))
	if err != nil {
		t.Fatalf("Neg: %v", err)
	}
	_ = sn
	if err := SaveTensor(placeholder, filepath.Join(t.TempDir(), "x.json")); err == nil {
		t.Fatalf("expected an error saving a placeholder tensor")
	}
}

func TestModelRoundTrip(t *testing.T) {
	x := mustTensor(t, []float64{1, 2})
	y := mustTensor(t, []float64{3, 4})

	sn := tensor.BeginCapture()
	if _, err := tensor.Add(x, y); err != nil {
		t.Fatalf("Add: %v", err)
	}
	tensor.EndCapture()
	nodes := sn.Nodes()

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(nodes, path); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 node, got %d", len(loaded))
	}
	if loaded[0].Op.Name != "add" {
		t.Fatalf("op = %q, want %q", loaded[0].Op.Name, "add")
	}
	if loaded[0].OutputID != nodes[0].OutputID {
		t.Fatalf("output id did not round trip")
	}
}
