package graphexec

import (
	"testing"

	"github.com/google/uuid"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
	"hodu/pkg/tensor"
)

func mustTensor(t *testing.T, shp []int, vals []float64) *tensor.Tensor {
	t.Helper()
	size := 1
	for _, d := range shp {
		size *= d
	}
	s, err := storage.NewCPU(dtype.F64, size)
	if err != nil {
		t.Fatalf("NewCPU: %v", err)
	}
	v, err := storage.View[float64](s)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	copy(v, vals)
	tn, err := tensor.FromStorage(s, layout.Contiguous(append([]int(nil), shp...), 0), false)
	if err != nil {
		t.Fatalf("FromStorage: %v", err)
	}
	return tn
}

func readFloats(t *testing.T, tn *tensor.Tensor) []float64 {
	t.Helper()
	v, err := storage.View[float64](tn.Storage())
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func TestRunReplaysAddChain(t *testing.T) {
	x := mustTensor(t, []int{2}, []float64{1, 2})
	y := mustTensor(t, []int{2}, []float64{10, 20})

	sn := tensor.BeginCapture()
	px, err := tensor.Add(x, y)
	if err != nil {
		t.Fatalf("Add (capture): %v", err)
	}
	pz, err := tensor.MulScalar(px, 2)
	if err != nil {
		t.Fatalf("MulScalar (capture): %v", err)
	}
	tensor.EndCapture()

	nodes := sn.Nodes()
	leaves := Leaves(nodes)
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(leaves))
	}
	sinks := Sinks(nodes)
	if len(sinks) != 1 || sinks[0] != pz.ID() {
		t.Fatalf("expected a single sink equal to the final node's output, got %v", sinks)
	}

	values := map[uuid.UUID]*tensor.Tensor{
		leaves[0]: x,
		leaves[1]: y,
	}
	if err := Run(nodes, values); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, ok := values[sinks[0]]
	if !ok {
		t.Fatalf("sink id missing from replayed values")
	}
	got := readFloats(t, out)
	want := []float64{22, 44}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRunReplaysReshapeAndSum(t *testing.T) {
	x := mustTensor(t, []int{4}, []float64{1, 2, 3, 4})

	sn := tensor.BeginCapture()
	reshaped, err := tensor.Reshape(x, []int{2, 2})
	if err != nil {
		t.Fatalf("Reshape (capture): %v", err)
	}
	summed, err := tensor.Sum(reshaped, []int{1}, false)
	if err != nil {
		t.Fatalf("Sum (capture): %v", err)
	}
	tensor.EndCapture()

	nodes := sn.Nodes()
	leaves := Leaves(nodes)
	if len(leaves) != 1 {
		t.Fatalf("expected a single leaf, got %d", len(leaves))
	}

	values := map[uuid.UUID]*tensor.Tensor{leaves[0]: x}
	if err := Run(nodes, values); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := values[summed.ID()]
	got := readFloats(t, out)
	want := []float64{3, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRunRejectsUnknownOp(t *testing.T) {
	x := mustTensor(t, []int{1}, []float64{1})
	sn := tensor.BeginCapture()
	_, err := tensor.Neg(x)
	if err != nil {
		t.Fatalf("Neg (capture): %v", err)
	}
	tensor.EndCapture()

	nodes := sn.Nodes()
	nodes[0].Op.Name = "not_a_real_op"
	values := map[uuid.UUID]*tensor.Tensor{nodes[0].InputIDs[0]: x}
	if err := Run(nodes, values); err == nil {
		t.Fatalf("expected an error for an unrecognised op")
	}
}
