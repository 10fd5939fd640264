package tensor

import (
	"testing"

	"hodu/pkg/dtype"
)

func TestCapturePlaceholdersCarryNoStorage(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	rhs := mustCPUTensor(t, dtype.F32, []int{2}, []float64{3, 4})

	sn := BeginCapture()
	if !IsCapturing() {
		t.Fatalf("IsCapturing should be true after BeginCapture")
	}
	out, err := Add(lhs, rhs)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !out.IsPlaceholder() {
		t.Fatalf("capture-mode output must be a placeholder")
	}
	ended := EndCapture()
	if IsCapturing() {
		t.Fatalf("IsCapturing should be false after EndCapture")
	}
	if ended != sn {
		t.Fatalf("EndCapture must return the snapshot BeginCapture started")
	}
	if sn.Len() != 1 {
		t.Fatalf("expected exactly one recorded node, got %d", sn.Len())
	}
	node := sn.Nodes()[0]
	if node.OutputID != out.ID() {
		t.Fatalf("recorded node output id does not match returned placeholder id")
	}
	if len(node.InputIDs) != 2 || node.InputIDs[0] != lhs.ID() || node.InputIDs[1] != rhs.ID() {
		t.Fatalf("recorded node input ids = %v", node.InputIDs)
	}
}

func TestCaptureAndExecuteAgreeOnLayoutAndDType(t *testing.T) {
	lhs := mustCPUTensor(t, dtype.F32, []int{2, 2}, []float64{1, 2, 3, 4})
	rhs := mustCPUTensor(t, dtype.F32, []int{2, 2}, []float64{5, 6, 7, 8})

	eager, err := Add(lhs, rhs)
	if err != nil {
		t.Fatalf("eager Add: %v", err)
	}

	BeginCapture()
	captured, err := Add(lhs, rhs)
	if err != nil {
		t.Fatalf("captured Add: %v", err)
	}
	EndCapture()

	if eager.DType() != captured.DType() {
		t.Fatalf("dtype mismatch: eager=%s captured=%s", eager.DType(), captured.DType())
	}
	if !eager.Layout().Shape.Equal(captured.Layout().Shape) {
		t.Fatalf("shape mismatch: eager=%v captured=%v", eager.Shape(), captured.Shape())
	}
}

func TestBeginCapturePanicsWhenAlreadyActive(t *testing.T) {
	BeginCapture()
	defer EndCapture()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic from a nested BeginCapture")
		}
	}()
	BeginCapture()
}

func TestCaptureNeverRecordsGrad(t *testing.T) {
	lhs := mustGradTensor(t, dtype.F32, []int{2}, []float64{1, 2})
	rhs := mustCPUTensor(t, dtype.F32, []int{2}, []float64{3, 4})

	BeginCapture()
	out, err := Add(lhs, rhs)
	EndCapture()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if out.RequiresGrad() {
		t.Fatalf("capture-mode placeholders never carry requires_grad: the graph itself is the record")
	}
}
