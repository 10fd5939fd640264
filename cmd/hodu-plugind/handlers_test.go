package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"hodu/pkg/codec"
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/pluginrpc"
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

func callHandler(t *testing.T, fn pluginrpc.HandlerFunc, params any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return fn(&pluginrpc.Context{}, raw)
}

func TestBackendRunEndToEnd(t *testing.T) {
	x := mustTensor(t, []float64{1, 2})
	y := mustTensor(t, []float64{10, 20})

	sn := tensor.BeginCapture()
	if _, err := tensor.Add(x, y); err != nil {
		t.Fatalf("Add: %v", err)
	}
	tensor.EndCapture()

	modelPath := filepath.Join(t.TempDir(), "model.json")
	if err := codec.SaveModel(sn.Nodes(), modelPath); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	xPath := filepath.Join(t.TempDir(), "x.json")
	yPath := filepath.Join(t.TempDir(), "y.json")
	if err := codec.SaveTensor(x, xPath); err != nil {
		t.Fatalf("SaveTensor x: %v", err)
	}
	if err := codec.SaveTensor(y, yPath); err != nil {
		t.Fatalf("SaveTensor y: %v", err)
	}

	st := newPluginState()

	loadModel := handleLoadModel(st)
	modelResult, err := callHandler(t, loadModel, loadModelParams{Path: modelPath})
	if err != nil {
		t.Fatalf("load_model: %v", err)
	}
	modelID := modelResult.(map[string]any)["model_id"].(string)

	loadTensor := handleLoadTensor(st)
	xResult, err := callHandler(t, loadTensor, loadTensorParams{Path: xPath})
	if err != nil {
		t.Fatalf("load_tensor x: %v", err)
	}
	yResult, err := callHandler(t, loadTensor, loadTensorParams{Path: yPath})
	if err != nil {
		t.Fatalf("load_tensor y: %v", err)
	}
	xID := xResult.(map[string]any)["tensor_id"].(string)
	yID := yResult.(map[string]any)["tensor_id"].(string)

	run := handleBackendRun(st)
	runResult, err := callHandler(t, run, backendRunParams{
		ModelID: modelID,
		Inputs: []backendRunInput{
			{Name: "x", TensorID: xID},
			{Name: "y", TensorID: yID},
		},
	})
	if err != nil {
		t.Fatalf("backend.run: %v", err)
	}
	outputs := runResult.(map[string]any)["outputs"].(map[string]string)
	if len(outputs) != 1 {
		t.Fatalf("expected a single output, got %v", outputs)
	}
	outID := outputs["output0"]

	st.mu.Lock()
	out, ok := st.tensors[outID]
	st.mu.Unlock()
	if !ok {
		t.Fatalf("output tensor not registered")
	}
	v, err := storage.View[float64](out.Storage())
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	want := []float64{11, 22}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("got %v, want %v", v, want)
		}
	}
}

func TestLoadModelRejectsMissingFile(t *testing.T) {
	st := newPluginState()
	loadModel := handleLoadModel(st)
	if _, err := callHandler(t, loadModel, loadModelParams{Path: "/nonexistent/model.json"}); err == nil {
		t.Fatalf("expected an error loading a missing model file")
	}
}

func TestBackendRunRejectsWrongInputCount(t *testing.T) {
	x := mustTensor(t, []float64{1})
	sn := tensor.BeginCapture()
	if _, err := tensor.Neg(x); err != nil {
		t.Fatalf("Neg: %v", err)
	}
	tensor.EndCapture()

	st := newPluginState()
	st.models["m"] = sn.Nodes()

	run := handleBackendRun(st)
	if _, err := callHandler(t, run, backendRunParams{ModelID: "m", Inputs: nil}); err == nil {
		t.Fatalf("expected an error for a mismatched input count")
	}
}

func TestBackendBuildRejectsUnknownModel(t *testing.T) {
	st := newPluginState()
	build := handleBackendBuild(st)
	if _, err := callHandler(t, build, backendBuildParams{ModelID: "nope", Target: "x86_64-linux"}); err == nil {
		t.Fatalf("expected an error for an unknown model id")
	}
}
