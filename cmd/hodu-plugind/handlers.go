package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"hodu/pkg/codec"
	"hodu/pkg/graphexec"
	"hodu/pkg/pluginrpc"
	"hodu/pkg/tensor"
)

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return pluginrpc.InvalidParams("missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return pluginrpc.InvalidParams(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

type loadModelParams struct {
	Path string `json:"path"`
}

func handleLoadModel(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p loadModelParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		ctx.NotifyProgress(nil, "loading model from "+p.Path)
		nodes, err := codec.LoadModel(p.Path)
		if err != nil {
			return nil, err
		}
		id := newHandle()
		st.mu.Lock()
		st.models[id] = nodes
		st.mu.Unlock()
		return map[string]any{"model_id": id, "node_count": len(nodes)}, nil
	}
}

type saveModelParams struct {
	ModelID string `json:"model_id"`
	Path    string `json:"path"`
}

func handleSaveModel(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p saveModelParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		st.mu.Lock()
		nodes, ok := st.models[p.ModelID]
		st.mu.Unlock()
		if !ok {
			return nil, pluginrpc.InvalidParams("unknown model_id: %s", p.ModelID)
		}
		if err := codec.SaveModel(nodes, p.Path); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}

type loadTensorParams struct {
	Path string `json:"path"`
}

func handleLoadTensor(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p loadTensorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		t, err := codec.LoadTensor(p.Path)
		if err != nil {
			return nil, err
		}
		id := newHandle()
		st.mu.Lock()
		st.tensors[id] = t
		st.mu.Unlock()
		return map[string]any{
			"tensor_id": id,
			"dtype":     t.DType().String(),
			"shape":     t.Shape(),
		}, nil
	}
}

type saveTensorParams struct {
	TensorID string `json:"tensor_id"`
	Path     string `json:"path"`
}

func handleSaveTensor(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p saveTensorParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		st.mu.Lock()
		t, ok := st.tensors[p.TensorID]
		st.mu.Unlock()
		if !ok {
			return nil, pluginrpc.InvalidParams("unknown tensor_id: %s", p.TensorID)
		}
		if err := codec.SaveTensor(t, p.Path); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}
}

type backendRunInput struct {
	Name     string `json:"name"`
	TensorID string `json:"tensor_id"`
}

type backendRunParams struct {
	ModelID string            `json:"model_id"`
	Inputs  []backendRunInput `json:"inputs"`
}

func handleBackendRun(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p backendRunParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		st.mu.Lock()
		nodes, ok := st.models[p.ModelID]
		st.mu.Unlock()
		if !ok {
			return nil, pluginrpc.InvalidParams("unknown model_id: %s", p.ModelID)
		}

		leaves := graphexec.Leaves(nodes)
		if len(leaves) != len(p.Inputs) {
			return nil, pluginrpc.InvalidParams(fmt.Sprintf("model has %d input(s), got %d", len(leaves), len(p.Inputs)))
		}

		values := make(map[uuid.UUID]*tensor.Tensor, len(nodes)+len(leaves))
		for i, in := range p.Inputs {
			st.mu.Lock()
			t, ok := st.tensors[in.TensorID]
			st.mu.Unlock()
			if !ok {
				return nil, pluginrpc.InvalidParams("unknown tensor_id: %s", in.TensorID)
			}
			values[leaves[i]] = t
		}

		ctx.NotifyProgress(nil, fmt.Sprintf("running %d node(s)", len(nodes)))
		if err := graphexec.Run(nodes, values); err != nil {
			return nil, err
		}
		if ctx.Cancelled() {
			return nil, pluginrpc.Cancelled("backend.run cancelled")
		}

		sinks := graphexec.Sinks(nodes)
		outputs := make(map[string]string, len(sinks))
		st.mu.Lock()
		for i, id := range sinks {
			handle := newHandle()
			st.tensors[handle] = values[id]
			outputs[fmt.Sprintf("output%d", i)] = handle
		}
		st.mu.Unlock()
		return map[string]any{"outputs": outputs}, nil
	}
}

type backendBuildParams struct {
	ModelID string `json:"model_id"`
	Target  string `json:"target"`
}

// handleBackendBuild is a thin stub: compiling a snapshot into a
// platform-specific kernel artifact is explicitly out of scope
// (spec.md §1's "platform-specific kernel build systems"). It still
// validates its inputs and reports a deterministic artifact path so
// backend.build is wired rather than silently absent.
func handleBackendBuild(st *pluginState) pluginrpc.HandlerFunc {
	return func(ctx *pluginrpc.Context, raw json.RawMessage) (any, error) {
		var p backendBuildParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		st.mu.Lock()
		_, ok := st.models[p.ModelID]
		st.mu.Unlock()
		if !ok {
			return nil, pluginrpc.InvalidParams("unknown model_id: %s", p.ModelID)
		}
		if p.Target == "" {
			return nil, pluginrpc.InvalidParams("missing target")
		}
		return map[string]string{"artifact_path": fmt.Sprintf("/tmp/hodu-build/%s/%s.artifact", p.ModelID, p.Target)}, nil
	}
}
