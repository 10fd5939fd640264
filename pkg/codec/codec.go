// Package codec is a stand-in for the on-disk tensor/model file
// formats spec.md §1 explicitly places out of scope (HDT, HDSS, and
// friends). format.load_tensor/save_tensor and format.load_model/
// save_model (spec §6) still need something concrete to read and
// write so those RPC methods are genuinely exercised rather than left
// as no-ops; this package gives them a minimal JSON encoding of a
// single tensor's raw bytes, and of a snapshot's node list, rather
// than inventing a binary container format of its own.
package codec

import (
	"encoding/json"
	"fmt"
	"os"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
	"hodu/pkg/tensor"
)

// TensorFile is the on-disk shape of a single saved tensor.
type TensorFile struct {
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Device string `json:"device"`
	Data   []byte `json:"data"`
}

// SaveTensor writes t to path as a TensorFile.
func SaveTensor(t *tensor.Tensor, path string) error {
	if t.IsPlaceholder() {
		return fmt.Errorf("codec: cannot save a placeholder tensor")
	}
	tf := TensorFile{
		DType:  t.DType().String(),
		Shape:  append([]int(nil), t.Shape()...),
		Device: t.Device().String(),
		Data:   append([]byte(nil), t.Storage().Bytes()...),
	}
	raw, err := json.Marshal(tf)
	if err != nil {
		return fmt.Errorf("codec: marshal tensor: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadTensor reads a TensorFile from path and reconstructs a
// contiguous CPU tensor from its raw bytes. Only "cpu" is ever
// produced by this build's allocator (pkg/tensor.ToDevice), so a
// saved non-cpu device is rejected rather than silently relocated.
func LoadTensor(path string) (*tensor.Tensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: read tensor: %w", err)
	}
	var tf TensorFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("codec: unmarshal tensor: %w", err)
	}
	if tf.Device != "" && tf.Device != "cpu" {
		return nil, fmt.Errorf("codec: tensor was saved for device %q, only cpu is supported", tf.Device)
	}
	dt, err := dtype.Parse(tf.DType)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	s, err := storage.NewCPUFromBytes(dt, tf.Data)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	l := layout.Contiguous(append([]int(nil), tf.Shape...), 0)
	return tensor.FromStorage(s, l, false)
}

// SaveModel writes a snapshot's recorded nodes to path, in append
// (topological) order.
func SaveModel(nodes []tensor.Node, path string) error {
	raw, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("codec: marshal model: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadModel reads back the node list SaveModel wrote.
func LoadModel(path string) ([]tensor.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: read model: %w", err)
	}
	var nodes []tensor.Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("codec: unmarshal model: %w", err)
	}
	return nodes, nil
}
