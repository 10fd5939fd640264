package tensor

import (
	"sync"

	"github.com/google/uuid"

	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/op"
)

// Node is a single recorded operation in a snapshot graph (spec §3
// "Snapshot"). Nodes are appended while capture is active and never
// mutated after emission. OutputDType is carried explicitly (rather
// than left for a replayer to re-derive) because to_dtype's target is
// otherwise unrecoverable from Params alone once a Node has been
// serialised and its placeholder Tensor is gone.
type Node struct {
	Op           op.Kind
	Params       op.Params
	InputIDs     []uuid.UUID
	OutputID     uuid.UUID
	InputLayouts []layout.Layout
	OutputLayout layout.Layout
	OutputDType  dtype.DType
}

// Snapshot is the DAG of operation nodes recorded during capture.
type Snapshot struct {
	mu    sync.Mutex
	nodes []Node
}

func (s *Snapshot) append(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, n)
}

// Nodes returns a defensive copy of the recorded nodes, in append
// order.
func (s *Snapshot) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Len reports the number of recorded nodes.
func (s *Snapshot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// captureState is the process-wide capture switch spec §4.3 and §9
// describe: a mutable flag plus the snapshot nodes append to while it
// is set. It is the only capture path: no façade op accepts an
// explicit *Snapshot.
var captureState struct {
	mu     sync.Mutex
	active bool
	sn     *Snapshot
}

// BeginCapture starts recording into a fresh Snapshot and returns it.
// It panics if capture is already active — nested capture is not
// supported.
func BeginCapture() *Snapshot {
	captureState.mu.Lock()
	defer captureState.mu.Unlock()
	if captureState.active {
		panic("tensor: capture already active")
	}
	sn := &Snapshot{}
	captureState.active = true
	captureState.sn = sn
	return sn
}

// EndCapture stops recording and returns the snapshot that was built.
func EndCapture() *Snapshot {
	captureState.mu.Lock()
	defer captureState.mu.Unlock()
	sn := captureState.sn
	captureState.active = false
	captureState.sn = nil
	return sn
}

// IsCapturing reports whether the process-wide capture switch is on.
func IsCapturing() bool {
	captureState.mu.Lock()
	defer captureState.mu.Unlock()
	return captureState.active
}

func currentSnapshot() *Snapshot {
	captureState.mu.Lock()
	defer captureState.mu.Unlock()
	return captureState.sn
}
