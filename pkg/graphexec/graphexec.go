// Package graphexec replays a captured snapshot graph (pkg/tensor's
// Node list) against concrete input tensors, for backend.run (spec
// §6). Capture mode itself only ever records primitive op families
// (binary/unary/bitwise/shape/reduction/matmul). The linalg composites
// tril/triu/diag/diagonal/trace are built from those primitives, so
// capturing them appends only primitive Nodes; det/inv read
// materialised storage and fail on a capture-mode placeholder. This
// package therefore never dispatches op.Det/op.Inv/op.Trace directly.
package graphexec

import (
	"fmt"

	"github.com/google/uuid"

	"hodu/pkg/op"
	"hodu/pkg/tensor"
)

// ErrUnknownOp is returned for a Node whose Op.Name this package does
// not recognise.
type ErrUnknownOp struct{ Name string }

func (e *ErrUnknownOp) Error() string { return fmt.Sprintf("graphexec: unknown op %q", e.Name) }

// Leaves, Sinks and Run take node order as already a valid
// topological order: the façade only ever appends a node once its own
// inputs (prior placeholders or true leaves) are in scope, so no node
// can reference an id produced later in the list.
//
// Leaves returns, in first-appearance order, every input id that is
// never produced by any node in the graph (spec's snapshot replay has
// no named-input metadata of its own; callers bind names to these ids
// positionally against the request's ordered input list, see
// cmd/hodu-plugind). Sinks returns, in node order, every output id
// that is never consumed as another node's input — the graph's true
// outputs.
func Leaves(nodes []tensor.Node) []uuid.UUID {
	produced := make(map[uuid.UUID]bool, len(nodes))
	for _, n := range nodes {
		produced[n.OutputID] = true
	}
	seen := make(map[uuid.UUID]bool)
	var leaves []uuid.UUID
	for _, n := range nodes {
		for _, id := range n.InputIDs {
			if produced[id] || seen[id] {
				continue
			}
			seen[id] = true
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func Sinks(nodes []tensor.Node) []uuid.UUID {
	consumed := make(map[uuid.UUID]bool, len(nodes))
	for _, n := range nodes {
		for _, id := range n.InputIDs {
			consumed[id] = true
		}
	}
	var sinks []uuid.UUID
	for _, n := range nodes {
		if !consumed[n.OutputID] {
			sinks = append(sinks, n.OutputID)
		}
	}
	return sinks
}

// Run replays nodes against values, which must already hold every id
// Leaves(nodes) returns. values is mutated in place with every node's
// output, so the caller can read Sinks(nodes) back out of it once Run
// returns.
func Run(nodes []tensor.Node, values map[uuid.UUID]*tensor.Tensor) error {
	for _, n := range nodes {
		out, err := execNode(n, values)
		if err != nil {
			return fmt.Errorf("graphexec: node %s: %w", n.Op.Name, err)
		}
		values[n.OutputID] = out
	}
	return nil
}

func execNode(n tensor.Node, values map[uuid.UUID]*tensor.Tensor) (*tensor.Tensor, error) {
	in := func(i int) (*tensor.Tensor, error) {
		id := n.InputIDs[i]
		t, ok := values[id]
		if !ok {
			return nil, fmt.Errorf("input %s not yet produced", id)
		}
		return t, nil
	}

	switch n.Op.Name {
	case op.Add.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		b, err := in(1)
		if err != nil {
			return nil, err
		}
		return tensor.Add(a, b)
	case op.Sub.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Sub(a, b)
	case op.Mul.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Mul(a, b)
	case op.Div.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Div(a, b)
	case op.Eq.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Eq(a, b)
	case op.Ne.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Ne(a, b)
	case op.Lt.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Lt(a, b)
	case op.Le.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Le(a, b)
	case op.Gt.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Gt(a, b)
	case op.Ge.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Ge(a, b)
	case op.Shl.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Shl(a, b)
	case op.Shr.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Shr(a, b)
	case op.And.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.And(a, b)
	case op.Or.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Or(a, b)
	case op.Xor.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Xor(a, b)

	case op.AddScalar.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.AddScalar(a, n.Params.Scalar)
	case op.MulScalar.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.MulScalar(a, n.Params.Scalar)
	case op.Neg.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Neg(a)
	case op.Abs.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Abs(a)
	case op.Sqrt.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Sqrt(a)
	case op.Exp.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Exp(a)
	case op.Log.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Log(a)
	case op.Relu.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Relu(a)
	case op.ToDtype.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.ToDtype(a, n.OutputDType)
	case op.ToDevice.Name:
		// Only "cpu" is ever allocated in this build (pkg/tensor's
		// ToDevice), so a captured to_device node is always a same-
		// device identity; replay it as one rather than threading a
		// device string through Params for a path that never fires.
		return in(0)
	case op.Not.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Not(a)
	case op.ShlScalar.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.ShlScalar(a, n.Params.ShiftAmount)
	case op.ShrScalar.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.ShrScalar(a, n.Params.ShiftAmount)

	case op.Matmul.Name:
		a, b, err := pair(in)
		if err != nil {
			return nil, err
		}
		return tensor.Matmul(a, b)

	case op.Reshape.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Reshape(a, n.Params.Dims)
	case op.Permute.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Permute(a, n.Params.Dims)
	case op.Broadcast.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Broadcast(a, n.Params.Dims)
	case op.Arange.Name:
		if len(n.Params.Dims) != 1 {
			return nil, fmt.Errorf("arange: expected a single length in Params.Dims, got %v", n.Params.Dims)
		}
		return tensor.Arange(n.OutputDType, n.Params.Dims[0])
	case op.IndexSelect.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		if len(n.Params.Dims) < 1 {
			return nil, fmt.Errorf("index_select: missing dim in Params.Dims")
		}
		return tensor.IndexSelect(a, n.Params.Dims[0], n.Params.Dims[1:])
	case op.Gather.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		idx, err := in(1)
		if err != nil {
			return nil, err
		}
		if len(n.Params.Dims) != 1 {
			return nil, fmt.Errorf("gather: expected a single dim in Params.Dims, got %v", n.Params.Dims)
		}
		return tensor.Gather(a, n.Params.Dims[0], idx)
	case op.Scatter.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		idx, err := in(1)
		if err != nil {
			return nil, err
		}
		src, err := in(2)
		if err != nil {
			return nil, err
		}
		if len(n.Params.Dims) != 1 {
			return nil, fmt.Errorf("scatter: expected a single dim in Params.Dims, got %v", n.Params.Dims)
		}
		return tensor.Scatter(a, n.Params.Dims[0], idx, src)

	case op.Sum.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Sum(a, n.Params.Dims, n.Params.KeepDims)
	case op.Mean.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Mean(a, n.Params.Dims, n.Params.KeepDims)
	case op.Max.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Max(a, n.Params.Dims, n.Params.KeepDims)
	case op.Min.Name:
		a, err := in(0)
		if err != nil {
			return nil, err
		}
		return tensor.Min(a, n.Params.Dims, n.Params.KeepDims)

	default:
		return nil, &ErrUnknownOp{Name: n.Op.Name}
	}
}

func pair(in func(int) (*tensor.Tensor, error)) (*tensor.Tensor, *tensor.Tensor, error) {
	a, err := in(0)
	if err != nil {
		return nil, nil, err
	}
	b, err := in(1)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
