// Package tensor implements the user-facing façade (spec §4.3): the
// same op call either executes eagerly against the dispatch core or,
// while a snapshot is being captured, records a graph node and returns
// a placeholder. Both modes must agree on every output tensor's id,
// dtype and layout.
package tensor

import (
	"fmt"

	"github.com/google/uuid"

	"hodu/pkg/device"
	"hodu/pkg/dtype"
	"hodu/pkg/layout"
	"hodu/pkg/storage"
)

// Tensor is the logical view spec §3 describes: a storage handle (nil
// for a capture-mode placeholder), a layout, and identity/grad
// metadata. Two tensors may share storage with different layouts.
type Tensor struct {
	id           uuid.UUID
	storage      storage.Storage
	layout       layout.Layout
	dtype        dtype.DType
	device       device.Device
	requiresGrad bool
}

// ID uniquely identifies this tensor instance; it is also the node id
// used by both the snapshot graph and the gradient tape.
func (t *Tensor) ID() uuid.UUID { return t.id }

func (t *Tensor) Layout() layout.Layout     { return t.layout }
func (t *Tensor) Shape() []int              { return t.layout.Shape }
func (t *Tensor) DType() dtype.DType        { return t.dtype }
func (t *Tensor) Device() device.Device     { return t.device }
func (t *Tensor) RequiresGrad() bool        { return t.requiresGrad }
func (t *Tensor) Storage() storage.Storage  { return t.storage }

// IsPlaceholder reports whether this tensor was produced by a
// capture-mode op and therefore carries no materialised storage.
func (t *Tensor) IsPlaceholder() bool { return t.storage == nil }

// newID generates a fresh tensor id. uuid.New panics only on an
// exhausted entropy source, which this package does not guard against,
// matching the teacher's use of uuid.New() for node identifiers
// elsewhere in the codebase.
func newID() uuid.UUID { return uuid.New() }

// FromStorage wraps an already-allocated storage as a leaf tensor
// (e.g. a freshly loaded model weight, or test fixture data). l must
// be valid for s's element count.
func FromStorage(s storage.Storage, l layout.Layout, requiresGrad bool) (*Tensor, error) {
	if err := l.Validate(s.NumElements()); err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	return &Tensor{
		id:           newID(),
		storage:      s,
		layout:       l,
		dtype:        s.DType(),
		device:       s.Device(),
		requiresGrad: requiresGrad,
	}, nil
}

// Zeros allocates a new contiguous CPU tensor of the given shape and
// dtype, filled with zero bytes.
func Zeros(dt dtype.DType, shp []int) (*Tensor, error) {
	size := 1
	for _, d := range shp {
		size *= d
	}
	s, err := storage.NewCPU(dt, size)
	if err != nil {
		return nil, err
	}
	l := layout.Contiguous(append([]int(nil), shp...), 0)
	return FromStorage(s, l, false)
}

func placeholder(dt dtype.DType, dev device.Device, l layout.Layout, requiresGrad bool) *Tensor {
	return &Tensor{id: newID(), storage: nil, layout: l, dtype: dt, device: dev, requiresGrad: requiresGrad}
}

func wrap(s storage.Storage, l layout.Layout, requiresGrad bool) *Tensor {
	return &Tensor{id: newID(), storage: s, layout: l, dtype: s.DType(), device: s.Device(), requiresGrad: requiresGrad}
}

// ErrInvalidArgument models spec §7's InvalidArgument kind: recoverable
// user-supplied shape/rank/dtype mismatches.
type ErrInvalidArgument struct{ Msg string }

func (e *ErrInvalidArgument) Error() string { return e.Msg }

func invalidArg(format string, args ...any) error {
	return &ErrInvalidArgument{Msg: fmt.Sprintf(format, args...)}
}
