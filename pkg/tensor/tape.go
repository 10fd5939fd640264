package tensor

import (
	"sync"

	"github.com/google/uuid"

	"hodu/pkg/op"
)

// TapeEntry is one gradient-tape record: an op applied to input tensor
// ids produced output id, for later autograd tape construction (an
// external collaborator per spec.md §1 Non-goals — this package only
// fixes the recording interface).
type TapeEntry struct {
	Op       op.Kind
	Params   op.Params
	InputIDs []uuid.UUID
	OutputID uuid.UUID
}

// Tape accumulates gradient-tape entries for executed (non-bitwise,
// grad-supporting) ops whose output requires grad.
type Tape struct {
	mu      sync.Mutex
	entries []TapeEntry
}

func (tp *Tape) append(e TapeEntry) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.entries = append(tp.entries, e)
}

// Entries returns a defensive copy of the recorded entries.
func (tp *Tape) Entries() []TapeEntry {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	out := make([]TapeEntry, len(tp.entries))
	copy(out, tp.entries)
	return out
}

var defaultTape = &Tape{}

// DefaultTape returns the process-wide gradient tape ops append to
// when executing (not capturing) with a grad-requiring output.
func DefaultTape() *Tape { return defaultTape }
