package op

// Params carries op-specific scalars alongside a Kind (spec §3
// "Operation" — "Each family has an OpParams sibling"). Only the
// fields relevant to the op in question are populated; it is a plain
// value type so it can be stored verbatim in a snapshot node.
type Params struct {
	// Scalar is the operand of add_scalar/mul_scalar.
	Scalar float64
	// ShiftAmount is the bit count for shl_scalar/shr_scalar, kept
	// separate from Scalar so integer shift amounts never round-trip
	// through a float.
	ShiftAmount uint64
	// Dims names reduction/permute/broadcast axes.
	Dims []int
	// K is the diagonal offset for tril/triu/diag/diagonal.
	K int
	// KeepDims controls whether a reduction collapses its axes.
	KeepDims bool
}
