// Package op defines the closed set of operation kinds (spec §3
// "Operation") and the catalogue metadata the façade and dispatcher
// consult: gradient support, dtype legality, and output-layout policy.
package op

import "fmt"

// Family groups operations that share a launch shape and metadata
// convention.
type Family uint8

const (
	FamilyBinaryArith Family = iota
	FamilyBinaryCompare
	FamilyUnary
	FamilyBitwiseBinary
	FamilyBitwiseUnary
	FamilyBitwiseUnaryScalar
	FamilyLinalg
	FamilyShape
	FamilyReduction
)

func (f Family) String() string {
	switch f {
	case FamilyBinaryArith:
		return "binary_arith"
	case FamilyBinaryCompare:
		return "binary_compare"
	case FamilyUnary:
		return "unary"
	case FamilyBitwiseBinary:
		return "bitwise_binary"
	case FamilyBitwiseUnary:
		return "bitwise_unary"
	case FamilyBitwiseUnaryScalar:
		return "bitwise_unary_scalar"
	case FamilyLinalg:
		return "linalg"
	case FamilyShape:
		return "shape"
	case FamilyReduction:
		return "reduction"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// LayoutPolicy describes how an op's output layout relates to its
// input layouts.
type LayoutPolicy uint8

const (
	// LayoutSameAsInput: output layout equals the (broadcast) input
	// layout — every element-wise op.
	LayoutSameAsInput LayoutPolicy = iota
	// LayoutComputed: output layout is computed by the op itself
	// (matmul, reductions, shape manipulation).
	LayoutComputed
)

// Kind is a tagged operation identifier. The Name field is the
// snake_case op name used verbatim in kernel name mangling (spec §4.1,
// §6).
type Kind struct {
	Name         string
	Family       Family
	SupportsGrad bool
	Layout       LayoutPolicy
}

// Catalogue entries. Name strings are load-bearing: they appear
// verbatim in mangled kernel identifiers ("hodu_<backend>_<op>_<dtype>").
var (
	Add = Kind{Name: "add", Family: FamilyBinaryArith, SupportsGrad: true, Layout: LayoutSameAsInput}
	Sub = Kind{Name: "sub", Family: FamilyBinaryArith, SupportsGrad: true, Layout: LayoutSameAsInput}
	Mul = Kind{Name: "mul", Family: FamilyBinaryArith, SupportsGrad: true, Layout: LayoutSameAsInput}
	Div = Kind{Name: "div", Family: FamilyBinaryArith, SupportsGrad: true, Layout: LayoutSameAsInput}

	AddScalar = Kind{Name: "add_scalar", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	MulScalar = Kind{Name: "mul_scalar", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}

	Eq = Kind{Name: "eq", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}
	Ne = Kind{Name: "ne", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}
	Lt = Kind{Name: "lt", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}
	Le = Kind{Name: "le", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}
	Gt = Kind{Name: "gt", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}
	Ge = Kind{Name: "ge", Family: FamilyBinaryCompare, SupportsGrad: false, Layout: LayoutSameAsInput}

	Neg  = Kind{Name: "neg", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	Abs  = Kind{Name: "abs", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	Sqrt = Kind{Name: "sqrt", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	Exp  = Kind{Name: "exp", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	Log  = Kind{Name: "log", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}
	Relu = Kind{Name: "relu", Family: FamilyUnary, SupportsGrad: true, Layout: LayoutSameAsInput}

	ToDtype  = Kind{Name: "to_dtype", Family: FamilyUnary, SupportsGrad: false, Layout: LayoutSameAsInput}
	ToDevice = Kind{Name: "to_device", Family: FamilyUnary, SupportsGrad: false, Layout: LayoutSameAsInput}

	Shl       = Kind{Name: "shl", Family: FamilyBitwiseBinary, SupportsGrad: false, Layout: LayoutSameAsInput}
	Shr       = Kind{Name: "shr", Family: FamilyBitwiseBinary, SupportsGrad: false, Layout: LayoutSameAsInput}
	And       = Kind{Name: "and", Family: FamilyBitwiseBinary, SupportsGrad: false, Layout: LayoutSameAsInput}
	Or        = Kind{Name: "or", Family: FamilyBitwiseBinary, SupportsGrad: false, Layout: LayoutSameAsInput}
	Xor       = Kind{Name: "xor", Family: FamilyBitwiseBinary, SupportsGrad: false, Layout: LayoutSameAsInput}
	Not       = Kind{Name: "not", Family: FamilyBitwiseUnary, SupportsGrad: false, Layout: LayoutSameAsInput}
	ShlScalar = Kind{Name: "shl_scalar", Family: FamilyBitwiseUnaryScalar, SupportsGrad: false, Layout: LayoutSameAsInput}
	ShrScalar = Kind{Name: "shr_scalar", Family: FamilyBitwiseUnaryScalar, SupportsGrad: false, Layout: LayoutSameAsInput}

	Matmul   = Kind{Name: "matmul", Family: FamilyLinalg, SupportsGrad: true, Layout: LayoutComputed}
	Det      = Kind{Name: "det", Family: FamilyLinalg, SupportsGrad: false, Layout: LayoutComputed}
	Inv      = Kind{Name: "inv", Family: FamilyLinalg, SupportsGrad: false, Layout: LayoutComputed}
	Trace    = Kind{Name: "trace", Family: FamilyLinalg, SupportsGrad: false, Layout: LayoutComputed}

	Reshape     = Kind{Name: "reshape", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}
	Permute     = Kind{Name: "permute", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}
	Broadcast   = Kind{Name: "broadcast", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}
	Arange      = Kind{Name: "arange", Family: FamilyShape, SupportsGrad: false, Layout: LayoutComputed}
	Scatter     = Kind{Name: "scatter", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}
	Gather      = Kind{Name: "gather", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}
	IndexSelect = Kind{Name: "index_select", Family: FamilyShape, SupportsGrad: true, Layout: LayoutComputed}

	Sum  = Kind{Name: "sum", Family: FamilyReduction, SupportsGrad: true, Layout: LayoutComputed}
	Mean = Kind{Name: "mean", Family: FamilyReduction, SupportsGrad: true, Layout: LayoutComputed}
	Max  = Kind{Name: "max", Family: FamilyReduction, SupportsGrad: true, Layout: LayoutComputed}
	Min  = Kind{Name: "min", Family: FamilyReduction, SupportsGrad: true, Layout: LayoutComputed}
)

// BitwiseBinaryOps, BitwiseUnaryOps and BitwiseScalarOps list every
// bitwise kind. The dispatcher's dtype-legality check uses IsBitwise,
// which tests the Family, and the façade reads each Kind's
// SupportsGrad field; neither consults these lists.
var (
	BitwiseBinaryOps = []Kind{Shl, Shr, And, Or, Xor}
	BitwiseUnaryOps  = []Kind{Not}
	BitwiseScalarOps = []Kind{ShlScalar, ShrScalar}
)

// IsBitwise reports whether k belongs to any bitwise family.
func (k Kind) IsBitwise() bool {
	switch k.Family {
	case FamilyBitwiseBinary, FamilyBitwiseUnary, FamilyBitwiseUnaryScalar:
		return true
	default:
		return false
	}
}
