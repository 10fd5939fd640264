package kernel

import lru "github.com/hashicorp/golang-lru/v2"

// DriverLaunchShape computes grid/block dimensions for a GPU-driver
// style backend (spec §4.1 "Launch shape (GPU driver style)"):
//
//	grid = ceil_div(num_els, block_size).max(1); block = 256; shared_mem = 0
type DriverLaunchShape struct {
	Grid      int
	Block     int
	SharedMem int
}

const driverBlockSize = 256

// ComputeDriverLaunchShape implements the formula above exactly,
// including the "at least 1 block" floor for num_els == 0.
func ComputeDriverLaunchShape(numEls int) DriverLaunchShape {
	grid := ceilDiv(numEls, driverBlockSize)
	if grid < 1 {
		grid = 1
	}
	return DriverLaunchShape{Grid: grid, Block: driverBlockSize, SharedMem: 0}
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// EncoderLaunchShape is the "linear split" result for a command-encoder
// style backend (spec §4.1 "Launch shape (command-encoder style)"):
// num_els is mapped to (thread_group_count, thread_group_size)
// consistent with the pipeline's preferred width.
type EncoderLaunchShape struct {
	ThreadGroupCount int
	ThreadGroupSize  int
}

// LinearSplit maps numEls to an EncoderLaunchShape given the pipeline's
// preferred thread execution width.
func LinearSplit(numEls, preferredWidth int) EncoderLaunchShape {
	if preferredWidth <= 0 {
		preferredWidth = 1
	}
	size := preferredWidth
	if numEls < size {
		size = numEls
		if size < 1 {
			size = 1
		}
	}
	count := ceilDiv(numEls, size)
	if count < 1 {
		count = 1
	}
	return EncoderLaunchShape{ThreadGroupCount: count, ThreadGroupSize: size}
}

// Pipeline is the opaque, backend-specific compiled-kernel handle a
// command-encoder backend obtains for a mangled kernel name.
type Pipeline struct {
	Name           string
	PreferredWidth int
	BindOrder      []string // fixed bind order: lhs, rhs, output, metadata, optional scalar
}

// pipelineCache bounds the number of resolved pipelines kept resident,
// fronting the process-global intern pool with a recency-bounded
// cache the way a command-encoder backend would avoid re-resolving a
// pipeline object on every dispatch (spec §4.1 "obtains a pipeline for
// the mangled name").
var pipelineCache, _ = lru.New[string, *Pipeline](512)

// ResolvePipeline returns the cached Pipeline for name, creating one
// via create on a cache miss.
func ResolvePipeline(name string, create func() *Pipeline) *Pipeline {
	if p, ok := pipelineCache.Get(name); ok {
		return p
	}
	p := create()
	pipelineCache.Add(name, p)
	return p
}
