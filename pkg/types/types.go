package types

import (
	"sort"
	"time"
)

// DefaultNumaProcesses controls how many of the heaviest swap users get their
// numa_maps sampled per refresh.
const DefaultNumaProcesses = 20

// UnknownNode is the sentinel node id for pages that numa_maps reports
// without a node breakdown, and for processes whose executing node is unknown.
const UnknownNode = -1

// SwapTotals is the host-wide swap capacity in bytes.
type SwapTotals struct {
	TotalBytes uint64
	UsedBytes  uint64
}

// ProcessSwap is the swap footprint of one process.
type ProcessSwap struct {
	PID       int
	Name      string
	SwapBytes uint64
}

// SwapSnapshot combines the totals with every process currently using swap.
// Used is not guaranteed to be <= Total; the kernel reports both independently.
type SwapSnapshot struct {
	SwapTotals
	Processes []ProcessSwap
}

// SwapDevice is one entry of /proc/swaps.
type SwapDevice struct {
	Path       string
	Kind       string
	TotalBytes uint64
	UsedBytes  uint64
	Priority   int
}

// NodeKind classifies a NUMA node by what backs it.
type NodeKind int

const (
	NodeUnknown NodeKind = iota
	NodeCPU
	NodeGPUHBM
)

func (k NodeKind) String() string {
	switch k {
	case NodeCPU:
		return "CPU"
	case NodeGPUHBM:
		return "GPU HBM"
	default:
		return "Unknown"
	}
}

// NumaNode describes one node of the host topology.
type NumaNode struct {
	ID         int
	Kind       NodeKind
	TotalBytes uint64
	FreeBytes  uint64
	CPUs       []int
	// GPUIndex is the accelerator owning a GPU HBM node, or -1.
	GPUIndex int
}

// NodeForCPU returns the id of the CPU node owning cpu.
func NodeForCPU(nodes []NumaNode, cpu int) (int, bool) {
	if cpu < 0 {
		return UnknownNode, false
	}
	for _, node := range nodes {
		if node.Kind != NodeCPU {
			continue
		}
		idx := sort.SearchInts(node.CPUs, cpu)
		if idx < len(node.CPUs) && node.CPUs[idx] == cpu {
			return node.ID, true
		}
	}
	return UnknownNode, false
}

// NodeKindOf looks up the classification of node id.
func NodeKindOf(nodes []NumaNode, id int) NodeKind {
	for _, node := range nodes {
		if node.ID == id {
			return node.Kind
		}
	}
	return NodeUnknown
}

// ProcessNumaDistribution is the per-node page count of one process.
type ProcessNumaDistribution struct {
	PID  int
	Name string
	// ExecNode is the node of the CPU the process last ran on, or UnknownNode.
	ExecNode int
	// Pages maps node id to page count. Pages without a node breakdown are
	// kept under UnknownNode so the total stays consistent.
	Pages map[int]uint64
}

// TotalPages sums every bucket, including UnknownNode.
func (d ProcessNumaDistribution) TotalPages() uint64 {
	var total uint64
	for _, pages := range d.Pages {
		total += pages
	}
	return total
}

// NodeIDs returns the known node ids in ascending order.
func (d ProcessNumaDistribution) NodeIDs() []int {
	ids := make([]int, 0, len(d.Pages))
	for id := range d.Pages {
		if id == UnknownNode {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DominantNode returns the node holding the most pages. Ties go to the
// lowest node id. The UnknownNode bucket never dominates.
func (d ProcessNumaDistribution) DominantNode() (int, bool) {
	best := UnknownNode
	var bestPages uint64
	for _, id := range d.NodeIDs() {
		pages := d.Pages[id]
		if pages == 0 {
			continue
		}
		if best == UnknownNode || pages > bestPages {
			best = id
			bestPages = pages
		}
	}
	return best, best != UnknownNode
}

// Misaligned reports whether the process executes on a node other than the
// one holding most of its memory. Unknown on either side is not misaligned.
func (d ProcessNumaDistribution) Misaligned() bool {
	dominant, ok := d.DominantNode()
	if !ok || d.ExecNode == UnknownNode {
		return false
	}
	return dominant != d.ExecNode
}

// GpuDevice is one accelerator as reported by the GPU tool.
type GpuDevice struct {
	Index      int
	Name       string
	UUID       string
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
	// Temperature in degrees Celsius, or -1 when not reported.
	Temperature int
	PCIBusID    string
}

// GpuProcess is one compute context on an accelerator.
type GpuProcess struct {
	PID       int
	Name      string
	GPUIndex  int
	UsedBytes uint64
}

// Location tells where a unified process keeps its memory.
type Location int

const (
	CPUOnly Location = iota
	GPUOnly
	CPUAndGPU
)

func (l Location) String() string {
	switch l {
	case GPUOnly:
		return "GPU"
	case CPUAndGPU:
		return "CPU+GPU"
	default:
		return "CPU"
	}
}

// UnifiedProcessRecord joins all sources for one pid. Optional fields are nil
// when the corresponding source did not report the process.
type UnifiedProcessRecord struct {
	PID       int
	Name      string
	SwapBytes *uint64
	GPUBytes  *uint64
	GPUIndex  *int
	NumaNode  *int
	Location  Location
	// HBMMigration is set when a CPU-resident process has most of its pages
	// on an accelerator's HBM node.
	HBMMigration bool
	Misaligned   bool
}

// ProcessGroup is a set of same-named swap users, used in aggregate mode.
type ProcessGroup struct {
	Name      string
	Count     int
	SwapBytes uint64
}

// Focus names the unified record most worth a look and why.
type Focus struct {
	Record UnifiedProcessRecord
	Reason string
}

// UnifiedSnapshot is everything the renderer needs for one tick.
type UnifiedSnapshot struct {
	View      View
	TakenAt   time.Time
	Units     Units
	Sort      SortColumn
	Aggregate bool

	SwapTotals
	SwapProcesses []ProcessSwap
	SwapGroups    []ProcessGroup
	SwapDevices   []SwapDevice

	NumaSupported bool
	NumaNodes     []NumaNode
	NumaProcesses []ProcessNumaDistribution

	GPUSupported bool
	GPUDevices   []GpuDevice
	GPUProcesses []GpuProcess

	Unified []UnifiedProcessRecord
	Focus   *Focus

	Diagnostics map[Source]Diagnostic
}
