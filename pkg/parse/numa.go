package parse

import (
	"bufio"
	"sort"
	"strconv"
	"strings"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// ParseNodeMeminfo reads MemTotal and MemFree from a per-node meminfo file,
// whose lines look like "Node 0 MemTotal:  16384000 kB".
func ParseNodeMeminfo(text string) (totalBytes, freeBytes uint64, err error) {
	var haveTotal, haveFree bool
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(key)
		if len(fields) == 0 {
			continue
		}
		switch fields[len(fields)-1] {
		case "MemTotal":
			if totalBytes, err = kilobytes(value); err != nil {
				return 0, 0, structural("node meminfo", "MemTotal: %v", err)
			}
			haveTotal = true
		case "MemFree":
			if freeBytes, err = kilobytes(value); err != nil {
				return 0, 0, structural("node meminfo", "MemFree: %v", err)
			}
			haveFree = true
		}
	}
	if !haveTotal || !haveFree {
		return 0, 0, structural("node meminfo", "MemTotal/MemFree not found")
	}
	return totalBytes, freeBytes, nil
}

// ParseCPUList expands a sysfs cpulist such as "0-3,8-11" into a sorted,
// de-duplicated slice. Malformed items are ignored; an empty list is valid.
func ParseCPUList(text string) []int {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(strings.TrimSpace(text), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil || start < 0 {
			continue
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil || end < start {
				continue
			}
		}
		for cpu := start; cpu <= end; cpu++ {
			seen[cpu] = struct{}{}
		}
	}

	cpus := make([]int, 0, len(seen))
	for cpu := range seen {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus
}

// ParseNumaMaps sums the N<node>=<pages> tokens of /proc/<pid>/numa_maps
// into a per-node page count. A mapping that carries anon= or mapped= but no
// node tokens contributes to types.UnknownNode so the total is preserved.
// Tokens that do not parse are skipped.
func ParseNumaMaps(text string) map[int]uint64 {
	pages := make(map[int]uint64)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		var sawNode bool
		var anon, mapped uint64
		// fields[0] is the mapping address.
		for _, token := range fields[1:] {
			key, value, ok := strings.Cut(token, "=")
			if !ok {
				continue
			}
			switch {
			case len(key) > 1 && key[0] == 'N':
				node, err := strconv.Atoi(key[1:])
				if err != nil || node < 0 {
					continue
				}
				count, err := strconv.ParseUint(value, 10, 64)
				if err != nil {
					continue
				}
				pages[node] += count
				sawNode = true
			case key == "anon":
				anon, _ = strconv.ParseUint(value, 10, 64)
			case key == "mapped":
				mapped, _ = strconv.ParseUint(value, 10, 64)
			}
		}
		if !sawNode {
			if n := max(anon, mapped); n > 0 {
				pages[types.UnknownNode] += n
			}
		}
	}
	return pages
}

// Signal is one piece of evidence used to decide that a CPU-less node is
// accelerator memory.
type Signal string

const (
	// SignalBusHint fires when a GPU's PCI device reports this node as its
	// numa_node.
	SignalBusHint Signal = "bus_hint"
	// SignalMemorySize fires when a GPU is present and the node size falls
	// inside the configured HBM range.
	SignalMemorySize Signal = "memory_size"
)

// ParseSignal validates a signal name.
func ParseSignal(s string) (Signal, bool) {
	switch sig := Signal(strings.ToLower(strings.TrimSpace(s))); sig {
	case SignalBusHint, SignalMemorySize:
		return sig, true
	}
	return "", false
}

// ClassifyPolicy configures ClassifyNode. Signals are tried in order.
type ClassifyPolicy struct {
	Signals     []Signal
	HBMMinBytes uint64
	HBMMaxBytes uint64
}

// DefaultClassifyPolicy matches Grace Hopper style systems: a bus hint wins,
// otherwise a CPU-less node between 64 GiB and 256 GiB is taken for HBM.
func DefaultClassifyPolicy() ClassifyPolicy {
	return ClassifyPolicy{
		Signals:     []Signal{SignalBusHint, SignalMemorySize},
		HBMMinBytes: 64 << 30,
		HBMMaxBytes: 256 << 30,
	}
}

// NodeHint is what the host knows about GPUs near a node.
type NodeHint struct {
	// GPUIndex is the GPU whose PCI numa_node points at this node, or -1.
	GPUIndex int
	// GPUPresent is true when any GPU was detected on the host.
	GPUPresent bool
}

// NoHint is the hint for a host without GPUs.
var NoHint = NodeHint{GPUIndex: -1}

// ClassifyNode decides the kind of a node. A node with CPUs is always a CPU
// node. Otherwise the first policy signal that fires makes it GPU HBM; when
// none fires the node is Unknown. The returned index is the owning GPU, or
// -1 when it cannot be told.
func ClassifyNode(totalBytes uint64, cpus []int, hint NodeHint, policy ClassifyPolicy) (types.NodeKind, int) {
	if len(cpus) > 0 {
		return types.NodeCPU, -1
	}
	for _, sig := range policy.Signals {
		switch sig {
		case SignalBusHint:
			if hint.GPUIndex >= 0 {
				return types.NodeGPUHBM, hint.GPUIndex
			}
		case SignalMemorySize:
			if hint.GPUPresent && totalBytes >= policy.HBMMinBytes && totalBytes <= policy.HBMMaxBytes {
				return types.NodeGPUHBM, -1
			}
		}
	}
	return types.NodeUnknown, -1
}
