//go:build linux
// +build linux

package numa

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/types"
)

const (
	nodeRoot   = "/sys/devices/system/node"
	pciDevices = "/sys/bus/pci/devices"
)

// Topology lists every node under sysfs and classifies it. gpus are the
// devices currently known; their PCI numa_node files provide the bus hint.
// A missing node directory means the host has no NUMA support and is
// reported as types.ErrUnavailable.
func (c *Collector) Topology(gpus []types.GpuDevice) ([]types.NumaNode, error) {
	entries, err := c.sys.ListDir(nodeRoot)
	if err != nil {
		return nil, err
	}

	hints := c.busHints(gpus)
	nodes := make([]types.NumaNode, 0, len(entries))
	for _, entry := range entries {
		idText, ok := strings.CutPrefix(entry, "node")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(idText)
		if err != nil || id < 0 {
			continue
		}
		dir := path.Join(nodeRoot, entry)

		meminfo, err := c.sys.ReadFile(path.Join(dir, "meminfo"))
		if err != nil {
			if host.Gone(err) {
				continue
			}
			return nil, err
		}
		total, free, err := parse.ParseNodeMeminfo(string(meminfo))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}

		var cpus []int
		if cpulist, err := c.sys.ReadFile(path.Join(dir, "cpulist")); err == nil {
			cpus = parse.ParseCPUList(string(cpulist))
		}

		hint := parse.NodeHint{GPUIndex: -1, GPUPresent: len(gpus) > 0}
		if gpu, ok := hints[id]; ok {
			hint.GPUIndex = gpu
		}
		kind, gpuIndex := parse.ClassifyNode(total, cpus, hint, c.policy)

		nodes = append(nodes, types.NumaNode{
			ID:         id,
			Kind:       kind,
			TotalBytes: total,
			FreeBytes:  free,
			CPUs:       cpus,
			GPUIndex:   gpuIndex,
		})
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: no nodes: %w", nodeRoot, types.ErrUnavailable)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// busHints maps node id to the lowest GPU index whose PCI device reports
// that node. Devices without affinity report -1 and are ignored.
func (c *Collector) busHints(gpus []types.GpuDevice) map[int]int {
	hints := make(map[int]int)
	for _, gpu := range gpus {
		if gpu.PCIBusID == "" {
			continue
		}
		file := path.Join(pciDevices, parse.NormalizePCIBusID(gpu.PCIBusID), "numa_node")
		data, err := c.sys.ReadFile(file)
		if err != nil {
			continue
		}
		node, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || node < 0 {
			continue
		}
		if prev, ok := hints[node]; !ok || gpu.Index < prev {
			hints[node] = gpu.Index
		}
	}
	return hints
}

// ProcessMaps samples numa_maps for pids. The executing node comes from the
// last CPU in /proc/<pid>/stat mapped through nodes. Processes that exited,
// deny access or map nothing are left out. When every sampled process was
// denied the call fails with types.ErrPermissionDenied.
func (c *Collector) ProcessMaps(pids []int, nodes []types.NumaNode) ([]types.ProcessNumaDistribution, error) {
	names := make(map[int]string)
	out := make([]types.ProcessNumaDistribution, 0, len(pids))
	denied := 0

	for _, pid := range pids {
		data, err := c.sys.ReadFile(host.ProcPath(pid, "numa_maps"))
		if err != nil {
			if host.Denied(err) {
				denied++
			}
			continue
		}
		pages := parse.ParseNumaMaps(string(data))
		if len(pages) == 0 {
			continue
		}

		dist := types.ProcessNumaDistribution{PID: pid, ExecNode: types.UnknownNode, Pages: pages}
		if stat, err := c.sys.ReadFile(host.ProcPath(pid, "stat")); err == nil {
			comm, cpu, err := parse.ParseProcessStat(string(stat))
			dist.Name = comm
			if node, ok := types.NodeForCPU(nodes, cpu); ok && err == nil {
				dist.ExecNode = node
			}
		}
		if dist.Name == "" {
			dist.Name = host.CommForPID(c.sys, pid, names)
		}
		out = append(out, dist)
	}

	if len(out) == 0 && denied > 0 {
		return nil, fmt.Errorf("numa_maps for %d processes: %w", denied, types.ErrPermissionDenied)
	}
	return out, nil
}
