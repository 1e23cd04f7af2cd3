// Package report joins the per-source data into unified per-process rows and
// derives the rankings shown to the operator.
package report

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// MergeInput is the latest cached data of every source.
type MergeInput struct {
	Swap  []types.ProcessSwap
	GPU   []types.GpuProcess
	Numa  []types.ProcessNumaDistribution
	Nodes []types.NumaNode
}

// Merge outer-joins the sources by pid. Every pid seen in any source yields
// exactly one record. A process on several GPUs is reported once with its
// memory summed and the lowest GPU index. Records come back in sortBy order.
func Merge(in MergeInput, sortBy types.SortColumn) []types.UnifiedProcessRecord {
	rows := make(map[int]*types.UnifiedProcessRecord)
	hasCPU := make(map[int]bool)
	ensure := func(pid int, name string) *types.UnifiedProcessRecord {
		row, ok := rows[pid]
		if !ok {
			row = &types.UnifiedProcessRecord{PID: pid}
			rows[pid] = row
		}
		if row.Name == "" {
			row.Name = name
		}
		return row
	}

	for _, p := range in.Swap {
		row := ensure(p.PID, p.Name)
		swap := p.SwapBytes
		row.SwapBytes = &swap
		hasCPU[p.PID] = true
	}

	for _, dist := range in.Numa {
		row := ensure(dist.PID, dist.Name)
		hasCPU[dist.PID] = true
		if node, ok := dist.DominantNode(); ok {
			dominant := node
			row.NumaNode = &dominant
			row.HBMMigration = types.NodeKindOf(in.Nodes, node) == types.NodeGPUHBM
		}
		row.Misaligned = dist.Misaligned()
	}

	for _, g := range in.GPU {
		row := ensure(g.PID, g.Name)
		if row.GPUBytes == nil {
			used, index := g.UsedBytes, g.GPUIndex
			row.GPUBytes = &used
			row.GPUIndex = &index
			continue
		}
		*row.GPUBytes += g.UsedBytes
		if g.GPUIndex >= 0 && (*row.GPUIndex < 0 || g.GPUIndex < *row.GPUIndex) {
			*row.GPUIndex = g.GPUIndex
		}
	}

	records := make([]types.UnifiedProcessRecord, 0, len(rows))
	for pid, row := range rows {
		switch {
		case hasCPU[pid] && row.GPUBytes != nil:
			row.Location = types.CPUAndGPU
		case row.GPUBytes != nil:
			row.Location = types.GPUOnly
		default:
			row.Location = types.CPUOnly
		}
		if row.Location == types.GPUOnly {
			row.HBMMigration = false
		}
		records = append(records, *row)
	}

	SortRecords(records, sortBy)
	return records
}

// SortRecords orders records in place: swap and GPU memory descending, NUMA
// node ascending with unknown last, name ascending. Ties go to the lower pid.
func SortRecords(records []types.UnifiedProcessRecord, by types.SortColumn) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch by {
		case types.SortGPUMem:
			if x, y := deref(a.GPUBytes), deref(b.GPUBytes); x != y {
				return x > y
			}
		case types.SortNumaNode:
			if a.NumaNode == nil || b.NumaNode == nil {
				if a.NumaNode != nil || b.NumaNode != nil {
					return a.NumaNode != nil
				}
			} else if *a.NumaNode != *b.NumaNode {
				return *a.NumaNode < *b.NumaNode
			}
		case types.SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if x, y := deref(a.SwapBytes), deref(b.SwapBytes); x != y {
				return x > y
			}
		}
		return a.PID < b.PID
	})
}

// Aggregate groups swap users by process name, heaviest group first.
func Aggregate(procs []types.ProcessSwap) []types.ProcessGroup {
	byName := lo.GroupBy(procs, func(p types.ProcessSwap) string { return p.Name })
	groups := make([]types.ProcessGroup, 0, len(byName))
	for name, members := range byName {
		groups = append(groups, types.ProcessGroup{
			Name:      name,
			Count:     len(members),
			SwapBytes: lo.SumBy(members, func(p types.ProcessSwap) uint64 { return p.SwapBytes }),
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].SwapBytes != groups[j].SwapBytes {
			return groups[i].SwapBytes > groups[j].SwapBytes
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

// FilterConfig controls which processes appear in tables.
type FilterConfig struct {
	// Name keeps only processes whose name contains it, ignoring case.
	Name string
}

func (cfg FilterConfig) matches(name string) bool {
	if cfg.Name == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(cfg.Name))
}

// FilterRecords applies cfg to unified records, keeping their order.
func FilterRecords(records []types.UnifiedProcessRecord, cfg FilterConfig) []types.UnifiedProcessRecord {
	if cfg.Name == "" {
		return records
	}
	return lo.Filter(records, func(r types.UnifiedProcessRecord, _ int) bool { return cfg.matches(r.Name) })
}

// FilterSwap applies cfg to swap processes, keeping their order.
func FilterSwap(procs []types.ProcessSwap, cfg FilterConfig) []types.ProcessSwap {
	if cfg.Name == "" {
		return procs
	}
	return lo.Filter(procs, func(p types.ProcessSwap, _ int) bool { return cfg.matches(p.Name) })
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
