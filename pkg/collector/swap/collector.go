// Package swap collects host swap totals, per-process swap usage and the
// list of swap devices.
package swap

import (
	"sort"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// Collector reads swap data through a host.System. Which sources it uses
// depends on the platform it was built for; the method set does not.
type Collector struct {
	sys host.System
}

// NewCollector returns a swap collector bound to sys.
func NewCollector(sys host.System) *Collector {
	return &Collector{sys: sys}
}

func totalsFromStatus(status host.MemoryStatus) types.SwapTotals {
	used := uint64(0)
	if status.SwapTotalBytes > status.SwapFreeBytes {
		used = status.SwapTotalBytes - status.SwapFreeBytes
	}
	return types.SwapTotals{TotalBytes: status.SwapTotalBytes, UsedBytes: used}
}

func sortBySwap(procs []types.ProcessSwap) {
	sort.Slice(procs, func(i, j int) bool {
		if procs[i].SwapBytes != procs[j].SwapBytes {
			return procs[i].SwapBytes > procs[j].SwapBytes
		}
		return procs[i].PID < procs[j].PID
	})
}
