//go:build !linux
// +build !linux

package swap

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// processSwap reports the page-file footprint of one process. Tests replace
// it; gopsutil exposes page-file usage as VMS on Windows.
var processSwap = func(pid int) (string, uint64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return "", 0, err
	}
	name, _ := proc.Name()
	swap := info.Swap
	if swap == 0 {
		swap = info.VMS
	}
	return name, swap, nil
}

// Snapshot derives totals from the OS memory status and per-process usage
// from the process table.
func (c *Collector) Snapshot() (types.SwapSnapshot, error) {
	status, err := c.sys.MemoryStatus()
	if err != nil {
		return types.SwapSnapshot{}, fmt.Errorf("memory status: %w", err)
	}

	pids, err := c.sys.ListProcessIDs()
	if err != nil {
		return types.SwapSnapshot{}, fmt.Errorf("list processes: %w", err)
	}
	procs := make([]types.ProcessSwap, 0, len(pids))
	for _, pid := range pids {
		name, swapBytes, err := processSwap(pid)
		if err != nil || swapBytes == 0 {
			continue
		}
		if name == "" {
			name = fmt.Sprintf("pid-%d", pid)
		}
		procs = append(procs, types.ProcessSwap{PID: pid, Name: name, SwapBytes: swapBytes})
	}
	sortBySwap(procs)

	return types.SwapSnapshot{SwapTotals: totalsFromStatus(status), Processes: procs}, nil
}

// Devices is not available without /proc/swaps.
func (c *Collector) Devices() ([]types.SwapDevice, error) {
	return nil, fmt.Errorf("swap devices: %w", types.ErrUnavailable)
}
