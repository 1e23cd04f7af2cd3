//go:build !linux

package host

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ListProcessIDs enumerates processes through gopsutil.
func (Real) ListProcessIDs() ([]int, error) {
	raw, err := process.Pids()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	pids := make([]int, 0, len(raw))
	for _, pid := range raw {
		if pid > 0 {
			pids = append(pids, int(pid))
		}
	}
	return pids, nil
}

// MemoryStatus reads RAM and swap totals through gopsutil.
func (Real) MemoryStatus() (MemoryStatus, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("virtual memory: %w", err)
	}
	sw, err := mem.SwapMemory()
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("swap memory: %w", err)
	}
	return MemoryStatus{
		RAMTotalBytes:  vm.Total,
		SwapTotalBytes: sw.Total,
		SwapFreeBytes:  sw.Free,
	}, nil
}
