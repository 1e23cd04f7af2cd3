//go:build linux

package host

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// ListProcessIDs returns the numeric entries of /proc.
func (r Real) ListProcessIDs() ([]int, error) {
	names, err := r.ListDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(names))
	for _, name := range names {
		pid, err := strconv.Atoi(name)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// MemoryStatus asks the kernel directly through sysinfo(2). It still works
// when /proc is not mounted.
func (Real) MemoryStatus() (MemoryStatus, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return MemoryStatus{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return MemoryStatus{
		RAMTotalBytes:  uint64(info.Totalram) * unit,
		SwapTotalBytes: uint64(info.Totalswap) * unit,
		SwapFreeBytes:  uint64(info.Freeswap) * unit,
	}, nil
}
