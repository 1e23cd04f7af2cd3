//go:build linux
// +build linux

package swap

import (
	"fmt"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/types"
)

const (
	meminfoPath = "/proc/meminfo"
	swapsPath   = "/proc/swaps"
)

// Snapshot returns swap totals and every process with a non-zero VmSwap,
// heaviest first. Processes that exit or deny access mid-scan are skipped.
func (c *Collector) Snapshot() (types.SwapSnapshot, error) {
	totals, err := c.totals()
	if err != nil {
		return types.SwapSnapshot{}, err
	}

	pids, err := c.sys.ListProcessIDs()
	if err != nil {
		return types.SwapSnapshot{}, fmt.Errorf("list processes: %w", err)
	}

	names := make(map[int]string)
	procs := make([]types.ProcessSwap, 0, 64)
	for _, pid := range pids {
		data, err := c.sys.ReadFile(host.ProcPath(pid, "status"))
		if err != nil {
			continue
		}
		status := string(data)
		swapBytes, ok := parse.ParseProcessStatus(status)
		if !ok || swapBytes == 0 {
			continue
		}
		name := parse.ParseStatusName(status)
		if name == "" {
			name = host.CommForPID(c.sys, pid, names)
		}
		procs = append(procs, types.ProcessSwap{PID: pid, Name: name, SwapBytes: swapBytes})
	}
	sortBySwap(procs)

	return types.SwapSnapshot{SwapTotals: totals, Processes: procs}, nil
}

// totals prefers /proc/meminfo and falls back to sysinfo(2) when procfs is
// not mounted.
func (c *Collector) totals() (types.SwapTotals, error) {
	data, err := c.sys.ReadFile(meminfoPath)
	if err != nil {
		if !host.Gone(err) {
			return types.SwapTotals{}, err
		}
		status, statusErr := c.sys.MemoryStatus()
		if statusErr != nil {
			return types.SwapTotals{}, fmt.Errorf("%w (memory status: %v)", err, statusErr)
		}
		return totalsFromStatus(status), nil
	}
	return parse.ParseMeminfo(string(data))
}

// Devices lists the active swap areas. Lines that do not parse are dropped.
func (c *Collector) Devices() ([]types.SwapDevice, error) {
	data, err := c.sys.ReadFile(swapsPath)
	if err != nil {
		return nil, err
	}
	devices, _, err := parse.ParseSwaps(string(data))
	if err != nil {
		return nil, err
	}
	return devices, nil
}
