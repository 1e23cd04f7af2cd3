package report

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// SelectFocus picks the record most worth an operator's attention: HBM
// migration first, then NUMA misalignment, then the largest swap user. When
// nothing swaps or misbehaves the largest GPU user is chosen. Nil when
// records is empty.
func SelectFocus(records []types.UnifiedProcessRecord) *types.Focus {
	if len(records) == 0 {
		return nil
	}
	var best *types.UnifiedProcessRecord
	bestSeverity := 0
	for i := range records {
		row := &records[i]
		severity := focusSeverity(*row)
		if severity == 0 {
			continue
		}
		if best == nil || severity > bestSeverity ||
			(severity == bestSeverity && outranks(*row, *best)) {
			best = row
			bestSeverity = severity
		}
	}
	if best == nil {
		for i := range records {
			row := &records[i]
			if deref(row.GPUBytes) == 0 {
				continue
			}
			if best == nil || deref(row.GPUBytes) > deref(best.GPUBytes) ||
				(deref(row.GPUBytes) == deref(best.GPUBytes) && row.PID < best.PID) {
				best = row
			}
		}
	}
	if best == nil {
		return nil
	}
	return &types.Focus{Record: *best, Reason: FocusSummary(*best)}
}

// FocusSummary explains in one line why a record was picked.
func FocusSummary(row types.UnifiedProcessRecord) string {
	switch {
	case row.HBMMigration && row.NumaNode != nil:
		return fmt.Sprintf("CPU process with most pages on GPU HBM node %d", *row.NumaNode)
	case row.Misaligned && row.NumaNode != nil:
		return fmt.Sprintf("memory on node %d, executing on another node", *row.NumaNode)
	case deref(row.SwapBytes) > 0:
		return fmt.Sprintf("%s swapped out", humanize.IBytes(deref(row.SwapBytes)))
	case row.GPUBytes != nil && row.GPUIndex != nil:
		return fmt.Sprintf("%s on GPU %d", humanize.IBytes(*row.GPUBytes), *row.GPUIndex)
	}
	return row.Location.String()
}

func focusSeverity(row types.UnifiedProcessRecord) int {
	switch {
	case row.HBMMigration:
		return 3
	case row.Misaligned:
		return 2
	case deref(row.SwapBytes) > 0:
		return 1
	}
	return 0
}

// outranks breaks ties within a severity: more swap, then lower pid.
func outranks(a, b types.UnifiedProcessRecord) bool {
	if x, y := deref(a.SwapBytes), deref(b.SwapBytes); x != y {
		return x > y
	}
	return a.PID < b.PID
}
