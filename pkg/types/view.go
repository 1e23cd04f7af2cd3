package types

import (
	"fmt"
	"strings"
)

// View identifies the dashboard tab currently displayed.
type View int

const (
	ViewSwap View = iota
	ViewNuma
	ViewGPU
	ViewUnified
)

func (v View) String() string {
	switch v {
	case ViewNuma:
		return "NUMA"
	case ViewGPU:
		return "GPU"
	case ViewUnified:
		return "Unified"
	default:
		return "Swap"
	}
}

// Next cycles Swap -> NUMA -> GPU -> Unified -> Swap. NUMA is skipped when
// the host cannot report it.
func (v View) Next(numaSupported bool) View {
	switch v {
	case ViewSwap:
		if numaSupported {
			return ViewNuma
		}
		return ViewGPU
	case ViewNuma:
		return ViewGPU
	case ViewGPU:
		return ViewUnified
	default:
		return ViewSwap
	}
}

// ParseView accepts the lower-case view names used on the command line.
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swap":
		return ViewSwap, nil
	case "numa":
		return ViewNuma, nil
	case "gpu":
		return ViewGPU, nil
	case "unified":
		return ViewUnified, nil
	}
	return ViewSwap, fmt.Errorf("unknown view %q", s)
}

// SortColumn selects the ordering of unified records.
type SortColumn int

const (
	SortSwap SortColumn = iota
	SortGPUMem
	SortNumaNode
	SortName
)

func (c SortColumn) String() string {
	switch c {
	case SortGPUMem:
		return "gpu_mem"
	case SortNumaNode:
		return "numa"
	case SortName:
		return "name"
	default:
		return "swap"
	}
}

// Next cycles swap -> gpu_mem -> numa -> name -> swap.
func (c SortColumn) Next() SortColumn {
	return (c + 1) % (SortName + 1)
}

// ParseSortColumn accepts the names printed by String.
func ParseSortColumn(s string) (SortColumn, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swap":
		return SortSwap, nil
	case "gpu_mem", "gpu":
		return SortGPUMem, nil
	case "numa":
		return SortNumaNode, nil
	case "name":
		return SortName, nil
	}
	return SortSwap, fmt.Errorf("unknown sort column %q", s)
}

// Units is the display unit for byte quantities.
type Units int

const (
	KB Units = iota
	MB
	GB
)

func (u Units) String() string {
	switch u {
	case MB:
		return "MB"
	case GB:
		return "GB"
	default:
		return "KB"
	}
}

// Convert expresses bytes in u, 1024-based.
func (u Units) Convert(bytes uint64) float64 {
	switch u {
	case MB:
		return float64(bytes) / (1 << 20)
	case GB:
		return float64(bytes) / (1 << 30)
	default:
		return float64(bytes) / (1 << 10)
	}
}

// Format renders bytes in u with a unit suffix.
func (u Units) Format(bytes uint64) string {
	if u == KB {
		return fmt.Sprintf("%.0f %s", u.Convert(bytes), u)
	}
	return fmt.Sprintf("%.2f %s", u.Convert(bytes), u)
}

// ParseUnits accepts KB, MB or GB in any case.
func ParseUnits(s string) (Units, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "KB", "K":
		return KB, nil
	case "MB", "M":
		return MB, nil
	case "GB", "G":
		return GB, nil
	}
	return KB, fmt.Errorf("unknown units %q", s)
}
