package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/srodi/nv-swaptop/pkg/types"
)

const missing = "-"

// Render writes the tables of snap.View to w.
func Render(w io.Writer, snap types.UnifiedSnapshot) error {
	switch snap.View {
	case types.ViewNuma:
		renderNuma(w, snap)
	case types.ViewGPU:
		renderGPU(w, snap)
	case types.ViewUnified:
		renderUnified(w, snap)
	default:
		renderSwap(w, snap)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// DiagnosticLines returns one user-facing line per failing source, in
// refresh order.
func DiagnosticLines(snap types.UnifiedSnapshot) []string {
	var lines []string
	for _, src := range types.Sources {
		if d, ok := snap.Diagnostics[src]; ok {
			lines = append(lines, d.Message())
		}
	}
	return lines
}

// FocusLine summarises snap.Focus, or returns "" when there is none.
func FocusLine(snap types.UnifiedSnapshot) string {
	if snap.Focus == nil {
		return ""
	}
	rec := snap.Focus.Record
	return fmt.Sprintf("[!] Focus: %s (pid %d): %s", rec.Name, rec.PID, snap.Focus.Reason)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderSwap(w io.Writer, snap types.UnifiedSnapshot) {
	u := snap.Units
	pct := 0.0
	if snap.TotalBytes > 0 {
		pct = float64(snap.UsedBytes) / float64(snap.TotalBytes) * 100
	}
	fmt.Fprintf(w, "[Swap %s / %s (%.1f%%)]\n", u.Format(snap.UsedBytes), u.Format(snap.TotalBytes), pct)

	if len(snap.SwapDevices) > 0 {
		tw := newTable(w)
		fmt.Fprintln(tw, "DEVICE\tTYPE\tSIZE\tUSED\tPRIO")
		for _, d := range snap.SwapDevices {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", d.Path, d.Kind, u.Format(d.TotalBytes), u.Format(d.UsedBytes), d.Priority)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if snap.Aggregate {
		if len(snap.SwapGroups) == 0 {
			fmt.Fprintln(w, "No processes using swap")
			return
		}
		tw := newTable(w)
		fmt.Fprintln(tw, "NAME\tCOUNT\tSWAP")
		for _, g := range snap.SwapGroups {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", g.Name, g.Count, u.Format(g.SwapBytes))
		}
		tw.Flush()
		return
	}

	if len(snap.SwapProcesses) == 0 {
		fmt.Fprintln(w, "No processes using swap")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "PID\tNAME\tSWAP")
	for _, p := range snap.SwapProcesses {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.PID, p.Name, u.Format(p.SwapBytes))
	}
	tw.Flush()
}

func renderNuma(w io.Writer, snap types.UnifiedSnapshot) {
	if !snap.NumaSupported {
		fmt.Fprintln(w, "NUMA unsupported on this host")
		return
	}
	u := snap.Units

	fmt.Fprintln(w, "[NUMA nodes]")
	tw := newTable(w)
	fmt.Fprintln(tw, "NODE\tKIND\tTOTAL\tFREE\tCPUS\tGPU")
	for _, n := range snap.NumaNodes {
		gpu := missing
		if n.GPUIndex >= 0 {
			gpu = strconv.Itoa(n.GPUIndex)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Kind, u.Format(n.TotalBytes), u.Format(n.FreeBytes), CPURanges(n.CPUs), gpu)
	}
	tw.Flush()

	fmt.Fprintln(w, "\n[Per-process placement, pages]")
	if len(snap.NumaProcesses) == 0 {
		fmt.Fprintln(w, "No placement data yet")
		return
	}
	dists := append([]types.ProcessNumaDistribution(nil), snap.NumaProcesses...)
	sort.Slice(dists, func(i, j int) bool {
		if a, b := dists[i].TotalPages(), dists[j].TotalPages(); a != b {
			return a > b
		}
		return dists[i].PID < dists[j].PID
	})
	tw = newTable(w)
	fmt.Fprintln(tw, "PID\tNAME\tEXEC\tDOMINANT\tPAGES\tBY NODE\tFLAGS")
	for _, d := range dists {
		dominant := missing
		if node, ok := d.DominantNode(); ok {
			dominant = strconv.Itoa(node)
		}
		flags := ""
		if d.Misaligned() {
			flags = "misaligned"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n", d.PID, d.Name, nodeLabel(d.ExecNode), dominant, d.TotalPages(), pageBreakdown(d), flags)
	}
	tw.Flush()
}

func renderGPU(w io.Writer, snap types.UnifiedSnapshot) {
	if !snap.GPUSupported {
		fmt.Fprintln(w, "No NVIDIA GPU detected")
		return
	}
	u := snap.Units

	fmt.Fprintln(w, "[GPU devices]")
	tw := newTable(w)
	fmt.Fprintln(tw, "IDX\tNAME\tUSED\tTOTAL\tFREE\tTEMP\tBUS")
	for _, d := range snap.GPUDevices {
		temp := missing
		if d.Temperature >= 0 {
			temp = fmt.Sprintf("%d°C", d.Temperature)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", d.Index, d.Name, u.Format(d.UsedBytes), u.Format(d.TotalBytes), u.Format(d.FreeBytes), temp, d.PCIBusID)
	}
	tw.Flush()

	fmt.Fprintln(w, "\n[GPU processes]")
	procs := snap.GPUProcesses
	if len(procs) == 0 {
		fmt.Fprintln(w, "No compute processes")
		return
	}
	tw = newTable(w)
	fmt.Fprintln(tw, "PID\tNAME\tGPU\tUSED")
	for _, p := range procs {
		gpu := missing
		if p.GPUIndex >= 0 {
			gpu = strconv.Itoa(p.GPUIndex)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.PID, p.Name, gpu, u.Format(p.UsedBytes))
	}
	tw.Flush()
}

func renderUnified(w io.Writer, snap types.UnifiedSnapshot) {
	if len(snap.Unified) == 0 {
		fmt.Fprintln(w, "No processes matched")
		return
	}
	u := snap.Units
	fmt.Fprintf(w, "[Unified, sorted by %s]\n", snap.Sort)
	tw := newTable(w)
	fmt.Fprintln(tw, "PID\tNAME\tSWAP\tGPU MEM\tGPU\tNUMA\tLOCATION\tFLAGS")
	for _, r := range snap.Unified {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PID, r.Name, bytesOrMissing(u, r.SwapBytes), bytesOrMissing(u, r.GPUBytes),
			intOrMissing(r.GPUIndex), intOrMissing(r.NumaNode), r.Location, recordFlags(r))
	}
	tw.Flush()
}

// CPURanges compacts a sorted cpu list into "0-3,8,10-11".
func CPURanges(cpus []int) string {
	if len(cpus) == 0 {
		return missing
	}
	var parts []string
	start, prev := cpus[0], cpus[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, cpu := range cpus[1:] {
		if cpu == prev+1 {
			prev = cpu
			continue
		}
		flush()
		start, prev = cpu, cpu
	}
	flush()
	return strings.Join(parts, ",")
}

func pageBreakdown(d types.ProcessNumaDistribution) string {
	var parts []string
	for _, id := range d.NodeIDs() {
		parts = append(parts, fmt.Sprintf("N%d=%d", id, d.Pages[id]))
	}
	if pages := d.Pages[types.UnknownNode]; pages > 0 {
		parts = append(parts, fmt.Sprintf("?=%d", pages))
	}
	return strings.Join(parts, " ")
}

func nodeLabel(id int) string {
	if id == types.UnknownNode {
		return missing
	}
	return strconv.Itoa(id)
}

func recordFlags(r types.UnifiedProcessRecord) string {
	var flags []string
	if r.HBMMigration {
		flags = append(flags, "hbm")
	}
	if r.Misaligned {
		flags = append(flags, "misaligned")
	}
	return strings.Join(flags, ",")
}

func bytesOrMissing(u types.Units, v *uint64) string {
	if v == nil {
		return missing
	}
	return u.Format(*v)
}

func intOrMissing(v *int) string {
	if v == nil || *v < 0 {
		return missing
	}
	return strconv.Itoa(*v)
}

// WriteOnce writes a plain report of snap: header, focus, diagnostics and
// the tables of the current view.
func WriteOnce(w io.Writer, snap types.UnifiedSnapshot, interval time.Duration) error {
	fmt.Fprintf(w, "nv-swaptop | %s view | Updated: %s | Interval: %v | Units: %s\n",
		snap.View, snap.TakenAt.Format(time.RFC3339), interval, snap.Units)
	if line := FocusLine(snap); line != "" {
		fmt.Fprintln(w, line)
	}
	for _, line := range DiagnosticLines(snap) {
		fmt.Fprintf(w, "[!] %s\n", line)
	}
	fmt.Fprintln(w)
	return Render(w, snap)
}
