package parse

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// ParseMeminfo extracts SwapTotal and SwapFree from /proc/meminfo. Both
// fields are mandatory. Used is Total-Free, floored at zero.
func ParseMeminfo(text string) (types.SwapTotals, error) {
	var total, free uint64
	var haveTotal, haveFree bool

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "SwapTotal":
			kb, err := kilobytes(value)
			if err != nil {
				return types.SwapTotals{}, structural("meminfo", "SwapTotal: %v", err)
			}
			total, haveTotal = kb, true
		case "SwapFree":
			kb, err := kilobytes(value)
			if err != nil {
				return types.SwapTotals{}, structural("meminfo", "SwapFree: %v", err)
			}
			free, haveFree = kb, true
		}
	}
	if !haveTotal || !haveFree {
		return types.SwapTotals{}, structural("meminfo", "SwapTotal/SwapFree not found")
	}

	used := uint64(0)
	if total > free {
		used = total - free
	}
	return types.SwapTotals{TotalBytes: total, UsedBytes: used}, nil
}

// ParseProcessStatus returns the VmSwap value of /proc/<pid>/status in bytes.
// ok is false when the field is absent, as it is for kernel threads; callers
// treat that as zero swap.
func ParseProcessStatus(text string) (swapBytes uint64, ok bool) {
	for _, line := range strings.Split(text, "\n") {
		value, found := strings.CutPrefix(line, "VmSwap:")
		if !found {
			continue
		}
		bytes, err := kilobytes(value)
		if err != nil {
			return 0, false
		}
		return bytes, true
	}
	return 0, false
}

// ParseStatusName returns the Name field of /proc/<pid>/status.
func ParseStatusName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if value, found := strings.CutPrefix(line, "Name:"); found {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ParseProcessStat reads the command name and the last CPU (field 39) from
// /proc/<pid>/stat. The command is parenthesised and may itself contain
// spaces or parentheses, so parsing anchors on the last ')'.
func ParseProcessStat(text string) (comm string, lastCPU int, err error) {
	open := strings.IndexByte(text, '(')
	closing := strings.LastIndexByte(text, ')')
	if open < 0 || closing < open {
		return "", -1, structural("stat", "command name not found")
	}
	comm = text[open+1 : closing]

	// rest[0] is field 3 (state), so field n lives at rest[n-3].
	rest := strings.Fields(text[closing+1:])
	const processorField = 39 - 3
	if len(rest) <= processorField {
		return comm, -1, structural("stat", "only %d fields after command", len(rest))
	}
	cpu, convErr := strconv.Atoi(rest[processorField])
	if convErr != nil {
		return comm, -1, structural("stat", "processor field %q", rest[processorField])
	}
	return comm, cpu, nil
}

// ParseSwaps parses /proc/swaps. The header line is mandatory; lines that do
// not have five columns or numeric sizes are skipped individually.
func ParseSwaps(text string) ([]types.SwapDevice, []RowError, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "Filename") {
		return nil, nil, structural("swaps", "missing header")
	}

	var devices []types.SwapDevice
	var skipped []RowError
	for i, line := range lines[1:] {
		row := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: malformedField("columns", strconv.Itoa(len(fields)))})
			continue
		}
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: malformedField("Size", fields[2])})
			continue
		}
		used, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: malformedField("Used", fields[3])})
			continue
		}
		priority, err := strconv.Atoi(fields[4])
		if err != nil {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: malformedField("Priority", fields[4])})
			continue
		}
		devices = append(devices, types.SwapDevice{
			Path:       unescapeOctal(fields[0]),
			Kind:       fields[1],
			TotalBytes: size * 1024,
			UsedBytes:  used * 1024,
			Priority:   priority,
		})
	}
	return devices, skipped, nil
}

// kilobytes parses "  12345 kB" into bytes.
func kilobytes(value string) (uint64, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, malformedField("value", value)
	}
	kb, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, malformedField("value", fields[0])
	}
	return kb * 1024, nil
}

// unescapeOctal undoes the \040-style escaping the kernel applies to paths.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
