package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every parser is a function of its input alone: two calls on the same text
// must agree, including parsers that build maps internally.
func TestParsersAreDeterministic(t *testing.T) {
	busToIndex := map[string]int{"0000:19:00.0": 0, "0000:3b:00.0": 1}
	cases := []struct {
		name  string
		parse func() []any
	}{
		{"meminfo", func() []any {
			totals, err := ParseMeminfo(sampleMeminfo)
			return []any{totals, err}
		}},
		{"meminfo missing field", func() []any {
			totals, err := ParseMeminfo("SwapTotal: 10 kB\n")
			return []any{totals, err}
		}},
		{"status", func() []any {
			swap, ok := ParseProcessStatus("Name:\tpython3\nVmSwap:\t    2048 kB\n")
			return []any{swap, ok, ParseStatusName("Name:\tpython3\n")}
		}},
		{"stat", func() []any {
			comm, cpu, err := ParseProcessStat("42 (a (b) c) S 1 1 1 0 -1 4194304 0 0 0 0 0 0 0 0 20 0 1 0 100 0 0 0 0 0 0 0 0 0 0 0 0 0 17 3 0 0\n")
			return []any{comm, cpu, err}
		}},
		{"swaps", func() []any {
			devices, skipped, err := ParseSwaps("Filename\tType\tSize\tUsed\tPriority\n/dev/sda2 partition 1024 12 -2\n/dev/zram0 partition bogus 0 100\n")
			return []any{devices, skipped, err}
		}},
		{"node meminfo", func() []any {
			total, free, err := ParseNodeMeminfo("Node 0 MemTotal: 1024 kB\nNode 0 MemFree: 512 kB\n")
			return []any{total, free, err}
		}},
		{"cpulist", func() []any {
			return []any{ParseCPUList("11,3,0-2,x,8-9,2")}
		}},
		{"numa_maps", func() []any {
			return []any{ParseNumaMaps("7f00 default anon=9 N3=4 N0=2 N1=3\n7f10 bind:1 N1=7 kernelpagesize_kB=4\n7f20 default anon=5\n")}
		}},
		{"classify", func() []any {
			kind, gpu := ClassifyNode(96<<30, nil, NodeHint{GPUIndex: -1, GPUPresent: true}, DefaultClassifyPolicy())
			return []any{kind, gpu}
		}},
		{"gpu devices", func() []any {
			devices, skipped, err := ParseGPUDeviceCSV("1, H100, 81559, 2048, 79511, 40, 00000000:3B:00.0, GPU-b\n0, H100, 81559, [N/A], 0, 52, 00000000:19:00.0, GPU-a\n")
			return []any{devices, skipped, err}
		}},
		{"gpu processes", func() []any {
			procs, skipped, err := ParseGPUProcessCSV("00000000:19:00.0, 8923, python3, 18432\n00000000:3B:00.0, 4444, my, app, [N/A]\n", busToIndex)
			return []any{procs, skipped, err}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.parse(), tc.parse())
		})
	}
}
