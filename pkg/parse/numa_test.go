package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/nv-swaptop/pkg/types"
)

func TestParseNodeMeminfo(t *testing.T) {
	text := `Node 1 MemTotal:       98304000 kB
Node 1 MemFree:        90000000 kB
Node 1 MemUsed:         8304000 kB
`
	total, free, err := ParseNodeMeminfo(text)
	require.NoError(t, err)
	assert.Equal(t, uint64(98304000*1024), total)
	assert.Equal(t, uint64(90000000*1024), free)

	_, _, err = ParseNodeMeminfo("Node 1 MemTotal: 10 kB\n")
	assert.True(t, errors.Is(err, types.ErrMalformed))
}

func TestParseCPUList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0-3,8-11\n", []int{0, 1, 2, 3, 8, 9, 10, 11}},
		{"5", []int{5}},
		{"", []int{}},
		{"\n", []int{}},
		{"3,1,1-2", []int{1, 2, 3}},
		{"0-1,x,7-5,4", []int{0, 1, 4}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseCPUList(tc.in), "input %q", tc.in)
	}
}

func TestParseNumaMaps(t *testing.T) {
	text := `00400000 default file=/usr/bin/app mapped=10 mapmax=2 N0=10 kernelpagesize_kB=4
7f0000000000 default anon=300 dirty=300 N0=100 N2=200 kernelpagesize_kB=4
7f1000000000 bind:2 anon=50 dirty=50 N2=50 kernelpagesize_kB=4
7ffd00000000 default stack anon=3 dirty=3 kernelpagesize_kB=4
7ffe00000000 default Nx=4 N1=abc
`
	pages := ParseNumaMaps(text)
	assert.Equal(t, map[int]uint64{0: 110, 2: 250, types.UnknownNode: 3}, pages)
}

func TestParseNumaMapsEmpty(t *testing.T) {
	assert.Empty(t, ParseNumaMaps(""))
}

func TestClassifyNode(t *testing.T) {
	policy := DefaultClassifyPolicy()
	const hbm = 96 << 30

	kind, gpu := ClassifyNode(hbm, []int{0, 1}, NodeHint{GPUIndex: 0, GPUPresent: true}, policy)
	assert.Equal(t, types.NodeCPU, kind, "cpus win over any hint")
	assert.Equal(t, -1, gpu)

	kind, gpu = ClassifyNode(8<<30, nil, NodeHint{GPUIndex: 1, GPUPresent: true}, policy)
	assert.Equal(t, types.NodeGPUHBM, kind)
	assert.Equal(t, 1, gpu)

	kind, gpu = ClassifyNode(hbm, nil, NodeHint{GPUIndex: -1, GPUPresent: true}, policy)
	assert.Equal(t, types.NodeGPUHBM, kind)
	assert.Equal(t, -1, gpu)

	kind, _ = ClassifyNode(hbm, nil, NoHint, policy)
	assert.Equal(t, types.NodeUnknown, kind, "size alone needs a GPU on the host")

	kind, _ = ClassifyNode(1<<40, nil, NodeHint{GPUIndex: -1, GPUPresent: true}, policy)
	assert.Equal(t, types.NodeUnknown, kind)
}

func TestClassifyNodeHonoursSignalOrder(t *testing.T) {
	sizeOnly := ClassifyPolicy{Signals: []Signal{SignalMemorySize}, HBMMinBytes: 1, HBMMaxBytes: 1 << 40}
	kind, gpu := ClassifyNode(4<<30, nil, NodeHint{GPUIndex: 3, GPUPresent: true}, sizeOnly)
	assert.Equal(t, types.NodeGPUHBM, kind)
	assert.Equal(t, -1, gpu, "bus hint disabled, so the owner is unknown")

	none := ClassifyPolicy{}
	kind, _ = ClassifyNode(4<<30, nil, NodeHint{GPUIndex: 3, GPUPresent: true}, none)
	assert.Equal(t, types.NodeUnknown, kind)
}

func TestParseSignal(t *testing.T) {
	sig, ok := ParseSignal(" Bus_Hint ")
	require.True(t, ok)
	assert.Equal(t, SignalBusHint, sig)
	_, ok = ParseSignal("vibes")
	assert.False(t, ok)
}
