package provider

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/srodi/nv-swaptop/pkg/clock"
	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/types"
)

type fakeSwap struct {
	snap    types.SwapSnapshot
	err     error
	devices []types.SwapDevice
	calls   int
}

func (f *fakeSwap) Snapshot() (types.SwapSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func (f *fakeSwap) Devices() ([]types.SwapDevice, error) { return f.devices, nil }

type fakeNuma struct {
	nodes     []types.NumaNode
	topoErr   error
	dists     []types.ProcessNumaDistribution
	mapCalls  int
	lastPIDs  []int
	lastGPUs  []types.GpuDevice
	policySet bool
}

func (f *fakeNuma) Topology(gpus []types.GpuDevice) ([]types.NumaNode, error) {
	f.lastGPUs = gpus
	return f.nodes, f.topoErr
}

func (f *fakeNuma) ProcessMaps(pids []int, nodes []types.NumaNode) ([]types.ProcessNumaDistribution, error) {
	f.mapCalls++
	f.lastPIDs = pids
	return f.dists, nil
}

func (f *fakeNuma) SetPolicy(parse.ClassifyPolicy) { f.policySet = true }

type fakeGPU struct {
	devices   []types.GpuDevice
	devErr    error
	procs     []types.GpuProcess
	procCalls int
	timeout   time.Duration
}

func (f *fakeGPU) Devices() ([]types.GpuDevice, error) { return f.devices, f.devErr }

func (f *fakeGPU) Processes([]types.GpuDevice) ([]types.GpuProcess, error) {
	f.procCalls++
	return f.procs, nil
}

func (f *fakeGPU) SetTimeout(d time.Duration) { f.timeout = d }
func (f *fakeGPU) Close() error { return nil }

type fixture struct {
	clk  *clock.FakeClock
	swap *fakeSwap
	numa *fakeNuma
	gpu  *fakeGPU
	p    *Provider
}

// gh200 is one CPU node, one GPU HBM node and one H100.
func gh200(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clk: clock.Fake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		swap: &fakeSwap{snap: types.SwapSnapshot{
			SwapTotals: types.SwapTotals{TotalBytes: 8 << 30, UsedBytes: 1 << 30},
			Processes: []types.ProcessSwap{
				{PID: 8923, Name: "preproc", SwapBytes: 128 << 20},
				{PID: 15678, Name: "trainer", SwapBytes: 0},
			},
		}},
		numa: &fakeNuma{
			nodes: []types.NumaNode{
				{ID: 0, Kind: types.NodeCPU, CPUs: []int{0, 1}, GPUIndex: -1},
				{ID: 1, Kind: types.NodeCPU, CPUs: []int{2, 3}, GPUIndex: -1},
				{ID: 2, Kind: types.NodeGPUHBM, GPUIndex: 0},
			},
			dists: []types.ProcessNumaDistribution{
				{PID: 15678, Name: "trainer", ExecNode: 0, Pages: map[int]uint64{0: 900, 1: 5}},
				{PID: 8923, Name: "preproc", ExecNode: 0, Pages: map[int]uint64{2: 700, 0: 20}},
			},
		},
		gpu: &fakeGPU{
			devices: []types.GpuDevice{{Index: 0, Name: "H100", TotalBytes: 80 << 30}},
			procs:   []types.GpuProcess{{PID: 15678, Name: "trainer", GPUIndex: 0, UsedBytes: 39116 << 20}},
		},
	}
	f.p = NewWithSources(Sources{Swap: f.swap, Numa: f.numa, GPU: f.gpu}, config.Default(), f.clk, zap.NewNop())
	return f
}

func TestSnapshotUnifiedClassification(t *testing.T) {
	f := gh200(t)

	// Visit the NUMA view once so placement data is cached.
	f.p.Snapshot(types.ViewNuma)
	snap := f.p.Snapshot(types.ViewUnified)

	require.Len(t, snap.Unified, 2)
	assert.True(t, snap.NumaSupported)
	assert.True(t, snap.GPUSupported)
	assert.Equal(t, f.gpu.devices, f.numa.lastGPUs, "topology sees the GPUs for bus hints")

	records := map[int]types.UnifiedProcessRecord{}
	for _, r := range snap.Unified {
		records[r.PID] = r
	}
	assert.Equal(t, types.CPUAndGPU, records[15678].Location)
	assert.False(t, records[15678].HBMMigration)
	assert.Equal(t, types.CPUOnly, records[8923].Location)
	assert.True(t, records[8923].HBMMigration)

	require.NotNil(t, snap.Focus)
	assert.Equal(t, 8923, snap.Focus.Record.PID)
	assert.Empty(t, snap.Diagnostics)
}

func TestSnapshotGatesExpensiveSources(t *testing.T) {
	f := gh200(t)

	for i := 0; i < 5; i++ {
		f.clk.Advance(time.Minute)
		snap := f.p.Snapshot(types.ViewSwap)
		assert.Nil(t, snap.Unified, "merge only runs for the unified view")
	}
	assert.Zero(t, f.gpu.procCalls)
	assert.Zero(t, f.numa.mapCalls)
	assert.Equal(t, 5, f.swap.calls)

	f.p.Snapshot(types.ViewGPU)
	assert.Equal(t, 1, f.gpu.procCalls)
	assert.Zero(t, f.numa.mapCalls)

	f.p.Snapshot(types.ViewNuma)
	assert.Equal(t, 1, f.numa.mapCalls)
	assert.ElementsMatch(t, []int{8923, 15678}, f.numa.lastPIDs)

	// Within the 5s TTL nothing is re-read.
	f.clk.Advance(time.Second)
	f.p.Snapshot(types.ViewNuma)
	assert.Equal(t, 1, f.numa.mapCalls)
}

func TestNumaCandidatesRespectLimit(t *testing.T) {
	f := gh200(t)
	cfg := config.Default()
	cfg.NumaMaxProcesses = 1
	require.NoError(t, f.p.Apply(cfg))
	assert.True(t, f.numa.policySet)

	pids := f.p.numaCandidates(f.swap.snap.Processes, []types.GpuProcess{{PID: 8923}, {PID: 77}})
	assert.Equal(t, []int{8923, 77}, pids)
}

func TestSnapshotWithoutGPU(t *testing.T) {
	f := gh200(t)
	f.gpu.devErr = fmt.Errorf("nvidia-smi: %w", types.ErrUnavailable)

	snap := f.p.Snapshot(types.ViewGPU)
	assert.False(t, snap.GPUSupported)
	assert.Empty(t, snap.GPUDevices)
	assert.Zero(t, f.gpu.procCalls, "process query is skipped without devices")

	diag, ok := snap.Diagnostics[types.SourceGPUDevices]
	require.True(t, ok)
	assert.Equal(t, "No NVIDIA GPU detected", diag.Message())
}

func TestSnapshotWithNothingAvailable(t *testing.T) {
	f := gh200(t)
	f.swap.err = fmt.Errorf("meminfo: %w", types.ErrUnavailable)
	f.numa.topoErr = fmt.Errorf("sysfs: %w", types.ErrUnavailable)
	f.gpu.devErr = fmt.Errorf("nvidia-smi: %w", types.ErrUnavailable)

	snap := f.p.Snapshot(types.ViewUnified)
	assert.Empty(t, snap.Unified)
	assert.Nil(t, snap.Focus)
	assert.False(t, snap.NumaSupported)
	assert.Len(t, snap.Diagnostics, 3)
}

func TestSwapFailureKeepsLastGoodData(t *testing.T) {
	f := gh200(t)
	first := f.p.Snapshot(types.ViewSwap)
	require.Len(t, first.SwapProcesses, 2)

	f.swap.err = fmt.Errorf("list processes: %w", types.ErrTimeout)
	f.clk.Advance(time.Second)
	second := f.p.Snapshot(types.ViewSwap)
	assert.Equal(t, first.SwapProcesses, second.SwapProcesses)
	assert.Contains(t, second.Diagnostics, types.SourceSwap)
}

func TestMutators(t *testing.T) {
	f := gh200(t)

	assert.Equal(t, config.MinRefreshInterval, f.p.SetRefreshInterval(time.Millisecond))
	assert.Equal(t, config.MaxRefreshInterval, f.p.SetRefreshInterval(time.Hour))
	assert.Equal(t, config.MaxRefreshInterval, f.p.RefreshInterval())

	f.p.SetUnits(types.GB)
	f.p.SetSort(types.SortName)
	assert.True(t, f.p.ToggleAggregate())
	f.p.SetFilter("pre")

	snap := f.p.Snapshot(types.ViewSwap)
	assert.Equal(t, types.GB, snap.Units)
	assert.Equal(t, types.SortName, snap.Sort)
	require.Len(t, snap.SwapProcesses, 1)
	assert.Equal(t, []types.ProcessGroup{{Name: "preproc", Count: 1, SwapBytes: 128 << 20}}, snap.SwapGroups)

	bad := config.Default()
	bad.Units = "bytes"
	assert.Error(t, f.p.Apply(bad))
	assert.Equal(t, types.GB, f.p.Snapshot(types.ViewSwap).Units, "invalid config is not applied")

	good := config.Default()
	good.CommandTimeout = 3 * time.Second
	require.NoError(t, f.p.Apply(good))
	assert.Equal(t, 3*time.Second, f.gpu.timeout)
	assert.False(t, f.p.Snapshot(types.ViewSwap).Aggregate)
}

func TestRefreshBypassesTTL(t *testing.T) {
	f := gh200(t)
	f.p.Snapshot(types.ViewNuma)
	f.p.Snapshot(types.ViewGPU)
	require.Equal(t, 1, f.numa.mapCalls)
	require.Equal(t, 1, f.gpu.procCalls)

	f.p.Refresh()
	f.p.Snapshot(types.ViewNuma)
	assert.Equal(t, 2, f.numa.mapCalls)
	assert.Equal(t, 2, f.swap.calls, "swap is re-read as well")
	assert.Equal(t, 1, f.gpu.procCalls, "gated sources still follow the view")
}
