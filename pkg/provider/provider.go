// Package provider is the single entry point of the UI into the data layer.
// One Snapshot call per tick reads every source through its cache, then
// merges the results.
package provider

import (
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/srodi/nv-swaptop/pkg/cache"
	"github.com/srodi/nv-swaptop/pkg/clock"
	"github.com/srodi/nv-swaptop/pkg/collector/gpu"
	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/collector/numa"
	"github.com/srodi/nv-swaptop/pkg/collector/swap"
	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/report"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// SwapSource yields swap data.
type SwapSource interface {
	Snapshot() (types.SwapSnapshot, error)
	Devices() ([]types.SwapDevice, error)
}

// NumaSource yields NUMA topology and per-process placement.
type NumaSource interface {
	Topology(gpus []types.GpuDevice) ([]types.NumaNode, error)
	ProcessMaps(pids []int, nodes []types.NumaNode) ([]types.ProcessNumaDistribution, error)
	SetPolicy(policy parse.ClassifyPolicy)
}

// GPUSource yields GPU devices and compute processes.
type GPUSource interface {
	Devices() ([]types.GpuDevice, error)
	Processes(devices []types.GpuDevice) ([]types.GpuProcess, error)
	SetTimeout(d time.Duration)
	Close() error
}

// Sources bundles the collectors behind a Provider.
type Sources struct {
	Swap SwapSource
	Numa NumaSource
	GPU  GPUSource
}

// NewSources builds the platform collectors on top of sys.
func NewSources(sys host.System, cfg *config.Config) (Sources, error) {
	policy, err := cfg.ClassifyPolicy()
	if err != nil {
		return Sources{}, err
	}
	return Sources{
		Swap: swap.NewCollector(sys),
		Numa: numa.NewCollector(sys, policy),
		GPU:  gpu.NewCollector(sys, cfg.CommandTimeout),
	}, nil
}

// Provider owns every cache entry and the display settings. It is driven by
// a single event loop and is not safe for concurrent use.
type Provider struct {
	logger  *zap.Logger
	cache   *cache.Cache
	sources Sources

	swap        *cache.Entry[types.SwapSnapshot]
	swapDevices *cache.Entry[[]types.SwapDevice]
	topology    *cache.Entry[[]types.NumaNode]
	numaMaps    *cache.Entry[[]types.ProcessNumaDistribution]
	gpuDevices  *cache.Entry[[]types.GpuDevice]
	gpuProcs    *cache.Entry[[]types.GpuProcess]

	interval  time.Duration
	units     types.Units
	sort      types.SortColumn
	aggregate bool
	filter    report.FilterConfig
	numaMax   int
}

// New returns a Provider reading the live host described by sys.
func New(sys host.System, cfg *config.Config, clk clock.Clock, logger *zap.Logger) (*Provider, error) {
	sources, err := NewSources(sys, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithSources(sources, cfg, clk, logger), nil
}

// NewWithSources returns a Provider over explicit collectors.
func NewWithSources(sources Sources, cfg *config.Config, clk clock.Clock, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		logger:      logger,
		cache:       cache.New(clk, logger),
		sources:     sources,
		swap:        cache.NewEntry[types.SwapSnapshot](types.SourceSwap, cfg.RefreshInterval),
		swapDevices: cache.NewEntry[[]types.SwapDevice](types.SourceSwapDevices, cfg.RefreshInterval),
		topology:    cache.NewEntry[[]types.NumaNode](types.SourceNumaTopology, cfg.TTL.NumaTopology),
		numaMaps:    cache.NewEntry[[]types.ProcessNumaDistribution](types.SourceNumaMaps, cfg.TTL.NumaMaps),
		gpuDevices:  cache.NewEntry[[]types.GpuDevice](types.SourceGPUDevices, cfg.TTL.GPUDevices),
		gpuProcs:    cache.NewEntry[[]types.GpuProcess](types.SourceGPUProcesses, cfg.TTL.GPUProcesses),
	}
	p.applySettings(cfg)
	return p
}

// Snapshot refreshes what is stale for view and returns the merged result.
// It never fails: sources that cannot be read contribute nothing and show up
// in Diagnostics.
func (p *Provider) Snapshot(view types.View) types.UnifiedSnapshot {
	c := p.cache

	swapSnap := cache.GetOrRefresh(c, p.swap, true, p.sources.Swap.Snapshot)
	devices := cache.GetOrRefresh(c, p.swapDevices, true, p.sources.Swap.Devices)

	gpus := cache.GetOrRefresh(c, p.gpuDevices, true, p.sources.GPU.Devices)
	gpuSupported := !p.gpuDevices.Disabled() && len(gpus) > 0

	nodes := cache.GetOrRefresh(c, p.topology, true, func() ([]types.NumaNode, error) {
		return p.sources.Numa.Topology(gpus)
	})
	numaSupported := !p.topology.Disabled() && len(nodes) > 0

	gpuActive := gpuSupported && (view == types.ViewGPU || view == types.ViewUnified)
	gpuProcs := cache.GetOrRefresh(c, p.gpuProcs, gpuActive, func() ([]types.GpuProcess, error) {
		return p.sources.GPU.Processes(gpus)
	})

	numaActive := numaSupported && view == types.ViewNuma
	dists := cache.GetOrRefresh(c, p.numaMaps, numaActive, func() ([]types.ProcessNumaDistribution, error) {
		return p.sources.Numa.ProcessMaps(p.numaCandidates(swapSnap.Processes, gpuProcs), nodes)
	})

	snap := types.UnifiedSnapshot{
		View:          view,
		TakenAt:       c.Now(),
		Units:         p.units,
		Sort:          p.sort,
		Aggregate:     p.aggregate,
		SwapTotals:    swapSnap.SwapTotals,
		SwapProcesses: report.FilterSwap(swapSnap.Processes, p.filter),
		SwapDevices:   devices,
		NumaSupported: numaSupported,
		NumaNodes:     nodes,
		NumaProcesses: dists,
		GPUSupported:  gpuSupported,
		GPUDevices:    gpus,
		GPUProcesses:  gpuProcs,
		Diagnostics:   c.Diagnostics(),
	}
	if p.aggregate {
		snap.SwapGroups = report.Aggregate(snap.SwapProcesses)
	}
	if view == types.ViewUnified {
		merged := report.Merge(report.MergeInput{
			Swap:  swapSnap.Processes,
			GPU:   gpuProcs,
			Numa:  dists,
			Nodes: nodes,
		}, p.sort)
		snap.Unified = report.FilterRecords(merged, p.filter)
		snap.Focus = report.SelectFocus(snap.Unified)
	}
	return snap
}

// numaCandidates is the heaviest swap users plus every GPU process.
func (p *Provider) numaCandidates(swapProcs []types.ProcessSwap, gpuProcs []types.GpuProcess) []int {
	top := swapProcs
	if len(top) > p.numaMax {
		top = top[:p.numaMax]
	}
	pids := lo.Map(top, func(s types.ProcessSwap, _ int) int { return s.PID })
	pids = append(pids, lo.Map(gpuProcs, func(g types.GpuProcess, _ int) int { return g.PID })...)
	return lo.Uniq(pids)
}

// Refresh makes every source stale so the next Snapshot re-reads whatever
// its view needs. Disabled sources stay disabled.
func (p *Provider) Refresh() {
	p.swap.Expire()
	p.swapDevices.Expire()
	p.topology.Expire()
	p.numaMaps.Expire()
	p.gpuDevices.Expire()
	p.gpuProcs.Expire()
}

// Diagnostics returns the last failure of every failing source.
func (p *Provider) Diagnostics() map[types.Source]types.Diagnostic {
	return p.cache.Diagnostics()
}

// RefreshInterval returns the current tick period.
func (p *Provider) RefreshInterval() time.Duration { return p.interval }

// SetRefreshInterval changes the tick period, clamped to the supported
// range. Swap data follows the tick.
func (p *Provider) SetRefreshInterval(d time.Duration) time.Duration {
	p.interval = config.ClampInterval(d)
	p.swap.SetTTL(p.interval)
	p.swapDevices.SetTTL(p.interval)
	return p.interval
}

// SetUnits changes the display units.
func (p *Provider) SetUnits(u types.Units) { p.units = u }

// SetSort changes the unified ordering.
func (p *Provider) SetSort(col types.SortColumn) { p.sort = col }

// SetFilter restricts process lists to names containing name.
func (p *Provider) SetFilter(name string) { p.filter = report.FilterConfig{Name: name} }

// ToggleAggregate switches name grouping of swap processes and returns the
// new state.
func (p *Provider) ToggleAggregate() bool {
	p.aggregate = !p.aggregate
	return p.aggregate
}

// Apply replaces every setting with cfg, typically after a config reload.
// The topology is re-read on the next snapshot when the classification
// policy changes.
func (p *Provider) Apply(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, _ := cfg.ClassifyPolicy()
	p.sources.Numa.SetPolicy(policy)
	p.topology.Expire()
	p.applySettings(cfg)
	p.logger.Info("configuration applied",
		zap.Duration("refresh_interval", p.interval),
		zap.String("units", p.units.String()),
		zap.String("sort", p.sort.String()),
	)
	return nil
}

func (p *Provider) applySettings(cfg *config.Config) {
	p.SetRefreshInterval(cfg.RefreshInterval)
	p.units = cfg.ParsedUnits()
	p.sort = cfg.ParsedSort()
	p.aggregate = cfg.Aggregate
	p.SetFilter(cfg.Filter)
	p.numaMax = max(cfg.NumaMaxProcesses, 0)
	p.topology.SetTTL(cfg.TTL.NumaTopology)
	p.numaMaps.SetTTL(cfg.TTL.NumaMaps)
	p.gpuDevices.SetTTL(cfg.TTL.GPUDevices)
	p.gpuProcs.SetTTL(cfg.TTL.GPUProcesses)
	p.sources.GPU.SetTimeout(cfg.CommandTimeout)
}

// Close releases collector resources.
func (p *Provider) Close() error {
	return p.sources.GPU.Close()
}
