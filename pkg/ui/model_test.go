package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// stubProvider records what the dashboard asked for.
type stubProvider struct {
	numa      bool
	views     []types.View
	interval  time.Duration
	units     types.Units
	sort      types.SortColumn
	aggregate bool
	applied   *config.Config
	applyErr  error
	refreshes int
}

func (s *stubProvider) Snapshot(view types.View) types.UnifiedSnapshot {
	s.views = append(s.views, view)
	return types.UnifiedSnapshot{
		View:          view,
		Units:         s.units,
		Sort:          s.sort,
		Aggregate:     s.aggregate,
		NumaSupported: s.numa,
	}
}

func (s *stubProvider) Refresh() { s.refreshes++ }

func (s *stubProvider) RefreshInterval() time.Duration { return s.interval }

func (s *stubProvider) SetRefreshInterval(d time.Duration) time.Duration {
	s.interval = config.ClampInterval(d)
	return s.interval
}

func (s *stubProvider) SetUnits(u types.Units) { s.units = u }
func (s *stubProvider) SetSort(col types.SortColumn) { s.sort = col }
func (s *stubProvider) ToggleAggregate() bool { s.aggregate = !s.aggregate; return s.aggregate }
func (s *stubProvider) Apply(cfg *config.Config) error { s.applied = cfg; return s.applyErr }

func runes(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func send(t *testing.T, model Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(msg)
	m, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T", updated)
	}
	return m, cmd
}

func TestModelTickSnapshotsCurrentView(t *testing.T) {
	p := &stubProvider{interval: time.Second, numa: true}
	model := NewModel(p, types.ViewGPU)

	if _, ok := model.Init()().(tickMsg); !ok {
		t.Fatalf("Init should start the tick loop")
	}
	model, cmd := send(t, model, tickMsg{})
	if cmd == nil {
		t.Fatalf("tick should schedule the next tick")
	}
	if len(p.views) != 1 || p.views[0] != types.ViewGPU {
		t.Fatalf("expected one GPU snapshot, got %v", p.views)
	}
	if !strings.Contains(model.View(), "No NVIDIA GPU detected") {
		t.Fatalf("GPU view should render the empty notice")
	}
}

func TestModelViewSwitching(t *testing.T) {
	p := &stubProvider{interval: time.Second, numa: true}
	model := NewModel(p, types.ViewSwap)
	model, _ = send(t, model, tickMsg{})

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	if model.view != types.ViewNuma {
		t.Fatalf("tab from swap should reach NUMA, got %v", model.view)
	}
	model, _ = send(t, model, runes("4"))
	if model.view != types.ViewUnified {
		t.Fatalf("4 should select unified, got %v", model.view)
	}
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	if model.view != types.ViewSwap {
		t.Fatalf("tab from unified should wrap to swap, got %v", model.view)
	}
}

func TestModelSkipsNumaWhenUnsupported(t *testing.T) {
	p := &stubProvider{interval: time.Second}
	model := NewModel(p, types.ViewSwap)
	model, _ = send(t, model, tickMsg{})

	model, _ = send(t, model, runes("2"))
	if model.view != types.ViewSwap {
		t.Fatalf("2 must be ignored without NUMA, got %v", model.view)
	}
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	if model.view != types.ViewGPU {
		t.Fatalf("tab should skip NUMA, got %v", model.view)
	}

	// A NUMA start on a host without NUMA falls back to swap.
	model = NewModel(p, types.ViewNuma)
	model, _ = send(t, model, tickMsg{})
	if model.view != types.ViewSwap {
		t.Fatalf("expected fallback to swap, got %v", model.view)
	}
}

func TestModelSettingsKeys(t *testing.T) {
	p := &stubProvider{interval: time.Second, numa: true}
	model := NewModel(p, types.ViewSwap)
	model, _ = send(t, model, tickMsg{})

	model, _ = send(t, model, runes("g"))
	if p.units != types.GB {
		t.Fatalf("g should select GB, got %v", p.units)
	}
	model, _ = send(t, model, runes("s"))
	if p.sort != types.SortGPUMem {
		t.Fatalf("s should advance the sort column, got %v", p.sort)
	}
	model, _ = send(t, model, runes("a"))
	if !p.aggregate {
		t.Fatalf("a should toggle aggregation")
	}
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyRight})
	if p.interval != 1100*time.Millisecond {
		t.Fatalf("right should slow the refresh, got %v", p.interval)
	}
	for i := 0; i < 20; i++ {
		model, _ = send(t, model, runes("-"))
	}
	if p.interval != config.MinRefreshInterval {
		t.Fatalf("interval should clamp at %v, got %v", config.MinRefreshInterval, p.interval)
	}
	if !strings.Contains(model.View(), "Aggregate on") {
		t.Fatalf("status line should show aggregation:\n%s", model.View())
	}
}

func TestModelRefreshKeyForcesRead(t *testing.T) {
	p := &stubProvider{interval: time.Second}
	model := NewModel(p, types.ViewSwap)
	model, _ = send(t, model, tickMsg{})

	send(t, model, runes("r"))
	if p.refreshes != 1 {
		t.Fatalf("r should expire the provider caches, got %d refreshes", p.refreshes)
	}
	if len(p.views) != 2 {
		t.Fatalf("r should take a new snapshot, got %d", len(p.views))
	}
}

func TestModelQuit(t *testing.T) {
	model := NewModel(&stubProvider{interval: time.Second}, types.ViewSwap)
	_, cmd := send(t, model, runes("q"))
	if cmd == nil {
		t.Fatalf("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q should quit")
	}
}

func TestModelConfigReload(t *testing.T) {
	p := &stubProvider{interval: time.Second}
	model := NewModel(p, types.ViewSwap)

	cfg := config.Default()
	model, _ = send(t, model, ConfigReloadMsg{Path: "/etc/nv-swaptop.yaml", Config: cfg})
	if p.applied != cfg {
		t.Fatalf("reloaded config was not applied")
	}
	if !strings.Contains(model.View(), "configuration reloaded from /etc/nv-swaptop.yaml") {
		t.Fatalf("missing reload notice:\n%s", model.View())
	}

	p.applyErr = errors.New("units: unknown units")
	model, _ = send(t, model, ConfigReloadMsg{Path: "/etc/nv-swaptop.yaml", Config: cfg})
	if !strings.Contains(model.notice, "rejected") {
		t.Fatalf("expected rejection notice, got %q", model.notice)
	}

	model, _ = send(t, model, ConfigReloadMsg{Path: "/etc/nv-swaptop.yaml", Err: errors.New("yaml: bad")})
	if !strings.Contains(model.notice, "reload failed") {
		t.Fatalf("expected failure notice, got %q", model.notice)
	}
}
