package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// Provider is the data layer as seen by the dashboard.
type Provider interface {
	Snapshot(view types.View) types.UnifiedSnapshot
	Refresh()
	RefreshInterval() time.Duration
	SetRefreshInterval(d time.Duration) time.Duration
	SetUnits(u types.Units)
	SetSort(col types.SortColumn)
	ToggleAggregate() bool
	Apply(cfg *config.Config) error
}

// ConfigReloadMsg carries a re-read configuration file into the event loop.
// The provider is only mutated from Update, never from the watcher.
type ConfigReloadMsg struct {
	Path   string
	Config *config.Config
	Err    error
}

type tickMsg struct{}

// bannerMinHeight is the terminal height from which the wordmark is shown.
const bannerMinHeight = 40

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("112"))
	activeTab    = lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	inactiveTab  = lipgloss.NewStyle().Padding(0, 1)
	disabledTab  = lipgloss.NewStyle().Padding(0, 1).Faint(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	focusStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	viewsInOrder = []types.View{types.ViewSwap, types.ViewNuma, types.ViewGPU, types.ViewUnified}
)

// Model is the bubbletea model of the live dashboard. Every snapshot is
// taken inside Update so the provider only ever sees one goroutine.
type Model struct {
	provider Provider
	keys     KeyMap
	help     help.Model

	view   types.View
	snap   types.UnifiedSnapshot
	notice string

	width  int
	height int
}

// NewModel returns a dashboard opening on view.
func NewModel(provider Provider, view types.View) Model {
	return Model{
		provider: provider,
		keys:     DefaultKeyMap,
		help:     help.New(),
		view:     view,
	}
}

// Init implements tea.Model. The first tick fires immediately.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return tickMsg{} }
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.provider.RefreshInterval(), func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) refresh() {
	m.snap = m.provider.Snapshot(m.view)
	if m.view == types.ViewNuma && !m.snap.NumaSupported {
		m.view = types.ViewSwap
		m.snap = m.provider.Snapshot(m.view)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ConfigReloadMsg:
		switch {
		case msg.Err != nil:
			m.notice = fmt.Sprintf("config reload failed: %v", msg.Err)
		default:
			if err := m.provider.Apply(msg.Config); err != nil {
				m.notice = fmt.Sprintf("config %s rejected: %v", msg.Path, err)
			} else {
				m.notice = fmt.Sprintf("configuration reloaded from %s", msg.Path)
				m.refresh()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextView):
		m.view = m.view.Next(m.snap.NumaSupported)
	case key.Matches(msg, m.keys.ViewSwap):
		m.view = types.ViewSwap
	case key.Matches(msg, m.keys.ViewNuma):
		if !m.snap.NumaSupported {
			return m, nil
		}
		m.view = types.ViewNuma
	case key.Matches(msg, m.keys.ViewGPU):
		m.view = types.ViewGPU
	case key.Matches(msg, m.keys.ViewUnified):
		m.view = types.ViewUnified
	case key.Matches(msg, m.keys.UnitsKB):
		m.provider.SetUnits(types.KB)
	case key.Matches(msg, m.keys.UnitsMB):
		m.provider.SetUnits(types.MB)
	case key.Matches(msg, m.keys.UnitsGB):
		m.provider.SetUnits(types.GB)
	case key.Matches(msg, m.keys.Sort):
		m.provider.SetSort(m.snap.Sort.Next())
	case key.Matches(msg, m.keys.Aggregate):
		m.provider.ToggleAggregate()
	case key.Matches(msg, m.keys.Faster):
		m.provider.SetRefreshInterval(m.provider.RefreshInterval() - config.IntervalStep)
	case key.Matches(msg, m.keys.Slower):
		m.provider.SetRefreshInterval(m.provider.RefreshInterval() + config.IntervalStep)
	case key.Matches(msg, m.keys.Refresh):
		m.provider.Refresh()
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	if m.height >= bannerMinHeight {
		b.WriteString(Banner())
	}
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if line := FocusLine(m.snap); line != "" && m.view == types.ViewUnified {
		b.WriteString(focusStyle.Render(line))
		b.WriteString("\n")
	}
	for _, line := range DiagnosticLines(m.snap) {
		b.WriteString(warningStyle.Render("[!] " + line))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var body strings.Builder
	_ = Render(&body, m.snap)
	chrome := strings.Count(b.String(), "\n") + 2
	b.WriteString(clipLines(body.String(), m.height-chrome))

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	tabs := []string{titleStyle.Render("nv-swaptop")}
	for _, v := range viewsInOrder {
		label := v.String()
		switch {
		case v == m.view:
			tabs = append(tabs, activeTab.Render(label))
		case v == types.ViewNuma && !m.snap.NumaSupported:
			tabs = append(tabs, disabledTab.Render(label))
		default:
			tabs = append(tabs, inactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus() string {
	aggregate := "off"
	if m.snap.Aggregate {
		aggregate = "on"
	}
	fields := []string{
		"Interval " + m.provider.RefreshInterval().String(),
		"Units " + m.snap.Units.String(),
		"Sort " + m.snap.Sort.String(),
		"Aggregate " + aggregate,
	}
	if !m.snap.TakenAt.IsZero() {
		fields = append(fields, "Updated "+m.snap.TakenAt.Format(time.TimeOnly))
	}
	return statusStyle.Render(strings.Join(fields, " │ "))
}

// clipLines keeps at most limit lines of s. A non-positive limit keeps all.
func clipLines(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "")
}
