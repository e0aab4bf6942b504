// Package dashboard renders the live usage view: one panel per enabled
// provider, refreshed on the configured poll interval. A provider whose fetch
// fails keeps its previous panel, marked stale, so transient upstream trouble
// never blanks the screen.
package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/models"
)

// resultMsg is one provider's fetch completing within a cycle.
type resultMsg struct {
	id   string
	info models.SubscriptionInfo
	at   time.Time
}

type tickMsg time.Time

type cycleStartedMsg struct{}

// panel is the display state for one provider.
type panel struct {
	current models.Timestamped
	// lastGood is the most recent successful record; shown (marked stale)
	// while the current cycle is failing.
	lastGood *models.Timestamped
}

type Model struct {
	ctx           context.Context
	fetchers      []fetch.Fetcher
	maxConcurrent int
	pollInterval  time.Duration

	spinner  spinner.Model
	order    []string
	panels   map[string]panel
	inflight map[string]bool
	results  chan resultMsg

	width    int
	quitting bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func NewModel(ctx context.Context, fetchers []fetch.Fetcher, maxConcurrent int, pollInterval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	order := make([]string, len(fetchers))
	for i, f := range fetchers {
		order[i] = f.ID()
	}

	return Model{
		ctx:           ctx,
		fetchers:      fetchers,
		maxConcurrent: maxConcurrent,
		pollInterval:  pollInterval,
		spinner:       s,
		order:         order,
		panels:        make(map[string]panel),
		inflight:      make(map[string]bool),
		results:       make(chan resultMsg, len(fetchers)),
	}
}

// Run drives the dashboard until the user quits or ctx is canceled.
func Run(ctx context.Context, fetchers []fetch.Fetcher, maxConcurrent int, pollInterval time.Duration) error {
	m := NewModel(ctx, fetchers, maxConcurrent, pollInterval)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCycle(), m.waitForResult())
}

// startCycle kicks off one concurrent fetch of all providers. Results stream
// in through the results channel as each provider finishes.
func (m Model) startCycle() tea.Cmd {
	fetchers := m.fetchers
	maxConcurrent := m.maxConcurrent
	ctx := m.ctx
	results := m.results
	return func() tea.Msg {
		go fetch.FetchAll(ctx, fetchers, maxConcurrent, func(id string, info models.SubscriptionInfo) {
			results <- resultMsg{id: id, info: info, at: time.Now()}
		})
		return cycleStartedMsg{}
	}
}

func (m Model) waitForResult() tea.Cmd {
	results := m.results
	return func() tea.Msg {
		return <-results
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cycleStartedMsg:
		for _, id := range m.order {
			m.inflight[id] = true
		}
		return m, nil

	case resultMsg:
		m.applyResult(msg)
		delete(m.inflight, msg.id)
		if len(m.inflight) == 0 {
			return m, tea.Batch(m.waitForResult(), m.scheduleTick())
		}
		return m, m.waitForResult()

	case tickMsg:
		if len(m.inflight) > 0 {
			// A cycle is still running; skip rather than overlap.
			return m, m.scheduleTick()
		}
		return m, m.startCycle()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if len(m.inflight) == 0 {
				return m, m.startCycle()
			}
			return m, nil
		}
	}

	return m, nil
}

// applyResult records a cycle result, preserving the last good record when
// the new fetch failed.
func (m *Model) applyResult(msg resultMsg) {
	p := m.panels[msg.id]
	stamped := models.Timestamped{Info: msg.info, FetchedAt: msg.at}
	if msg.info.Error == "" {
		p.lastGood = &stamped
	}
	p.current = stamped
	m.panels[msg.id] = p
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	for _, id := range m.order {
		b.WriteString(m.renderPanel(id))
		b.WriteString("\n")
	}

	if len(m.inflight) > 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" refreshing…\n")
	}
	b.WriteString(dimStyle.Render("q quit · r refresh"))
	return b.String()
}

func (m Model) renderPanel(id string) string {
	p, ok := m.panels[id]
	if !ok {
		return panelStyle.Width(m.panelWidth()).Render(titleStyle.Render(id) + "\n" + models.Placeholder)
	}

	shown := p.current
	var notes []string
	if shown.Info.Error != "" && p.lastGood != nil {
		// Fall back to the last good data; surface the failure as a note.
		notes = append(notes, staleStyle.Render("stale · fetched "+p.lastGood.FetchedAt.Format("15:04")))
		notes = append(notes, errStyle.Render(shown.Info.Error))
		shown = *p.lastGood
	} else if shown.Info.Error != "" {
		notes = append(notes, errStyle.Render(shown.Info.Error))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(shown.Info.Name))
	b.WriteString("\n")
	b.WriteString(shown.Info.UsageText)
	if shown.Info.ResetTime != "" {
		b.WriteString("\n" + dimStyle.Render("resets "+shown.Info.ResetTime))
	}
	if shown.Info.LimitNote != "" {
		b.WriteString("\n" + dimStyle.Render(shown.Info.LimitNote))
	}
	for _, n := range notes {
		b.WriteString("\n" + n)
	}
	return panelStyle.Width(m.panelWidth()).Render(b.String())
}

func (m Model) panelWidth() int {
	if m.width > 4 && m.width < 84 {
		return m.width - 4
	}
	return 80
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
