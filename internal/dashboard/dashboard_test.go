package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/models"
)

type stubFetcher struct{ id string }

func (s stubFetcher) ID() string { return s.id }
func (s stubFetcher) Fetch(ctx context.Context) models.SubscriptionInfo {
	return models.SubscriptionInfo{Name: s.id, UsageText: "ok"}
}

func newTestModel(ids ...string) Model {
	var fetchers []fetch.Fetcher
	for _, id := range ids {
		fetchers = append(fetchers, stubFetcher{id: id})
	}
	return NewModel(context.Background(), fetchers, 4, time.Minute)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm
}

func TestFailedFetchKeepsPreviousPanel(t *testing.T) {
	m := newTestModel("anthropic")
	m = update(t, m, cycleStartedMsg{})

	good := resultMsg{
		id:   "anthropic",
		info: models.SubscriptionInfo{Name: "Anthropic", UsageText: "5h: 42%", ResetTime: "03-01 17:30 +00"},
		at:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	m = update(t, m, good)

	m = update(t, m, cycleStartedMsg{})
	bad := resultMsg{
		id:   "anthropic",
		info: models.SubscriptionInfo{Name: "Anthropic", UsageText: models.Placeholder, Error: "HTTP 500"},
		at:   time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC),
	}
	m = update(t, m, bad)

	view := m.View()
	if !strings.Contains(view, "5h: 42%") {
		t.Errorf("view lost last good data:\n%s", view)
	}
	if !strings.Contains(view, "stale") {
		t.Errorf("view missing stale marker:\n%s", view)
	}
	if !strings.Contains(view, "HTTP 500") {
		t.Errorf("view missing failure note:\n%s", view)
	}
}

func TestFailureWithNoHistoryShowsError(t *testing.T) {
	m := newTestModel("cursor")
	m = update(t, m, cycleStartedMsg{})
	m = update(t, m, resultMsg{
		id:   "cursor",
		info: models.SubscriptionInfo{Name: "Cursor", UsageText: models.Placeholder, Error: "session expired"},
		at:   time.Now(),
	})

	view := m.View()
	if !strings.Contains(view, "session expired") {
		t.Errorf("view missing error:\n%s", view)
	}
	if !strings.Contains(view, models.Placeholder) {
		t.Errorf("view missing placeholder:\n%s", view)
	}
}

func TestLastResultSchedulesNextTick(t *testing.T) {
	m := newTestModel("a", "b")
	m = update(t, m, cycleStartedMsg{})
	if len(m.inflight) != 2 {
		t.Fatalf("inflight = %d, want 2", len(m.inflight))
	}

	next, cmd := m.Update(resultMsg{id: "a", info: models.SubscriptionInfo{Name: "a", UsageText: "x"}, at: time.Now()})
	m = next.(Model)
	if len(m.inflight) != 1 {
		t.Errorf("inflight = %d after first result", len(m.inflight))
	}
	if cmd == nil {
		t.Error("no follow-up command while results remain")
	}

	next, cmd = m.Update(resultMsg{id: "b", info: models.SubscriptionInfo{Name: "b", UsageText: "y"}, at: time.Now()})
	m = next.(Model)
	if len(m.inflight) != 0 {
		t.Errorf("inflight = %d after last result", len(m.inflight))
	}
	if cmd == nil {
		t.Error("last result must schedule the next poll tick")
	}
}

func TestTickWhileCycleRunningDoesNotOverlap(t *testing.T) {
	m := newTestModel("a")
	m = update(t, m, cycleStartedMsg{})

	// The cycle hasn't finished; a tick must reschedule, not start another.
	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if len(m.inflight) != 1 {
		t.Errorf("inflight = %d, tick must not restart a running cycle", len(m.inflight))
	}
	if cmd == nil {
		t.Error("tick during a cycle must reschedule itself")
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel("a")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(Model)
	if !m.quitting {
		t.Error("q did not set quitting")
	}
	if cmd == nil {
		t.Error("q did not produce a quit command")
	}
	if m.View() != "" {
		t.Error("quitting view must be empty")
	}
}

func TestRefreshKeyIgnoredMidCycle(t *testing.T) {
	m := newTestModel("a")
	m = update(t, m, cycleStartedMsg{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd != nil {
		t.Error("r mid-cycle must not start another cycle")
	}
}

func TestPendingPanelShowsPlaceholder(t *testing.T) {
	m := newTestModel("gemini")
	if !strings.Contains(m.View(), models.Placeholder) {
		t.Errorf("view before first result missing placeholder:\n%s", m.View())
	}
}
