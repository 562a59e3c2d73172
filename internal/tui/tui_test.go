package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"financeflow/internal/api"
	"financeflow/internal/apitest"
	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/events"
	"financeflow/internal/log"
	"financeflow/internal/metrics"
	"financeflow/internal/views"
)

func newTestModel(t *testing.T, srv *apitest.Server) Model {
	t.Helper()
	logger := log.Discard()
	client := api.New(srv.BaseURL(), api.WithLogger(logger))
	bus := events.NewBus()
	ctrl := dashboard.New(client, bus, dashboard.WithLogger(logger))
	deps := Deps{
		Controller: ctrl,
		Budgets:    views.NewBudgetView(client, ctrl, bus, logger),
		Expenses:   views.NewExpensesView(client, ctrl, bus, logger),
		Overview:   views.NewOverviewView(client, ctrl, bus, logger),
		Reports:    views.NewReportsView(client, ctrl, bus, logger),
		User:       "ada@example.com",
		Logger:     logger,
		Now:        func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) },
	}
	t.Cleanup(func() {
		deps.Overview.Close()
		deps.Reports.Close()
		ctrl.Close()
	})
	return New(context.Background(), deps)
}

func seed(srv *apitest.Server) {
	srv.Store.Seed(
		[]core.BudgetItem{{ID: "b1", Category: "Food", Budget: core.Cents(10000), Color: core.Palette[0]}},
		[]core.ExpenseItem{
			{ID: "e1", Description: "Coffee", Amount: core.Cents(450), Category: "Food", Date: core.NewDate(2024, 3, 10), Type: core.Expense},
			{ID: "e2", Description: "Salary", Amount: core.Cents(250000), Category: "Work", Date: core.NewDate(2024, 3, 1), Type: core.Income},
		},
	)
}

// collect runs cmd and returns the messages it yields, skipping spinner
// ticks so nothing sleeps.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil, spinner.TickMsg:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}

func settle(m Model, cmd tea.Cmd) Model {
	for _, msg := range collect(cmd) {
		next, c := m.Update(msg)
		m = settle(next.(Model), c)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, cmd := m.Update(keyMsg(k))
		m = settle(next.(Model), cmd)
	}
	return m
}

// typeText fills the focused field directly; real keystrokes would start
// cursor blink timers.
func typeText(m Model, s string) Model {
	in := &m.form.inputs[m.form.focus]
	in.SetValue(in.Value() + s)
	return m
}

func load(m Model) Model {
	return settle(m, m.loadCmd(false))
}

func TestLoadShowsOverview(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	seed(srv)

	m := newTestModel(t, srv)
	if !strings.Contains(m.View(), "Loading dashboard") {
		t.Fatalf("expected loading screen before the first load")
	}
	m = load(m)

	view := m.View()
	for _, want := range []string{"Overview", "Total Income", "Coffee", "Food", "ada@example.com"} {
		if !strings.Contains(view, want) {
			t.Fatalf("overview missing %q:\n%s", want, view)
		}
	}
	if srv.Hits(apitest.RouteOverview) != 1 {
		t.Fatalf("expected one overview request, got %d", srv.Hits(apitest.RouteOverview))
	}
}

func TestErrorScreenRetry(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.Fail(apitest.RouteListBudgets, 500)

	m := load(newTestModel(t, srv))
	if !strings.Contains(m.View(), dashboard.LoadErrorMessage) {
		t.Fatalf("expected error screen, got:\n%s", m.View())
	}

	// tab keys are ignored on the error screen
	m = press(m, "2")
	if m.deps.Controller.Tab() != dashboard.TabOverview {
		t.Fatalf("tab switched while in error state")
	}

	srv.Heal(apitest.RouteListBudgets)
	m = press(m, "r")
	if m.deps.Controller.Err() != nil || !m.deps.Controller.Ready() {
		t.Fatalf("retry did not recover: %v", m.deps.Controller.Err())
	}
}

func TestTabSwitching(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	cases := []struct {
		keys []string
		want dashboard.Tab
	}{
		{[]string{"2"}, dashboard.TabBudget},
		{[]string{"3"}, dashboard.TabExpenses},
		{[]string{"tab"}, dashboard.TabReports},
		{[]string{"tab"}, dashboard.TabOverview},
		{[]string{"4"}, dashboard.TabReports},
	}
	for i, tc := range cases {
		m = press(m, tc.keys...)
		if got := m.deps.Controller.Tab(); got != tc.want {
			t.Fatalf("case %d: tab = %s, want %s", i, got, tc.want)
		}
	}
	if srv.Hits(apitest.RouteDetailed) == 0 {
		t.Fatalf("opening reports should load the report")
	}
}

func TestAddBudget(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	m = press(m, "2", "a")
	if m.form == nil || !strings.Contains(m.View(), "Add Budget") {
		t.Fatalf("expected add form, got:\n%s", m.View())
	}
	m = typeText(m, "Travel")
	m = press(m, "tab")
	m = typeText(m, "250")
	m = press(m, "enter")

	if m.form != nil {
		t.Fatalf("form should close after a successful save (err %q)", m.deps.Budgets.ErrorMessage())
	}
	items := m.deps.Budgets.Items()
	if len(items) != 1 || items[0].Category != "Travel" || items[0].Budget.Cents != 25000 {
		t.Fatalf("unexpected budgets: %+v", items)
	}
	if srv.Hits(apitest.RouteCreateBudget) != 1 {
		t.Fatalf("expected one create request")
	}
}

func TestFormRejectsBadAmount(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	m = press(m, "3", "a")
	m = typeText(m, "Lunch")
	m = press(m, "tab")
	m = typeText(m, "abc")
	m = press(m, "enter")

	if m.form == nil || m.form.err != string(errBadAmount) {
		t.Fatalf("expected amount error, got form %+v", m.form)
	}
	if srv.Hits(apitest.RouteCreateExpense) != 0 {
		t.Fatalf("a malformed amount must not reach the backend")
	}

	m = press(m, "esc")
	if m.form != nil || m.deps.Expenses.IsOpen() {
		t.Fatalf("esc should close the form")
	}
}

func TestDeleteExpenseAsksFirst(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	seed(srv)
	m := load(newTestModel(t, srv))

	m = press(m, "3", "d")
	if !strings.Contains(m.View(), "delete this expense") {
		t.Fatalf("expected confirmation prompt:\n%s", m.View())
	}
	m = press(m, "n")
	if srv.Hits(apitest.RouteDeleteExpense) != 0 || len(m.deps.Expenses.Items()) != 2 {
		t.Fatalf("declining must not delete")
	}

	m = press(m, "d", "y")
	if srv.Hits(apitest.RouteDeleteExpense) != 1 {
		t.Fatalf("expected one delete request")
	}
	if n := len(m.deps.Expenses.Items()); n != 1 {
		t.Fatalf("expected 1 remaining expense, got %d", n)
	}
}

func TestReportPeriodKeys(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	var picked []core.Period
	m.deps.SelectPeriod = func(_ context.Context, p core.Period) {
		picked = append(picked, p)
		m.deps.Reports.SelectPeriod(p)
	}

	m = press(m, "4", "y")
	if m.deps.Reports.Period() != core.PeriodYear {
		t.Fatalf("period = %s", m.deps.Reports.Period())
	}
	m = press(m, "c")
	if len(picked) != 2 || picked[1] != core.PeriodCustom {
		t.Fatalf("unexpected selections: %v", picked)
	}
	if !strings.Contains(m.View(), "Reports") {
		t.Fatalf("expected report view")
	}
}

func TestExportStatus(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	m = press(m, "x")
	if m.status != "Export is not configured." {
		t.Fatalf("status = %q", m.status)
	}

	m.deps.Export = func(context.Context) (string, int, error) { return "mem:2-3", 2, nil }
	m = press(m, "x")
	if !strings.Contains(m.status, "Exported 2 transactions") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestQuitKeys(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := load(newTestModel(t, srv))

	next, cmd := m.Update(keyMsg("ctrl+c"))
	if !next.(Model).quitting || cmd == nil {
		t.Fatalf("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestRenderBar(t *testing.T) {
	cases := []struct {
		bar  float64
		full int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{140, 10},
	}
	for _, tc := range cases {
		got := renderBar(metrics.BudgetProgress{Bar: tc.bar}, 10)
		if n := strings.Count(got, "█"); n != tc.full {
			t.Fatalf("bar %v: %d filled cells, want %d", tc.bar, n, tc.full)
		}
		if n := strings.Count(got, "░"); n != 10-tc.full {
			t.Fatalf("bar %v: %d empty cells", tc.bar, n)
		}
	}
}

func TestRenderBudgetProgress(t *testing.T) {
	b := core.BudgetItem{Category: "Food", Budget: core.Cents(10000), Spent: core.Cents(12000)}
	got := renderBudgetProgress(views.BudgetRow{Budget: b, Progress: metrics.Progress(b)}, "remaining")
	for _, want := range []string{"Food", "$120 / $100", "120% used", "Over budget", "$0 remaining"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}

	table := renderBudgetTable([]core.BudgetItem{b}, 0)
	if !strings.Contains(table, "$0 left") || strings.Contains(table, "remaining") {
		t.Fatalf("budget tab should say left:\n%s", table)
	}
}

func TestRenderOverviewRoundsHalfUp(t *testing.T) {
	got := renderOverview(core.OverviewData{BudgetUsedPercentage: 12.5}, nil, false)
	if !strings.Contains(got, "13%") || strings.Contains(got, "12%") {
		t.Fatalf("expected 13%% budget used:\n%s", got)
	}
}

func TestExpenseDraftParsing(t *testing.T) {
	d, err := expenseDraft([]string{"Salary", "2500", "Work", "2024-03-01", "Income"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Type != core.Income || d.Amount.Cents != 250000 || d.Date.String() != "2024-03-01" {
		t.Fatalf("unexpected draft %+v", d)
	}

	bad := []struct {
		vals []string
		want error
	}{
		{[]string{"x", "-1", "c", "2024-03-01", "expense"}, errBadAmount},
		{[]string{"x", "1", "c", "01/03/2024", "expense"}, errBadDate},
		{[]string{"x", "1", "c", "2024-03-01", "transfer"}, errBadType},
	}
	for i, tc := range bad {
		if _, err := expenseDraft(tc.vals); err != tc.want {
			t.Fatalf("case %d: err = %v, want %v", i, err, tc.want)
		}
	}
}
