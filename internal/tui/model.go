// Package tui is the terminal dashboard: a sidebar of four tabs over the
// dashboard controller and its views.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"financeflow/internal/api"
	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/log"
	"financeflow/internal/views"
)

// Deps are the components the dashboard drives.
type Deps struct {
	Controller *dashboard.Controller
	Budgets    *views.BudgetView
	Expenses   *views.ExpensesView
	Overview   *views.OverviewView
	Reports    *views.ReportsView
	// User is shown under the sidebar.
	User string
	// SelectPeriod switches the report period; it may also persist it.
	SelectPeriod func(ctx context.Context, p core.Period)
	// Export is nil when export is not configured.
	Export func(ctx context.Context) (ref string, n int, err error)
	Logout func(ctx context.Context) error
	Logger *log.Logger
	// Now is used for the custom report range.
	Now func() time.Time
}

type (
	loadedMsg   struct{ err error }
	overviewMsg struct{}
	reportMsg   struct{}
	submitMsg   struct{ err error }
	deleteMsg   struct{ err error }
	exportMsg   struct {
		ref string
		n   int
		err error
	}
	loggedOutMsg struct{ err error }
)

// pendingDelete is the row awaiting a y/n answer.
type pendingDelete struct {
	tab dashboard.Tab
	id  core.ID
}

type Model struct {
	deps    Deps
	ctx     context.Context
	spinner spinner.Model

	width, height int
	cursor        map[dashboard.Tab]int
	form          *entryForm
	confirm       *pendingDelete
	status        string
	quitting      bool
}

func New(ctx context.Context, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentTUI)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SelectPeriod == nil {
		deps.SelectPeriod = func(_ context.Context, p core.Period) { deps.Reports.SelectPeriod(p) }
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		deps:    deps,
		ctx:     ctx,
		spinner: s,
		cursor:  map[dashboard.Tab]int{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd(false))
}

func (m Model) loadCmd(reload bool) tea.Cmd {
	ctrl := m.deps.Controller
	ctx := m.ctx
	return func() tea.Msg {
		if reload {
			return loadedMsg{err: ctrl.Reload(ctx)}
		}
		ctrl.RestoreTab(ctx)
		return loadedMsg{err: ctrl.Load(ctx)}
	}
}

// refreshVisible loads the overview or report when it is on screen and stale.
func (m Model) refreshVisible() tea.Cmd {
	ctx := m.ctx
	switch m.deps.Controller.Tab() {
	case dashboard.TabOverview:
		if v := m.deps.Overview; v.Stale() {
			return func() tea.Msg { v.Load(ctx); return overviewMsg{} }
		}
	case dashboard.TabReports:
		if v := m.deps.Reports; v.Stale() {
			return func() tea.Msg { v.Load(ctx); return reportMsg{} }
		}
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		ctrl := m.deps.Controller
		if ctrl.Err() != nil || (ctrl.Ready() && !ctrl.Loading()) {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		if msg.err != nil {
			return m, nil
		}
		return m, m.refreshVisible()

	case overviewMsg, reportMsg:
		return m, nil

	case submitMsg:
		switch {
		case msg.err == nil:
			m.form = nil
			m.status = "Saved."
		case errors.Is(msg.err, views.ErrInvalidDraft) && m.form != nil:
			// backend failures show through the view's own message
			m.form.err = "Please fill in every field."
		}
		m.clampCursor()
		return m, m.refreshVisible()

	case deleteMsg:
		if msg.err != nil {
			m.status = m.viewError()
		} else {
			m.status = "Deleted."
		}
		m.clampCursor()
		return m, m.refreshVisible()

	case exportMsg:
		switch {
		case errors.Is(msg.err, errExportDisabled):
			m.status = "Export is not configured."
		case msg.err != nil:
			m.status = "Export failed. Please try again."
		default:
			m.status = fmt.Sprintf("Exported %d transactions to %s.", msg.n, msg.ref)
		}
		return m, nil

	case loggedOutMsg:
		if msg.err != nil {
			m.deps.Logger.Warn("Logout reported an error", log.FieldError, msg.err)
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

var errExportDisabled = errors.New("export disabled")

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	ctrl := m.deps.Controller
	if ctrl.Err() != nil {
		switch key {
		case "r":
			return m, tea.Batch(m.spinner.Tick, m.loadCmd(true))
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}
	if ctrl.Loading() {
		return m, nil
	}

	if m.confirm != nil {
		return m.handleConfirm(key)
	}
	if m.form != nil {
		return m.handleForm(msg)
	}

	m.status = ""
	tab := ctrl.Tab()
	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "1", "2", "3", "4":
		ctrl.Select(m.ctx, dashboard.Tabs[key[0]-'1'])
		return m, m.refreshVisible()
	case "tab":
		ctrl.Select(m.ctx, nextTab(tab))
		return m, m.refreshVisible()
	case "up", "k":
		m.cursor[tab] = max(0, m.cursor[tab]-1)
	case "down", "j":
		m.cursor[tab] = min(m.rowCount(tab)-1, m.cursor[tab]+1)
		m.clampCursor()
	case "a":
		return m.openCreate(tab)
	case "e":
		return m.openEdit(tab)
	case "d":
		if id, ok := m.selectedID(tab); ok {
			m.confirm = &pendingDelete{tab: tab, id: id}
		}
	case "m", "y", "c":
		if tab == dashboard.TabReports {
			m.selectPeriod(key)
			return m, m.refreshVisible()
		}
	case "R":
		return m, tea.Batch(m.spinner.Tick, m.loadCmd(true))
	case "x":
		return m, m.exportCmd()
	case "L":
		logout := m.deps.Logout
		ctx := m.ctx
		return m, func() tea.Msg {
			if logout == nil {
				return loggedOutMsg{err: ctrl.Logout(ctx)}
			}
			return loggedOutMsg{err: logout(ctx)}
		}
	}
	return m, nil
}

func nextTab(t dashboard.Tab) dashboard.Tab {
	for i, x := range dashboard.Tabs {
		if x == t {
			return dashboard.Tabs[(i+1)%len(dashboard.Tabs)]
		}
	}
	return dashboard.TabOverview
}

func (m *Model) selectPeriod(key string) {
	var p core.Period
	switch key {
	case "m":
		p = core.PeriodMonth
	case "y":
		p = core.PeriodYear
	default:
		p = core.PeriodCustom
		today := m.deps.Now()
		m.deps.Reports.SetRange(api.DateRange{
			StartDate: core.NewDate(today.Year(), int(today.Month()), today.Day()-30),
			EndDate:   core.NewDate(today.Year(), int(today.Month()), today.Day()),
		})
	}
	m.deps.SelectPeriod(m.ctx, p)
}

func (m Model) rowCount(tab dashboard.Tab) int {
	switch tab {
	case dashboard.TabBudget:
		return len(m.deps.Budgets.Items())
	case dashboard.TabExpenses:
		return len(m.deps.Expenses.Items())
	}
	return 0
}

func (m *Model) clampCursor() {
	for _, tab := range []dashboard.Tab{dashboard.TabBudget, dashboard.TabExpenses} {
		n := m.rowCount(tab)
		m.cursor[tab] = max(0, min(m.cursor[tab], n-1))
	}
}

func (m Model) selectedID(tab dashboard.Tab) (core.ID, bool) {
	i := m.cursor[tab]
	switch tab {
	case dashboard.TabBudget:
		if items := m.deps.Budgets.Items(); i < len(items) {
			return items[i].ID, true
		}
	case dashboard.TabExpenses:
		if items := m.deps.Expenses.Items(); i < len(items) {
			return items[i].ID, true
		}
	}
	return "", false
}

func (m Model) openCreate(tab dashboard.Tab) (tea.Model, tea.Cmd) {
	switch tab {
	case dashboard.TabBudget:
		m.deps.Budgets.Open()
		m.form = newBudgetForm(m.deps.Budgets.Draft(), false)
	case dashboard.TabExpenses:
		m.deps.Expenses.Open()
		m.form = newExpenseForm(m.deps.Expenses.Draft(), false)
	default:
		return m, nil
	}
	return m, textinput.Blink
}

func (m Model) openEdit(tab dashboard.Tab) (tea.Model, tea.Cmd) {
	id, ok := m.selectedID(tab)
	if !ok {
		return m, nil
	}
	switch tab {
	case dashboard.TabBudget:
		if err := m.deps.Budgets.BeginEdit(id); err != nil {
			return m, nil
		}
		m.form = newBudgetForm(m.deps.Budgets.Draft(), true)
	case dashboard.TabExpenses:
		if err := m.deps.Expenses.BeginEdit(id); err != nil {
			return m, nil
		}
		m.form = newExpenseForm(m.deps.Expenses.Draft(), true)
	}
	return m, textinput.Blink
}

func (m Model) handleForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		f.move(1)
		return m, nil
	case "shift+tab", "up":
		f.move(-1)
		return m, nil
	case "enter":
		return m.submit()
	}
	return m, f.update(msg)
}

func (m *Model) closeForm() {
	switch m.form.tab {
	case dashboard.TabBudget:
		m.deps.Budgets.Close()
	case dashboard.TabExpenses:
		m.deps.Expenses.Close()
	}
	m.form = nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	f := m.form
	ctx := m.ctx
	f.err = ""
	switch f.tab {
	case dashboard.TabBudget:
		d, err := budgetDraft(f.values())
		if err != nil {
			f.err = err.Error()
			return m, nil
		}
		v := m.deps.Budgets
		v.SetDraft(d)
		return m, func() tea.Msg {
			_, err := v.Submit(ctx)
			return submitMsg{err: err}
		}
	default:
		d, err := expenseDraft(f.values())
		if err != nil {
			f.err = err.Error()
			return m, nil
		}
		v := m.deps.Expenses
		v.SetDraft(d)
		return m, func() tea.Msg {
			_, err := v.Submit(ctx)
			return submitMsg{err: err}
		}
	}
}

func (m Model) handleConfirm(key string) (tea.Model, tea.Cmd) {
	p := m.confirm
	switch key {
	case "y", "Y":
		m.confirm = nil
		ctx := m.ctx
		yes := func(string) bool { return true }
		if p.tab == dashboard.TabBudget {
			v := m.deps.Budgets
			return m, func() tea.Msg { return deleteMsg{err: v.Delete(ctx, p.id, yes)} }
		}
		v := m.deps.Expenses
		return m, func() tea.Msg { return deleteMsg{err: v.Delete(ctx, p.id, yes)} }
	case "n", "N", "esc":
		m.confirm = nil
	}
	return m, nil
}

func (m Model) exportCmd() tea.Cmd {
	export := m.deps.Export
	ctx := m.ctx
	return func() tea.Msg {
		if export == nil {
			return exportMsg{err: errExportDisabled}
		}
		ref, n, err := export(ctx)
		return exportMsg{ref: ref, n: n, err: err}
	}
}

func (m Model) viewError() string {
	switch m.deps.Controller.Tab() {
	case dashboard.TabBudget:
		return m.deps.Budgets.ErrorMessage()
	case dashboard.TabExpenses:
		return m.deps.Expenses.ErrorMessage()
	}
	return ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	ctrl := m.deps.Controller
	if ctrl.Err() != nil {
		return contentStyle.Render(renderErrorScreen(dashboard.LoadErrorMessage))
	}
	if ctrl.Loading() || !ctrl.Ready() {
		return contentStyle.Render(m.spinner.View() + " Loading dashboard...")
	}

	tab := ctrl.Tab()
	body := m.body(tab)
	switch {
	case m.form != nil:
		busy, viewErr := m.formState()
		body = m.form.view(busy, viewErr)
	case m.confirm != nil:
		body += "\n" + warnStyle.Render(confirmPrompt(m.confirm.tab)+" (y/n)")
	}

	footer := mutedStyle.Render(helpFor(tab))
	if m.status != "" {
		footer = m.status + "\n" + footer
	}
	main := contentStyle.Render(body + "\n" + footer)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebarStyle.Render(renderSidebar(tab, m.deps.User)), main)
}

func (m Model) body(tab dashboard.Tab) string {
	switch tab {
	case dashboard.TabBudget:
		return renderBudgetTable(m.deps.Budgets.Items(), m.cursor[tab])
	case dashboard.TabExpenses:
		return renderExpenseTable(m.deps.Expenses.Items(), m.cursor[tab])
	case dashboard.TabReports:
		v := m.deps.Reports
		data, ok := v.Data()
		if !ok {
			return m.spinner.View() + " Loading report..."
		}
		return renderReport(data, v.Shares(), v.Period(), v.Fallback())
	default:
		v := m.deps.Overview
		data, ok := v.Data()
		if !ok {
			return m.spinner.View() + " Loading overview..."
		}
		return renderOverview(data, v.Rows(), v.Fallback())
	}
}

func (m Model) formState() (bool, string) {
	if m.form.tab == dashboard.TabBudget {
		return m.deps.Budgets.Busy(), m.deps.Budgets.ErrorMessage()
	}
	return m.deps.Expenses.Busy(), m.deps.Expenses.ErrorMessage()
}

func confirmPrompt(tab dashboard.Tab) string {
	if tab == dashboard.TabBudget {
		return "Are you sure you want to delete this budget?"
	}
	return "Are you sure you want to delete this expense?"
}

// Run draws the dashboard until the user quits, logs out, or ctx ends.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
