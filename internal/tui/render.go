package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"financeflow/internal/core"
	"financeflow/internal/dashboard"
	"financeflow/internal/metrics"
	"financeflow/internal/views"
)

const barWidth = 20

func renderSidebar(active dashboard.Tab, user string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("FinanceFlow"))
	b.WriteString("\n\n")
	for i, t := range dashboard.Tabs {
		line := fmt.Sprintf("%d %s", i+1, t.Label())
		if t == active {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if user != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(user))
	}
	return b.String()
}

// renderBar draws the clamped progress bar.
func renderBar(p metrics.BudgetProgress, width int) string {
	filled := int(math.Round(p.Bar / 100 * float64(width)))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if p.Over {
		return expenseStyle.Render(bar)
	}
	return incomeStyle.Render(bar)
}

// renderBudgetProgress draws one budget; left names what is still
// available ("remaining" on the overview, "left" on the budget tab).
func renderBudgetProgress(r views.BudgetRow, left string) string {
	status := incomeStyle.Render(r.Progress.Status())
	if r.Progress.Over {
		status = expenseStyle.Render(r.Progress.Status())
	}
	return fmt.Sprintf("%-14s %s / %s\n  %s %d%% used  %s  %s %s",
		r.Budget.Category,
		core.Dollars(r.Budget.Spent),
		core.Dollars(r.Budget.Budget),
		renderBar(r.Progress, barWidth),
		r.Progress.RoundedPercent(),
		status,
		core.Dollars(r.Progress.Remaining),
		left,
	)
}

func renderCard(title, value string) string {
	return cardStyle.Render(mutedStyle.Render(title) + "\n" + value)
}

func signedStyle(e core.ExpenseItem) lipgloss.Style {
	if e.Type == core.Income {
		return incomeStyle
	}
	return expenseStyle
}

func renderTransaction(e core.ExpenseItem) string {
	return fmt.Sprintf("%s  %-24s %-12s %s",
		e.Date.String(), e.Description, e.Category, signedStyle(e).Render(core.SignedAmount(e)))
}

func renderOverview(data core.OverviewData, rows []views.BudgetRow, fallback bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Overview"))
	if fallback {
		b.WriteString(" " + warnStyle.Render("(computed locally)"))
	}
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderCard("Total Income", incomeStyle.Render(core.Headline(data.TotalIncome))),
		renderCard("Total Expenses", expenseStyle.Render(core.Headline(data.TotalExpenses))),
		renderCard("Net Savings", core.Headline(data.NetSavings)),
		renderCard("Budget Used", fmt.Sprintf("%d%%", metrics.RoundPercent(data.BudgetUsedPercentage))),
	))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Budget Progress"))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("No budgets yet."))
		b.WriteString("\n")
	}
	for _, r := range rows {
		b.WriteString(renderBudgetProgress(r, "remaining"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Recent Transactions"))
	b.WriteString("\n")
	if len(data.RecentTransactions) == 0 {
		b.WriteString(mutedStyle.Render("No transactions yet."))
		b.WriteString("\n")
	}
	for _, e := range data.RecentTransactions {
		b.WriteString(renderTransaction(e))
		b.WriteString("\n")
	}
	return b.String()
}

func cursorPrefix(i, cursor int) string {
	if i == cursor {
		return selectedStyle.Render("> ")
	}
	return "  "
}

func renderBudgetTable(items []core.BudgetItem, cursor int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Budget Control"))
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("No budgets yet. Press a to add one."))
		b.WriteString("\n")
	}
	for i, it := range items {
		r := views.BudgetRow{Budget: it, Progress: metrics.Progress(it)}
		b.WriteString(cursorPrefix(i, cursor))
		b.WriteString(renderBudgetProgress(r, "left"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderExpenseTable(items []core.ExpenseItem, cursor int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Expenses"))
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("No transactions yet. Press a to add one."))
		b.WriteString("\n")
	}
	for i, e := range items {
		b.WriteString(cursorPrefix(i, cursor))
		b.WriteString(renderTransaction(e))
		b.WriteString("\n")
	}
	return b.String()
}

func renderReport(data core.ReportData, shares []metrics.CategoryShare, period core.Period, fallback bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reports"))
	b.WriteString("  ")
	for _, p := range []core.Period{core.PeriodMonth, core.PeriodYear, core.PeriodCustom} {
		label := fmt.Sprintf("[%c] %s", p[0], p)
		if p == period {
			b.WriteString(selectedStyle.Render(label))
		} else {
			b.WriteString(mutedStyle.Render(label))
		}
		b.WriteString(" ")
	}
	if fallback {
		b.WriteString(warnStyle.Render("(computed locally)"))
	}
	b.WriteString("\n\n")

	s := data.Summary
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderCard("Income", incomeStyle.Render(core.Headline(s.TotalIncome))),
		renderCard("Expenses", expenseStyle.Render(core.Headline(s.TotalExpenses))),
		renderCard("Net Savings", core.Headline(s.NetSavings)),
	))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Spending by Category"))
	b.WriteString("\n")
	if len(shares) == 0 {
		b.WriteString(mutedStyle.Render("No category data for this period."))
		b.WriteString("\n")
	}
	for _, sh := range shares {
		b.WriteString(fmt.Sprintf("%-14s %s  %d%%  (%d transactions)\n",
			sh.Category, core.Dollars(sh.Total), sh.Percent, sh.Count))
	}

	if len(data.MonthlyTrend) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Monthly Trend"))
		b.WriteString("\n")
		for _, p := range data.MonthlyTrend {
			b.WriteString(fmt.Sprintf("%04d-%02d %-8s %s\n", p.Key.Year, p.Key.Month, p.Key.Type, core.Dollars(p.Total)))
		}
	}
	return b.String()
}

func renderErrorScreen(msg string) string {
	return errorStyle.Render(msg) + "\n\n" + mutedStyle.Render("r retry  q quit")
}

func helpFor(tab dashboard.Tab) string {
	common := "1-4/tab switch  R refresh  x export  L logout  q quit"
	switch tab {
	case dashboard.TabBudget, dashboard.TabExpenses:
		return "a add  e edit  d delete  ↑/↓ select  " + common
	case dashboard.TabReports:
		return "m month  y year  c custom  " + common
	default:
		return common
	}
}
