// Package metrics derives dashboard aggregates from the canonical
// collections. It is used when the backend's pre-aggregated endpoints are
// unreachable, and for the per-category progress figures that are always
// computed client-side.
package metrics

import (
	"math"
	"time"

	"financeflow/internal/core"
)

// RecentLimit is how many transactions the overview lists.
const RecentLimit = 5

// Totals sums transaction amounts by direction.
func Totals(expenses []core.ExpenseItem) (income, spent core.Money) {
	for _, e := range expenses {
		switch e.Type {
		case core.Income:
			income = income.Add(e.Amount)
		case core.Expense:
			spent = spent.Add(e.Amount)
		}
	}
	return income, spent
}

// BudgetTotals sums ceilings and backend-computed spent values.
func BudgetTotals(budgets []core.BudgetItem) (total, spent core.Money) {
	for _, b := range budgets {
		total = total.Add(b.Budget)
		spent = spent.Add(b.Spent)
	}
	return total, spent
}

// Percent returns part/whole*100, or 0 when whole is zero.
func Percent(part, whole core.Money) float64 {
	if whole.Cents == 0 {
		return 0
	}
	return float64(part.Cents) / float64(whole.Cents) * 100
}

// FallbackOverview recomputes the overview snapshot from the collections.
// Recent transactions are the first entries in the collection's current
// order; no re-sorting by date happens here.
func FallbackOverview(budgets []core.BudgetItem, expenses []core.ExpenseItem) core.OverviewData {
	income, spent := Totals(expenses)
	totalBudget, totalSpent := BudgetTotals(budgets)

	recent := expenses
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return core.OverviewData{
		TotalIncome:          income,
		TotalExpenses:        spent,
		NetSavings:           income.Sub(spent),
		TotalBudget:          totalBudget,
		TotalSpent:           totalSpent,
		BudgetUsedPercentage: Percent(totalSpent, totalBudget),
		Budgets:              append([]core.BudgetItem{}, budgets...),
		RecentTransactions:   append([]core.ExpenseItem{}, recent...),
	}
}

// FallbackReport builds a summary-only report for the period. Category
// spending and the monthly trend are left empty.
func FallbackReport(period core.Period, expenses []core.ExpenseItem, now time.Time) core.ReportData {
	income, spent := Totals(expenses)
	stamp := now.UTC().Format(time.RFC3339)
	return core.ReportData{
		Period: core.ReportPeriod{StartDate: stamp, EndDate: stamp, Type: period},
		Summary: core.ReportSummary{
			TotalIncome:   income,
			TotalExpenses: spent,
			NetSavings:    income.Sub(spent),
		},
		CategorySpending: []core.CategoryAmount{},
		MonthlyTrend:     []core.TrendPoint{},
	}
}

// BudgetProgress is what a category progress bar displays.
type BudgetProgress struct {
	// Percent is the raw spent/budget ratio, shown as text and allowed to
	// exceed 100.
	Percent float64
	// Bar is Percent clamped to [0, 100] for the bar width.
	Bar       float64
	Over      bool
	Remaining core.Money
}

// Progress computes the display figures for one budget. A zero ceiling
// yields 0% rather than an infinite ratio.
func Progress(b core.BudgetItem) BudgetProgress {
	pct := Percent(b.Spent, b.Budget)
	remaining := b.Budget.Sub(b.Spent)
	if remaining.IsNegative() {
		remaining = core.Money{}
	}
	return BudgetProgress{
		Percent:   pct,
		Bar:       math.Max(0, math.Min(pct, 100)),
		Over:      b.Spent.Cents > b.Budget.Cents,
		Remaining: remaining,
	}
}

// Status is the text label next to a progress bar.
func (p BudgetProgress) Status() string {
	if p.Over {
		return "Over budget"
	}
	return "On track"
}

// RoundedPercent rounds half up like the "N% used" label.
func (p BudgetProgress) RoundedPercent() int {
	return RoundPercent(p.Percent)
}

// RoundPercent rounds half up, so 12.5 becomes 13.
func RoundPercent(pct float64) int {
	return int(math.Floor(pct + 0.5))
}

// CategoryShare is one category's slice of total spending.
type CategoryShare struct {
	Category string
	Total    core.Money
	Count    int
	Percent  int
}

// CategoryShares rounds each category's share of the summed total. All
// shares are 0 when the total is 0.
func CategoryShares(rows []core.CategoryAmount) []CategoryShare {
	var sum core.Money
	for _, r := range rows {
		sum = sum.Add(r.Total)
	}
	out := make([]CategoryShare, 0, len(rows))
	for _, r := range rows {
		share := 0
		if sum.Cents > 0 {
			share = RoundPercent(Percent(r.Total, sum))
		}
		out = append(out, CategoryShare{Category: r.Category, Total: r.Total, Count: r.Count, Percent: share})
	}
	return out
}
