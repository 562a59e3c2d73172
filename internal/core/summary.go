package core

// OverviewData is the pre-aggregated dashboard snapshot. It is always
// derivable from the canonical collections and is never a source of truth.
type OverviewData struct {
	TotalIncome          Money         `json:"totalIncome"`
	TotalExpenses        Money         `json:"totalExpenses"`
	NetSavings           Money         `json:"netSavings"`
	TotalBudget          Money         `json:"totalBudget"`
	TotalSpent           Money         `json:"totalSpent"`
	BudgetUsedPercentage float64       `json:"budgetUsedPercentage"`
	Budgets              []BudgetItem  `json:"budgets"`
	RecentTransactions   []ExpenseItem `json:"recentTransactions"`
}

type ReportPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Type      Period `json:"type"`
}

type ReportSummary struct {
	TotalIncome   Money `json:"totalIncome"`
	TotalExpenses Money `json:"totalExpenses"`
	NetSavings    Money `json:"netSavings"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string `json:"_id"`
	Total    Money  `json:"total"`
	Count    int    `json:"count"`
}

type TrendKey struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Type  TxType `json:"type"`
}

type TrendPoint struct {
	Key   TrendKey `json:"_id"`
	Total Money    `json:"total"`
}

// ReportData is the detailed report for a period.
type ReportData struct {
	Period           ReportPeriod     `json:"period"`
	Summary          ReportSummary    `json:"summary"`
	CategorySpending []CategoryAmount `json:"categorySpending"`
	MonthlyTrend     []TrendPoint     `json:"monthlyTrend"`
}
