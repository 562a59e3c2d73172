package dashboard

import "strings"

// Tab is one of the four dashboard sections.
type Tab string

const (
	TabOverview Tab = "overview"
	TabBudget   Tab = "budget"
	TabExpenses Tab = "expenses"
	TabReports  Tab = "reports"
)

// Tabs lists the sections in sidebar order.
var Tabs = []Tab{TabOverview, TabBudget, TabExpenses, TabReports}

// ParseTab maps free text to a tab. Anything unrecognised is the overview.
func ParseTab(s string) Tab {
	switch t := Tab(strings.ToLower(strings.TrimSpace(s))); t {
	case TabOverview, TabBudget, TabExpenses, TabReports:
		return t
	default:
		return TabOverview
	}
}

// Label is the sidebar caption.
func (t Tab) Label() string {
	switch t {
	case TabBudget:
		return "Budget Control"
	case TabExpenses:
		return "Expenses"
	case TabReports:
		return "Reports"
	default:
		return "Overview"
	}
}
