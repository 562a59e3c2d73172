// Package sheets exports transactions to a spreadsheet.
package sheets

import (
	"context"

	"financeflow/internal/core"
)

// ExpenseExporter appends transactions to an external sheet.
type ExpenseExporter interface {
	// Export appends one row per transaction and returns a reference to the
	// written range.
	Export(ctx context.Context, items []core.ExpenseItem) (ref string, err error)
}

// Header is the first row of an exported sheet.
var Header = []any{"Date", "Description", "Category", "Type", "Amount"}

// Row renders a transaction. The amount is signed: negative for expenses.
func Row(e core.ExpenseItem) []any {
	amount := e.Amount.Decimal()
	if e.Type == core.Expense {
		amount = amount.Neg()
	}
	return []any{e.Date.String(), e.Description, e.Category, string(e.Type), amount.StringFixed(2)}
}

// Rows renders every transaction in order.
func Rows(items []core.ExpenseItem) [][]any {
	out := make([][]any, 0, len(items))
	for _, e := range items {
		out = append(out, Row(e))
	}
	return out
}
