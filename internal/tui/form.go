package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"financeflow/internal/core"
	"financeflow/internal/dashboard"
)

// fieldError is a form message shown to the user as is.
type fieldError string

func (e fieldError) Error() string { return string(e) }

const (
	errBadAmount fieldError = "Amount must be a non-negative number like 12.50"
	errBadDate   fieldError = "Date must look like 2024-01-31"
	errBadType   fieldError = "Type must be income or expense"
)

// entryForm is the add/edit dialog shared by the budget and expense tabs.
type entryForm struct {
	tab     dashboard.Tab
	editing bool
	labels  []string
	inputs  []textinput.Model
	focus   int
	err     string
}

func newInputs(labels, values []string) []textinput.Model {
	inputs := make([]textinput.Model, len(labels))
	for i := range labels {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 200
		in.SetValue(values[i])
		inputs[i] = in
	}
	inputs[0].Focus()
	return inputs
}

func newBudgetForm(d core.BudgetDraft, editing bool) *entryForm {
	labels := []string{"Category", "Budget", "Color"}
	values := []string{d.Category, amountText(d.Budget), d.Color}
	return &entryForm{tab: dashboard.TabBudget, editing: editing, labels: labels, inputs: newInputs(labels, values)}
}

func newExpenseForm(d core.ExpenseDraft, editing bool) *entryForm {
	labels := []string{"Description", "Amount", "Category", "Date", "Type"}
	values := []string{d.Description, amountText(d.Amount), d.Category, d.Date.String(), string(d.Type)}
	return &entryForm{tab: dashboard.TabExpenses, editing: editing, labels: labels, inputs: newInputs(labels, values)}
}

// amountText leaves a fresh zero amount blank.
func amountText(m core.Money) string {
	if m.Cents == 0 {
		return ""
	}
	return m.Decimal().StringFixed(2)
}

func (f *entryForm) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

func (f *entryForm) move(delta int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *entryForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *entryForm) view(busy bool, viewErr string) string {
	var b strings.Builder
	title := "Add " + f.noun()
	if f.editing {
		title = "Edit " + f.noun()
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := fmt.Sprintf("%-12s", f.labels[i])
		if i == f.focus {
			label = selectedStyle.Render(label)
		}
		b.WriteString(label + " " + in.View() + "\n")
	}
	b.WriteString("\n")
	switch {
	case busy:
		b.WriteString(mutedStyle.Render("Saving..."))
	case f.err != "":
		b.WriteString(errorStyle.Render(f.err))
	case viewErr != "":
		b.WriteString(errorStyle.Render(viewErr))
	default:
		b.WriteString(mutedStyle.Render("enter save  tab next field  esc cancel"))
	}
	return formStyle.Render(b.String())
}

func (f *entryForm) noun() string {
	if f.tab == dashboard.TabBudget {
		return "Budget"
	}
	return "Transaction"
}

// budgetDraft parses the budget form fields.
func budgetDraft(vals []string) (core.BudgetDraft, error) {
	cents, err := parseAmount(vals[1])
	if err != nil {
		return core.BudgetDraft{}, err
	}
	return core.BudgetDraft{Category: vals[0], Budget: core.Cents(cents), Color: vals[2]}, nil
}

// expenseDraft parses the transaction form fields.
func expenseDraft(vals []string) (core.ExpenseDraft, error) {
	cents, err := parseAmount(vals[1])
	if err != nil {
		return core.ExpenseDraft{}, err
	}
	date, err := core.ParseDate(vals[3])
	if err != nil {
		return core.ExpenseDraft{}, errBadDate
	}
	typ := core.TxType(strings.ToLower(vals[4]))
	if typ != core.Income && typ != core.Expense {
		return core.ExpenseDraft{}, errBadType
	}
	return core.ExpenseDraft{
		Description: vals[0],
		Amount:      core.Cents(cents),
		Category:    vals[2],
		Date:        date,
		Type:        typ,
	}, nil
}

func parseAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, errBadAmount
	}
	return cents, nil
}
