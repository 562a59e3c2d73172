package views

import (
	"context"
	"fmt"

	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

const (
	expenseCreateFailed = "Failed to create expense. Please try again."
	expenseUpdateFailed = "Failed to update expense. Please try again."
	expenseDeleteFailed = "Failed to delete expense. Please try again."
	expenseDeletePrompt = "Are you sure you want to delete this expense?"
)

// ExpenseCollection is the controller-owned list a transaction view edits.
type ExpenseCollection interface {
	Expenses() []core.ExpenseItem
	MutateExpenses(ctx context.Context, fn func([]core.ExpenseItem) []core.ExpenseItem)
}

type ExpenseAPI interface {
	CreateExpense(ctx context.Context, d core.ExpenseDraft) (core.ExpenseItem, error)
	UpdateExpense(ctx context.Context, id core.ID, d core.ExpenseDraft) (core.ExpenseItem, error)
	DeleteExpense(ctx context.Context, id core.ID) error
}

// ExpensesView is the transaction management section. Its events also
// refresh budgets, since spent totals derive from transactions.
type ExpensesView struct {
	form[core.ExpenseDraft]

	api    ExpenseAPI
	coll   ExpenseCollection
	pub    events.Publisher
	logger *log.Logger
}

func NewExpensesView(api ExpenseAPI, coll ExpenseCollection, pub events.Publisher, logger *log.Logger) *ExpensesView {
	if logger == nil {
		logger = log.Default(log.ComponentViews)
	}
	v := &ExpensesView{api: api, coll: coll, pub: pub, logger: logger.WithComponent(log.ComponentViews)}
	v.init(core.NewExpenseDraft)
	return v
}

func (v *ExpensesView) Items() []core.ExpenseItem {
	return v.coll.Expenses()
}

func (v *ExpensesView) BeginEdit(id core.ID) error {
	for _, e := range v.coll.Expenses() {
		if e.ID == id {
			v.beginEdit(id, e.Draft())
			return nil
		}
	}
	return fmt.Errorf("edit expense %s: %w", id, ErrNotFound)
}

// Submit records the drafted transaction, newest first, or updates it when
// editing.
func (v *ExpensesView) Submit(ctx context.Context) (core.ExpenseItem, error) {
	draft, id, err := v.begin()
	if err != nil {
		return core.ExpenseItem{}, err
	}

	if id == "" {
		created, err := v.api.CreateExpense(ctx, draft)
		if err != nil {
			v.fail(expenseCreateFailed)
			v.logger.ErrorContext(ctx, "Error saving expense", log.FieldOperation, log.OpCreate, log.FieldAmount, draft.Amount.Cents, log.FieldError, err)
			return core.ExpenseItem{}, fmt.Errorf("create expense: %w", err)
		}
		v.coll.MutateExpenses(ctx, func(cur []core.ExpenseItem) []core.ExpenseItem {
			return append([]core.ExpenseItem{created}, cur...)
		})
		v.succeed()
		v.pub.Publish(ctx, events.Event{Kind: events.ExpensesChanged, Op: events.OpCreate, ID: created.ID})
		return created, nil
	}

	updated, err := v.api.UpdateExpense(ctx, id, draft)
	if err != nil {
		v.fail(expenseUpdateFailed)
		v.logger.ErrorContext(ctx, "Error updating expense", log.FieldOperation, log.OpUpdate, log.FieldID, id, log.FieldError, err)
		return core.ExpenseItem{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	v.coll.MutateExpenses(ctx, func(cur []core.ExpenseItem) []core.ExpenseItem {
		return core.ReplaceByID(cur, updated)
	})
	v.succeed()
	v.pub.Publish(ctx, events.Event{Kind: events.ExpensesChanged, Op: events.OpUpdate, ID: updated.ID})
	return updated, nil
}

func (v *ExpensesView) Delete(ctx context.Context, id core.ID, confirm ConfirmFunc) error {
	if confirm == nil || !confirm(expenseDeletePrompt) {
		return ErrNotConfirmed
	}
	if err := v.api.DeleteExpense(ctx, id); err != nil {
		v.setError(expenseDeleteFailed)
		v.logger.ErrorContext(ctx, "Error deleting expense", log.FieldOperation, log.OpDelete, log.FieldID, id, log.FieldError, err)
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	v.coll.MutateExpenses(ctx, func(cur []core.ExpenseItem) []core.ExpenseItem {
		return core.WithoutID(cur, id)
	})
	v.pub.Publish(ctx, events.Event{Kind: events.ExpensesChanged, Op: events.OpDelete, ID: id})
	return nil
}
