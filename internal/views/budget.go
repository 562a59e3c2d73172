package views

import (
	"context"
	"fmt"

	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/log"
)

const (
	budgetCreateFailed = "Failed to create budget. Please try again."
	budgetUpdateFailed = "Failed to update budget. Please try again."
	budgetDeleteFailed = "Failed to delete budget. Please try again."
	budgetDeletePrompt = "Are you sure you want to delete this budget?"
)

// BudgetCollection is the controller-owned list a budget view edits.
type BudgetCollection interface {
	Budgets() []core.BudgetItem
	MutateBudgets(ctx context.Context, fn func([]core.BudgetItem) []core.BudgetItem)
}

type BudgetAPI interface {
	CreateBudget(ctx context.Context, d core.BudgetDraft) (core.BudgetItem, error)
	UpdateBudget(ctx context.Context, id core.ID, d core.BudgetDraft) (core.BudgetItem, error)
	DeleteBudget(ctx context.Context, id core.ID) error
}

// BudgetView is the budget management section.
type BudgetView struct {
	form[core.BudgetDraft]

	api    BudgetAPI
	coll   BudgetCollection
	pub    events.Publisher
	logger *log.Logger
}

func NewBudgetView(api BudgetAPI, coll BudgetCollection, pub events.Publisher, logger *log.Logger) *BudgetView {
	if logger == nil {
		logger = log.Default(log.ComponentViews)
	}
	v := &BudgetView{api: api, coll: coll, pub: pub, logger: logger.WithComponent(log.ComponentViews)}
	v.init(core.NewBudgetDraft)
	return v
}

func (v *BudgetView) Items() []core.BudgetItem {
	return v.coll.Budgets()
}

// BeginEdit loads an existing budget into the form.
func (v *BudgetView) BeginEdit(id core.ID) error {
	for _, b := range v.coll.Budgets() {
		if b.ID == id {
			v.beginEdit(id, b.Draft())
			return nil
		}
	}
	return fmt.Errorf("edit budget %s: %w", id, ErrNotFound)
}

// Submit creates the drafted budget, or updates it when editing. The
// collection is only touched after the backend accepted the change.
func (v *BudgetView) Submit(ctx context.Context) (core.BudgetItem, error) {
	draft, id, err := v.begin()
	if err != nil {
		return core.BudgetItem{}, err
	}

	if id == "" {
		created, err := v.api.CreateBudget(ctx, draft)
		if err != nil {
			v.fail(budgetCreateFailed)
			v.logger.ErrorContext(ctx, "Error saving budget", log.FieldOperation, log.OpCreate, log.FieldCategory, draft.Category, log.FieldError, err)
			return core.BudgetItem{}, fmt.Errorf("create budget: %w", err)
		}
		v.coll.MutateBudgets(ctx, func(cur []core.BudgetItem) []core.BudgetItem {
			return append(cur, created)
		})
		v.succeed()
		v.pub.Publish(ctx, events.Event{Kind: events.BudgetsChanged, Op: events.OpCreate, ID: created.ID})
		return created, nil
	}

	updated, err := v.api.UpdateBudget(ctx, id, draft)
	if err != nil {
		v.fail(budgetUpdateFailed)
		v.logger.ErrorContext(ctx, "Error updating budget", log.FieldOperation, log.OpUpdate, log.FieldID, id, log.FieldError, err)
		return core.BudgetItem{}, fmt.Errorf("update budget %s: %w", id, err)
	}
	v.coll.MutateBudgets(ctx, func(cur []core.BudgetItem) []core.BudgetItem {
		return core.ReplaceByID(cur, updated)
	})
	v.succeed()
	v.pub.Publish(ctx, events.Event{Kind: events.BudgetsChanged, Op: events.OpUpdate, ID: updated.ID})
	return updated, nil
}

// Delete removes a budget after confirm approves. A declined confirmation
// makes no request.
func (v *BudgetView) Delete(ctx context.Context, id core.ID, confirm ConfirmFunc) error {
	if confirm == nil || !confirm(budgetDeletePrompt) {
		return ErrNotConfirmed
	}
	if err := v.api.DeleteBudget(ctx, id); err != nil {
		v.setError(budgetDeleteFailed)
		v.logger.ErrorContext(ctx, "Error deleting budget", log.FieldOperation, log.OpDelete, log.FieldID, id, log.FieldError, err)
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	v.coll.MutateBudgets(ctx, func(cur []core.BudgetItem) []core.BudgetItem {
		return core.WithoutID(cur, id)
	})
	v.pub.Publish(ctx, events.Event{Kind: events.BudgetsChanged, Op: events.OpDelete, ID: id})
	return nil
}
