package core

import (
	"math/rand"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Palette is the set of colour tags a new budget is randomly assigned. The
// backend stores them verbatim and other clients render them as CSS classes.
var Palette = []string{
	"bg-blue-500", "bg-green-500", "bg-purple-500", "bg-orange-500",
	"bg-red-500", "bg-yellow-500", "bg-indigo-500", "bg-pink-500",
}

type (
	// BudgetDraft holds the uncommitted fields of the add/edit budget form.
	BudgetDraft struct {
		Category string `json:"category" validate:"notblank"`
		Budget   Money  `json:"budget" validate:"gte=0"`
		Color    string `json:"color,omitempty"`
	}

	// ExpenseDraft holds the uncommitted fields of the add/edit transaction form.
	ExpenseDraft struct {
		Description string `json:"description" validate:"notblank,max=200"`
		Amount      Money  `json:"amount" validate:"gte=0"`
		Category    string `json:"category" validate:"notblank"`
		Date        Date   `json:"date" validate:"required"`
		Type        TxType `json:"type" validate:"oneof=income expense"`
	}

	Credentials struct {
		Email    string `json:"Email" validate:"required,email"`
		Password string `json:"Password" validate:"required"`
	}

	SignUp struct {
		FirstName string `json:"FirstName" validate:"notblank"`
		LastName  string `json:"LastName" validate:"notblank"`
		Email     string `json:"Email" validate:"required,email"`
		Password  string `json:"Password" validate:"required,min=6"`
	}
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			return v.Interface().(Money).Cents
		}, Money{})
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			return v.Interface().(Date).Time
		}, Date{})
	})
	return validate
}

// Validate checks a draft or credential struct against its field tags.
func Validate(v any) error {
	return validatorInstance().Struct(v)
}

// NewBudgetDraft returns an empty budget form with a random palette colour.
func NewBudgetDraft() BudgetDraft {
	return BudgetDraft{Color: Palette[rand.Intn(len(Palette))]}
}

// NewExpenseDraft returns an empty transaction form dated today.
func NewExpenseDraft() ExpenseDraft {
	return ExpenseDraft{Date: Today(), Type: Expense}
}

func (b BudgetItem) Draft() BudgetDraft {
	return BudgetDraft{Category: b.Category, Budget: b.Budget, Color: b.Color}
}

func (e ExpenseItem) Draft() ExpenseDraft {
	return ExpenseDraft{
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Date:        e.Date,
		Type:        e.Type,
	}
}
