package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"financeflow/internal/core"
)

// ExpenseQuery filters the transaction listing. Zero fields are omitted
// from the query string.
type ExpenseQuery struct {
	Page      int
	Limit     int
	Type      core.TxType
	Category  string
	StartDate core.Date
	EndDate   core.Date
}

func (q ExpenseQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Type != "" {
		v.Set("type", string(q.Type))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	setDate(v, "startDate", q.StartDate)
	setDate(v, "endDate", q.EndDate)
	return v
}

// DateRange bounds the overview aggregation.
type DateRange struct {
	StartDate core.Date
	EndDate   core.Date
}

func (r DateRange) Values() url.Values {
	v := url.Values{}
	setDate(v, "startDate", r.StartDate)
	setDate(v, "endDate", r.EndDate)
	return v
}

// ReportQuery selects the detailed report period.
type ReportQuery struct {
	Period core.Period
	Range  DateRange
}

func (q ReportQuery) Values() url.Values {
	v := q.Range.Values()
	if q.Period != "" {
		v.Set("period", string(q.Period))
	}
	return v
}

func setDate(v url.Values, key string, d core.Date) {
	if !d.IsZero() {
		v.Set(key, d.String())
	}
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func itemPath(collection string, id core.ID) string {
	return "/" + collection + "/" + url.PathEscape(string(id))
}

// Auth

func (c *Client) Register(ctx context.Context, s core.SignUp) (core.Registration, error) {
	return call[core.Registration](ctx, c, http.MethodPost, "/register", s)
}

func (c *Client) Login(ctx context.Context, cred core.Credentials) (core.AuthResult, error) {
	return call[core.AuthResult](ctx, c, http.MethodPost, "/login", cred)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := call[Message](ctx, c, http.MethodPost, "/logout", nil)
	return err
}

// Budgets

func (c *Client) ListBudgets(ctx context.Context) ([]core.BudgetItem, error) {
	items, err := call[[]core.BudgetItem](ctx, c, http.MethodGet, "/budgets", nil)
	if items == nil && err == nil {
		items = []core.BudgetItem{}
	}
	return items, err
}

func (c *Client) CreateBudget(ctx context.Context, d core.BudgetDraft) (core.BudgetItem, error) {
	return call[core.BudgetItem](ctx, c, http.MethodPost, "/budgets", d)
}

func (c *Client) UpdateBudget(ctx context.Context, id core.ID, d core.BudgetDraft) (core.BudgetItem, error) {
	return call[core.BudgetItem](ctx, c, http.MethodPut, itemPath("budgets", id), d)
}

func (c *Client) DeleteBudget(ctx context.Context, id core.ID) error {
	_, err := call[Message](ctx, c, http.MethodDelete, itemPath("budgets", id), nil)
	return err
}

// Expenses

func (c *Client) ListExpenses(ctx context.Context, q ExpenseQuery) (core.ExpensePage, error) {
	page, err := call[core.ExpensePage](ctx, c, http.MethodGet, withQuery("/expenses", q.Values()), nil)
	if page.Expenses == nil && err == nil {
		page.Expenses = []core.ExpenseItem{}
	}
	return page, err
}

func (c *Client) CreateExpense(ctx context.Context, d core.ExpenseDraft) (core.ExpenseItem, error) {
	return call[core.ExpenseItem](ctx, c, http.MethodPost, "/expenses", d)
}

func (c *Client) UpdateExpense(ctx context.Context, id core.ID, d core.ExpenseDraft) (core.ExpenseItem, error) {
	return call[core.ExpenseItem](ctx, c, http.MethodPut, itemPath("expenses", id), d)
}

func (c *Client) DeleteExpense(ctx context.Context, id core.ID) error {
	_, err := call[Message](ctx, c, http.MethodDelete, itemPath("expenses", id), nil)
	return err
}

// Reports

func (c *Client) Overview(ctx context.Context, r DateRange) (core.OverviewData, error) {
	return call[core.OverviewData](ctx, c, http.MethodGet, withQuery("/overview", r.Values()), nil)
}

func (c *Client) Detailed(ctx context.Context, q ReportQuery) (core.ReportData, error) {
	return call[core.ReportData](ctx, c, http.MethodGet, withQuery("/detailed", q.Values()), nil)
}
