package apitest

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"financeflow/internal/core"
	"financeflow/internal/metrics"
)

type account struct {
	user     core.User
	password string
}

// Store is the in-memory data behind the fake backend. Spent totals are
// derived from expenses on every read, the way the real backend does it.
type Store struct {
	mu       sync.Mutex
	budgets  []core.BudgetItem
	expenses []core.ExpenseItem
	accounts map[string]account
}

func NewStore() *Store {
	return &Store{accounts: map[string]account{}}
}

// Seed replaces the stored collections. Spent values on seeded budgets are
// ignored and recomputed.
func (s *Store) Seed(budgets []core.BudgetItem, expenses []core.ExpenseItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append([]core.BudgetItem(nil), budgets...)
	s.expenses = append([]core.ExpenseItem(nil), expenses...)
}

func (s *Store) Budgets() []core.BudgetItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgetsLocked()
}

func (s *Store) budgetsLocked() []core.BudgetItem {
	out := make([]core.BudgetItem, len(s.budgets))
	for i, b := range s.budgets {
		b.Spent = core.Money{}
		for _, e := range s.expenses {
			if e.Type == core.Expense && e.Category == b.Category {
				b.Spent = b.Spent.Add(e.Amount)
			}
		}
		out[i] = b
	}
	return out
}

func (s *Store) Expenses() []core.ExpenseItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByDate(s.expenses)
}

func sortedByDate(in []core.ExpenseItem) []core.ExpenseItem {
	out := append([]core.ExpenseItem(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out
}

func (s *Store) CreateBudget(d core.BudgetDraft) core.BudgetItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := core.BudgetItem{ID: newID(), Category: strings.TrimSpace(d.Category), Budget: d.Budget, Color: d.Color}
	s.budgets = append(s.budgets, b)
	return s.budgetsLocked()[len(s.budgets)-1]
}

func (s *Store) UpdateBudget(id core.ID, d core.BudgetDraft) (core.BudgetItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.ID == id {
			b.Category = strings.TrimSpace(d.Category)
			b.Budget = d.Budget
			if d.Color != "" {
				b.Color = d.Color
			}
			s.budgets[i] = b
			return s.budgetsLocked()[i], true
		}
	}
	return core.BudgetItem{}, false
}

func (s *Store) DeleteBudget(id core.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.budgets)
	s.budgets = core.WithoutID(s.budgets, id)
	return len(s.budgets) != n
}

func (s *Store) CreateExpense(d core.ExpenseDraft) core.ExpenseItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := core.ExpenseItem{
		ID:          newID(),
		Description: strings.TrimSpace(d.Description),
		Amount:      d.Amount,
		Category:    strings.TrimSpace(d.Category),
		Date:        d.Date,
		Type:        d.Type,
	}
	s.expenses = append(s.expenses, e)
	return e
}

func (s *Store) UpdateExpense(id core.ID, d core.ExpenseDraft) (core.ExpenseItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.expenses {
		if e.ID == id {
			e.Description = strings.TrimSpace(d.Description)
			e.Amount = d.Amount
			e.Category = strings.TrimSpace(d.Category)
			e.Date = d.Date
			e.Type = d.Type
			s.expenses[i] = e
			return e, true
		}
	}
	return core.ExpenseItem{}, false
}

func (s *Store) DeleteExpense(id core.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.expenses)
	s.expenses = core.WithoutID(s.expenses, id)
	return len(s.expenses) != n
}

// ExpenseFilter mirrors the listing query parameters.
type ExpenseFilter struct {
	Type     core.TxType
	Category string
	From, To core.Date
}

func (f ExpenseFilter) match(e core.ExpenseItem) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}

func (s *Store) ListExpenses(f ExpenseFilter, page, limit int) core.ExpensePage {
	all := s.Expenses()
	matched := make([]core.ExpenseItem, 0, len(all))
	for _, e := range all {
		if f.match(e) {
			matched = append(matched, e)
		}
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	total := len(matched)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return core.ExpensePage{
		Expenses:    matched[start:end],
		TotalPages:  pages,
		CurrentPage: page,
		Total:       total,
	}
}

func (s *Store) Overview(f ExpenseFilter) core.OverviewData {
	budgets := s.Budgets()
	var inRange []core.ExpenseItem
	for _, e := range s.Expenses() {
		if f.match(e) {
			inRange = append(inRange, e)
		}
	}
	return metrics.FallbackOverview(budgets, inRange)
}

// Report aggregates the expenses in [from, to] for the detailed endpoint.
func (s *Store) Report(period core.Period, from, to time.Time) core.ReportData {
	f := ExpenseFilter{From: core.Date{Time: from}, To: core.Date{Time: to}}
	var inRange []core.ExpenseItem
	for _, e := range s.Expenses() {
		if f.match(e) {
			inRange = append(inRange, e)
		}
	}
	income, spent := metrics.Totals(inRange)

	byCategory := map[string]*core.CategoryAmount{}
	var categories []string
	byMonth := map[core.TrendKey]core.Money{}
	var months []core.TrendKey
	for _, e := range inRange {
		if e.Type == core.Expense {
			c, ok := byCategory[e.Category]
			if !ok {
				c = &core.CategoryAmount{Category: e.Category}
				byCategory[e.Category] = c
				categories = append(categories, e.Category)
			}
			c.Total = c.Total.Add(e.Amount)
			c.Count++
		}
		key := core.TrendKey{Year: e.Date.Year(), Month: int(e.Date.Month()), Type: e.Type}
		if _, ok := byMonth[key]; !ok {
			months = append(months, key)
		}
		byMonth[key] = byMonth[key].Add(e.Amount)
	}

	spending := make([]core.CategoryAmount, 0, len(categories))
	for _, c := range categories {
		spending = append(spending, *byCategory[c])
	}
	sort.SliceStable(spending, func(i, j int) bool { return spending[i].Total.Cents > spending[j].Total.Cents })

	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		if months[i].Month != months[j].Month {
			return months[i].Month < months[j].Month
		}
		return months[i].Type < months[j].Type
	})
	trend := make([]core.TrendPoint, 0, len(months))
	for _, k := range months {
		trend = append(trend, core.TrendPoint{Key: k, Total: byMonth[k]})
	}

	return core.ReportData{
		Period: core.ReportPeriod{
			StartDate: from.UTC().Format(time.RFC3339),
			EndDate:   to.UTC().Format(time.RFC3339),
			Type:      period,
		},
		Summary: core.ReportSummary{
			TotalIncome:   income,
			TotalExpenses: spent,
			NetSavings:    income.Sub(spent),
		},
		CategorySpending: spending,
		MonthlyTrend:     trend,
	}
}

func (s *Store) Register(u core.SignUp, now time.Time) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := s.accounts[key]; exists {
		return core.User{}, false
	}
	user := core.User{
		ID:        newID(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[key] = account{user: user, password: u.Password}
	return user, true
}

func (s *Store) Authenticate(c core.Credentials) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(c.Email)]
	if !ok || acc.password != c.Password {
		return core.User{}, false
	}
	return acc.user, true
}

func newID() core.ID {
	return core.ID(strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}
