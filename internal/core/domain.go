package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

const dateLayout = "2006-01-02"

type (
	// ID is a server-assigned opaque identifier. It is only ever compared
	// against other IDs, never against free-text fields.
	ID string

	TxType string

	Period string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// BudgetItem is one spending-category envelope. Spent is derived by the
	// backend from expenses and is never written back by the client.
	BudgetItem struct {
		ID       ID     `json:"_id"`
		Category string `json:"category"`
		Budget   Money  `json:"budget"`
		Spent    Money  `json:"spent"`
		Color    string `json:"color"`
	}

	// ExpenseItem is one income or expense transaction. Amount is always a
	// magnitude; Type carries the direction.
	ExpenseItem struct {
		ID          ID     `json:"_id"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		Type        TxType `json:"type"`
	}

	ExpensePage struct {
		Expenses    []ExpenseItem `json:"expenses"`
		TotalPages  int           `json:"totalPages"`
		CurrentPage int           `json:"currentPage"`
		Total       int           `json:"total"`
	}

	User struct {
		ID        ID        `json:"_id"`
		FirstName string    `json:"FirstName"`
		LastName  string    `json:"LastName"`
		Email     string    `json:"Email"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	AuthResult struct {
		User         User   `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	Registration struct {
		User    User   `json:"user"`
		Message string `json:"message"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidPeriod = errors.New("invalid report period")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts a plain calendar date or a full RFC 3339 timestamp, the
// latter being what the backend echoes for stored transactions.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t *TxType) UnmarshalJSON(b []byte) error {
	v := TxType(strings.Trim(string(b), `"`))
	if !v.Valid() {
		return ErrInvalidType
	}
	*t = v
	return nil
}

// ParsePeriod maps free text onto a report period, defaulting to month.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodMonth, PeriodYear, PeriodCustom:
		return p, nil
	case "":
		return PeriodMonth, nil
	default:
		return PeriodMonth, ErrInvalidPeriod
	}
}

// WithoutID returns the entries whose identifier differs from id. The input
// slice is never modified.
func WithoutID[T interface{ Identifier() ID }](items []T, id ID) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Identifier() != id {
			out = append(out, it)
		}
	}
	return out
}

// ReplaceByID returns a copy of items where the entry matching repl's
// identifier is swapped for repl.
func ReplaceByID[T interface{ Identifier() ID }](items []T, repl T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		if it.Identifier() == repl.Identifier() {
			out[i] = repl
			continue
		}
		out[i] = it
	}
	return out
}

func (b BudgetItem) Identifier() ID  { return b.ID }
func (e ExpenseItem) Identifier() ID { return e.ID }

// FullName joins first and last name for display.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
