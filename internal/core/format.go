package core

import (
	"github.com/Rhymond/go-money"
)

// Sign returns the display sign for a transaction: "+" for income only.
func Sign(t TxType) string {
	if t == Income {
		return "+"
	}
	return "-"
}

// SignedAmount renders a transaction row amount, e.g. "-$4.50". The stored
// magnitude is printed unmodified with two decimals.
func SignedAmount(e ExpenseItem) string {
	return Sign(e.Type) + "$" + e.Amount.Decimal().StringFixed(2)
}

// Dollars renders an amount the way a bare number prints: "$0", "$12.5",
// "$100". Used for spent/budget/remaining labels.
func Dollars(m Money) string {
	if m.IsNegative() {
		return "-$" + m.Decimal().Neg().String()
	}
	return "$" + m.Decimal().String()
}

// Headline renders grouped currency for the summary cards, e.g. "$1,234.50".
func Headline(m Money) string {
	return money.New(m.Cents, money.USD).Display()
}
