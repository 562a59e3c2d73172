package memory

import (
	"context"
	"errors"
	"testing"

	"financeflow/internal/core"
)

func TestExport(t *testing.T) {
	x := New()
	items := []core.ExpenseItem{
		{Description: "Coffee", Amount: core.Cents(450), Category: "Food", Date: core.NewDate(2024, 1, 10), Type: core.Expense},
	}

	ref, err := x.Export(context.Background(), items)
	if err != nil || ref != "mem:2-2" {
		t.Fatalf("first export: ref=%q err=%v", ref, err)
	}
	ref, err = x.Export(context.Background(), items)
	if err != nil || ref != "mem:3-3" {
		t.Fatalf("second export: ref=%q err=%v", ref, err)
	}
	rows := x.Rows()
	if len(rows) != 3 || rows[0][0] != "Date" || rows[1][4] != "-4.50" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	boom := errors.New("quota exceeded")
	x.FailWith(boom)
	if _, err := x.Export(context.Background(), items); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
