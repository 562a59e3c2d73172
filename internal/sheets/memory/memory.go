package memory

import (
	"context"
	"fmt"
	"sync"

	"financeflow/internal/core"
	"financeflow/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Exporter)(nil)

// Exporter keeps exported rows in memory.
type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

func New() *Exporter {
	return &Exporter{}
}

// FailWith makes the next exports return err until cleared with nil.
func (x *Exporter) FailWith(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.err = err
}

// Export stores the rows, writing the header first on an empty sheet.
func (x *Exporter) Export(_ context.Context, items []core.ExpenseItem) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return "", x.err
	}
	if len(x.rows) == 0 {
		x.rows = append(x.rows, sheets.Header)
	}
	first := len(x.rows) + 1
	x.rows = append(x.rows, sheets.Rows(items)...)
	return fmt.Sprintf("mem:%d-%d", first, len(x.rows)), nil
}

// Rows returns a copy of everything written, header included.
func (x *Exporter) Rows() [][]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([][]any(nil), x.rows...)
}
