// Package google exports transactions to a Google Sheets spreadsheet using
// service-account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financeflow/internal/core"
	"financeflow/internal/log"
	"financeflow/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Exporter)(nil)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Transactions"

// Settings selects the spreadsheet and the credentials. CredentialsJSON
// wins over CredentialsFile.
type Settings struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates an exporter. Extra client options are passed to the Sheets
// service, after the credentials.
func New(ctx context.Context, s Settings, logger *log.Logger, opts ...goption.ClientOption) (*Exporter, error) {
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	id := strings.TrimSpace(s.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	name := strings.TrimSpace(s.SheetName)
	if name == "" {
		name = DefaultSheetName
	}

	creds, err := credentials(s)
	if err != nil {
		return nil, err
	}
	all := append([]goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger = logger.WithComponent(log.ComponentSheets)
	logger.DebugContext(ctx, "Google Sheets exporter ready", "spreadsheet", id, "sheet", name)
	return &Exporter{svc: svc, spreadsheetID: id, sheetName: name, logger: logger}, nil
}

func credentials(s Settings) ([]byte, error) {
	switch {
	case strings.TrimSpace(s.CredentialsJSON) != "":
		return []byte(s.CredentialsJSON), nil
	case strings.TrimSpace(s.CredentialsFile) != "":
		b, err := os.ReadFile(s.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Export appends the transactions below the existing rows. A header row is
// written first when the sheet is empty.
func (x *Exporter) Export(ctx context.Context, items []core.ExpenseItem) (string, error) {
	if x.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(items) == 0 {
		return "", nil
	}

	head := fmt.Sprintf("%s!A1:E1", x.sheetName)
	resp, err := x.svc.Spreadsheets.Values.Get(x.spreadsheetID, head).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read header of %s: %w", x.sheetName, err)
	}

	rows := sheets.Rows(items)
	if len(resp.Values) == 0 {
		rows = append([][]any{sheets.Header}, rows...)
	}

	rng := fmt.Sprintf("%s!A:E", x.sheetName)
	out, err := x.svc.Spreadsheets.Values.Append(x.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", x.sheetName, err)
	}

	ref := rng
	if out.Updates != nil && out.Updates.UpdatedRange != "" {
		ref = out.Updates.UpdatedRange
	}
	x.logger.InfoContext(ctx, "Exported transactions",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(items),
		"range", ref)
	return ref, nil
}
