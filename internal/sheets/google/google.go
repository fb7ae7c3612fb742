package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lifedash/internal/core"
	ports "lifedash/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Transactions"

// Exporter writes one row per transaction, keyed by user and record id.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Ensure interface conformance
var (
	_ ports.RecordExporter = (*Exporter)(nil)
	_ ports.RecordLister   = (*Exporter)(nil)
)

// New creates an exporter for the given spreadsheet using service account
// credentials from the environment.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheet: sheetName}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// Upsert overwrites the record's row, or appends one after the last used row.
func (e *Exporter) Upsert(ctx context.Context, userID string, t core.Transaction) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	values, err := e.readKeys(ctx)
	if err != nil {
		return "", err
	}

	var writes []*gsheet.ValueRange
	rowNum := findRow(values, userID, t.ID)
	if rowNum == 0 {
		rowNum = len(values) + 1
		if len(values) == 0 {
			writes = append(writes, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!A1:%s1", e.sheet, lastColumn),
				Values: [][]any{headerRow()},
			})
			rowNum = 2
		}
	}
	ref := fmt.Sprintf("%s!A%d:%s%d", e.sheet, rowNum, lastColumn, rowNum)
	writes = append(writes, &gsheet.ValueRange{Range: ref, Values: [][]any{recordRow(userID, t)}})

	_, err = e.svc.Spreadsheets.Values.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             writes,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

// Delete clears the record's row. A record without a row is already gone.
func (e *Exporter) Delete(ctx context.Context, userID, id string) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	values, err := e.readKeys(ctx)
	if err != nil {
		return err
	}
	rowNum := findRow(values, userID, id)
	if rowNum == 0 {
		slog.DebugContext(ctx, "No sheet row for deleted record", "user_id", userID, "id", id)
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", e.sheet, rowNum, lastColumn, rowNum)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// ListRecords scans the sheet for the user's rows. Unparseable rows are skipped.
func (e *Exporter) ListRecords(ctx context.Context, userID string) ([]core.Transaction, error) {
	if e.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", e.sheet, lastColumn)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseRows(resp.Values, userID), nil
}

func (e *Exporter) readKeys(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:B", e.sheet)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
