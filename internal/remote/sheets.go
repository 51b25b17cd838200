package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInput stores cells exactly as given; formulas and number or date
// coercion are never applied to written text.
const valueInput = "RAW"

// SheetsStore implements Store over one Google Sheets spreadsheet, one
// worksheet per table.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsStore creates a store for spreadsheetID. Authentication comes
// from opts (option.WithCredentialsFile, option.WithCredentialsJSON) or from
// application default credentials when none are given.
func NewSheetsStore(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsStore, error) {
	if spreadsheetID == "" {
		return nil, errors.New("NewSheetsStore: spreadsheet ID is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSheetsStore: creating sheets service: %w", err)
	}
	return NewSheetsStoreWithService(svc, spreadsheetID), nil
}

// NewSheetsStoreWithService wraps an existing service.
func NewSheetsStoreWithService(svc *sheets.Service, spreadsheetID string) *SheetsStore {
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}
}

// quoteRange returns the A1 range covering the whole worksheet.
func quoteRange(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// ReadAll implements Store.
func (s *SheetsStore) ReadAll(ctx context.Context, table string) (*Table, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteRange(table)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, translate(err, table)
	}

	t := &Table{Name: table}
	if len(resp.Values) == 0 {
		return t, nil
	}
	for _, cell := range resp.Values[0] {
		t.Header = append(t.Header, cellString(cell))
	}
	for _, raw := range resp.Values[1:] {
		r := make(Record, len(t.Header))
		for i, col := range t.Header {
			if i < len(raw) {
				r[col] = cellString(raw[i])
			} else {
				r[col] = ""
			}
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func toValueRange(rows [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}
	return &sheets.ValueRange{Values: values}
}

// AppendRows implements Store.
func (s *SheetsStore) AppendRows(ctx context.Context, table string, rows [][]string) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteRange(table), toValueRange(rows)).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return translate(err, table)
}

// Clear implements Store.
func (s *SheetsStore) Clear(ctx context.Context, table string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, quoteRange(table), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return translate(err, table)
}

// DeleteRow implements Store.
func (s *SheetsStore) DeleteRow(ctx context.Context, table string, position int) error {
	sheetID, err := s.sheetID(ctx, table)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(position - 1),
					EndIndex:   int64(position),
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return translate(err, table)
}

// Tables implements Store.
func (s *SheetsStore) Tables(ctx context.Context) ([]string, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, translate(err, "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		names = append(names, sh.Properties.Title)
		s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	return names, nil
}

// CreateTable implements Store.
func (s *SheetsStore) CreateTable(ctx context.Context, table string, header []string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: table,
					GridProperties: &sheets.GridProperties{
						RowCount:    100,
						ColumnCount: 20,
					},
				},
			},
		}},
	}
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return translate(err, table)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		s.mu.Lock()
		s.sheetIDs[table] = resp.Replies[0].AddSheet.Properties.SheetId
		s.mu.Unlock()
	}
	return s.AppendRows(ctx, table, [][]string{header})
}

// SetHeader implements Store.
func (s *SheetsStore) SetHeader(ctx context.Context, table string, header []string) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quoteRange(table)+"!1:1", toValueRange([][]string{header})).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	return translate(err, table)
}

func (s *SheetsStore) sheetID(ctx context.Context, table string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[table]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	if _, err := s.Tables(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sheetIDs[table]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrTableNotFound, table)
}

// translate maps API errors onto the package sentinels, keeping the original
// error in the chain.
func translate(err error, table string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range"):
			return fmt.Errorf("%w: %s: %w", ErrTableNotFound, table, err)
		}
	}
	return err
}
