// Package sheets reads and writes a single Google spreadsheet: it resolves
// named columns from the header row, projects a data row onto them and
// writes an issue link back into a row.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/qcdesk/qc/internal/debug"
)

var (
	// ErrSheetNotFound is returned when the header read of a tab yields no rows.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrRowNotFound is returned when the requested row yields no data.
	ErrRowNotFound = errors.New("row not found")
)

// RowRecord is one spreadsheet row projected onto its header labels.
type RowRecord struct {
	SheetName   string            `json:"sheetName"`
	RowNumber   int               `json:"rowNumber"`
	IssueRecord string            `json:"issueRecord"`
	ProgramCode string            `json:"programCode"`
	Values      map[string]string `json:"rawRow"`
	Headers     []string          `json:"headers"`
}

// Client performs row reads and write-backs against one spreadsheet.
// Headers are re-read on every call.
type Client struct {
	backend       Backend
	spreadsheetID string
}

// NewClient scopes backend to the given spreadsheet id.
func NewClient(backend Backend, spreadsheetID string) *Client {
	return &Client{backend: backend, spreadsheetID: spreadsheetID}
}

// ListSheetNames returns the tab titles in display order.
func (c *Client) ListSheetNames(ctx context.Context) ([]string, error) {
	infos, err := c.backend.SheetInfos(ctx, c.spreadsheetID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, s := range infos {
		names = append(names, s.Title)
	}
	return names, nil
}

// SheetNameByGID maps a tab gid (the number in a sheet URL) to its title.
func (c *Client) SheetNameByGID(ctx context.Context, gid string) (string, error) {
	infos, err := c.backend.SheetInfos(ctx, c.spreadsheetID)
	if err != nil {
		return "", err
	}
	for _, s := range infos {
		if fmt.Sprint(s.ID) == gid {
			return s.Title, nil
		}
	}
	return "", fmt.Errorf("%w: no tab with gid %s", ErrSheetNotFound, gid)
}

// Headers reads row 1 of the sheet.
func (c *Client) Headers(ctx context.Context, sheet string) ([]string, error) {
	rows, err := c.backend.Values(ctx, c.spreadsheetID, RowRange(sheet, 1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q has no header row", ErrSheetNotFound, sheet)
	}
	return rows[0], nil
}

// ReadRow reads the header row and row rowNumber (1-based) and resolves the
// issue-record and program-code fields. A field without a matching column
// is reported as NotFoundValue.
func (c *Client) ReadRow(ctx context.Context, sheet string, rowNumber int) (*RowRecord, error) {
	if rowNumber < 1 {
		return nil, fmt.Errorf("%w: row %d is out of range", ErrRowNotFound, rowNumber)
	}
	headers, err := c.Headers(ctx, sheet)
	if err != nil {
		return nil, err
	}

	rows, err := c.backend.Values(ctx, c.spreadsheetID, RowRange(sheet, rowNumber))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q row %d", ErrRowNotFound, sheet, rowNumber)
	}
	row := rows[0]

	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	field := func(synonyms []string) string {
		if i := ResolveColumn(headers, synonyms...); i >= 0 {
			return cell(i)
		}
		return NotFoundValue
	}

	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if h != "" {
			values[h] = cell(i)
		}
	}

	return &RowRecord{
		SheetName:   sheet,
		RowNumber:   rowNumber,
		IssueRecord: field(IssueRecordSynonyms),
		ProgramCode: field(ProgramCodeSynonyms),
		Values:      values,
		Headers:     headers,
	}, nil
}

// WriteBackValue writes value into row rowNumber of the first column whose
// lowercased label contains synonym. It returns false with a nil error when
// no such column exists.
func (c *Client) WriteBackValue(ctx context.Context, sheet string, rowNumber int, synonym, value string) (bool, error) {
	headers, err := c.Headers(ctx, sheet)
	if err != nil {
		return false, err
	}
	col := ResolveColumnFold(headers, synonym)
	if col < 0 {
		debug.Logf("sheets: no column matching %q in %q\n", synonym, sheet)
		return false, nil
	}
	cell := CellRange(sheet, col, rowNumber)
	debug.Logf("sheets: write %s = %s\n", cell, value)
	if err := c.backend.UpdateValue(ctx, c.spreadsheetID, cell, value); err != nil {
		return false, err
	}
	return true, nil
}
