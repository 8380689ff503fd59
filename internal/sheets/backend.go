package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// SheetInfo is a tab of a spreadsheet.
type SheetInfo struct {
	ID    int64
	Title string
}

// Backend is the raw spreadsheet API surface the Client needs.
type Backend interface {
	SheetInfos(ctx context.Context, spreadsheetID string) ([]SheetInfo, error)
	Values(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error)
	UpdateValue(ctx context.Context, spreadsheetID, a1Range, value string) error
}

// APIBackend implements Backend over the Sheets v4 REST API.
type APIBackend struct {
	svc *sheetsapi.Service
}

// NewAPIBackend builds a backend whose requests go through hc, which is
// expected to carry the OAuth credential (see auth.Provider.HTTPClient).
// Extra options (e.g. option.WithEndpoint in tests) are appended.
func NewAPIBackend(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*APIBackend, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := sheetsapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &APIBackend{svc: svc}, nil
}

// SheetInfos lists the tabs of the spreadsheet in display order.
func (b *APIBackend) SheetInfos(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	ss, err := b.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", spreadsheetID, err)
	}
	infos := make([]SheetInfo, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil || s.Properties.Title == "" {
			continue
		}
		infos = append(infos, SheetInfo{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return infos, nil
}

// Values reads a range. Cells are stringified; an unknown sheet in the
// range yields ErrSheetNotFound.
func (b *APIBackend) Values(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	vr, err := b.svc.Spreadsheets.Values.Get(spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		if isUnknownRange(err) {
			return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, a1Range)
		}
		return nil, fmt.Errorf("read %s: %w", a1Range, err)
	}
	rows := make([][]string, 0, len(vr.Values))
	for _, r := range vr.Values {
		row := make([]string, len(r))
		for i, cell := range r {
			if cell != nil {
				row[i] = fmt.Sprint(cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpdateValue writes a single value into a1Range as USER_ENTERED input.
func (b *APIBackend) UpdateValue(ctx context.Context, spreadsheetID, a1Range, value string) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{{value}}}
	_, err := b.svc.Spreadsheets.Values.Update(spreadsheetID, a1Range, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", a1Range, err)
	}
	return nil
}

// isUnknownRange matches the 400 the API returns for a range naming a
// missing tab ("Unable to parse range: 'Nope'!1:1").
func isUnknownRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}
