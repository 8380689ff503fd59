// Package sheetstest serves an in-memory spreadsheet over the Sheets v4
// REST surface qc uses, for tests.
package sheetstest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/option"

	"github.com/qcdesk/qc/internal/sheets"
)

// Update records a values.update call.
type Update struct {
	Range            string
	Value            string
	ValueInputOption string
}

type tab struct {
	id   int64
	rows [][]string
}

// Server is a fake Sheets API holding one spreadsheet.
type Server struct {
	Server        *httptest.Server
	SpreadsheetID string

	mu         sync.Mutex
	order      []string
	tabs       map[string]*tab
	updates    []Update
	reads      []string
	failUpdate int
}

// NewServer starts a fake serving spreadsheetID.
func NewServer(spreadsheetID string) *Server {
	s := &Server{SpreadsheetID: spreadsheetID, tabs: make(map[string]*tab)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the server down.
func (s *Server) Close() { s.Server.Close() }

// AddSheet adds a tab; rows[0] is the header row.
func (s *Server) AddSheet(title string, gid int64, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[title]; !ok {
		s.order = append(s.order, title)
	}
	s.tabs[title] = &tab{id: gid, rows: rows}
}

// SetHeaders replaces a tab's header row.
func (s *Server) SetHeaders(title string, headers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tabs[title]; ok && len(t.rows) > 0 {
		t.rows[0] = headers
	}
}

// FailUpdates makes values.update return status.
func (s *Server) FailUpdates(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = status
}

// Updates returns the recorded writes.
func (s *Server) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

// Reads returns the ranges read so far.
func (s *Server) Reads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reads...)
}

// Cell returns the stored value at (row, col), both 1-based.
func (s *Server) Cell(title string, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[title]
	if !ok || row > len(t.rows) || col > len(t.rows[row-1]) {
		return ""
	}
	return t.rows[row-1][col-1]
}

// Backend returns a sheets.APIBackend pointed at the fake.
func (s *Server) Backend(ctx context.Context) (*sheets.APIBackend, error) {
	return sheets.NewAPIBackend(ctx, s.Server.Client(), option.WithEndpoint(s.Server.URL+"/"))
}

var (
	rowRangePattern  = regexp.MustCompile(`^'((?:[^']|'')*)'!(\d+):(\d+)$`)
	cellRangePattern = regexp.MustCompile(`^'((?:[^']|'')*)'!([A-Z]+)(\d+)$`)
)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/v4/spreadsheets/" + s.SpreadsheetID
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusNotFound, "Requested entity was not found.")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.handleGet(w)
	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodGet:
		s.handleRead(w, strings.TrimPrefix(rest, "/values/"))
	case strings.HasPrefix(rest, "/values/") && r.Method == http.MethodPut:
		s.handleUpdate(w, r, strings.TrimPrefix(rest, "/values/"))
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleGet(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type props struct {
		SheetID int64  `json:"sheetId"`
		Title   string `json:"title"`
	}
	type sheet struct {
		Properties props `json:"properties"`
	}
	out := struct {
		Sheets []sheet `json:"sheets"`
	}{}
	for _, title := range s.order {
		out.Sheets = append(out.Sheets, sheet{Properties: props{SheetID: s.tabs[title].id, Title: title}})
	}
	writeJSON(w, out)
}

func (s *Server) handleRead(w http.ResponseWriter, rng string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, rng)

	m := rowRangePattern.FindStringSubmatch(rng)
	if m == nil {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	t, ok := s.tabs[strings.ReplaceAll(m[1], "''", "'")]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	row, _ := strconv.Atoi(m[2])
	values := [][]string{}
	if row >= 1 && row <= len(t.rows) && len(t.rows[row-1]) > 0 {
		values = append(values, t.rows[row-1])
	}
	resp := map[string]interface{}{"range": rng, "majorDimension": "ROWS"}
	if len(values) > 0 {
		resp["values"] = values
	}
	writeJSON(w, resp)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, rng string) {
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Values) != 1 || len(body.Values[0]) != 1 {
		writeError(w, http.StatusBadRequest, "bad body")
		return
	}
	value := fmt.Sprint(body.Values[0][0])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, Update{Range: rng, Value: value, ValueInputOption: r.URL.Query().Get("valueInputOption")})
	if s.failUpdate != 0 {
		writeError(w, s.failUpdate, "update rejected")
		return
	}

	m := cellRangePattern.FindStringSubmatch(rng)
	if m == nil {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	t, ok := s.tabs[strings.ReplaceAll(m[1], "''", "'")]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	col := columnIndex(m[2])
	row, _ := strconv.Atoi(m[3])
	for len(t.rows) < row {
		t.rows = append(t.rows, nil)
	}
	for len(t.rows[row-1]) <= col {
		t.rows[row-1] = append(t.rows[row-1], "")
	}
	t.rows[row-1][col] = value
	writeJSON(w, map[string]interface{}{"spreadsheetId": s.SpreadsheetID, "updatedRange": rng, "updatedCells": 1})
}

// columnIndex is the inverse of sheets.ColumnLetter.
func columnIndex(letters string) int {
	n := 0
	for _, c := range letters {
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg, "status": http.StatusText(code)},
	})
}
