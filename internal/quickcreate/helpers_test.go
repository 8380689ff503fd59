package quickcreate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/jira/jiratest"
	"github.com/qcdesk/qc/internal/sheets"
	"github.com/qcdesk/qc/internal/sheets/sheetstest"
)

type fakeAuth struct {
	mu      sync.Mutex
	err     error
	calls   int
	logouts int
}

func (a *fakeAuth) HTTPClient(context.Context) (*http.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return http.DefaultClient, nil
}

func (a *fakeAuth) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logouts++
	return nil
}

type fakeClipboard struct {
	mu     sync.Mutex
	copied []string
	err    error
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

func (c *fakeClipboard) Copied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.copied...)
}

// harness wires a Session to fake Google and Jira servers.
type harness struct {
	session   *Session
	auth      *fakeAuth
	clipboard *fakeClipboard
	sheets    *sheetstest.Server
	jira      *jiratest.MockServer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ss := sheetstest.NewServer("spreadsheet-1")
	t.Cleanup(ss.Close)
	ss.AddSheet("Sheet1", 0,
		[]string{"列", "議題紀錄", "程式代號", "Jira單號"},
		[]string{"1", "BUG-X", "PRG01", ""},
		[]string{"2", "BUG-Y", "PRG02", ""},
	)
	ss.AddSheet("NoLink", 42,
		[]string{"列", "議題紀錄", "程式代號"},
		[]string{"1", "BUG-Z", "PRG03"},
	)

	js := jiratest.NewMockServer()
	t.Cleanup(js.Close)
	js.AddProject(jira.Project{ID: "10000", Key: "ERP", Name: "ERP"},
		jira.IssueType{ID: "3", Name: "Task"},
		jira.IssueType{ID: "1", Name: "Bug"},
	)
	js.SetNextIssueNumber(42)

	factory := func(ctx context.Context, _ *http.Client) (Spreadsheet, error) {
		backend, err := ss.Backend(ctx)
		if err != nil {
			return nil, err
		}
		return sheets.NewClient(backend, ss.SpreadsheetID), nil
	}

	h := &harness{
		auth:      &fakeAuth{},
		clipboard: &fakeClipboard{},
		sheets:    ss,
		jira:      js,
	}
	h.session = NewSession(h.auth, factory, jira.NewClient(js.URL(), "u", "p"), WithClipboard(h.clipboard))
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	_, err := h.session.Connect(context.Background())
	require.NoError(t, err)
}

func taskDraft() jira.IssueDraft {
	return jira.IssueDraft{ProjectKey: "ERP", IssueType: "Task", Summary: "PRG01DG_BUG-X"}
}

// scriptedSheet is a Spreadsheet whose ReadRow blocks until released.
type scriptedSheet struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
	writes  []Target
}

func newScriptedSheet() *scriptedSheet {
	return &scriptedSheet{gates: make(map[int]chan struct{}), started: make(chan int, 10)}
}

func (s *scriptedSheet) gate(row int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[row]
	if !ok {
		g = make(chan struct{})
		s.gates[row] = g
	}
	return g
}

func (s *scriptedSheet) ListSheetNames(context.Context) ([]string, error) {
	return []string{"Sheet1"}, nil
}

func (s *scriptedSheet) SheetNameByGID(context.Context, string) (string, error) {
	return "", errors.New("not supported")
}

func (s *scriptedSheet) ReadRow(ctx context.Context, sheet string, row int) (*sheets.RowRecord, error) {
	s.started <- row
	select {
	case <-s.gate(row):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &sheets.RowRecord{SheetName: sheet, RowNumber: row, IssueRecord: "I", ProgramCode: "P"}, nil
}

func (s *scriptedSheet) WriteBackValue(_ context.Context, sheet string, row int, _, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, Target{SheetName: sheet, RowNumber: row})
	return true, nil
}
