package quickcreate

import (
	"context"
	"net/http"

	"github.com/atotto/clipboard"

	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/outcome"
	"github.com/qcdesk/qc/internal/sheets"
)

// Authenticator yields an HTTP client carrying the Google credential.
// *auth.Provider implements it.
type Authenticator interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
	Logout() error
}

// Spreadsheet is the spreadsheet surface the session drives.
// *sheets.Client implements it.
type Spreadsheet interface {
	ListSheetNames(ctx context.Context) ([]string, error)
	SheetNameByGID(ctx context.Context, gid string) (string, error)
	ReadRow(ctx context.Context, sheet string, rowNumber int) (*sheets.RowRecord, error)
	WriteBackValue(ctx context.Context, sheet string, rowNumber int, synonym, value string) (bool, error)
}

// SpreadsheetFactory builds a Spreadsheet from an authenticated client.
type SpreadsheetFactory func(ctx context.Context, hc *http.Client) (Spreadsheet, error)

// Tracker is the issue tracker surface. *jira.Client implements it.
type Tracker interface {
	TestConnection(ctx context.Context) bool
	ListProjects(ctx context.Context) ([]jira.Project, error)
	ListIssueTypes(ctx context.Context, projectKey string) ([]jira.IssueType, error)
	ListSprints(ctx context.Context, projectKey string) outcome.Result[[]jira.Sprint]
	ListEpics(ctx context.Context, projectKey string) outcome.Result[[]jira.Epic]
	ListAssignableUsers(ctx context.Context, projectKey string) outcome.Result[[]jira.User]
	CreateIssue(ctx context.Context, draft jira.IssueDraft) (*jira.CreatedIssue, error)
}

// Clipboard receives the created issue URL.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Compile-time interface checks.
var (
	_ Spreadsheet = (*sheets.Client)(nil)
	_ Tracker     = (*jira.Client)(nil)
)
