package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/qcdesk/qc/internal/auth"
	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/quickcreate"
	"github.com/qcdesk/qc/internal/sheets"
	"github.com/qcdesk/qc/internal/telemetry"
)

// spreadsheetRef identifies the configured spreadsheet and, when the URL
// carried one, the default tab.
type spreadsheetRef struct {
	ID  string
	GID string
}

// resolveSpreadsheet reads spreadsheet.id, falling back to parsing
// spreadsheet.url. An explicit id still picks up the URL's gid.
func resolveSpreadsheet(s config.SpreadsheetSettings) (spreadsheetRef, error) {
	var ref spreadsheetRef
	if s.URL != "" {
		id, gid, err := sheets.ParseSheetURL(s.URL)
		if err != nil {
			return ref, err
		}
		ref = spreadsheetRef{ID: id, GID: gid}
	}
	if s.ID != "" {
		ref.ID = s.ID
	}
	if ref.ID == "" {
		return ref, errSpreadsheetUnset
	}
	return ref, nil
}

var errSpreadsheetUnset = errors.New("no spreadsheet configured")

func newProvider() *auth.Provider {
	g := config.Google()
	return auth.NewProvider(
		auth.NewFileStore(g.TokenStore),
		config.CredentialSearchPaths(),
		auth.WithHTTPClient(telemetry.HTTPClient(config.Spreadsheet().Timeout)),
	)
}

// spreadsheetFactory opens the Sheets API over the authenticated client.
func spreadsheetFactory(spreadsheetID string) quickcreate.SpreadsheetFactory {
	timeout := config.Spreadsheet().Timeout
	return func(ctx context.Context, hc *http.Client) (quickcreate.Spreadsheet, error) {
		c := *hc
		c.Timeout = timeout
		backend, err := sheets.NewAPIBackend(ctx, &c)
		if err != nil {
			return nil, err
		}
		return sheets.NewClient(backend, spreadsheetID), nil
	}
}

func newTracker() *jira.Client {
	s := config.Jira()
	return jira.NewClient(s.URL, s.Username, s.Password).
		WithHTTPClient(telemetry.HTTPClient(s.Timeout)).
		WithEpicLinkField(s.EpicLinkField)
}

// newSession wires a Session from config. It exits when the spreadsheet is
// not configured.
func newSession() (*quickcreate.Session, spreadsheetRef) {
	ref, err := resolveSpreadsheet(config.Spreadsheet())
	if err != nil {
		failWith(err)
	}
	session := quickcreate.NewSession(
		newProvider(),
		spreadsheetFactory(ref.ID),
		newTracker(),
		quickcreate.WithWriteBackColumn(config.Spreadsheet().WriteBackColumn),
	)
	return session, ref
}

// hintFor maps known failures to an actionable hint ("" if none).
func hintFor(err error) (code, hint string) {
	switch {
	case errors.Is(err, errSpreadsheetUnset):
		return "config", "Run 'qc config set spreadsheet.url <spreadsheet URL>'"
	case errors.Is(err, auth.ErrConfigMissing):
		return "auth", "Download an OAuth client credentials.json from the Google Cloud console and set google.credentials_file"
	case errors.Is(err, auth.ErrConfigInvalid):
		return "auth", "credentials.json must hold an \"installed\" or \"web\" OAuth client"
	case errors.Is(err, auth.ErrAuthTimeout):
		return "auth", "Run 'qc connect' again and finish the browser sign-in within 30 seconds"
	case errors.Is(err, auth.ErrAuthFailed):
		return "auth", "Run 'qc logout' and then 'qc connect' to sign in again"
	case errors.Is(err, quickcreate.ErrNotConnected):
		return "auth", "Run 'qc connect' first"
	case errors.Is(err, sheets.ErrSheetNotFound):
		return "sheet", "Run 'qc sheets' to list the tab names"
	case errors.Is(err, sheets.ErrRowNotFound):
		return "row", "Row numbers start at 1 (the header row)"
	case errors.Is(err, jira.ErrTrackerUnreachable):
		return "jira", "Check jira.url with 'qc config get jira.url'"
	case jira.StatusCode(err) == http.StatusUnauthorized:
		return "jira", "Check jira.username and jira.password"
	case errors.Is(err, jira.ErrTrackerAPI):
		return "jira", ""
	}
	return "", ""
}

// failWith reports err (as JSON with --json) and exits.
func failWith(err error) {
	code, hint := hintFor(err)
	if jsonOutput {
		outputJSONError(err, code)
	}
	if hint != "" {
		FatalErrorWithHint(err.Error(), hint)
	}
	FatalError("%v", err)
}

// connectSession runs Connect and exits on failure.
func connectSession(ctx context.Context, session *quickcreate.Session) *quickcreate.ConnectResult {
	res, err := session.Connect(ctx)
	if err != nil {
		failWith(fmt.Errorf("connect to Google: %w", err))
	}
	return res
}
