// Package quickcreate turns a spreadsheet row into a Jira issue. A Session
// owns the connected spreadsheet and the write-back target; each operation
// isolates best-effort steps so they never fail the primary one.
package quickcreate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/outcome"
	"github.com/qcdesk/qc/internal/sheets"
	"github.com/qcdesk/qc/internal/telemetry"
)

const telemetryScope = "github.com/qcdesk/qc/quickcreate"

// DefaultWriteBackColumn is the header synonym of the issue link column.
const DefaultWriteBackColumn = "jira"

var (
	// ErrNotConnected is returned by spreadsheet operations before Connect.
	ErrNotConnected = errors.New("not connected to Google; run connect first")
	// ErrWriteBackFailed marks a write-back that did not happen. It never
	// fails SubmitIssue; it is reported in SubmitResult.WriteBackError.
	ErrWriteBackFailed = errors.New("write-back failed")
)

// ConnectResult is returned by Connect.
type ConnectResult struct {
	Connected  bool     `json:"connected"`
	SheetNames []string `json:"sheetNames"`
	// SheetsError is set when the tab listing failed; the session is still
	// connected.
	SheetsError string `json:"sheetsError,omitempty"`
}

// TrackerMetadata is returned by LoadTrackerMetadata.
type TrackerMetadata struct {
	Connected bool           `json:"connected"`
	Projects  []jira.Project `json:"projects"`
}

// RowResult is returned by FetchRow.
type RowResult struct {
	sheets.RowRecord
	DefaultSummary string `json:"defaultSummary"`
	// Stale is set when a FetchRow that started later already set the
	// write-back target; this result did not move it.
	Stale bool `json:"stale,omitempty"`
	// Tracker primes the next step; nil when that best-effort load failed.
	Tracker *TrackerMetadata `json:"tracker,omitempty"`
}

// ProjectDetails is returned by GetProjectDetails.
type ProjectDetails struct {
	IssueTypes []jira.IssueType `json:"issueTypes"`
	Sprints    []jira.Sprint    `json:"sprints"`
	Epics      []jira.Epic      `json:"epics"`
	Users      []jira.User      `json:"users"`
	// Warnings lists best-effort lookups that failed and were emptied.
	Warnings []string `json:"warnings,omitempty"`
}

// SubmitResult is returned by SubmitIssue. Key and URL are final once the
// issue is created; write-back only affects the WriteBack fields.
type SubmitResult struct {
	Key                string  `json:"key"`
	URL                string  `json:"url"`
	WriteBackSucceeded bool    `json:"writeBackSucceeded"`
	WriteBackError     string  `json:"writeBackError,omitempty"`
	Degraded           bool    `json:"degraded"`
	Target             *Target `json:"target,omitempty"`
	Copied             bool    `json:"copiedToClipboard"`
	SprintAssigned     bool    `json:"sprintAssigned,omitempty"`
	SprintError        string  `json:"sprintError,omitempty"`
}

// Session holds the per-user state of the quick-create flow. It is safe for
// concurrent use; operations do not serialize against each other.
type Session struct {
	auth            Authenticator
	newSpreadsheet  SpreadsheetFactory
	clipboard       Clipboard
	writeBackColumn string
	ops             *telemetry.Ops

	mu       sync.Mutex
	tracker  Tracker
	sheet    Spreadsheet
	target   *Target

	// fetchSeq numbers FetchRow calls as they start; committedSeq is the
	// number of the call that last set target.
	fetchSeq     uint64
	committedSeq uint64
}

// Option configures a Session.
type Option func(*Session)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(s *Session) { s.clipboard = c }
}

// WithWriteBackColumn sets the header synonym used for write-back.
func WithWriteBackColumn(synonym string) Option {
	return func(s *Session) {
		if synonym != "" {
			s.writeBackColumn = synonym
		}
	}
}

// NewSession creates a disconnected session.
func NewSession(auth Authenticator, newSpreadsheet SpreadsheetFactory, tracker Tracker, opts ...Option) *Session {
	s := &Session{
		auth:            auth,
		newSpreadsheet:  newSpreadsheet,
		clipboard:       SystemClipboard{},
		writeBackColumn: DefaultWriteBackColumn,
		tracker:         tracker,
		ops:             telemetry.NewOps(telemetryScope, "qc.command"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTracker swaps the tracker client (e.g. after a config reload).
func (s *Session) SetTracker(t Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker = t
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.sheet == nil:
		return Disconnected
	case s.target != nil:
		return RowLoaded
	default:
		return Connected
	}
}

// Target returns the current write-back target, or nil.
func (s *Session) Target() *Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return nil
	}
	t := *s.target
	return &t
}

// Connect authenticates and replaces the spreadsheet client.
func (s *Session) Connect(ctx context.Context) (res *ConnectResult, err error) {
	ctx, op := s.ops.Start(ctx, "connect")
	defer func() { op.End(ctx, err) }()

	hc, err := s.auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	sheet, err := s.newSpreadsheet(ctx, hc)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}

	s.mu.Lock()
	s.sheet = sheet
	s.mu.Unlock()

	listed := outcome.Try(func() ([]string, error) { return sheet.ListSheetNames(ctx) })
	names := listed.Degrade([]string{}, func(err error) {
		debug.Logf("quickcreate: list sheets after connect: %v\n", err)
	})
	return &ConnectResult{Connected: true, SheetNames: names, SheetsError: listed.Reason()}, nil
}

// Logout signs out, drops the spreadsheet client and clears the target.
// In-flight fetches are invalidated.
func (s *Session) Logout(ctx context.Context) error {
	_, op := s.ops.Start(ctx, "logout")
	s.mu.Lock()
	s.sheet = nil
	s.target = nil
	s.committedSeq = s.fetchSeq
	s.mu.Unlock()
	err := s.auth.Logout()
	op.End(ctx, err)
	return err
}

// ListSheets lists the spreadsheet tabs.
func (s *Session) ListSheets(ctx context.Context) ([]string, error) {
	sheet, err := s.spreadsheet()
	if err != nil {
		return nil, err
	}
	return sheet.ListSheetNames(ctx)
}

// ResolveSheet picks a tab: the one with the given gid, else the first.
func (s *Session) ResolveSheet(ctx context.Context, gid string) (string, error) {
	sheet, err := s.spreadsheet()
	if err != nil {
		return "", err
	}
	if gid != "" {
		return sheet.SheetNameByGID(ctx, gid)
	}
	names, err := sheet.ListSheetNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no tabs", sheets.ErrSheetNotFound)
	}
	return names[0], nil
}

// FetchRow reads a row and, on success, records it as the write-back target
// unless a FetchRow that started later has already set it. A failed read
// leaves the previous target in place. Tracker metadata is then loaded best-effort.
func (s *Session) FetchRow(ctx context.Context, sheetName string, rowNumber int) (res *RowResult, err error) {
	ctx, op := s.ops.Start(ctx, "fetch_row",
		attribute.String("sheet.name", sheetName),
		attribute.Int("sheet.row", rowNumber),
	)
	defer func() { op.End(ctx, err) }()

	s.mu.Lock()
	sheet := s.sheet
	if sheet == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	rec, err := sheet.ReadRow(ctx, sheetName, rowNumber)
	if err != nil {
		return nil, err
	}

	res = &RowResult{RowRecord: *rec, DefaultSummary: DefaultSummary(rec)}

	s.mu.Lock()
	if seq > s.committedSeq && s.sheet == sheet {
		s.target = &Target{SheetName: sheetName, RowNumber: rowNumber}
		s.committedSeq = seq
	} else {
		res.Stale = true
	}
	s.mu.Unlock()
	if res.Stale {
		debug.Logf("quickcreate: discarding stale fetch of %s row %d\n", sheetName, rowNumber)
		op.SetAttributes(attribute.Bool("fetch.stale", true))
		return res, nil
	}

	primed := outcome.Try(func() (*TrackerMetadata, error) { return s.LoadTrackerMetadata(ctx) })
	res.Tracker = primed.Degrade(nil, func(err error) {
		debug.Logf("quickcreate: priming tracker metadata: %v\n", err)
	})
	return res, nil
}

// LoadTrackerMetadata checks tracker connectivity and lists projects
// concurrently. An unreachable tracker reports Connected=false with no
// projects; a project listing failure on a reachable tracker is an error.
func (s *Session) LoadTrackerMetadata(ctx context.Context) (res *TrackerMetadata, err error) {
	ctx, op := s.ops.Start(ctx, "load_tracker_metadata")
	defer func() { op.End(ctx, err) }()

	tracker := s.currentTracker()
	var (
		connected bool
		projects  []jira.Project
		listErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		connected = tracker.TestConnection(gctx)
		return nil
	})
	g.Go(func() error {
		projects, listErr = tracker.ListProjects(gctx)
		return nil
	})
	_ = g.Wait()

	if !connected {
		return &TrackerMetadata{Connected: false, Projects: []jira.Project{}}, nil
	}
	if listErr != nil {
		return nil, listErr
	}
	if projects == nil {
		projects = []jira.Project{}
	}
	return &TrackerMetadata{Connected: true, Projects: projects}, nil
}

// GetProjectDetails loads issue types (required) together with sprints,
// epics and users (each emptied on failure).
func (s *Session) GetProjectDetails(ctx context.Context, projectKey string) (res *ProjectDetails, err error) {
	ctx, op := s.ops.Start(ctx, "get_project_details", attribute.String("jira.project", projectKey))
	defer func() { op.End(ctx, err) }()

	if projectKey == "" {
		return nil, fmt.Errorf("project key is required")
	}
	tracker := s.currentTracker()

	var (
		issueTypes []jira.IssueType
		sprints    outcome.Result[[]jira.Sprint]
		epics      outcome.Result[[]jira.Epic]
		users      outcome.Result[[]jira.User]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issueTypes, err = tracker.ListIssueTypes(gctx, projectKey)
		return err
	})
	g.Go(func() error { sprints = tracker.ListSprints(gctx, projectKey); return nil })
	g.Go(func() error { epics = tracker.ListEpics(gctx, projectKey); return nil })
	g.Go(func() error { users = tracker.ListAssignableUsers(gctx, projectKey); return nil })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res = &ProjectDetails{IssueTypes: issueTypes}
	warn := func(what string) func(error) {
		return func(err error) {
			debug.Logf("quickcreate: %s of %s unavailable: %v\n", what, projectKey, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", what, err))
		}
	}
	res.Sprints = sprints.Degrade([]jira.Sprint{}, warn("sprints"))
	res.Epics = epics.Degrade([]jira.Epic{}, warn("epics"))
	res.Users = users.Degrade([]jira.User{}, warn("users"))
	return res, nil
}

// SubmitIssue creates the issue, copies its URL to the clipboard and writes
// the URL back into the current target row. Once the issue exists the call
// succeeds; clipboard and write-back failures only degrade the result.
func (s *Session) SubmitIssue(ctx context.Context, draft jira.IssueDraft) (res *SubmitResult, err error) {
	ctx, op := s.ops.Start(ctx, "submit_issue", attribute.String("jira.project", draft.ProjectKey))
	defer func() { op.End(ctx, err) }()

	created, err := s.currentTracker().CreateIssue(ctx, draft)
	if err != nil {
		return nil, err
	}
	op.SetAttributes(attribute.String("jira.issue", created.Key))

	res = &SubmitResult{
		Key:            created.Key,
		URL:            created.URL,
		SprintAssigned: created.SprintAssigned,
		SprintError:    created.SprintError,
	}

	copied := outcome.Try(func() (bool, error) { return true, s.clipboard.WriteAll(created.URL) })
	res.Copied = copied.Degrade(false, func(err error) {
		debug.Logf("quickcreate: copy %s to clipboard: %v\n", created.URL, err)
	})

	s.mu.Lock()
	sheet := s.sheet
	target := s.target
	s.mu.Unlock()
	if target != nil {
		t := *target
		res.Target = &t
	}

	wb := outcome.Try(func() (bool, error) { return s.writeBack(ctx, sheet, target, created.URL) })
	res.WriteBackSucceeded = wb.Degrade(false, func(err error) {
		debug.Logf("quickcreate: %v\n", err)
	})
	res.WriteBackError = wb.Reason()
	res.Degraded = wb.Failed()
	op.SetAttributes(attribute.Bool("writeback.succeeded", res.WriteBackSucceeded))
	return res, nil
}

func (s *Session) writeBack(ctx context.Context, sheet Spreadsheet, target *Target, value string) (bool, error) {
	switch {
	case sheet == nil:
		return false, fmt.Errorf("%w: not connected to Google", ErrWriteBackFailed)
	case target == nil:
		return false, fmt.Errorf("%w: no row has been loaded", ErrWriteBackFailed)
	}
	ok, err := sheet.WriteBackValue(ctx, target.SheetName, target.RowNumber, s.writeBackColumn, value)
	if err != nil {
		return false, fmt.Errorf("%w: %s row %d: %v", ErrWriteBackFailed, target.SheetName, target.RowNumber, err)
	}
	if !ok {
		return false, fmt.Errorf("%w: no column matching %q in sheet %q", ErrWriteBackFailed, s.writeBackColumn, target.SheetName)
	}
	return true, nil
}

func (s *Session) spreadsheet() (Spreadsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheet == nil {
		return nil, ErrNotConnected
	}
	return s.sheet, nil
}

func (s *Session) currentTracker() Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}

// DefaultSummary composes the issue summary from a row:
// program code + "DG_" + issue record.
func DefaultSummary(rec *sheets.RowRecord) string {
	if rec == nil {
		return ""
	}
	return rec.ProgramCode + "DG_" + rec.IssueRecord
}
