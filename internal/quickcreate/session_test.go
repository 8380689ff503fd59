package quickcreate

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/sheets"
)

func TestFetchRowRequiresConnect(t *testing.T) {
	h := newHarness(t)

	_, err := h.session.FetchRow(context.Background(), "Sheet1", 2)
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.Equal(t, Disconnected, h.session.State())
	assert.Nil(t, h.session.Target())
}

func TestConnect(t *testing.T) {
	h := newHarness(t)

	res, err := h.session.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Connected)
	assert.Equal(t, []string{"Sheet1", "NoLink"}, res.SheetNames)
	assert.Equal(t, Connected, h.session.State())
}

func TestConnectFailure(t *testing.T) {
	h := newHarness(t)
	h.auth.err = errors.New("credentials.json not found")

	_, err := h.session.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, Disconnected, h.session.State())
}

func TestRowToIssueScenario(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()

	row, err := h.session.FetchRow(ctx, "Sheet1", 2)
	require.NoError(t, err)
	assert.Equal(t, "BUG-X", row.IssueRecord)
	assert.Equal(t, "PRG01", row.ProgramCode)
	assert.Equal(t, "PRG01DG_BUG-X", row.DefaultSummary)
	assert.False(t, row.Stale)
	require.NotNil(t, row.Tracker, "tracker metadata primed after fetch")
	assert.True(t, row.Tracker.Connected)
	require.Len(t, row.Tracker.Projects, 1)
	assert.Equal(t, RowLoaded, h.session.State())

	res, err := h.session.SubmitIssue(ctx, taskDraft())
	require.NoError(t, err)
	wantURL := h.jira.URL() + "/browse/ERP-42"
	assert.Equal(t, "ERP-42", res.Key)
	assert.Equal(t, wantURL, res.URL)
	assert.True(t, res.WriteBackSucceeded)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.WriteBackError)
	assert.Equal(t, &Target{SheetName: "Sheet1", RowNumber: 2}, res.Target)

	updates := h.sheets.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "'Sheet1'!D2", updates[0].Range)
	assert.Equal(t, wantURL, h.sheets.Cell("Sheet1", 2, 4))
	assert.Equal(t, []string{wantURL}, h.clipboard.Copied())
	assert.True(t, res.Copied)
	assert.Equal(t, RowLoaded, h.session.State())
}

func TestWriteBackWithoutLinkColumnIsDegradedSuccess(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()

	_, err := h.session.FetchRow(ctx, "NoLink", 2)
	require.NoError(t, err)

	res, err := h.session.SubmitIssue(ctx, taskDraft())
	require.NoError(t, err)
	assert.Equal(t, "ERP-42", res.Key)
	assert.Equal(t, h.jira.URL()+"/browse/ERP-42", res.URL)
	assert.False(t, res.WriteBackSucceeded)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.WriteBackError, `no column matching "jira"`)
	assert.Empty(t, h.sheets.Updates())
	assert.Len(t, h.clipboard.Copied(), 1)
}

func TestWriteBackErrorKeepsCreatedIssue(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()
	_, err := h.session.FetchRow(ctx, "Sheet1", 2)
	require.NoError(t, err)
	h.sheets.FailUpdates(http.StatusForbidden)

	res, err := h.session.SubmitIssue(ctx, taskDraft())
	require.NoError(t, err)
	assert.Equal(t, "ERP-42", res.Key)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.WriteBackError, ErrWriteBackFailed.Error())
}

func TestSubmitWithoutRowIsDegraded(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	res, err := h.session.SubmitIssue(context.Background(), taskDraft())
	require.NoError(t, err)
	assert.Equal(t, "ERP-42", res.Key)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.WriteBackError, "no row has been loaded")
	assert.Nil(t, res.Target)
}

func TestSubmitWithoutConnectIsDegraded(t *testing.T) {
	h := newHarness(t)

	res, err := h.session.SubmitIssue(context.Background(), taskDraft())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.WriteBackError, "not connected")
	assert.Len(t, h.clipboard.Copied(), 1)
}

func TestSubmitCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()
	_, err := h.session.FetchRow(ctx, "Sheet1", 2)
	require.NoError(t, err)
	h.jira.FailPath("/rest/api/2/issue", http.StatusBadRequest)

	_, err = h.session.SubmitIssue(ctx, taskDraft())
	require.Error(t, err)
	assert.True(t, errors.Is(err, jira.ErrTrackerAPI))
	assert.Empty(t, h.clipboard.Copied())
	assert.Empty(t, h.sheets.Updates())
}

func TestClipboardFailureDoesNotFailSubmit(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.clipboard.err = errors.New("no display")
	_, err := h.session.FetchRow(context.Background(), "Sheet1", 2)
	require.NoError(t, err)

	res, err := h.session.SubmitIssue(context.Background(), taskDraft())
	require.NoError(t, err)
	assert.False(t, res.Copied)
	assert.True(t, res.WriteBackSucceeded)
}

func TestFailedFetchKeepsPreviousTarget(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()

	_, err := h.session.FetchRow(ctx, "Sheet1", 2)
	require.NoError(t, err)

	_, err = h.session.FetchRow(ctx, "Missing", 2)
	assert.True(t, errors.Is(err, sheets.ErrSheetNotFound), "got %v", err)
	_, err = h.session.FetchRow(ctx, "Sheet1", 99)
	assert.True(t, errors.Is(err, sheets.ErrRowNotFound), "got %v", err)

	assert.Equal(t, &Target{SheetName: "Sheet1", RowNumber: 2}, h.session.Target())

	_, err = h.session.SubmitIssue(ctx, taskDraft())
	require.NoError(t, err)
	assert.Equal(t, "'Sheet1'!D2", h.sheets.Updates()[0].Range)
}

func TestTargetSurvivesRepeatedSubmits(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()
	_, err := h.session.FetchRow(ctx, "Sheet1", 3)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := h.session.SubmitIssue(ctx, taskDraft())
		require.NoError(t, err)
		assert.True(t, res.WriteBackSucceeded)
	}
	updates := h.sheets.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, "'Sheet1'!D3", updates[0].Range)
	assert.Equal(t, "'Sheet1'!D3", updates[1].Range)
	assert.Equal(t, h.jira.URL()+"/browse/ERP-43", updates[1].Value)
}

func TestStaleFetchDoesNotMoveTarget(t *testing.T) {
	sheet := newScriptedSheet()
	factory := func(context.Context, *http.Client) (Spreadsheet, error) { return sheet, nil }
	js := newHarness(t).jira
	s := NewSession(&fakeAuth{}, factory, jira.NewClient(js.URL(), "u", "p"), WithClipboard(&fakeClipboard{}))
	ctx := context.Background()
	_, err := s.Connect(ctx)
	require.NoError(t, err)

	type result struct {
		res *RowResult
		err error
	}
	older := make(chan result, 1)
	go func() {
		res, err := s.FetchRow(ctx, "Sheet1", 2)
		older <- result{res, err}
	}()
	require.Equal(t, 2, <-sheet.started)

	newer := make(chan result, 1)
	go func() {
		res, err := s.FetchRow(ctx, "Sheet1", 5)
		newer <- result{res, err}
	}()
	require.Equal(t, 5, <-sheet.started)

	close(sheet.gate(5))
	n := <-newer
	require.NoError(t, n.err)
	assert.False(t, n.res.Stale)

	close(sheet.gate(2))
	var o result
	select {
	case o = <-older:
	case <-time.After(5 * time.Second):
		t.Fatal("older fetch did not finish")
	}
	require.NoError(t, o.err)
	assert.True(t, o.res.Stale)
	assert.Nil(t, o.res.Tracker)

	assert.Equal(t, &Target{SheetName: "Sheet1", RowNumber: 5}, s.Target())
}

func TestFailedNewerFetchDoesNotStaleOlder(t *testing.T) {
	sheet := newScriptedSheet()
	factory := func(context.Context, *http.Client) (Spreadsheet, error) { return sheet, nil }
	js := newHarness(t).jira
	s := NewSession(&fakeAuth{}, factory, jira.NewClient(js.URL(), "u", "p"), WithClipboard(&fakeClipboard{}))
	ctx := context.Background()
	_, err := s.Connect(ctx)
	require.NoError(t, err)

	type result struct {
		res *RowResult
		err error
	}
	older := make(chan result, 1)
	go func() {
		res, err := s.FetchRow(ctx, "Sheet1", 2)
		older <- result{res, err}
	}()
	require.Equal(t, 2, <-sheet.started)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.FetchRow(cancelled, "Sheet1", 9)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 9, <-sheet.started)

	close(sheet.gate(2))
	var o result
	select {
	case o = <-older:
	case <-time.After(5 * time.Second):
		t.Fatal("older fetch did not finish")
	}
	require.NoError(t, o.err)
	assert.False(t, o.res.Stale)
	assert.Equal(t, &Target{SheetName: "Sheet1", RowNumber: 2}, s.Target())

	res, err := s.SubmitIssue(ctx, taskDraft())
	require.NoError(t, err)
	assert.True(t, res.WriteBackSucceeded)
	assert.Equal(t, []Target{{SheetName: "Sheet1", RowNumber: 2}}, sheet.writes)
}

func TestFetchRowNumberChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.session.FetchRow(ctx, "Sheet1", 0)
	assert.True(t, errors.Is(err, ErrNotConnected), "got %v", err)

	h.connect(t)
	_, err = h.session.FetchRow(ctx, "Sheet1", 0)
	assert.True(t, errors.Is(err, sheets.ErrRowNotFound), "got %v", err)
	assert.Nil(t, h.session.Target())
}

func TestLogoutClearsTarget(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	ctx := context.Background()
	_, err := h.session.FetchRow(ctx, "Sheet1", 2)
	require.NoError(t, err)

	require.NoError(t, h.session.Logout(ctx))
	assert.Equal(t, Disconnected, h.session.State())
	assert.Nil(t, h.session.Target())
	assert.Equal(t, 1, h.auth.logouts)

	_, err = h.session.FetchRow(ctx, "Sheet1", 2)
	assert.True(t, errors.Is(err, ErrNotConnected))

	require.NoError(t, h.session.Logout(ctx))
}

func TestLoadTrackerMetadata(t *testing.T) {
	h := newHarness(t)

	md, err := h.session.LoadTrackerMetadata(context.Background())
	require.NoError(t, err)
	assert.True(t, md.Connected)
	assert.Equal(t, "ERP", md.Projects[0].Key)

	h.jira.SetDown(true)
	md, err = h.session.LoadTrackerMetadata(context.Background())
	require.NoError(t, err)
	assert.False(t, md.Connected)
	assert.Empty(t, md.Projects)
}

func TestLoadTrackerMetadataProjectFailure(t *testing.T) {
	h := newHarness(t)
	h.jira.FailPath("/rest/api/2/project", http.StatusInternalServerError)

	_, err := h.session.LoadTrackerMetadata(context.Background())
	assert.Equal(t, http.StatusInternalServerError, jira.StatusCode(err))
}

func TestFetchRowPrimingIsBestEffort(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.jira.FailPath("/rest/api/2/project", http.StatusInternalServerError)

	row, err := h.session.FetchRow(context.Background(), "Sheet1", 2)
	require.NoError(t, err)
	assert.Nil(t, row.Tracker)
	assert.Equal(t, RowLoaded, h.session.State())
}

func TestGetProjectDetails(t *testing.T) {
	h := newHarness(t)
	h.jira.SetBoard("ERP", 1, jira.Sprint{ID: 7, Name: "S7", State: "active"})
	h.jira.SetEpics("ERP", jira.Epic{ID: "1", Key: "ERP-1", Summary: "Epic"})
	h.jira.FailPath("/rest/api/2/user/assignable", http.StatusInternalServerError)

	d, err := h.session.GetProjectDetails(context.Background(), "ERP")
	require.NoError(t, err)
	assert.Len(t, d.IssueTypes, 2)
	assert.Equal(t, []jira.Sprint{{ID: 7, Name: "S7", State: "active"}}, d.Sprints)
	assert.Len(t, d.Epics, 1)
	assert.NotNil(t, d.Users)
	assert.Empty(t, d.Users)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "users")
}

func TestGetProjectDetailsIssueTypesRequired(t *testing.T) {
	h := newHarness(t)

	_, err := h.session.GetProjectDetails(context.Background(), "NOPE")
	assert.Equal(t, http.StatusNotFound, jira.StatusCode(err))

	_, err = h.session.GetProjectDetails(context.Background(), "")
	assert.Error(t, err)
}

func TestResolveSheet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.session.ResolveSheet(ctx, "")
	assert.True(t, errors.Is(err, ErrNotConnected))

	h.connect(t)
	name, err := h.session.ResolveSheet(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "NoLink", name)

	name, err = h.session.ResolveSheet(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", name)
}

func TestDefaultSummary(t *testing.T) {
	assert.Equal(t, "PRG01DG_BUG-X", DefaultSummary(&sheets.RowRecord{ProgramCode: "PRG01", IssueRecord: "BUG-X"}))
	assert.Equal(t, "", DefaultSummary(nil))
	nf := sheets.NotFoundValue
	assert.Equal(t, nf+"DG_"+nf, DefaultSummary(&sheets.RowRecord{ProgramCode: nf, IssueRecord: nf}))
}
