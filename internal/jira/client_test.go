package jira_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/jira/jiratest"
)

func newTestClient(t *testing.T) (*jira.Client, *jiratest.MockServer) {
	t.Helper()
	srv := jiratest.NewMockServer()
	t.Cleanup(srv.Close)
	return jira.NewClient(srv.URL(), "alice", "s3cret"), srv
}

func TestClientBasicAuth(t *testing.T) {
	c, srv := newTestClient(t)

	assert.True(t, c.TestConnection(context.Background()))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/rest/api/2/myself", reqs[0].Path)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
	assert.Equal(t, want, reqs[0].Headers.Get("Authorization"))
}

func TestTestConnectionFailure(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailPath("/rest/api/2/myself", http.StatusUnauthorized)

	assert.False(t, c.TestConnection(context.Background()))
}

func TestListProjects(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddProject(jira.Project{ID: "10000", Key: "ERP", Name: "ERP System"})
	srv.AddProject(jira.Project{ID: "10001", Key: "OPS", Name: "Operations"})

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "ERP", projects[0].Key)
	assert.Equal(t, "Operations", projects[1].Name)
}

func TestListProjectsAPIError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailPath("/rest/api/2/project", http.StatusForbidden)

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, jira.ErrTrackerAPI))
	assert.Equal(t, http.StatusForbidden, jira.StatusCode(err))

	var apiErr *jira.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Body, "forced 403")
}

func TestUnreachable(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetDown(true)

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, jira.ErrTrackerUnreachable))
	assert.False(t, errors.Is(err, jira.ErrTrackerAPI))
}

func TestListIssueTypes(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddProject(jira.Project{ID: "1", Key: "ERP", Name: "ERP"},
		jira.IssueType{ID: "3", Name: "Task"},
		jira.IssueType{ID: "1", Name: "Bug"},
	)

	types, err := c.ListIssueTypes(context.Background(), "ERP")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Task", types[0].Name)

	_, err = c.ListIssueTypes(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, jira.StatusCode(err))
}

func TestListSprints(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetBoard("ERP", 7,
		jira.Sprint{ID: 11, Name: "Sprint 11", State: "closed"},
		jira.Sprint{ID: 12, Name: "Sprint 12", State: "active"},
		jira.Sprint{ID: 13, Name: "Sprint 13", State: "future"},
	)

	res := c.ListSprints(context.Background(), "ERP")
	require.False(t, res.Failed(), res.Reason())
	require.Len(t, res.Value, 2)
	assert.Equal(t, 12, res.Value[0].ID)
	assert.Equal(t, 13, res.Value[1].ID)
}

func TestListSprintsNoBoard(t *testing.T) {
	c, _ := newTestClient(t)

	res := c.ListSprints(context.Background(), "ERP")
	require.False(t, res.Failed())
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
}

func TestBestEffortListsFail(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailPath("/rest/agile/1.0/board", http.StatusInternalServerError)
	srv.FailPath("/rest/api/2/search", http.StatusBadRequest)
	srv.FailPath("/rest/api/2/user/assignable", http.StatusInternalServerError)
	ctx := context.Background()

	sprints := c.ListSprints(ctx, "ERP")
	assert.True(t, sprints.Failed())
	assert.Empty(t, sprints.Value)

	epics := c.ListEpics(ctx, "ERP")
	assert.True(t, epics.Failed())
	assert.Equal(t, http.StatusBadRequest, jira.StatusCode(epics.Err))

	users := c.ListAssignableUsers(ctx, "ERP")
	assert.True(t, users.Failed())
	assert.Empty(t, users.Degrade(nil, nil))
}

func TestListEpicsAndUsers(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetEpics("ERP", jira.Epic{ID: "200", Key: "ERP-1", Summary: "Billing revamp"})
	srv.SetUsers("ERP", jira.User{Name: "bob", DisplayName: "Bob Chen"})
	ctx := context.Background()

	epics := c.ListEpics(ctx, "ERP")
	require.False(t, epics.Failed(), epics.Reason())
	require.Len(t, epics.Value, 1)
	assert.Equal(t, jira.Epic{ID: "200", Key: "ERP-1", Summary: "Billing revamp"}, epics.Value[0])

	users := c.ListAssignableUsers(ctx, "ERP")
	require.False(t, users.Failed())
	require.Len(t, users.Value, 1)
	assert.Equal(t, "bob", users.Value[0].Name)

	none := c.ListAssignableUsers(ctx, "OPS")
	require.False(t, none.Failed())
	assert.Empty(t, none.Value)
}

func TestCreateIssueMinimal(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SetNextIssueNumber(42)

	created, err := c.CreateIssue(context.Background(), jira.IssueDraft{
		ProjectKey: "ERP",
		IssueType:  "Task",
		Summary:    "PGM001DG_Fix login",
	})
	require.NoError(t, err)
	assert.Equal(t, "ERP-42", created.Key)
	assert.Equal(t, srv.URL()+"/browse/ERP-42", created.URL)
	assert.False(t, created.SprintAssigned)
	assert.Empty(t, created.SprintError)

	fields := srv.Created()
	require.Len(t, fields, 1)
	f := fields[0]
	assert.Equal(t, map[string]interface{}{"key": "ERP"}, f["project"])
	assert.Equal(t, map[string]interface{}{"name": "Task"}, f["issuetype"])
	assert.Equal(t, "PGM001DG_Fix login", f["summary"])
	for _, absent := range []string{"description", "reporter", "assignee", jira.DefaultEpicLinkField} {
		_, ok := f[absent]
		assert.False(t, ok, "field %s should be omitted", absent)
	}
	assert.Equal(t, 0, srv.RequestCount("/rest/agile/1.0/sprint/"))
}

func TestCreateIssueAllFields(t *testing.T) {
	c, srv := newTestClient(t)
	c.WithEpicLinkField("customfield_12345")

	created, err := c.CreateIssue(context.Background(), jira.IssueDraft{
		ProjectKey:  "ERP",
		IssueType:   "Bug",
		Summary:     "PGM001DG_Fix login",
		Description: "details",
		Reporter:    "alice",
		Assignee:    "bob",
		EpicKey:     "ERP-1",
		SprintID:    12,
	})
	require.NoError(t, err)
	assert.True(t, created.SprintAssigned)

	f := srv.Created()[0]
	assert.Equal(t, "details", f["description"])
	assert.Equal(t, map[string]interface{}{"name": "alice"}, f["reporter"])
	assert.Equal(t, map[string]interface{}{"name": "bob"}, f["assignee"])
	assert.Equal(t, "ERP-1", f["customfield_12345"])
	_, ok := f[jira.DefaultEpicLinkField]
	assert.False(t, ok)

	assert.Equal(t, []string{created.Key}, srv.SprintIssues(12))
}

func TestCreateIssueSprintFailureStillSucceeds(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailPath("/rest/agile/1.0/sprint/", http.StatusBadRequest)

	created, err := c.CreateIssue(context.Background(), jira.IssueDraft{
		ProjectKey: "ERP",
		IssueType:  "Task",
		Summary:    "s",
		SprintID:   99,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Key)
	assert.False(t, created.SprintAssigned)
	assert.Contains(t, created.SprintError, "400")
	assert.Equal(t, 1, srv.RequestCount("/rest/agile/1.0/sprint/99/issue"))
}

func TestCreateIssueRejected(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailPath("/rest/api/2/issue", http.StatusBadRequest)

	_, err := c.CreateIssue(context.Background(), jira.IssueDraft{ProjectKey: "ERP", IssueType: "Task", Summary: "s"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, jira.StatusCode(err))
}

func TestCreateIssueValidation(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.CreateIssue(context.Background(), jira.IssueDraft{ProjectKey: "ERP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue type")
	assert.Contains(t, err.Error(), "summary")
	assert.Empty(t, srv.Requests())
}

func TestIssueDraftJSON(t *testing.T) {
	var d jira.IssueDraft
	require.NoError(t, json.Unmarshal([]byte(`{"projectKey":"ERP","issueType":"Task","summary":"s","sprintId":5}`), &d))
	assert.Equal(t, 5, d.SprintID)
	assert.NoError(t, d.Validate())

	d.SprintID = -1
	assert.Error(t, d.Validate())
}

func TestGetIssue(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddProject(jira.Project{ID: "10000", Key: "ERP", Name: "ERP"}, jira.IssueType{ID: "3", Name: "Task"})
	srv.SetNextIssueNumber(7)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, jira.IssueDraft{
		ProjectKey: "ERP", IssueType: "Task", Summary: "PRG01DG_BUG-X", Assignee: "bob",
	})
	require.NoError(t, err)

	issue, err := c.GetIssue(ctx, "ERP-7")
	require.NoError(t, err)
	assert.Equal(t, "ERP-7", issue.Key)
	assert.Equal(t, "PRG01DG_BUG-X", issue.Fields.Summary)
	require.NotNil(t, issue.Fields.IssueType)
	assert.Equal(t, "Task", issue.Fields.IssueType.Name)
	require.NotNil(t, issue.Fields.Assignee)
	assert.Equal(t, "bob", issue.Fields.Assignee.Name)
	require.NotNil(t, issue.Fields.Status)
	assert.Equal(t, "Open", issue.Fields.Status.Name)

	_, err = c.GetIssue(ctx, "ERP-99")
	assert.True(t, errors.Is(err, jira.ErrTrackerAPI))
	assert.Equal(t, http.StatusNotFound, jira.StatusCode(err))
}
