package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/outcome"
)

// DefaultEpicLinkField is the Jira Server custom field holding the epic link.
const DefaultEpicLinkField = "customfield_10101"

// Client provides HTTP access to a Jira Server instance. Every request
// carries the static basic-auth identity given at construction.
type Client struct {
	URL           string
	Username      string
	Password      string
	EpicLinkField string
	HTTPClient    *http.Client
}

// NewClient creates a new Jira client.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		URL:           strings.TrimSuffix(baseURL, "/"),
		Username:      username,
		Password:      password,
		EpicLinkField: DefaultEpicLinkField,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the HTTP client (instrumented transports, tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.HTTPClient = hc
	}
	return c
}

// WithEpicLinkField overrides the epic link custom field id.
func (c *Client) WithEpicLinkField(field string) *Client {
	if field != "" {
		c.EpicLinkField = field
	}
	return c
}

// BrowseURL returns the browser URL of an issue key.
func (c *Client) BrowseURL(key string) string {
	return BrowseURL(c.URL, key)
}

// TestConnection reports whether the configured credentials can reach
// /myself.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.doRequest(ctx, http.MethodGet, "/rest/api/2/myself", nil); err != nil {
		debug.Logf("jira: connection test failed: %v\n", err)
		return false
	}
	return true
}

// ListProjects returns all projects visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.getJSON(ctx, "/rest/api/2/project", &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListIssueTypes returns the issue types of a project. Errors propagate:
// issue types are required to create an issue.
func (c *Client) ListIssueTypes(ctx context.Context, projectKey string) ([]IssueType, error) {
	var project struct {
		IssueTypes []IssueType `json:"issueTypes"`
	}
	if err := c.getJSON(ctx, "/rest/api/2/project/"+url.PathEscape(projectKey), &project); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectKey, err)
	}
	if project.IssueTypes == nil {
		return []IssueType{}, nil
	}
	return project.IssueTypes, nil
}

// ListSprints resolves the project's first board and lists its active and
// future sprints. A project without a board yields an empty list.
func (c *Client) ListSprints(ctx context.Context, projectKey string) outcome.Result[[]Sprint] {
	return outcome.Try(func() ([]Sprint, error) {
		var boards struct {
			Values []struct {
				ID int `json:"id"`
			} `json:"values"`
		}
		q := url.Values{"projectKeyOrId": {projectKey}}
		if err := c.getJSON(ctx, "/rest/agile/1.0/board?"+q.Encode(), &boards); err != nil {
			return nil, fmt.Errorf("find board for %s: %w", projectKey, err)
		}
		if len(boards.Values) == 0 {
			return []Sprint{}, nil
		}

		var sprints struct {
			Values []Sprint `json:"values"`
		}
		path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint?state=active,future", boards.Values[0].ID)
		if err := c.getJSON(ctx, path, &sprints); err != nil {
			return nil, fmt.Errorf("list sprints of board %d: %w", boards.Values[0].ID, err)
		}
		if sprints.Values == nil {
			return []Sprint{}, nil
		}
		return sprints.Values, nil
	})
}

// ListEpics searches the project's epics.
func (c *Client) ListEpics(ctx context.Context, projectKey string) outcome.Result[[]Epic] {
	return outcome.Try(func() ([]Epic, error) {
		q := url.Values{
			"jql":    {fmt.Sprintf("project = %q AND issuetype = Epic", projectKey)},
			"fields": {"key,summary"},
		}
		var result struct {
			Issues []struct {
				ID     string `json:"id"`
				Key    string `json:"key"`
				Fields struct {
					Summary string `json:"summary"`
				} `json:"fields"`
			} `json:"issues"`
		}
		if err := c.getJSON(ctx, "/rest/api/2/search?"+q.Encode(), &result); err != nil {
			return nil, fmt.Errorf("search epics of %s: %w", projectKey, err)
		}
		epics := make([]Epic, 0, len(result.Issues))
		for _, is := range result.Issues {
			epics = append(epics, Epic{ID: is.ID, Key: is.Key, Summary: is.Fields.Summary})
		}
		return epics, nil
	})
}

// ListAssignableUsers lists users assignable to issues of the project.
func (c *Client) ListAssignableUsers(ctx context.Context, projectKey string) outcome.Result[[]User] {
	return outcome.Try(func() ([]User, error) {
		q := url.Values{"project": {projectKey}}
		var users []User
		if err := c.getJSON(ctx, "/rest/api/2/user/assignable/search?"+q.Encode(), &users); err != nil {
			return nil, fmt.Errorf("list assignable users of %s: %w", projectKey, err)
		}
		if users == nil {
			return []User{}, nil
		}
		return users, nil
	})
}

// CreateIssue submits a new issue. When draft.SprintID is set the issue is
// then moved into that sprint; a failure there is recorded on the result and
// does not fail the creation.
func (c *Client) CreateIssue(ctx context.Context, draft IssueDraft) (*CreatedIssue, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]interface{}{"fields": c.buildFields(draft)})
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/rest/api/2/issue", data)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	var created CreatedIssue
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	if created.Key == "" {
		return nil, fmt.Errorf("create issue: response has no issue key")
	}
	created.URL = c.BrowseURL(created.Key)

	if draft.SprintID > 0 {
		res := outcome.Try(func() (bool, error) {
			return true, c.AssignToSprint(ctx, draft.SprintID, created.Key)
		})
		created.SprintAssigned = res.Degrade(false, func(err error) {
			debug.Logf("jira: sprint assignment for %s failed: %v\n", created.Key, err)
		})
		created.SprintError = res.Reason()
	}

	return &created, nil
}

// AssignToSprint moves an existing issue into a sprint.
func (c *Client) AssignToSprint(ctx context.Context, sprintID int, issueKey string) error {
	data, err := json.Marshal(map[string][]string{"issues": {issueKey}})
	if err != nil {
		return fmt.Errorf("marshal sprint request: %w", err)
	}
	path := "/rest/agile/1.0/sprint/" + strconv.Itoa(sprintID) + "/issue"
	if _, err := c.doRequest(ctx, http.MethodPost, path, data); err != nil {
		return fmt.Errorf("assign %s to sprint %d: %w", issueKey, sprintID, err)
	}
	return nil
}

// GetIssue fetches a single issue by key (e.g., "ERP-42").
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	if err := c.getJSON(ctx, "/rest/api/2/issue/"+url.PathEscape(key), &issue); err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	return &issue, nil
}

// buildFields maps a draft onto the create payload; optional fields are only
// present when set.
func (c *Client) buildFields(d IssueDraft) map[string]interface{} {
	fields := map[string]interface{}{
		"project":   map[string]string{"key": d.ProjectKey},
		"issuetype": map[string]string{"name": d.IssueType},
		"summary":   d.Summary,
	}
	if d.Description != "" {
		fields["description"] = d.Description
	}
	if d.Reporter != "" {
		fields["reporter"] = map[string]string{"name": d.Reporter}
	}
	if d.Assignee != "" {
		fields["assignee"] = map[string]string{"name": d.Assignee}
	}
	if d.EpicKey != "" {
		field := c.EpicLinkField
		if field == "" {
			field = DefaultEpicLinkField
		}
		fields[field] = d.EpicKey
	}
	return fields
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// doRequest executes an authenticated HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "qc/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	debug.Logf("jira: %s %s\n", method, path)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTrackerUnreachable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTrackerUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	// 204 No Content (sprint assignment) has no body to parse
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	return respBody, nil
}

// setAuth sets basic auth when a username is configured, bearer otherwise.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	} else if c.Password != "" {
		req.Header.Set("Authorization", "Bearer "+c.Password)
	}
}
