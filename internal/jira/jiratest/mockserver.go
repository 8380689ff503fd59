// Package jiratest provides an in-process Jira Server mock for tests.
package jiratest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/qcdesk/qc/internal/jira"
)

// RecordedRequest stores information about a request made to the mock server.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
	Body     []byte
}

// MockServer serves the subset of Jira REST v2 / Agile 1.0 qc talks to.
// Unknown routes return 404.
type MockServer struct {
	Server *httptest.Server
	mu     sync.RWMutex

	requests []RecordedRequest

	// path prefix -> forced status code
	failures map[string]int
	down     bool

	projects   []jira.Project
	issueTypes map[string][]jira.IssueType
	boards     map[string]int
	sprints    map[int][]jira.Sprint
	epics      map[string][]jira.Epic
	users      map[string][]jira.User

	nextNumber int
	created    []map[string]interface{}
	issues     map[string]map[string]interface{}
	inSprint   map[int][]string
}

// NewMockServer creates and starts a mock Jira server.
func NewMockServer() *MockServer {
	m := &MockServer{
		failures:   make(map[string]int),
		issueTypes: make(map[string][]jira.IssueType),
		boards:     make(map[string]int),
		sprints:    make(map[int][]jira.Sprint),
		epics:      make(map[string][]jira.Epic),
		users:      make(map[string][]jira.User),
		issues:     make(map[string]map[string]interface{}),
		inSprint:   make(map[int][]string),
		nextNumber: 1,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the mock server URL.
func (m *MockServer) URL() string { return m.Server.URL }

// Close shuts down the mock server.
func (m *MockServer) Close() { m.Server.Close() }

// AddProject registers a project with its issue types.
func (m *MockServer) AddProject(p jira.Project, types ...jira.IssueType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
	m.issueTypes[p.Key] = types
}

// SetBoard links a project to a board with the given sprints.
func (m *MockServer) SetBoard(projectKey string, boardID int, sprints ...jira.Sprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[projectKey] = boardID
	m.sprints[boardID] = sprints
}

// SetEpics sets the epics returned for a project.
func (m *MockServer) SetEpics(projectKey string, epics ...jira.Epic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epics[projectKey] = epics
}

// SetUsers sets the assignable users of a project.
func (m *MockServer) SetUsers(projectKey string, users ...jira.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[projectKey] = users
}

// SetNextIssueNumber sets the number used for the next created key.
func (m *MockServer) SetNextIssueNumber(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNumber = n
}

// FailPath forces every request whose path starts with prefix to return
// status.
func (m *MockServer) FailPath(prefix string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prefix] = status
}

// SetDown makes every request fail at the transport level (connection
// hijacked and closed).
func (m *MockServer) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// Requests returns a copy of the recorded requests.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount counts recorded requests whose path starts with prefix.
func (m *MockServer) RequestCount(prefix string) int {
	n := 0
	for _, r := range m.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// Created returns the field maps of every created issue.
func (m *MockServer) Created() []map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]interface{}, len(m.created))
	copy(out, m.created)
	return out
}

// SprintIssues returns the issue keys assigned to a sprint.
func (m *MockServer) SprintIssues(sprintID int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.inSprint[sprintID]...)
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Headers:  r.Header.Clone(),
		Body:     body,
	})
	down := m.down
	status := 0
	for prefix, code := range m.failures {
		if strings.HasPrefix(r.URL.Path, prefix) {
			status = code
		}
	}
	m.mu.Unlock()

	if down {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"errorMessages":["forced %d"]}`, status)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/rest/api/2/myself" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"name": "tester"})
	case path == "/rest/api/2/project" && r.Method == http.MethodGet:
		m.mu.RLock()
		writeJSON(w, http.StatusOK, m.projects)
		m.mu.RUnlock()
	case strings.HasPrefix(path, "/rest/api/2/project/") && r.Method == http.MethodGet:
		m.handleProject(w, strings.TrimPrefix(path, "/rest/api/2/project/"))
	case path == "/rest/agile/1.0/board" && r.Method == http.MethodGet:
		m.handleBoards(w, r.URL.Query().Get("projectKeyOrId"))
	case strings.HasPrefix(path, "/rest/agile/1.0/board/") && strings.HasSuffix(path, "/sprint"):
		m.handleBoardSprints(w, r, path)
	case path == "/rest/api/2/search" && r.Method == http.MethodGet:
		m.handleSearch(w, r.URL.Query().Get("jql"))
	case path == "/rest/api/2/user/assignable/search" && r.Method == http.MethodGet:
		m.mu.RLock()
		users := m.users[r.URL.Query().Get("project")]
		m.mu.RUnlock()
		if users == nil {
			users = []jira.User{}
		}
		writeJSON(w, http.StatusOK, users)
	case path == "/rest/api/2/issue" && r.Method == http.MethodPost:
		m.handleCreate(w, body)
	case strings.HasPrefix(path, "/rest/api/2/issue/") && r.Method == http.MethodGet:
		m.handleGetIssue(w, strings.TrimPrefix(path, "/rest/api/2/issue/"))
	case strings.HasPrefix(path, "/rest/agile/1.0/sprint/") && r.Method == http.MethodPost:
		m.handleSprintAssign(w, path, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string][]string{"errorMessages": {"Not found"}})
	}
}

func (m *MockServer) handleProject(w http.ResponseWriter, key string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.Key == key {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":         p.ID,
				"key":        p.Key,
				"name":       p.Name,
				"issueTypes": m.issueTypes[key],
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string][]string{"errorMessages": {"No project could be found with key '" + key + "'."}})
}

func (m *MockServer) handleBoards(w http.ResponseWriter, projectKey string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := []map[string]interface{}{}
	if id, ok := m.boards[projectKey]; ok {
		values = append(values, map[string]interface{}{"id": id, "name": projectKey + " board"})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}

func (m *MockServer) handleBoardSprints(w http.ResponseWriter, r *http.Request, path string) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(path, "/rest/agile/1.0/board/"), "/sprint")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad board id"})
		return
	}
	states := map[string]bool{}
	for _, s := range strings.Split(r.URL.Query().Get("state"), ",") {
		states[s] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := []jira.Sprint{}
	for _, s := range m.sprints[id] {
		if len(states) == 0 || states[s.State] {
			values = append(values, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}

func (m *MockServer) handleSearch(w http.ResponseWriter, jql string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	issues := []map[string]interface{}{}
	for key, epics := range m.epics {
		if !strings.Contains(jql, `"`+key+`"`) || !strings.Contains(jql, "issuetype = Epic") {
			continue
		}
		for _, e := range epics {
			issues = append(issues, map[string]interface{}{
				"id":     e.ID,
				"key":    e.Key,
				"fields": map[string]string{"summary": e.Summary},
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": len(issues), "issues": issues})
}

func (m *MockServer) handleCreate(w http.ResponseWriter, body []byte) {
	var req struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Fields == nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errorMessages": {"bad request"}})
		return
	}
	project, _ := req.Fields["project"].(map[string]interface{})
	projectKey, _ := project["key"].(string)

	m.mu.Lock()
	n := m.nextNumber
	m.nextNumber++
	m.created = append(m.created, req.Fields)
	key := fmt.Sprintf("%s-%d", projectKey, n)
	id := strconv.Itoa(10000 + n)
	m.issues[key] = map[string]interface{}{
		"id":     id,
		"key":    key,
		"self":   "http://mock/rest/api/2/issue/" + id,
		"fields": withStatus(req.Fields, "Open"),
	}
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":   id,
		"key":  key,
		"self": "http://mock/rest/api/2/issue/" + id,
	})
}

// handleGetIssue echoes a created issue back with the fields it was created
// with.
func (m *MockServer) handleGetIssue(w http.ResponseWriter, key string) {
	m.mu.RLock()
	issue, ok := m.issues[key]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string][]string{"errorMessages": {"Issue Does Not Exist"}})
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func withStatus(fields map[string]interface{}, status string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = map[string]string{"name": status}
	return out
}

func (m *MockServer) handleSprintAssign(w http.ResponseWriter, path string, body []byte) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(path, "/rest/agile/1.0/sprint/"), "/issue")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad sprint id"})
		return
	}
	var req struct {
		Issues []string `json:"issues"`
	}
	_ = json.Unmarshal(body, &req)
	m.mu.Lock()
	m.inSprint[id] = append(m.inSprint[id], req.Issues...)
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
