// Package jira provides a client and types for creating issues on a Jira
// Server instance (REST API v2 + Agile 1.0) with static basic auth.
package jira

import (
	"fmt"
	"strings"
)

// Project is the subset of a Jira project qc consumes.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueType is a Jira issue type available in a project.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// Sprint is an active or future sprint of a project's board.
type Sprint struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Epic is an epic issue of a project.
type Epic struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// User is an assignable Jira Server user. Name is the login used in
// reporter/assignee fields.
type User struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// IssueDraft holds the user-supplied fields for a new issue. ProjectKey,
// IssueType and Summary are mandatory; everything else is omitted from the
// request when empty.
type IssueDraft struct {
	ProjectKey  string `json:"projectKey"`
	IssueType   string `json:"issueType"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	EpicKey     string `json:"epicKey,omitempty"`
	SprintID    int    `json:"sprintId,omitempty"`
}

// Validate checks the mandatory fields.
func (d IssueDraft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.ProjectKey) == "" {
		missing = append(missing, "project key")
	}
	if strings.TrimSpace(d.IssueType) == "" {
		missing = append(missing, "issue type")
	}
	if strings.TrimSpace(d.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("issue draft missing %s", strings.Join(missing, ", "))
	}
	if d.SprintID < 0 {
		return fmt.Errorf("invalid sprint id %d", d.SprintID)
	}
	return nil
}

// CreatedIssue is the result of a successful CreateIssue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
	URL  string `json:"url"`

	// SprintAssigned is true when a requested sprint association succeeded.
	SprintAssigned bool `json:"sprintAssigned"`
	// SprintError is set when the sprint association failed; the issue
	// itself was still created.
	SprintError string `json:"sprintError,omitempty"`
}

// Issue is a fetched Jira issue (GetIssue).
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue qc reads back.
type IssueFields struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	IssueType   *IssueType `json:"issuetype"`
	Project     *Project   `json:"project"`
	Assignee    *User      `json:"assignee"`
	Reporter    *User      `json:"reporter"`
	Status      *struct {
		Name string `json:"name"`
	} `json:"status"`
}
