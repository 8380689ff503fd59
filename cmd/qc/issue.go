package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/ui"
)

var issueCmd = &cobra.Command{
	Use:     "issue <KEY|URL>",
	GroupID: GroupIssues,
	Short:   "Show an issue by key or by its browse link",
	Long: `Show an issue by key or by its browse link.

The argument may be the key ("ERP-42") or the link qc wrote back into the
sheet ("https://jira.example.com/browse/ERP-42").`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tracker := newTracker()
		key, err := issueKeyArg(args[0], tracker.URL)
		if err != nil {
			FatalErrorWithHint(err.Error(), fmt.Sprintf("jira.url is %q", config.Jira().URL))
		}
		issue, err := tracker.GetIssue(commandContext(), key)
		if err != nil {
			failWith(err)
		}
		if jsonOutput {
			outputJSON(issue)
			return
		}
		fmt.Print(renderIssue(issue, tracker.BrowseURL(issue.Key)))
	},
}

// issueKeyArg accepts a key or a browse link on the configured instance.
func issueKeyArg(arg, baseURL string) (string, error) {
	arg = strings.TrimSpace(arg)
	if !strings.Contains(arg, "/browse/") {
		if arg == "" {
			return "", fmt.Errorf("issue key is required")
		}
		return strings.ToUpper(arg), nil
	}
	if !jira.IsBrowseURL(arg, baseURL) {
		return "", fmt.Errorf("%q is not an issue link on this Jira instance", arg)
	}
	return jira.ExtractKey(arg), nil
}

func renderIssue(issue *jira.Issue, url string) string {
	f := issue.Fields
	fields := []ui.Field{
		{Label: "Key", Value: ui.RenderAccent(issue.Key)},
		{Label: "Summary", Value: f.Summary},
	}
	if f.IssueType != nil {
		fields = append(fields, ui.Field{Label: "Type", Value: f.IssueType.Name})
	}
	if f.Status != nil {
		fields = append(fields, ui.Field{Label: "Status", Value: f.Status.Name})
	}
	if f.Project != nil {
		fields = append(fields, ui.Field{Label: "Project", Value: f.Project.Key})
	}
	if f.Assignee != nil {
		fields = append(fields, ui.Field{Label: "Assignee", Value: userLabel(*f.Assignee)})
	}
	if f.Reporter != nil {
		fields = append(fields, ui.Field{Label: "Reporter", Value: userLabel(*f.Reporter)})
	}
	fields = append(fields, ui.Field{Label: "Link", Value: url})

	out := ui.RenderFields(fields, ui.TerminalWidth(80)-16)
	if f.Description != "" {
		out += "\n" + f.Description + "\n"
	}
	return out
}

func userLabel(u jira.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func init() {
	rootCmd.AddCommand(issueCmd)
}
