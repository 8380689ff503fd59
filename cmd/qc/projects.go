package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/quickcreate"
	"github.com/qcdesk/qc/internal/ui"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: GroupIssues,
	Short:   "Check the Jira connection and list projects",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		meta, err := trackerSession().LoadTrackerMetadata(commandContext())
		if err != nil {
			failWith(err)
		}
		if jsonOutput {
			outputJSON(meta)
			return
		}
		if !meta.Connected {
			FatalErrorWithHint(fmt.Sprintf("cannot reach Jira at %q", config.Jira().URL),
				"Check jira.url, jira.username and jira.password with 'qc config list'")
		}
		for _, p := range meta.Projects {
			fmt.Printf("  %s  %s\n", ui.RenderAccent(p.Key), p.Name)
		}
	},
}

var projectCmd = &cobra.Command{
	Use:     "project <KEY>",
	GroupID: GroupIssues,
	Short:   "Show issue types, sprints, epics and assignable users of a project",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		details, err := trackerSession().GetProjectDetails(commandContext(), strings.ToUpper(args[0]))
		if err != nil {
			failWith(err)
		}
		if jsonOutput {
			outputJSON(details)
			return
		}
		for _, w := range details.Warnings {
			WarnError("%s", w)
		}
		fmt.Print(renderProjectDetails(details))
	},
}

// trackerSession builds a Session for Jira-only commands; no spreadsheet is
// needed, so a missing spreadsheet config is not an error here.
func trackerSession() *quickcreate.Session {
	return quickcreate.NewSession(newProvider(), spreadsheetFactory(""), newTracker())
}

func renderProjectDetails(d *quickcreate.ProjectDetails) string {
	var b strings.Builder
	section := func(title string, lines []string) {
		b.WriteString(ui.RenderAccent(title))
		b.WriteByte('\n')
		if len(lines) == 0 {
			b.WriteString("  " + ui.RenderMuted("(none)") + "\n")
		}
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}

	var types []string
	for _, t := range d.IssueTypes {
		if !t.Subtask {
			types = append(types, t.Name)
		}
	}
	section("Issue types", types)

	var sprints []string
	for _, s := range d.Sprints {
		sprints = append(sprints, fmt.Sprintf("%s %s", s.Name, ui.RenderMuted("("+s.State+", id "+strconv.Itoa(s.ID)+")")))
	}
	section("Sprints", sprints)

	var epics []string
	for _, e := range d.Epics {
		epics = append(epics, fmt.Sprintf("%s  %s", e.Key, e.Summary))
	}
	section("Epics", epics)

	section("Assignable users", userLines(d.Users))
	return b.String()
}

func userLines(users []jira.User) []string {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		if u.DisplayName != "" && u.DisplayName != u.Name {
			lines = append(lines, fmt.Sprintf("%s %s", u.Name, ui.RenderMuted("("+u.DisplayName+")")))
			continue
		}
		lines = append(lines, u.Name)
	}
	return lines
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(projectCmd)
}
