package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/jira"
	"github.com/qcdesk/qc/internal/quickcreate"
	"github.com/qcdesk/qc/internal/ui"
)

var createCmd = &cobra.Command{
	Use:     "create",
	GroupID: GroupIssues,
	Short:   "Create a Jira issue, optionally from a spreadsheet row",
	Long: `Create a Jira issue. With --row the row is read first: the summary
defaults to <program code>DG_<issue record> and the new issue URL is written
back into the row's jira column. The URL is also copied to the clipboard.

Write-back and clipboard failures are reported as warnings; the issue is
still created.

Examples:
  qc create --row 12 --project ERP --type Task
  qc create --sheet Sheet1 --row 12 --form
  qc create --project ERP --type Bug --summary "Login fails" --dry-run`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runCreate(cmd)
	},
}

func runCreate(cmd *cobra.Command) {
	ctx := commandContext()
	flags := cmd.Flags()
	sheetName, _ := flags.GetString("sheet")
	rowNumber, _ := flags.GetInt("row")
	useForm, _ := flags.GetBool("form")
	dryRun, _ := flags.GetBool("dry-run")

	draft := jira.IssueDraft{}
	draft.ProjectKey, _ = flags.GetString("project")
	draft.IssueType, _ = flags.GetString("type")
	draft.Summary, _ = flags.GetString("summary")
	draft.Description, _ = flags.GetString("description")
	draft.Reporter, _ = flags.GetString("reporter")
	draft.Assignee, _ = flags.GetString("assignee")
	draft.EpicKey, _ = flags.GetString("epic")
	draft.SprintID, _ = flags.GetInt("sprint")
	draft.ProjectKey = strings.ToUpper(draft.ProjectKey)

	if sheetName != "" && rowNumber == 0 {
		FatalErrorWithHint("--sheet needs --row", "Pass the row number, e.g. --sheet Sheet1 --row 12")
	}

	var (
		session *quickcreate.Session
		row     *quickcreate.RowResult
	)
	if rowNumber != 0 {
		var ref spreadsheetRef
		session, ref = newSession()
		connectSession(ctx, session)
		if sheetName == "" {
			var err error
			if sheetName, err = session.ResolveSheet(ctx, ref.GID); err != nil {
				failWith(err)
			}
		}
		var err error
		if row, err = session.FetchRow(ctx, sheetName, rowNumber); err != nil {
			failWith(err)
		}
		if draft.Summary == "" {
			draft.Summary = row.DefaultSummary
		}
	} else {
		session = trackerSession()
	}

	if useForm {
		if !runCreateForm(ctx, session, &draft, row) {
			fmt.Fprintln(os.Stderr, "Issue creation cancelled.")
			return
		}
	} else if err := draft.Validate(); err != nil {
		FatalErrorWithHint(err.Error(), "Pass --project, --type and --summary (or --row), or use --form")
	}

	if dryRun {
		if jsonOutput {
			outputJSON(draft)
			return
		}
		fmt.Print(ui.RenderMarkdown(draftMarkdown(draft, row)))
		return
	}

	res, err := session.SubmitIssue(ctx, draft)
	if err != nil {
		failWith(err)
	}
	if jsonOutput {
		outputJSON(res)
		return
	}
	printSubmitResult(res, row != nil)
}

func printSubmitResult(res *quickcreate.SubmitResult, fromRow bool) {
	fmt.Printf("%s Created %s: %s\n", ui.RenderPassIcon(), ui.RenderAccent(res.Key), res.URL)
	if res.Copied {
		fmt.Printf("  %s\n", ui.RenderMuted("URL copied to clipboard"))
	} else {
		WarnError("could not copy the URL to the clipboard")
	}
	if res.SprintError != "" {
		WarnError("issue was not added to the sprint: %s", res.SprintError)
	}
	switch {
	case res.WriteBackSucceeded:
		fmt.Printf("  %s\n", ui.RenderMuted(fmt.Sprintf("link written to %s row %d", res.Target.SheetName, res.Target.RowNumber)))
	case fromRow:
		WarnError("link not written back: %s", res.WriteBackError)
	default:
		fmt.Printf("  %s\n", ui.RenderMuted("no row loaded; link not written back"))
	}
}

// runCreateForm fills draft interactively. It returns false when the user
// declines the final confirmation.
func runCreateForm(ctx context.Context, session *quickcreate.Session, draft *jira.IssueDraft, row *quickcreate.RowResult) bool {
	if draft.ProjectKey == "" {
		meta, err := session.LoadTrackerMetadata(ctx)
		if err != nil {
			failWith(err)
		}
		if !meta.Connected {
			FatalErrorWithHint("cannot reach Jira", "Check jira.url, jira.username and jira.password with 'qc config list'")
		}
		options := make([]huh.Option[string], 0, len(meta.Projects))
		for _, p := range meta.Projects {
			options = append(options, huh.NewOption(p.Key+" - "+p.Name, p.Key))
		}
		runForm(huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Project").
				Options(options...).
				Value(&draft.ProjectKey),
		)).WithTheme(huh.ThemeDracula()))
	}

	details, err := session.GetProjectDetails(ctx, draft.ProjectKey)
	if err != nil {
		failWith(err)
	}
	for _, w := range details.Warnings {
		WarnError("%s", w)
	}

	runForm(huh.NewForm(huh.NewGroup(draftFields(draft, details)...)).WithTheme(huh.ThemeDracula()))

	fmt.Print(ui.RenderMarkdown(draftMarkdown(*draft, row)))

	confirmed := true
	runForm(huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Create this issue?").
			Affirmative("Create").
			Negative("Cancel").
			Value(&confirmed),
	)).WithTheme(huh.ThemeDracula()))
	return confirmed
}

// draftFields builds the form fields for a project's issue types, users,
// epics and sprints. Pickers with nothing to pick from are left out.
func draftFields(draft *jira.IssueDraft, details *quickcreate.ProjectDetails) []huh.Field {
	var typeOptions []huh.Option[string]
	for _, t := range details.IssueTypes {
		if !t.Subtask {
			typeOptions = append(typeOptions, huh.NewOption(t.Name, t.Name))
		}
	}
	if draft.IssueType == "" && len(typeOptions) > 0 {
		draft.IssueType = typeOptions[0].Value
	}

	fields := []huh.Field{
		huh.NewSelect[string]().
			Title("Issue type").
			Options(typeOptions...).
			Value(&draft.IssueType),
		huh.NewInput().
			Title("Summary").
			Description("Defaults to <program code>DG_<issue record>").
			Value(&draft.Summary).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("summary is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			CharLimit(32000).
			Value(&draft.Description),
	}

	if len(details.Users) > 0 {
		users := []huh.Option[string]{huh.NewOption("(unassigned)", "")}
		for _, u := range details.Users {
			label := u.Name
			if u.DisplayName != "" {
				label = u.DisplayName + " (" + u.Name + ")"
			}
			users = append(users, huh.NewOption(label, u.Name))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Assignee").
			Options(users...).
			Value(&draft.Assignee))
	}
	fields = append(fields, huh.NewInput().
		Title("Reporter").
		Description("Jira username (optional, defaults to you)").
		Value(&draft.Reporter))

	if len(details.Epics) > 0 {
		epics := []huh.Option[string]{huh.NewOption("(no epic)", "")}
		for _, e := range details.Epics {
			epics = append(epics, huh.NewOption(e.Key+" - "+e.Summary, e.Key))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Epic").
			Options(epics...).
			Value(&draft.EpicKey))
	}
	if len(details.Sprints) > 0 {
		sprints := []huh.Option[int]{huh.NewOption("(backlog)", 0)}
		for _, s := range details.Sprints {
			sprints = append(sprints, huh.NewOption(s.Name+" ("+s.State+")", s.ID))
		}
		fields = append(fields, huh.NewSelect[int]().
			Title("Sprint").
			Options(sprints...).
			Value(&draft.SprintID))
	}
	return fields
}

// runForm runs form and exits cleanly when the user aborts with Ctrl+C.
func runForm(form *huh.Form) {
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			fmt.Fprintln(os.Stderr, "Issue creation cancelled.")
			os.Exit(0)
		}
		FatalError("form error: %v", err)
	}
}

// draftMarkdown renders the issue preview shown before submission.
func draftMarkdown(d jira.IssueDraft, row *quickcreate.RowResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Summary)
	b.WriteString("| Field | Value |\n|---|---|\n")
	add := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", label, strings.ReplaceAll(value, "|", `\|`))
		}
	}
	add("Project", d.ProjectKey)
	add("Type", d.IssueType)
	add("Assignee", d.Assignee)
	add("Reporter", d.Reporter)
	add("Epic", d.EpicKey)
	if d.SprintID > 0 {
		add("Sprint", strconv.Itoa(d.SprintID))
	}
	if row != nil {
		add("Source", fmt.Sprintf("%s row %d", row.SheetName, row.RowNumber))
	}
	if d.Description != "" {
		b.WriteString("\n")
		b.WriteString(d.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func init() {
	createCmd.Flags().String("sheet", "", "Spreadsheet tab (default: the URL's gid tab, else the first tab)")
	createCmd.Flags().Int("row", 0, "Row to read and write the issue link back into")
	createCmd.Flags().StringP("project", "p", "", "Jira project key")
	createCmd.Flags().StringP("type", "t", "", "Issue type name (e.g. Task, Bug)")
	createCmd.Flags().StringP("summary", "s", "", "Summary (default: <program code>DG_<issue record> of the row)")
	createCmd.Flags().StringP("description", "d", "", "Description")
	createCmd.Flags().String("reporter", "", "Reporter username")
	createCmd.Flags().StringP("assignee", "a", "", "Assignee username")
	createCmd.Flags().String("epic", "", "Epic key to link")
	createCmd.Flags().Int("sprint", 0, "Sprint id to add the issue to")
	createCmd.Flags().Bool("form", false, "Fill in the issue with an interactive form")
	createCmd.Flags().Bool("dry-run", false, "Preview the issue without creating it")
	rootCmd.AddCommand(createCmd)
}
