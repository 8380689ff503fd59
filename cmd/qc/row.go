package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/quickcreate"
	"github.com/qcdesk/qc/internal/ui"
)

var rowCmd = &cobra.Command{
	Use:     "row [sheet] <row>",
	GroupID: GroupIssues,
	Short:   "Show the issue fields of a spreadsheet row",
	Long: `Read one row and show the issue record and program code found under the
matching headers. Row 1 is the header row. Without a sheet name the tab
from the spreadsheet URL's gid (or the first tab) is used.

Examples:
  qc row Sheet1 12
  qc row 12`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext()
		session, ref := newSession()
		connectSession(ctx, session)

		sheetName, rowNumber, err := parseRowArgs(ctx, session, ref, args)
		if err != nil {
			failWith(err)
		}
		res, err := session.FetchRow(ctx, sheetName, rowNumber)
		if err != nil {
			failWith(err)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Print(renderRow(res))
	},
}

// parseRowArgs accepts "<row>" or "<sheet> <row>".
func parseRowArgs(ctx context.Context, session *quickcreate.Session, ref spreadsheetRef, args []string) (string, int, error) {
	rowArg := args[len(args)-1]
	rowNumber, err := strconv.Atoi(rowArg)
	if err != nil {
		return "", 0, fmt.Errorf("row must be a number, got %q", rowArg)
	}
	if len(args) == 2 {
		return args[0], rowNumber, nil
	}
	sheetName, err := session.ResolveSheet(ctx, ref.GID)
	if err != nil {
		return "", 0, err
	}
	return sheetName, rowNumber, nil
}

func renderRow(res *quickcreate.RowResult) string {
	fields := []ui.Field{
		{Label: "Sheet", Value: res.SheetName},
		{Label: "Row", Value: strconv.Itoa(res.RowNumber)},
		{Label: "Issue record", Value: res.IssueRecord},
		{Label: "Program code", Value: res.ProgramCode},
		{Label: "Summary", Value: res.DefaultSummary},
	}
	if res.Tracker != nil && !res.Tracker.Connected {
		fields = append(fields, ui.Field{Label: "Jira", Value: ui.RenderWarn("unreachable")})
	}
	return ui.RenderFields(fields, ui.TerminalWidth(80)-16)
}

func init() {
	rootCmd.AddCommand(rowCmd)
}
