package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/ui"
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	GroupID: GroupSession,
	Short:   "Sign in to Google and list the spreadsheet tabs",
	Long: `Sign in to Google with the OAuth client in credentials.json.

A stored token is reused when still valid and refreshed once when expired.
Otherwise a browser window opens for consent; qc waits up to 30 seconds for
the redirect to http://localhost:3000/oauth2callback.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		session, _ := newSession()
		res := connectSession(commandContext(), session)

		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("%s Connected to Google\n", ui.RenderPassIcon())
		if res.SheetsError != "" {
			WarnError("could not list tabs: %s", res.SheetsError)
			return
		}
		printSheetNames(res.SheetNames)
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: GroupSession,
	Short:   "Forget the stored Google token",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// Signing out needs no spreadsheet, so the provider is used directly.
		if err := newProvider().Logout(); err != nil {
			failWith(err)
		}
		if jsonOutput {
			outputJSON(map[string]bool{"connected": false})
			return
		}
		debug.PrintNormal("%s Signed out of Google\n", ui.RenderPassIcon())
	},
}

var sheetsCmd = &cobra.Command{
	Use:     "sheets",
	GroupID: GroupSession,
	Short:   "List the tabs of the configured spreadsheet",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext()
		session, _ := newSession()
		connectSession(ctx, session)

		names, err := session.ListSheets(ctx)
		if err != nil {
			failWith(err)
		}
		if jsonOutput {
			outputJSON(map[string][]string{"sheetNames": names})
			return
		}
		printSheetNames(names)
	},
}

func printSheetNames(names []string) {
	if len(names) == 0 {
		fmt.Println(ui.RenderMuted("(spreadsheet has no tabs)"))
		return
	}
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(sheetsCmd)
}
