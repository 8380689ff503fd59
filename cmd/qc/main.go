package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/telemetry"
)

const (
	GroupSession = "session"
	GroupIssues  = "issues"
	GroupSetup   = "setup"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	configPath  string

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSession, Title: "Google Session:"},
		&cobra.Group{ID: GroupIssues, Title: "Rows & Issues:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./.qc/config.yaml, then the user config dir)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "qc",
	Short: "qc - create Jira issues from spreadsheet rows",
	Long: `qc reads one row of a Google spreadsheet, picks out the issue record and
program code columns, creates a Jira issue from them and writes the issue
link back into the row's jira column.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("qc version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()
		if configPath != "" {
			if err := config.InitializeWithPath(configPath); err != nil {
				FatalErrorWithHint(err.Error(), "check the file passed to --config")
			}
		}
		if err := telemetry.Init(rootCtx, "qc", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// commandContext returns the signal context, or Background when a command
// runs without the root pre-run (tests).
func commandContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
