package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Manage configuration settings",
	Long: `Manage qc configuration. Values live in config.yaml (./.qc/config.yaml or
the user config dir) and can be overridden with QC_* environment variables,
e.g. QC_JIRA_URL for jira.url.

Examples:
  qc config set spreadsheet.url "https://docs.google.com/spreadsheets/d/<id>/edit#gid=0"
  qc config set jira.url "https://jira.example.com"
  qc config set jira.username alice
  qc config get jira.url
  qc config list`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		key, value := args[0], args[1]
		path := config.WritableConfigPath()
		if err := config.SetYamlConfig(path, key, value); err != nil {
			FatalErrorWithHint(err.Error(), "Run 'qc config list' to see the valid keys")
		}
		if jsonOutput {
			outputJSON(map[string]string{
				"key":   key,
				"value": displayValue(key, value),
				"file":  path,
			})
			return
		}
		fmt.Printf("Set %s = %s %s\n", key, displayValue(key, value), ui.RenderMuted("("+path+")"))
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		key := args[0]
		if config.LookupKey(key) == nil {
			FatalErrorWithHint(fmt.Sprintf("unknown config key %q", key), "Run 'qc config list' to see the valid keys")
		}
		value := config.GetString(key)
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		if value == "" {
			fmt.Printf("%s %s\n", key, ui.RenderMuted("(not set)"))
			return
		}
		fmt.Println(value)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration keys and their effective values",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		settings := config.AllSettings()
		if jsonOutput {
			masked := make(map[string]string, len(settings))
			for k, v := range settings {
				masked[k] = displayValue(k, v)
			}
			outputJSON(masked)
			return
		}

		fields := make([]ui.Field, 0, len(settings))
		for _, key := range config.KeyNames() {
			value := displayValue(key, settings[key])
			if value == "" {
				value = ui.RenderMuted("(not set)")
			}
			fields = append(fields, ui.Field{Label: key, Value: value})
		}
		fmt.Print(ui.RenderFields(fields, 0))
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Println(ui.RenderMuted("\nLoaded from " + used))
		}
	},
}

// displayValue masks secret keys.
func displayValue(key, value string) string {
	if k := config.LookupKey(key); k != nil && k.Secret && value != "" {
		return "********"
	}
	return value
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
