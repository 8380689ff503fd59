package config

import (
	"path/filepath"
	"time"
)

// JiraSettings groups the jira.* keys.
type JiraSettings struct {
	URL           string
	Username      string
	Password      string
	EpicLinkField string
	Timeout       time.Duration
}

// SpreadsheetSettings groups the spreadsheet.* and writeback.* keys.
type SpreadsheetSettings struct {
	ID              string
	URL             string
	WriteBackColumn string
	Timeout         time.Duration
}

// GoogleSettings groups the google.* keys.
type GoogleSettings struct {
	CredentialsFile string
	TokenStore      string
}

// Jira returns the effective Jira settings.
func Jira() JiraSettings {
	return JiraSettings{
		URL:           GetString("jira.url"),
		Username:      GetString("jira.username"),
		Password:      GetString("jira.password"),
		EpicLinkField: GetString("jira.epic_link_field"),
		Timeout:       httpTimeout(),
	}
}

// Spreadsheet returns the effective spreadsheet settings.
func Spreadsheet() SpreadsheetSettings {
	col := GetString("writeback.column")
	if col == "" {
		col = "jira"
	}
	return SpreadsheetSettings{
		ID:              GetString("spreadsheet.id"),
		URL:             GetString("spreadsheet.url"),
		WriteBackColumn: col,
		Timeout:         httpTimeout(),
	}
}

// Google returns the effective OAuth settings. TokenStore defaults to
// tokens.toml next to the config file.
func Google() GoogleSettings {
	store := GetString("google.token_store")
	if store == "" {
		store = filepath.Join(ConfigDir(), "tokens.toml")
	}
	return GoogleSettings{
		CredentialsFile: GetString("google.credentials_file"),
		TokenStore:      store,
	}
}

// CredentialSearchPaths lists where credentials.json is looked for, in order:
// the explicit google.credentials_file, the config dir, then the working dir.
func CredentialSearchPaths() []string {
	var paths []string
	if explicit := GetString("google.credentials_file"); explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths,
		filepath.Join(ConfigDir(), "credentials.json"),
		"credentials.json",
	)
	return paths
}

func httpTimeout() time.Duration {
	if d := GetDuration("http.timeout"); d > 0 {
		return d
	}
	return 30 * time.Second
}
