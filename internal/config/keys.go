package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Key describes a qc configuration key.
type Key struct {
	Key         string // Full key name (e.g., "jira.url")
	Description string // Human-readable description
	EnvVar      string // Extra env var alias besides QC_<KEY> (empty = none)
	Secret      bool   // Value is masked by `qc config list`
	Default     string // Default value (empty = no default)
	Validate    func(string) error
}

// Keys defines every configuration key qc understands.
var Keys = []Key{
	// Spreadsheet
	{
		Key:         "spreadsheet.id",
		Description: "Google spreadsheet id rows are read from",
	},
	{
		Key:         "spreadsheet.url",
		Description: "Spreadsheet URL; used when spreadsheet.id is empty",
		Validate:    validateURL,
	},
	{
		Key:         "writeback.column",
		Description: "Substring (case-insensitive) of the header that receives the issue URL",
		Default:     "jira",
	},
	// Jira
	{
		Key:         "jira.url",
		Description: "Jira server base URL (browse links are <url>/browse/<key>)",
		EnvVar:      "JIRA_URL",
		Validate:    validateURL,
	},
	{
		Key:         "jira.username",
		Description: "Jira username for basic auth",
		EnvVar:      "JIRA_USERNAME",
	},
	{
		Key:         "jira.password",
		Description: "Jira password or API token for basic auth",
		EnvVar:      "JIRA_API_TOKEN",
		Secret:      true,
	},
	{
		Key:         "jira.epic_link_field",
		Description: "Custom field id holding the epic link",
		Default:     "customfield_10101",
		Validate:    validateCustomField,
	},
	// Google OAuth
	{
		Key:         "google.credentials_file",
		Description: "Path to the OAuth client credentials.json",
	},
	{
		Key:         "google.token_store",
		Description: "Path to the TOML file holding stored OAuth tokens",
	},
	// HTTP
	{
		Key:         "http.timeout",
		Description: "Timeout for each Jira/Sheets HTTP request",
		Default:     "30s",
		Validate:    validateDuration,
	},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the Key definition, or nil if key is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value is acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(KeyNames(), ", "))
	}
	if k.Validate != nil && value != "" {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// KeyNames returns all known key names, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(Keys))
	for _, k := range Keys {
		names = append(names, k.Key)
	}
	sort.Strings(names)
	return names
}

// Validation helpers

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", value)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", value)
	}
	return nil
}

func validateCustomField(value string) error {
	rest, ok := strings.CutPrefix(value, "customfield_")
	if !ok {
		return fmt.Errorf("must look like customfield_NNNNN, got %q", value)
	}
	if _, err := strconv.Atoi(rest); err != nil {
		return fmt.Errorf("must look like customfield_NNNNN, got %q", value)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration (e.g. 30s), got %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}
