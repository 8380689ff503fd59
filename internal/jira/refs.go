package jira

import (
	"strings"
)

// BrowseURL builds the browser URL of an issue: <base>/browse/<key>.
func BrowseURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/browse/" + key
}

// IsBrowseURL checks if a cell value is an issue link on the given Jira
// instance. It validates both the URL structure (/browse/PROJECT-123) and,
// when baseURL is non-empty, the host prefix.
func IsBrowseURL(value, baseURL string) bool {
	if ExtractKey(value) == "" {
		return false
	}
	if baseURL != "" {
		baseURL = strings.TrimSuffix(baseURL, "/")
		if !strings.HasPrefix(value, baseURL+"/browse/") {
			return false
		}
	}
	return true
}

// ExtractKey extracts the issue key from a browse URL.
// For example, "http://jira.local/browse/ERP-42" returns "ERP-42".
func ExtractKey(browseURL string) string {
	idx := strings.LastIndex(browseURL, "/browse/")
	if idx == -1 {
		return ""
	}
	key := strings.TrimSpace(browseURL[idx+len("/browse/"):])
	if i := strings.IndexAny(key, "?#/"); i >= 0 {
		key = key[:i]
	}
	return key
}
