package jira

import (
	"testing"
)

func TestBrowseURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"http://172.20.10.106:5050", "ERP-42", "http://172.20.10.106:5050/browse/ERP-42"},
		{"https://jira.company.com/", "PROJ-1", "https://jira.company.com/browse/PROJ-1"},
	}
	for _, tt := range tests {
		if got := BrowseURL(tt.base, tt.key); got != tt.want {
			t.Errorf("BrowseURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestIsBrowseURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		base  string
		want  bool
	}{
		{"matching server", "https://jira.company.com/browse/PROJ-456", "https://jira.company.com", true},
		{"trailing slash in config", "https://jira.company.com/browse/PROJ-456", "https://jira.company.com/", true},
		{"mismatched host", "https://other.company.com/browse/PROJ-456", "https://jira.company.com", false},
		{"no base configured", "https://any.host/browse/X-1", "", true},
		{"github issue", "https://github.com/org/repo/issues/123", "", false},
		{"empty browse key", "https://jira.company.com/browse/", "https://jira.company.com", false},
		{"empty cell", "", "https://jira.company.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBrowseURL(tt.value, tt.base); got != tt.want {
				t.Errorf("IsBrowseURL(%q, %q) = %v, want %v", tt.value, tt.base, got, tt.want)
			}
		})
	}
}

func TestExtractKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://jira.company.com/browse/PROJ-123", "PROJ-123"},
		{"http://host:5050/browse/ERP-42?focusedCommentId=1", "ERP-42"},
		{"http://host/browse/ERP-7#comments", "ERP-7"},
		{"not-a-url", ""},
	}
	for _, tt := range tests {
		if got := ExtractKey(tt.in); got != tt.want {
			t.Errorf("ExtractKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
