package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{3, "D"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{-1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.index), "ColumnLetter(%d)", tt.index)
	}
}

func TestColumnLetterBijective(t *testing.T) {
	seen := make(map[string]int, 20000)
	for i := 0; i < 20000; i++ {
		l := ColumnLetter(i)
		if prev, dup := seen[l]; dup {
			t.Fatalf("ColumnLetter(%d) = ColumnLetter(%d) = %q", i, prev, l)
		}
		seen[l] = i

		// decode back
		n := 0
		for _, c := range l {
			n = n*26 + int(c-'A'+1)
		}
		require.Equal(t, i, n-1, "round trip of %q", l)
	}
}

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		synonyms []string
		want     int
	}{
		{"exact", []string{"列", "議題紀錄", "程式代號"}, IssueRecordSynonyms, 1},
		{"variant spelling", []string{"議題記錄(說明)", "程式"}, IssueRecordSynonyms, 0},
		{"bare synonym", []string{"編號", "議題"}, IssueRecordSynonyms, 1},
		{"first column wins", []string{"程式", "程式代號"}, ProgramCodeSynonyms, 0},
		{"lowest index across synonyms", []string{"x", "程式碼", "程式代號"}, ProgramCodeSynonyms, 1},
		{"empty header skipped", []string{"", "程式代號"}, ProgramCodeSynonyms, 1},
		{"not found", []string{"A", "B"}, ProgramCodeSynonyms, -1},
		{"case sensitive", []string{"JIRA"}, []string{"jira"}, -1},
		{"no headers", nil, []string{"jira"}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveColumn(tt.headers, tt.synonyms...))
		})
	}
}

func TestResolveColumnFold(t *testing.T) {
	headers := []string{"列", "議題紀錄", "程式代號", "Jira單號", "jira備註"}
	assert.Equal(t, 3, ResolveColumnFold(headers, "jira"))
	assert.Equal(t, 3, ResolveColumnFold(headers, "JIRA"))
	assert.Equal(t, -1, ResolveColumnFold(headers, "redmine"))
	assert.Equal(t, -1, ResolveColumnFold(headers, ""))
}

func TestRanges(t *testing.T) {
	assert.Equal(t, "'Sheet1'!2:2", RowRange("Sheet1", 2))
	assert.Equal(t, "'Sheet1'!D2", CellRange("Sheet1", 3, 2))
	assert.Equal(t, "'Bob''s tab'!AA10", CellRange("Bob's tab", 26, 10))
}

func TestParseSheetURL(t *testing.T) {
	tests := []struct {
		url     string
		id      string
		gid     string
		wantErr bool
	}{
		{"https://docs.google.com/spreadsheets/d/1k2mEDCg-zIDp_Eef/edit?gid=123456#gid=123456", "1k2mEDCg-zIDp_Eef", "123456", false},
		{"https://docs.google.com/spreadsheets/d/abc123/edit#gid=0", "abc123", "0", false},
		{"https://docs.google.com/spreadsheets/d/abc123", "abc123", "", false},
		{"https://example.com/not-a-sheet", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		id, gid, err := ParseSheetURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.id, id)
		assert.Equal(t, tt.gid, gid)
	}
}
