package sheets

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// NotFoundValue is reported for a distinguished field whose column does not
// exist in the header row.
const NotFoundValue = "(找不到此欄位)"

var (
	// IssueRecordSynonyms locate the issue-record column.
	IssueRecordSynonyms = []string{"議題紀錄", "議題記錄", "議題"}
	// ProgramCodeSynonyms locate the program-code column.
	ProgramCodeSynonyms = []string{"程式代號", "程式碼", "程式"}
)

// ResolveColumn returns the lowest index whose header contains any of the
// synonyms (case-sensitive substring), or -1.
func ResolveColumn(headers []string, synonyms ...string) int {
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, s := range synonyms {
			if s != "" && strings.Contains(h, s) {
				return i
			}
		}
	}
	return -1
}

// ResolveColumnFold is ResolveColumn with both sides lowercased. Used to
// find the write-back column ("Jira單號" matches "jira").
func ResolveColumnFold(headers []string, synonym string) int {
	synonym = strings.ToLower(synonym)
	if synonym == "" {
		return -1
	}
	for i, h := range headers {
		if h != "" && strings.Contains(strings.ToLower(h), synonym) {
			return i
		}
	}
	return -1
}

// ColumnLetter converts a 0-based column index to its A1 letters using
// bijective base-26: 0 -> A, 25 -> Z, 26 -> AA, 701 -> ZZ, 702 -> AAA.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index; n >= 0; n = n/26 - 1 {
		b = append([]byte{byte('A' + n%26)}, b...)
	}
	return string(b)
}

// quoteSheet wraps a sheet title for A1 notation, doubling embedded quotes.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// RowRange is the A1 range of an entire row: 'Sheet'!N:N.
func RowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!%d:%d", quoteSheet(sheet), row, row)
}

// CellRange is the A1 range of a single cell: 'Sheet'!D2.
func CellRange(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), ColumnLetter(col), row)
}

var (
	sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	gidPattern     = regexp.MustCompile(`gid=(\d+)`)
)

// ParseSheetURL extracts the spreadsheet id and, when present, the tab gid
// from a docs.google.com spreadsheet URL. The gid may sit in the query or
// the fragment.
func ParseSheetURL(raw string) (spreadsheetID, gid string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("invalid spreadsheet URL: %w", err)
	}
	m := sheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", fmt.Errorf("invalid spreadsheet URL %q: no /spreadsheets/d/<id> segment", raw)
	}
	spreadsheetID = m[1]
	if g := u.Query().Get("gid"); g != "" {
		gid = g
	} else if gm := gidPattern.FindStringSubmatch(u.Fragment); gm != nil {
		gid = gm[1]
	}
	return spreadsheetID, gid, nil
}
