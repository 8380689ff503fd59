package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    bool
	}{
		{"env set", true, false, true},
		{"verbose flag", false, true, true},
		{"both off", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled, oldVerbose := enabled, verboseMode
			defer func() { enabled, verboseMode = oldEnabled, oldVerbose }()

			enabled = tt.env
			verboseMode = tt.verbose

			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	oldEnabled := enabled
	defer func() { enabled = oldEnabled }()

	var diag, normal bytes.Buffer
	restore := SetOutput(&diag, &normal)
	defer restore()

	enabled = false
	Logf("hidden %s\n", "line")
	if diag.Len() != 0 {
		t.Errorf("Logf wrote %q while disabled", diag.String())
	}

	enabled = true
	Logf("fetch row %s:%d\n", "Sheet1", 2)
	got := diag.String()
	if !strings.HasPrefix(got, "[qc ") || !strings.HasSuffix(got, "fetch row Sheet1:2\n") {
		t.Errorf("Logf output = %q", got)
	}
	if normal.Len() != 0 {
		t.Errorf("Logf leaked to normal output: %q", normal.String())
	}
}

func TestPrintNormalQuiet(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	var diag, normal bytes.Buffer
	restore := SetOutput(&diag, &normal)
	defer restore()

	SetQuiet(true)
	PrintNormal("suppressed\n")
	PrintlnNormal("also suppressed")
	if normal.Len() != 0 {
		t.Errorf("quiet mode printed %q", normal.String())
	}

	SetQuiet(false)
	PrintNormal("shown %d\n", 1)
	PrintlnNormal("shown", 2)
	if got, want := normal.String(), "shown 1\nshown 2\n"; got != want {
		t.Errorf("normal output = %q, want %q", got, want)
	}
	if IsQuiet() {
		t.Errorf("IsQuiet() should be false after SetQuiet(false)")
	}
}
