// Package debug provides env/flag gated diagnostic output for qc.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("QC_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	outMu  sync.Mutex
	errOut io.Writer = os.Stderr
	stdOut io.Writer = os.Stdout
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects debug (stderr) and normal (stdout) output and returns a
// func restoring the previous writers. qc serve uses it to keep stdout
// reserved for the JSON-lines protocol.
func SetOutput(diag, normal io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevErr, prevOut := errOut, stdOut
	errOut, stdOut = diag, normal
	return func() {
		outMu.Lock()
		defer outMu.Unlock()
		errOut, stdOut = prevErr, prevOut
	}
}

// Logf writes a timestamped diagnostic line when debug output is on.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintf(errOut, "[qc %s] "+format, append([]interface{}{time.Now().Format("15:04:05.000")}, args...)...)
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if quietMode {
		return
	}
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintf(stdOut, format, args...)
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if quietMode {
		return
	}
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(stdOut, args...)
}
