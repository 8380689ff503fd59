package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qcdesk/qc/internal/config"
	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/quickcreate"
)

// maxCommandLine bounds a single JSON command line.
const maxCommandLine = 1 << 20

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: GroupSetup,
	Short:   "Run the JSON-lines command bridge on stdin/stdout",
	Long: `Serve reads one JSON command per line from stdin and writes one JSON
response per line to stdout. Commands run concurrently; match responses to
requests by "id" (assigned when omitted).

Commands: connect, logout, listSheets, fetchRow, loadTrackerMetadata,
getProjectDetails, createIssue.

  {"id":"1","command":"fetchRow","sheetName":"Sheet1","rowNumber":2}
  {"id":"1","command":"fetchRow","ok":true,"data":{...}}

Changes to the config file are picked up for the Jira connection.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// stdout carries only protocol lines from here on
		restore := debug.SetOutput(os.Stderr, os.Stderr)
		defer restore()

		session, _ := newSession()
		config.WatchConfig(func(name string) {
			debug.Logf("serve: %s changed, reconnecting Jira client\n", name)
			session.SetTracker(newTracker())
		})

		if err := serveLines(commandContext(), os.Stdin, os.Stdout, quickcreate.NewDispatcher(session)); err != nil {
			FatalError("serve: %v", err)
		}
	},
}

// serveLines runs the bridge until in is exhausted or ctx is cancelled, then
// waits for in-flight commands. Responses are written whole, one per line.
func serveLines(ctx context.Context, in io.Reader, out io.Writer, d *quickcreate.Dispatcher) error {
	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)
	enc := json.NewEncoder(out)
	write := func(resp quickcreate.Response) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := enc.Encode(resp); err != nil {
			debug.Logf("serve: write response %s: %v\n", resp.ID, err)
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCommandLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd quickcreate.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			write(quickcreate.Response{Error: fmt.Sprintf("invalid command: %v", err)})
			continue
		}
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}

		wg.Add(1)
		go func(cmd quickcreate.Command) {
			defer wg.Done()
			write(d.Handle(ctx, cmd))
		}(cmd)
	}
	wg.Wait()
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
