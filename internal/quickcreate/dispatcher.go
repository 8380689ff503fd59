package quickcreate

import (
	"context"
	"fmt"
	rtdebug "runtime/debug"

	"github.com/qcdesk/qc/internal/debug"
	"github.com/qcdesk/qc/internal/jira"
)

// Command names accepted by Dispatcher.Handle.
const (
	CmdConnect             = "connect"
	CmdLogout              = "logout"
	CmdListSheets          = "listSheets"
	CmdFetchRow            = "fetchRow"
	CmdLoadTrackerMetadata = "loadTrackerMetadata"
	CmdGetProjectDetails   = "getProjectDetails"
	CmdCreateIssue         = "createIssue"
)

// Command is one frontend request. Issue fields (projectKey, issueType,
// summary, ...) sit at the top level next to the command name.
type Command struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"command"`
	SheetName string `json:"sheetName,omitempty"`
	RowNumber int    `json:"rowNumber,omitempty"`
	jira.IssueDraft
}

// Response answers a Command. Exactly one of Data and Error is meaningful,
// selected by OK.
type Response struct {
	ID      string      `json:"id,omitempty"`
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Dispatcher maps frontend commands onto a Session.
type Dispatcher struct {
	session *Session
}

// NewDispatcher returns a dispatcher bound to session.
func NewDispatcher(session *Session) *Dispatcher {
	return &Dispatcher{session: session}
}

// Handle runs cmd and converts every failure, including panics, into a
// failed Response.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) (resp Response) {
	resp = Response{ID: cmd.ID, Command: cmd.Name}
	defer func() {
		if r := recover(); r != nil {
			resp.OK = false
			resp.Data = nil
			resp.Error = fmt.Sprintf("internal error: %v", r)
			debug.Logf("quickcreate: panic in %s: %v\n%s", cmd.Name, r, rtdebug.Stack())
		}
	}()

	data, err := d.dispatch(ctx, cmd)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Data = data
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	s := d.session
	switch cmd.Name {
	case CmdConnect:
		return s.Connect(ctx)
	case CmdLogout:
		if err := s.Logout(ctx); err != nil {
			return nil, err
		}
		return map[string]bool{"connected": false}, nil
	case CmdListSheets:
		names, err := s.ListSheets(ctx)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"sheetNames": names}, nil
	case CmdFetchRow:
		return s.FetchRow(ctx, cmd.SheetName, cmd.RowNumber)
	case CmdLoadTrackerMetadata:
		return s.LoadTrackerMetadata(ctx)
	case CmdGetProjectDetails:
		return s.GetProjectDetails(ctx, cmd.ProjectKey)
	case CmdCreateIssue:
		return s.SubmitIssue(ctx, cmd.IssueDraft)
	case "":
		return nil, fmt.Errorf("missing command")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Name)
	}
}
