package quickcreate

// State is the session lifecycle: Disconnected -> Connected -> RowLoaded.
// Logout returns to Disconnected from anywhere.
type State int

const (
	Disconnected State = iota
	Connected
	RowLoaded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case RowLoaded:
		return "row-loaded"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Target is the row a later write-back goes to.
type Target struct {
	SheetName string `json:"sheetName"`
	RowNumber int    `json:"rowNumber"`
}
