package session

// View selects which screen is rendered.
type View int

const (
	Upload View = iota
	Processing
	Results
)

func (v View) String() string {
	switch v {
	case Upload:
		return "upload"
	case Processing:
		return "processing"
	case Results:
		return "results"
	default:
		return "unknown"
	}
}

// DefaultStatusMessage is displayed until the backend sends its own progress text.
const DefaultStatusMessage = "Separating audio tracks..."

// State is the job session.
//
// ErrorSeq increases every time an error is displayed so that a delayed [ClearError] only removes the error it was
// armed for.
type State struct {
	View          View
	JobID         string
	Filename      string
	StatusMessage string
	Error         string
	ErrorSeq      int
}

// Default returns the state of a fresh session.
func Default() State {
	return State{View: Upload, StatusMessage: DefaultStatusMessage}
}

// HasError reports whether an error is currently displayed.
func (s State) HasError() bool {
	return s.Error != ""
}

// Polling reports whether the polling fallback should be active for this state.
func (s State) Polling() bool {
	return s.View == Processing && s.JobID != ""
}

// Reduce applies ev to s and returns the new state. It is pure and safe to call with events from any source.
func Reduce(s State, ev Event) State {
	switch ev.Kind {
	case Progress:
		if !s.owns(ev) || ev.Message == "" {
			return s
		}
		s.StatusMessage = ev.Message

	case Complete:
		if !s.owns(ev) {
			return s
		}
		if ev.JobID != "" {
			s.JobID = ev.JobID
		}
		s.View = Results

	case Failure:
		if !s.owns(ev) {
			return s
		}
		s.View = Upload
		s = s.withError(ev.Message)

	case Submitted:
		if ev.JobID == "" || s.View == Processing {
			return s
		}
		s.View = Processing
		s.JobID = ev.JobID
		s.Filename = ev.Filename
		s.StatusMessage = DefaultStatusMessage
		s.Error = ""

	case Rejected:
		if s.View == Processing || ev.Message == "" {
			return s
		}
		s = s.withError(ev.Message)

	case ClearError:
		if ev.Seq == s.ErrorSeq {
			s.Error = ""
		}
	}

	return s
}

// owns reports whether a source event belongs to the job currently being processed.
//
// Events for another job are stale and dropped; events without a job id are attributed to the active job.
func (s State) owns(ev Event) bool {
	if s.View != Processing {
		return false
	}
	return ev.JobID == "" || ev.JobID == s.JobID
}

func (s State) withError(msg string) State {
	s.Error = msg
	s.ErrorSeq++
	return s
}
