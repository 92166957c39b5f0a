package session

import "fmt"

// Kind enumerates the event variants.
type Kind int

const (
	// Progress carries a human-readable status message for the active job.
	Progress Kind = iota
	// Complete reports that the backend finished the job.
	Complete
	// Failure reports a server-side processing error.
	Failure
	// Submitted records an accepted upload and starts processing.
	Submitted
	// Rejected records a local validation or upload error; no job is created.
	Rejected
	// ClearError removes a displayed error once its display time has elapsed.
	ClearError
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Complete:
		return "complete"
	case Failure:
		return "failure"
	case Submitted:
		return "submitted"
	case Rejected:
		return "rejected"
	case ClearError:
		return "clear_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source names where an event came from. Informational only.
type Source string

const (
	FromChannel Source = "channel"
	FromPoller  Source = "poller"
	FromClient  Source = "client"
	FromTimer   Source = "timer"
)

// DefaultFailure is shown when the backend reports an error without a reason.
const DefaultFailure = "Processing failed. Please try again."

// Event is a status event (tagged variant over [Kind]).
//
// Field use per kind:
//   - Progress: JobID (optional), Message
//   - Complete: JobID
//   - Failure: JobID (optional), Message (reason)
//   - Submitted: JobID, Filename
//   - Rejected: Message (reason)
//   - ClearError: Seq
type Event struct {
	Kind     Kind
	Source   Source
	JobID    string
	Filename string
	Message  string
	Seq      int
}

// Terminal reports whether the event ends the processing phase.
func (e Event) Terminal() bool {
	return e.Kind == Complete || e.Kind == Failure
}

func (e Event) String() string {
	return fmt.Sprintf("%s(job=%q src=%s)", e.Kind, e.JobID, e.Source)
}

// ProgressEvent is the constructor for [Progress]
func ProgressEvent(src Source, jobID, message string) Event {
	return Event{Kind: Progress, Source: src, JobID: jobID, Message: message}
}

// CompleteEvent is the constructor for [Complete]
func CompleteEvent(src Source, jobID string) Event {
	return Event{Kind: Complete, Source: src, JobID: jobID}
}

// FailureEvent is the constructor for [Failure]. An empty reason becomes [DefaultFailure].
func FailureEvent(src Source, jobID, reason string) Event {
	if reason == "" {
		reason = DefaultFailure
	}
	return Event{Kind: Failure, Source: src, JobID: jobID, Message: reason}
}

// SubmittedEvent is the constructor for [Submitted]
func SubmittedEvent(jobID, filename string) Event {
	return Event{Kind: Submitted, Source: FromClient, JobID: jobID, Filename: filename}
}

// RejectedEvent is the constructor for [Rejected]
func RejectedEvent(reason string) Event {
	return Event{Kind: Rejected, Source: FromClient, Message: reason}
}

// ClearErrorEvent is the constructor for [ClearError]
func ClearErrorEvent(seq int) Event {
	return Event{Kind: ClearError, Source: FromTimer, Seq: seq}
}
