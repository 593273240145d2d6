package jobclient

import v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StatePolling
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s requires Reset before the next job.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// EventKind classifies session events.
type EventKind int

const (
	// EventFileSelected follows a successful SelectFile.
	EventFileSelected EventKind = iota
	// EventInvalid carries a *ValidationError; the session stays idle.
	EventInvalid
	// EventStateChanged follows Submitting and Polling transitions.
	EventStateChanged
	// EventProgress carries an applied snapshot.
	EventProgress
	// EventCompleted carries the Summary.
	EventCompleted
	// EventFailed carries the terminal error.
	EventFailed
	// EventReset follows Reset; progress is zero.
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventFileSelected:
		return "file_selected"
	case EventInvalid:
		return "invalid"
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ProgressView is a snapshot prepared for display.
type ProgressView struct {
	Stage             string
	Percent           int
	WordsCovered      int
	SentencesSelected int
	TotalWords        int
	// Current and Total are both zero unless the service reported them.
	Current int
	Total   int
}

// NewProgressView prepares snap for display. A snapshot without a total
// uses defaultTarget as the word total.
func NewProgressView(snap v1.Progress, defaultTarget int) ProgressView {
	total := snap.Total
	if total <= 0 {
		total = defaultTarget
	}
	return ProgressView{
		Stage:             snap.Stage,
		Percent:           Percent(snap.WordsCovered, snap.Total, defaultTarget),
		WordsCovered:      snap.WordsCovered,
		SentencesSelected: snap.SentencesSelected,
		TotalWords:        total,
		Current:           snap.Current,
		Total:             snap.Total,
	}
}

// Analyzing reports whether a sentence counter is available.
func (p ProgressView) Analyzing() bool {
	return p.Current > 0 && p.Total > 0
}

// Event is published to the session Listener.
type Event struct {
	Kind     EventKind
	State    State
	File     string
	Progress ProgressView
	Summary  *Summary
	Err      error
}

// Listener receives session events. It is called without the session lock
// held, from the goroutine that caused the event, and must not call back
// into the session synchronously.
type Listener func(Event)
