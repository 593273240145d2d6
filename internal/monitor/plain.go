package monitor

import (
	"fmt"
	"io"
	"sync"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
)

// Plain writes one line per session event. Use it when output is not a
// terminal. Handle is safe to pass as a jobclient.Listener.
type Plain struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewPlain returns a Plain writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

// Handle writes the lines for ev. Repeated identical progress lines are
// written once.
func (p *Plain) Handle(ev jobclient.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, line := range Lines(ev) {
		if ev.Kind == jobclient.EventProgress && line == p.last {
			continue
		}
		p.last = line
		fmt.Fprintln(p.w, line)
	}
}

// Lines returns the plain text rendering of ev.
func Lines(ev jobclient.Event) []string {
	switch ev.Kind {
	case jobclient.EventFileSelected:
		return []string{"selected: " + ev.File}
	case jobclient.EventInvalid:
		return []string{"invalid: " + errText(ev.Err)}
	case jobclient.EventStateChanged:
		return []string{"state: " + ev.State.String()}
	case jobclient.EventProgress:
		return []string{FormatProgress(ev.Progress)}
	case jobclient.EventCompleted:
		if ev.Summary == nil {
			return []string{"completed"}
		}
		return FormatSummary(*ev.Summary)
	case jobclient.EventFailed:
		return []string{"failed: " + errText(ev.Err)}
	case jobclient.EventReset:
		return []string{"reset"}
	default:
		return nil
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
