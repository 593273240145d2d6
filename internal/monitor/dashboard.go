// Package monitor renders the events of a job session in a terminal.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	tickInterval    = time.Second
)

// Resetter returns a terminal session to idle.
type Resetter interface {
	Reset()
}

// Model is the bubbletea model of one session. Feed it session events with
// Program.Send(EventMsg(ev)).
type Model struct {
	session Resetter
	now     func() time.Time

	state    jobclient.State
	file     string
	invalid  error
	view     jobclient.ProgressView
	summary  *jobclient.Summary
	err      error
	failure  error
	history  []float64
	started  time.Time
	finished time.Time

	bar      progress.Model
	quitting bool
}

// EventMsg carries a session event into the program.
type EventMsg jobclient.Event

type tickMsg time.Time

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// Under target
	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	// Over target
	overStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	errorBoxStyle = containerStyle.
			BorderForeground(lipgloss.Color("196"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Underline(true)
)

// NewModel creates a model for session. session may be nil when failures
// need no acknowledgement.
func NewModel(session Resetter) Model {
	return Model{
		session: session,
		now:     time.Now,
		bar: progress.New(
			progress.WithGradient("#00ff00", "#00ffff"),
			progress.WithWidth(40),
		),
	}
}

// State returns the last state reported by the session.
func (m Model) State() jobclient.State {
	return m.state
}

// Summary returns the summary of a completed job, or nil.
func (m Model) Summary() *jobclient.Summary {
	return m.summary
}

// Failure returns the most recent terminal error, including one the user
// has already acknowledged.
func (m Model) Failure() error {
	return m.failure
}

// Init starts the elapsed-time ticker.
func (m Model) Init() tea.Cmd {
	return tick(tickInterval)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// resetSession runs Reset off the event loop; Reset publishes an event that
// is delivered back through Program.Send.
func resetSession(s Resetter) tea.Cmd {
	return func() tea.Msg {
		s.Reset()
		return nil
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tick(tickInterval)

	case EventMsg:
		m.apply(jobclient.Event(msg))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case jobclient.StateFailed:
		// any key acknowledges the failure
		m.quitting = true
		if m.session != nil {
			return m, tea.Sequence(resetSession(m.session), tea.Quit)
		}
		return m, tea.Quit
	case jobclient.StateCompleted:
		m.quitting = true
		return m, tea.Quit
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(ev jobclient.Event) {
	switch ev.Kind {
	case jobclient.EventFileSelected:
		m.file = ev.File
		m.invalid = nil

	case jobclient.EventInvalid:
		m.invalid = ev.Err

	case jobclient.EventStateChanged:
		m.state = ev.State
		if ev.State == jobclient.StateSubmitting {
			m.invalid = nil
			m.started = m.now()
			m.finished = time.Time{}
		}

	case jobclient.EventProgress:
		m.state = ev.State
		m.view = ev.Progress
		m.history = appendToHistory(m.history, float64(ev.Progress.WordsCovered))

	case jobclient.EventCompleted:
		m.state = jobclient.StateCompleted
		m.summary = ev.Summary
		if ev.Progress != (jobclient.ProgressView{}) {
			m.view = ev.Progress
		}
		m.finished = m.now()

	case jobclient.EventFailed:
		m.state = jobclient.StateFailed
		m.err = ev.Err
		m.failure = ev.Err
		m.finished = m.now()

	case jobclient.EventReset:
		m.state = jobclient.StateIdle
		m.file = ""
		m.invalid = nil
		m.view = jobclient.ProgressView{}
		m.summary = nil
		m.err = nil
		m.history = nil
		m.started = time.Time{}
		m.finished = time.Time{}
	}
}

// appendToHistory adds a value to a ring buffer, keeping only the last historySize values
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

func (m Model) elapsed() time.Duration {
	if m.started.IsZero() {
		return 0
	}
	end := m.finished
	if end.IsZero() {
		end = m.now()
	}
	return end.Sub(m.started)
}

// View renders the session
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.state == jobclient.StateFailed && m.err != nil {
		return m.renderError()
	}
	return m.renderSession()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" vocabopt ") + "\n\n")
	b.WriteString(errorStyle.Render("✗ Optimization failed") + "\n\n")
	if m.file != "" {
		b.WriteString(dimStyle.Render("File: ") + valueStyle.Render(m.file) + "\n")
	}
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n")
	b.WriteString(footerStyle.Render("press any key to continue"))
	return errorBoxStyle.Render(b.String())
}

func (m Model) renderSession() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(" vocabopt ") + "   " + m.stateBadge())
	if !m.started.IsZero() {
		b.WriteString("   " + dimStyle.Render("Elapsed: ") + valueStyle.Render(FormatElapsed(m.elapsed())))
	}
	b.WriteString("\n")

	if m.file != "" {
		b.WriteString(labelStyle.Render("File: ") + valueStyle.Render(m.file) + "\n")
	}
	if m.invalid != nil {
		b.WriteString(warningStyle.Render("⚠ "+m.invalid.Error()) + "\n")
	}

	if m.state != jobclient.StateIdle {
		b.WriteString(m.renderProgress())
	}
	if m.summary != nil {
		b.WriteString(m.renderSummary(*m.summary))
	}

	b.WriteString("\n" + m.renderFooter())
	return containerStyle.Render(b.String())
}

func (m Model) stateBadge() string {
	switch m.state {
	case jobclient.StateCompleted:
		return healthyStyle.Render("● completed")
	case jobclient.StateFailed:
		return errorStyle.Render("● failed")
	case jobclient.StateSubmitting, jobclient.StatePolling:
		return warningStyle.Render("● " + m.state.String())
	default:
		return dimStyle.Render("● idle")
	}
}

func (m Model) renderProgress() string {
	var b strings.Builder
	b.WriteString("\n" + sectionStyle.Render("┃ Progress") + "\n")

	b.WriteString(labelStyle.Render("  Stage: ") + valueStyle.Render(stageOrDash(m.view.Stage)) + "\n")
	b.WriteString("  " + m.bar.ViewAs(float64(m.view.Percent)/100) +
		" " + dimStyle.Render(FormatPercent(m.view.Percent)) + "\n")

	b.WriteString(labelStyle.Render("  Words: ") +
		valueStyle.Render(fmt.Sprintf("%d / %d", m.view.WordsCovered, m.view.TotalWords)) +
		labelStyle.Render("   Sentences: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.view.SentencesSelected)) + "\n")

	if a := FormatAnalyzing(m.view); a != "" {
		b.WriteString("  " + dimStyle.Render(a) + "\n")
	}

	b.WriteString(labelStyle.Render("  Coverage: ") + createSparkline(m.history) + "\n")
	return b.String()
}

func (m Model) renderSummary(s jobclient.Summary) string {
	var b strings.Builder
	b.WriteString("\n" + sectionStyle.Render("┃ Results") + "\n")

	target := healthyStyle
	if !s.UnderTarget() {
		target = overStyle
	}
	b.WriteString(labelStyle.Render("  Sentences: ") + target.Render(FormatSentences(s)) + "\n")
	b.WriteString(labelStyle.Render("  Coverage: ") + valueStyle.Render(s.CoverageLine) + "\n")
	b.WriteString(labelStyle.Render("  Algorithm: ") + valueStyle.Render(s.AlgorithmLabel) + "\n")

	if s.HasMissingWords() {
		b.WriteString("  " + warningStyle.Render("⚠ "+s.MissingWarning) + "\n")
	}
	if s.SheetURL != "" {
		b.WriteString(labelStyle.Render("  Sheet: ") + linkStyle.Render(s.SheetURL) + "\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	if m.state == jobclient.StateCompleted {
		return footerStyle.Render("press any key to exit")
	}
	return footerKeyStyle.Render("[q]") + footerStyle.Render(" quit")
}
