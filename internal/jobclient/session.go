package jobclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/config"
	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// pollInterval is the fixed delay between progress requests.
const pollInterval = 500 * time.Millisecond

// SessionConfig holds the validation rules and display defaults of a session.
type SessionConfig struct {
	AllowedExtensions []string
	WordListPattern   string
	// DefaultTarget is the word total used when a snapshot reports none.
	DefaultTarget int
}

// DefaultSessionConfig returns the stock allow-list and Google Sheets gate.
func DefaultSessionConfig() SessionConfig {
	return SessionConfigFrom(config.Default().Client)
}

// SessionConfigFrom derives a SessionConfig from client configuration.
func SessionConfigFrom(c config.ClientConfig) SessionConfig {
	return SessionConfig{
		AllowedExtensions: append([]string(nil), c.AllowedExtensions...),
		WordListPattern:   c.WordListPattern,
		DefaultTarget:     c.DefaultTargetWords,
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithListener registers the event listener.
func WithListener(l Listener) SessionOption {
	return func(s *Session) { s.listener = l }
}

// Session drives one job at a time through
// Idle -> Submitting -> Polling -> Completed|Failed and back to Idle on Reset.
type Session struct {
	api      API
	cfg      SessionConfig
	logger   *logging.Logger
	listener Listener
	interval time.Duration

	mu       sync.Mutex
	state    State
	file     *SourceFile
	request  JobRequest
	snapshot v1.Progress
	view     ProgressView
	summary  *Summary
	err      error

	// gen increments on every submission and reset; work started under an
	// older generation must not touch session state.
	gen      uint64
	cancel   context.CancelFunc
	pollDone chan struct{}
	finished chan struct{}
}

// NewSession creates an idle session.
func NewSession(api API, cfg SessionConfig, opts ...SessionOption) *Session {
	s := &Session{
		api:      api,
		cfg:      cfg,
		logger:   logging.NewNop(),
		interval: pollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) publish(ev Event) {
	if s.listener != nil {
		s.listener(ev)
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectedFile returns the selected file name, or "" when none is selected.
func (s *Session) SelectedFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name
}

// Snapshot returns the last applied progress snapshot.
func (s *Session) Snapshot() v1.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Progress returns the display view of the last applied snapshot.
func (s *Session) Progress() ProgressView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Summary returns the summary of a completed job, or nil.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Err returns the terminal error of a failed job, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) checkIdle() error {
	switch {
	case s.state == StateSubmitting || s.state == StatePolling:
		return ErrJobInFlight
	case s.state.Terminal():
		return ErrResetRequired
	}
	return nil
}

// SelectFile replaces the selected file. A file with an unaccepted
// extension is rejected and the previous selection is kept.
func (s *Session) SelectFile(f SourceFile) error {
	s.mu.Lock()
	if err := s.checkIdle(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := validateFile(f, s.cfg.AllowedExtensions); err != nil {
		s.mu.Unlock()
		s.publish(Event{Kind: EventInvalid, State: StateIdle, Err: err})
		return err
	}
	s.file = &f
	s.mu.Unlock()

	s.publish(Event{Kind: EventFileSelected, State: StateIdle, File: f.Name})
	return nil
}

// Submit validates p, sends the job and starts polling. Validation failures
// leave the session idle. A rejected submission moves it to Failed.
//
// Polling runs until the job ends, Reset is called or ctx is cancelled.
func (s *Session) Submit(ctx context.Context, p Params) error {
	s.mu.Lock()
	if err := s.checkIdle(); err != nil {
		s.mu.Unlock()
		return err
	}
	req, err := newJobRequest(s.file, p, s.cfg)
	if err != nil {
		s.mu.Unlock()
		s.publish(Event{Kind: EventInvalid, State: StateIdle, Err: err})
		return err
	}

	s.gen++
	gen := s.gen
	submitCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateSubmitting
	s.request = req
	s.finished = make(chan struct{})
	s.mu.Unlock()

	s.publish(Event{Kind: EventStateChanged, State: StateSubmitting, File: req.File.Name})
	s.logger.Info(ctx, "submitting optimization job",
		zap.String("file", req.File.Name),
		zap.Int("max_sentences", req.MaxSentences),
		zap.String("strictness", req.Strictness),
		zap.String("algorithm", req.Algorithm),
	)

	start, err := s.api.Submit(submitCtx, req)
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrSessionReset
	}
	if err != nil {
		var se *SubmissionError
		if !errors.As(err, &se) {
			err = &SubmissionError{Message: FallbackSubmitMessage, Err: err}
		}
		s.fail(err)
		fin := s.detachFinished()
		s.mu.Unlock()

		s.logger.Warn(ctx, "job submission rejected", zap.Error(err))
		s.publish(Event{Kind: EventFailed, State: StateFailed, Err: err})
		release(fin)
		return err
	}

	pollCtx, pollCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StatePolling
	s.cancel = pollCancel
	s.pollDone = done
	s.mu.Unlock()

	s.logger.Info(ctx, "optimization job accepted", zap.String("status", start.Status), zap.String("job_id", start.JobID))
	s.publish(Event{Kind: EventStateChanged, State: StatePolling, File: req.File.Name})

	go s.poll(pollCtx, gen, done)
	return nil
}

// poll issues one progress request per tick. Each request waits for the
// previous one to be handled, so snapshots are applied in order.
func (s *Session) poll(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.abandon(ctx, gen)
			return
		case <-timer.C:
		}

		snap, err := s.api.Progress(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.abandon(ctx, gen)
				return
			}
			s.logger.Warn(ctx, "progress poll failed", zap.Error(err))
			timer.Reset(s.interval)
			continue
		}

		if !s.apply(ctx, gen, snap) {
			return
		}
		timer.Reset(s.interval)
	}
}

// apply installs snap and reports whether polling should continue.
func (s *Session) apply(ctx context.Context, gen uint64, snap v1.Progress) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != StatePolling {
		s.mu.Unlock()
		return false
	}

	s.snapshot = snap
	s.view = s.viewOf(snap)
	view := s.view

	var (
		terminal *Event
		fin      chan struct{}
	)
	if snap.Complete {
		switch {
		case snap.Error != "":
			err := &ProgressError{Message: snap.Error}
			s.fail(err)
			terminal = &Event{Kind: EventFailed, State: StateFailed, Progress: view, Err: err}
		case snap.Results != nil:
			sum := Summarize(s.request.MaxSentences, *snap.Results)
			s.summary = &sum
			s.state = StateCompleted
			s.stop()
			terminal = &Event{Kind: EventCompleted, State: StateCompleted, Progress: view, Summary: &sum}
		default:
			err := &ProtocolError{Stage: snap.Stage}
			s.fail(err)
			terminal = &Event{Kind: EventFailed, State: StateFailed, Progress: view, Err: err}
		}
		fin = s.detachFinished()
	}
	s.mu.Unlock()

	s.logger.Trace(ctx, "progress applied",
		zap.String("stage", snap.Stage),
		zap.Int("words_covered", snap.WordsCovered),
		zap.Int("percent", view.Percent),
	)
	s.publish(Event{Kind: EventProgress, State: StatePolling, Progress: view})

	if terminal == nil {
		return true
	}
	if terminal.Err != nil {
		s.logger.Warn(ctx, "optimization job failed", zap.Error(terminal.Err))
	} else {
		s.logger.Info(ctx, "optimization job completed",
			zap.Int("total_sentences", terminal.Summary.Results.TotalSentences),
			zap.String("target", terminal.Summary.TargetLabel),
		)
	}
	s.publish(*terminal)
	release(fin)
	return false
}

// abandon fails the job when polling stopped because the caller's context
// ended rather than through Reset or a terminal snapshot.
func (s *Session) abandon(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	err := fmt.Errorf("progress polling stopped: %w", context.Cause(ctx))
	s.fail(err)
	fin := s.detachFinished()
	s.mu.Unlock()

	s.publish(Event{Kind: EventFailed, State: StateFailed, Err: err})
	release(fin)
}

func (s *Session) viewOf(snap v1.Progress) ProgressView {
	return NewProgressView(snap, s.cfg.DefaultTarget)
}

// fail records err and stops polling. Caller holds s.mu.
func (s *Session) fail(err error) {
	s.err = err
	s.state = StateFailed
	s.stop()
}

// stop cancels in-flight work. Caller holds s.mu.
// Calling it more than once is a no-op.
func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// detachFinished hands the Wait channel to the caller, which closes it with
// release once the terminal event is published. Caller holds s.mu.
func (s *Session) detachFinished() chan struct{} {
	ch := s.finished
	s.finished = nil
	return ch
}

func release(ch chan struct{}) {
	if ch != nil {
		close(ch)
	}
}

// Reset cancels any in-flight work, waits for the poll loop to exit and
// clears the selected file, progress, summary and error.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.stop()
	fin := s.detachFinished()
	done := s.pollDone
	s.pollDone = nil
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.state = StateIdle
	s.file = nil
	s.request = JobRequest{}
	s.snapshot = v1.Progress{}
	s.view = ProgressView{}
	s.summary = nil
	s.err = nil
	s.mu.Unlock()

	s.publish(Event{Kind: EventReset, State: StateIdle})
	release(fin)
}

// Wait blocks until the current job reaches a terminal state, the session
// is reset or ctx ends. It returns the terminal error of a failed job.
func (s *Session) Wait(ctx context.Context) (State, error) {
	s.mu.Lock()
	ch := s.finished
	s.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// CheckConnection checks connectivity with the service. The result is only logged;
// callers may ignore the returned error.
func (s *Session) CheckConnection(ctx context.Context) (v1.TestResponse, error) {
	resp, err := s.api.Test(ctx)
	if err != nil {
		s.logger.Warn(ctx, "optimizer service unreachable", zap.Error(err))
		return v1.TestResponse{}, err
	}
	s.logger.Info(ctx, "optimizer service reachable",
		zap.String("status", resp.Status),
		zap.Strings("features", resp.Features),
	)
	return resp, nil
}
