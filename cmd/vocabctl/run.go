package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	"github.com/fyrsmithlabs/vocabopt/internal/monitor"
)

// errInterrupted is returned when the user leaves the display before the job ends.
var errInterrupted = errors.New("optimization interrupted before completion")

type runOptions struct {
	file         string
	wordList     string
	maxSentences string
	strictness   string
	algorithm    string
	plain        bool
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a sentence file and follow the optimization",
		Long: `Submit a sentence file for optimization against a Google Sheets word list
and follow its progress until the job completes or fails.

Examples:
  # Optimize with defaults
  vocabctl run --file phrases.csv --word-list https://docs.google.com/spreadsheets/d/ID/edit

  # Beam search with a tighter limit, line output
  vocabctl run --file phrases.txt --word-list URL --max-sentences 400 --algorithm beam_search --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runJob(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.file, "file", "", "sentence file (.csv, .txt, .tsv)")
	f.StringVar(&o.wordList, "word-list", "", "Google Sheets URL of the word list")
	f.StringVar(&o.maxSentences, "max-sentences", "600", "maximum number of sentences to select")
	f.StringVar(&o.strictness, "strictness", "normal", "word matching strictness (exact, normal, lenient)")
	f.StringVar(&o.algorithm, "algorithm", "weighted_greedy", "selection algorithm (greedy, weighted_greedy, beam_search)")
	f.BoolVar(&o.plain, "plain", false, "print one line per event instead of the interactive display")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (o runOptions) params() jobclient.Params {
	return jobclient.Params{
		WordListURL:  o.wordList,
		MaxSentences: o.maxSentences,
		Strictness:   o.strictness,
		Algorithm:    o.algorithm,
	}
}

func (a *app) runJob(ctx context.Context, o runOptions) error {
	src, err := jobclient.OpenSourceFile(o.file)
	if err != nil {
		return err
	}

	if o.plain || !isTerminal(a.out) {
		return a.runPlain(ctx, src, o.params())
	}
	return a.runInteractive(ctx, src, o.params())
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) newSession(logger *logging.Logger, listener jobclient.Listener) *jobclient.Session {
	return jobclient.NewSession(a.client, jobclient.SessionConfigFrom(a.cfg.Client),
		jobclient.WithLogger(logger.Named("session")),
		jobclient.WithListener(listener),
	)
}

// displayLogger returns the logger used while the interactive display owns
// the terminal. Lines written to stderr would tear the frame, so without a
// log file the session stays silent and the display reports failures itself.
func (a *app) displayLogger() *logging.Logger {
	if a.logFile != "" {
		return a.logger
	}
	return logging.NewNop()
}

// runPlain follows the job with line output and returns the terminal error.
func (a *app) runPlain(ctx context.Context, src jobclient.SourceFile, p jobclient.Params) error {
	plain := monitor.NewPlain(a.out)
	session := a.newSession(a.logger, plain.Handle)

	_, _ = session.CheckConnection(ctx)

	if err := session.SelectFile(src); err != nil {
		return err
	}
	if err := session.Submit(ctx, p); err != nil {
		return err
	}

	state, err := session.Wait(ctx)
	if ctx.Err() != nil {
		session.Reset()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if state != jobclient.StateCompleted {
		return fmt.Errorf("job ended in state %s", state)
	}
	return nil
}

// runInteractive follows the job in the bubbletea display. Failures stay on
// screen until a key is pressed.
func (a *app) runInteractive(ctx context.Context, src jobclient.SourceFile, p jobclient.Params) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prog *tea.Program
	session := a.newSession(a.displayLogger(), func(ev jobclient.Event) {
		prog.Send(monitor.EventMsg(ev))
	})
	prog = tea.NewProgram(monitor.NewModel(session), tea.WithContext(ctx), tea.WithOutput(a.out))

	// Send blocks until the program runs, so submission happens alongside Run.
	setupErr := make(chan error, 1)
	go func() {
		_, _ = session.CheckConnection(ctx)
		err := session.SelectFile(src)
		if err == nil {
			err = session.Submit(ctx, p)
		}
		var ve *jobclient.ValidationError
		if errors.As(err, &ve) {
			setupErr <- err
			prog.Quit()
			return
		}
		// submission failures are shown by the model
		setupErr <- nil
	}()

	final, runErr := prog.Run()
	cancel()
	if err := <-setupErr; err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("display failed: %w", runErr)
	}

	m, ok := final.(monitor.Model)
	if !ok {
		return errInterrupted
	}
	if err := m.Failure(); err != nil {
		return err
	}
	if m.State() != jobclient.StateCompleted || m.Summary() == nil {
		session.Reset()
		a.logger.Warn(ctx, "display closed before the job finished", zap.String("state", m.State().String()))
		return errInterrupted
	}

	for _, line := range monitor.FormatSummary(*m.Summary()) {
		fmt.Fprintln(a.out, line)
	}
	return nil
}
