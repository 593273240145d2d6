// Package jobs runs optimization jobs for the reference service and tracks
// the progress of the single active job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
	"github.com/fyrsmithlabs/vocabopt/internal/sheets"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

const instrumentationName = "github.com/fyrsmithlabs/vocabopt/internal/jobs"

// Stage labels set by the tracker itself. The optimizer contributes the
// stages in between.
const (
	StageStarting      = "Starting..."
	StageLoadingWords  = "Loading word list..."
	StageLoadingText   = "Loading sentences..."
	StagePublishing    = "Creating Google Sheets..."
	StageSaving        = "Saving CSV backup..."
	StageComplete      = "Complete!"
	stageLoadedFormat  = "Loaded %d sentences"
	defaultWordTimeout = 30 * time.Second
)

// Request describes one optimization job.
type Request struct {
	// SentencePath is the stored upload. It is removed when the job ends.
	SentencePath string
	// SentenceName is the original file name, used to pick the parser.
	SentenceName string
	WordListURL  string
	MaxSentences int
	Strictness   string
	Algorithm    string
}

// WordLoader fetches the vocabulary list for a job.
type WordLoader func(ctx context.Context, url string) ([]optimizer.Word, error)

// ResultPublisher publishes a finished run and returns a link to it.
type ResultPublisher interface {
	Publish(ctx context.Context, r *optimizer.Result, maxSentences int) (string, error)
}

// Tracker runs at most one job at a time and exposes its progress.
type Tracker struct {
	outputs     *sheets.OutputStore
	loadWords   WordLoader
	publisher   ResultPublisher
	opts        optimizer.Options
	wordTimeout time.Duration
	logger      *logging.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time

	mu       sync.Mutex
	running  bool
	jobID    string
	progress v1.Progress

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWordLoader replaces the word-list loader.
func WithWordLoader(fn WordLoader) Option {
	return func(t *Tracker) { t.loadWords = fn }
}

// WithHTTPClient loads word lists from Google Sheets using client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Tracker) {
		t.loadWords = func(ctx context.Context, url string) ([]optimizer.Word, error) {
			return sheets.LoadWordList(ctx, client, url)
		}
	}
}

// WithResultPublisher publishes every completed run, typically as a
// spreadsheet whose URL is reported in the results.
func WithResultPublisher(p ResultPublisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

// WithGoogleSheets reads word lists through the Sheets API, so private
// sheets work, and publishes results as spreadsheets.
func WithGoogleSheets(g *sheets.GoogleClient) Option {
	return func(t *Tracker) {
		t.loadWords = g.LoadWordList
		t.publisher = g
	}
}

// WithOptimizerOptions sets the base optimizer options. MaxSentences is
// taken from each request.
func WithOptimizerOptions(opts optimizer.Options) Option {
	return func(t *Tracker) { t.opts = opts }
}

// WithWordListTimeout bounds the word-list fetch.
func WithWordListTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.wordTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithTracer sets the tracer used for job spans.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Tracker) { t.tracer = tr }
}

// NewTracker creates a tracker writing results to outputs.
func NewTracker(outputs *sheets.OutputStore, opts ...Option) (*Tracker, error) {
	if outputs == nil {
		return nil, errors.New("output store is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		outputs:     outputs,
		opts:        optimizer.DefaultOptions(),
		wordTimeout: defaultWordTimeout,
		logger:      logging.NewNop(),
		tracer:      otel.Tracer(instrumentationName),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
	WithHTTPClient(&http.Client{Timeout: defaultWordTimeout})(t)
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = DefaultMetrics()
	}
	return t, nil
}

// Start launches req in the background and returns its job ID. It returns
// v1.ErrJobRunning while another job is in progress.
func (t *Tracker) Start(req Request) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.metrics.Rejected.Inc()
		return "", v1.ErrJobRunning
	}
	if t.ctx.Err() != nil {
		return "", errors.New("tracker is closed")
	}

	t.running = true
	t.jobID = uuid.NewString()
	t.progress = v1.Progress{Stage: StageStarting}
	t.metrics.Started.Inc()
	t.metrics.Running.Set(1)

	t.wg.Add(1)
	go t.run(t.jobID, req)
	return t.jobID, nil
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() v1.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.progress
	if p.Results != nil {
		rs := *p.Results
		rs.MissingWords = append([]v1.MissingWord(nil), rs.MissingWords...)
		p.Results = &rs
	}
	return p
}

// Running reports whether a job is in progress.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// JobID returns the ID of the most recent job.
func (t *Tracker) JobID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobID
}

// Wait blocks until no job is running or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a running job and waits for it to stop.
func (t *Tracker) Close(ctx context.Context) error {
	t.cancel()
	return t.Wait(ctx)
}

func (t *Tracker) run(jobID string, req Request) {
	defer t.wg.Done()

	ctx := logging.WithJobID(t.ctx, jobID)
	ctx, span := t.tracer.Start(ctx, "jobs.optimize", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("job.algorithm", req.Algorithm),
		attribute.String("job.strictness", req.Strictness),
		attribute.Int("job.max_sentences", req.MaxSentences),
	))
	defer span.End()

	t.logger.Info(ctx, "optimization job started",
		zap.String("file", req.SentenceName),
		zap.String("algorithm", req.Algorithm),
		zap.String("strictness", req.Strictness),
		zap.Int("max_sentences", req.MaxSentences),
	)

	start := t.now()
	res, sheetURL, err := t.execute(ctx, req)
	elapsed := t.now().Sub(start)

	if req.SentencePath != "" {
		if rmErr := os.Remove(req.SentencePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			t.logger.Warn(ctx, "failed to remove upload", zap.String("path", req.SentencePath), zap.Error(rmErr))
		}
	}

	algorithm := req.Algorithm
	if res != nil {
		algorithm = res.Algorithm
	}
	t.metrics.Duration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	t.metrics.Running.Set(0)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.progress.Complete = true

	if err != nil {
		t.progress.Error = err.Error()
		t.metrics.Finished.WithLabelValues("failed", algorithm).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Error(ctx, "optimization job failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return
	}

	t.progress.Stage = StageComplete
	t.progress.WordsCovered = res.WordsCovered
	t.progress.SentencesSelected = len(res.Selected)
	t.progress.Results = resultSet(res, sheetURL)
	t.metrics.Finished.WithLabelValues("completed", algorithm).Inc()
	t.metrics.Coverage.Set(res.CoveragePercent)
	span.SetAttributes(
		attribute.Int("job.words_covered", res.WordsCovered),
		attribute.Int("job.sentences_selected", len(res.Selected)),
	)
	t.logger.Info(ctx, "optimization job completed",
		zap.Int("sentences", len(res.Selected)),
		zap.Int("words_covered", res.WordsCovered),
		zap.Int("total_words", res.TotalWords),
		zap.Float64("coverage_percent", res.CoveragePercent),
		zap.Duration("elapsed", elapsed),
	)
}

// execute runs the pipeline and returns the result with the published
// sheet URL, which is empty without a publisher or when publishing failed.
func (t *Tracker) execute(ctx context.Context, req Request) (*optimizer.Result, string, error) {
	t.setStage(StageLoadingWords)
	wctx, cancel := context.WithTimeout(ctx, t.wordTimeout)
	words, err := t.loadWords(wctx, req.WordListURL)
	cancel()
	if err != nil {
		return nil, "", fmt.Errorf("load word list: %w", err)
	}
	t.logger.Debug(ctx, "word list loaded", zap.Int("words", len(words)))

	t.setStage(StageLoadingText)
	sentences, err := t.loadSentences(req)
	if err != nil {
		return nil, "", err
	}
	t.setStage(fmt.Sprintf(stageLoadedFormat, len(sentences)))

	matcher, err := optimizer.NewMatcher(words, req.Strictness)
	if err != nil {
		return nil, "", err
	}
	opts := t.opts
	opts.MaxSentences = req.MaxSentences
	opt, err := optimizer.New(words, sentences, matcher, opts, t.update)
	if err != nil {
		return nil, "", err
	}
	res, err := opt.Run(ctx, req.Algorithm)
	if err != nil {
		return nil, "", err
	}

	var sheetURL string
	if t.publisher != nil {
		t.setStage(StagePublishing)
		// the CSV backup below still holds the results
		sheetURL, err = t.publisher.Publish(ctx, res, req.MaxSentences)
		if err != nil {
			t.metrics.PublishFailures.Inc()
			t.logger.Warn(ctx, "failed to publish results sheet", zap.Error(err))
			sheetURL = ""
		} else {
			t.logger.Info(ctx, "results sheet created", zap.String("sheet_url", sheetURL))
		}
	}

	t.setStage(StageSaving)
	names, err := t.outputs.Save(res, t.now())
	if err != nil {
		return nil, "", fmt.Errorf("save outputs: %w", err)
	}
	t.logger.Debug(ctx, "outputs saved", zap.Strings("files", names))
	return res, sheetURL, nil
}

func (t *Tracker) loadSentences(req Request) ([]string, error) {
	f, err := os.Open(req.SentencePath)
	if err != nil {
		return nil, fmt.Errorf("open sentence file: %w", err)
	}
	defer f.Close()
	return sheets.ParseSentences(req.SentenceName, f)
}

func (t *Tracker) setStage(stage string) {
	t.mu.Lock()
	t.progress.Stage = stage
	t.progress.Current = 0
	t.progress.Total = 0
	t.mu.Unlock()
}

// update receives optimizer progress.
func (t *Tracker) update(p optimizer.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Stage = p.Stage
	t.progress.Current = p.Current
	t.progress.Total = p.Total
	t.progress.WordsCovered = p.WordsCovered
	t.progress.SentencesSelected = p.SentencesSelected
}

func resultSet(r *optimizer.Result, sheetURL string) *v1.ResultSet {
	missing := make([]v1.MissingWord, len(r.Missing))
	for i, w := range r.Missing {
		missing[i] = v1.MissingWord(w.French)
	}
	return &v1.ResultSet{
		TotalSentences:  r.TotalSentences,
		WordsCovered:    r.WordsCovered,
		TotalWords:      r.TotalWords,
		CoveragePercent: r.CoveragePercent,
		Efficiency:      r.Efficiency,
		ProcessingTime:  r.ProcessingTime,
		AlgorithmUsed:   r.Algorithm,
		MissingWords:    missing,
		SheetURL:        sheetURL,
	}
}
