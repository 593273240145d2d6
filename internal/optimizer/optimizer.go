// Package optimizer selects a small set of sentences that covers as much of
// a vocabulary list as possible.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// ErrUnknownAlgorithm is returned by Run for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// ErrEmptyWordList is returned by New when there is nothing to cover.
var ErrEmptyWordList = errors.New("word list is empty")

const (
	newWordWeight   = 10.0
	redundantWeight = 0.5
	// precomputeChunk is the number of sentences matched per worker task.
	precomputeChunk = 256
)

// Options tune a run.
type Options struct {
	MaxSentences     int
	Workers          int
	BeamWidth        int
	BeamDepth        int
	ProgressInterval int
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		MaxSentences:     600,
		Workers:          4,
		BeamWidth:        5,
		BeamDepth:        3,
		ProgressInterval: 10,
	}
}

// Progress is reported while a run advances.
type Progress struct {
	Stage             string
	Current           int
	Total             int
	WordsCovered      int
	SentencesSelected int
}

// ProgressFunc receives progress reports. It is called from the goroutine
// running Run.
type ProgressFunc func(Progress)

// Selected is one chosen sentence.
type Selected struct {
	Index    int
	Sentence string
	// NewWords are the words this sentence added to the coverage.
	NewWords []string
	// TotalWords counts every vocabulary word the sentence contains.
	TotalWords int
}

// Coverage describes how one vocabulary word is covered by the selection.
type Coverage struct {
	Word            Word
	Found           bool
	SentenceCount   int
	SentenceIndices []int
}

// Result is the outcome of a run.
type Result struct {
	Selected        []Selected
	TotalSentences  int
	WordsCovered    int
	TotalWords      int
	CoveragePercent float64
	Efficiency      float64
	Missing         []Word
	ProcessingTime  float64
	CoverageMap     []Coverage
	Algorithm       string
}

// Optimizer runs one selection over a fixed word list and sentence set.
type Optimizer struct {
	words     []Word
	sentences []string
	matcher   *Matcher
	opts      Options
	progress  ProgressFunc

	coverage  [][]int
	uncovered []bool
	remaining int
	chosen    []bool
	selected  []Selected
}

// New creates an optimizer. progress may be nil.
func New(words []Word, sentences []string, matcher *Matcher, opts Options, progress ProgressFunc) (*Optimizer, error) {
	if len(words) == 0 {
		return nil, ErrEmptyWordList
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	def := DefaultOptions()
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = def.MaxSentences
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.BeamWidth <= 0 {
		opts.BeamWidth = def.BeamWidth
	}
	if opts.BeamDepth <= 0 {
		opts.BeamDepth = def.BeamDepth
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = def.ProgressInterval
	}
	if progress == nil {
		progress = func(Progress) {}
	}
	return &Optimizer{
		words:     words,
		sentences: sentences,
		matcher:   matcher,
		opts:      opts,
		progress:  progress,
	}, nil
}

// Run precomputes sentence coverage and selects sentences with algorithm.
// It stops when every word is covered, MaxSentences is reached or no
// sentence adds a new word.
func (o *Optimizer) Run(ctx context.Context, algorithm string) (*Result, error) {
	var strategy func(context.Context) error
	switch algorithm {
	case v1.AlgorithmGreedy:
		strategy = o.greedy
	case v1.AlgorithmWeightedGreedy, "":
		algorithm = v1.AlgorithmWeightedGreedy
		strategy = o.weightedGreedy
	case v1.AlgorithmBeamSearch:
		strategy = o.beamSearch
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}

	start := time.Now()
	if err := o.precompute(ctx); err != nil {
		return nil, err
	}
	if err := strategy(ctx); err != nil {
		return nil, err
	}
	return o.result(time.Since(start), algorithm), nil
}

func (o *Optimizer) precompute(ctx context.Context) error {
	n := len(o.sentences)
	o.progress(Progress{Stage: "Analyzing sentences...", Total: n})

	o.coverage = make([][]int, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for lo := 0; lo < n; lo += precomputeChunk {
		hi := min(lo+precomputeChunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				o.coverage[i] = o.matcher.Match(o.sentences[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("analyze sentences: %w", err)
	}

	o.uncovered = make([]bool, len(o.words))
	for i := range o.uncovered {
		o.uncovered[i] = true
	}
	o.remaining = len(o.words)
	o.chosen = make([]bool, n)
	o.selected = nil

	o.progress(Progress{Stage: "Analyzing sentences...", Current: n, Total: n})
	return nil
}

func (o *Optimizer) newCount(sent int, uncovered []bool) int {
	c := 0
	for _, w := range o.coverage[sent] {
		if uncovered[w] {
			c++
		}
	}
	return c
}

func (o *Optimizer) done() bool {
	return o.remaining == 0 || len(o.selected) >= o.opts.MaxSentences
}

func (o *Optimizer) add(sent int) {
	var added []string
	for _, w := range o.coverage[sent] {
		if o.uncovered[w] {
			o.uncovered[w] = false
			o.remaining--
			added = append(added, o.words[w].French)
		}
	}
	o.chosen[sent] = true
	o.selected = append(o.selected, Selected{
		Index:      sent,
		Sentence:   o.sentences[sent],
		NewWords:   added,
		TotalWords: len(o.coverage[sent]),
	})
}

func (o *Optimizer) report(stage string, iteration int) {
	if iteration%o.opts.ProgressInterval != 0 {
		return
	}
	o.progress(Progress{
		Stage:             stage,
		Current:           iteration,
		Total:             len(o.words),
		WordsCovered:      len(o.words) - o.remaining,
		SentencesSelected: len(o.selected),
	})
}

// greedy picks the sentence adding the most uncovered words.
func (o *Optimizer) greedy(ctx context.Context) error {
	for iteration := 1; !o.done(); iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		best, bestScore := -1, 0
		for i := range o.coverage {
			if o.chosen[i] {
				continue
			}
			if score := o.newCount(i, o.uncovered); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			return nil
		}
		o.add(best)
		o.report("Optimizing (Greedy)...", iteration)
	}
	return nil
}

// weightedGreedy scores 10 per new word plus 0.5 per already covered word,
// preferring sentences that also reinforce earlier picks. Sentences without
// a new word are never picked.
func (o *Optimizer) weightedGreedy(ctx context.Context) error {
	for iteration := 1; !o.done(); iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		best, bestScore := -1, 0.0
		for i, covered := range o.coverage {
			if o.chosen[i] {
				continue
			}
			fresh := o.newCount(i, o.uncovered)
			if fresh == 0 {
				continue
			}
			score := float64(fresh)*newWordWeight + float64(len(covered)-fresh)*redundantWeight
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			return nil
		}
		o.add(best)
		o.report("Optimizing (Weighted Greedy)...", iteration)
	}
	return nil
}

type beamPath struct {
	picks     []int
	uncovered []bool
	covered   int
}

type beamCandidate struct {
	parent int
	// sent is -1 when the parent path is carried forward unchanged.
	sent    int
	covered int
}

// beamSearch explores BeamWidth partial selections for BeamDepth levels,
// commits the best path and finishes greedily. A path that cannot be
// extended competes unchanged at the next level.
func (o *Optimizer) beamSearch(ctx context.Context) error {
	beam := []beamPath{{uncovered: slices.Clone(o.uncovered)}}
	depth := min(o.opts.BeamDepth, o.opts.MaxSentences)

	for level := 0; level < depth; level++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.progress(Progress{
			Stage:   fmt.Sprintf("Beam search level %d/%d...", level+1, depth),
			Current: level + 1,
			Total:   depth,
		})

		var next []beamCandidate
		extended := false
		for p, path := range beam {
			var cands []beamCandidate
			for i := range o.coverage {
				if slices.Contains(path.picks, i) {
					continue
				}
				fresh := o.newCount(i, path.uncovered)
				if fresh == 0 {
					continue
				}
				cands = append(cands, beamCandidate{parent: p, sent: i, covered: path.covered + fresh})
			}
			if len(cands) == 0 {
				next = append(next, beamCandidate{parent: p, sent: -1, covered: path.covered})
				continue
			}
			extended = true
			o.sortCandidates(beam, cands)
			next = append(next, cands[:min(len(cands), o.opts.BeamWidth)]...)
		}
		if !extended {
			break
		}
		o.sortCandidates(beam, next)
		next = next[:min(len(next), o.opts.BeamWidth)]

		nextBeam := make([]beamPath, len(next))
		for k, c := range next {
			parent := beam[c.parent]
			if c.sent < 0 {
				nextBeam[k] = parent
				continue
			}
			unc := slices.Clone(parent.uncovered)
			for _, w := range o.coverage[c.sent] {
				unc[w] = false
			}
			nextBeam[k] = beamPath{
				picks:     append(slices.Clone(parent.picks), c.sent),
				uncovered: unc,
				covered:   c.covered,
			}
		}
		beam = nextBeam
	}

	for _, sent := range beam[0].picks {
		o.add(sent)
	}
	if !o.done() {
		return o.greedy(ctx)
	}
	return nil
}

// sortCandidates orders by coverage, then by fewer picks, then by pick
// sequence so ties resolve the same way on every run.
func (o *Optimizer) sortCandidates(beam []beamPath, cands []beamCandidate) {
	picks := func(c beamCandidate) []int {
		p := slices.Clone(beam[c.parent].picks)
		if c.sent >= 0 {
			p = append(p, c.sent)
		}
		return p
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.covered != cb.covered {
			return ca.covered > cb.covered
		}
		pa, pb := picks(ca), picks(cb)
		if len(pa) != len(pb) {
			return len(pa) < len(pb)
		}
		return slices.Compare(pa, pb) < 0
	})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (o *Optimizer) result(elapsed time.Duration, algorithm string) *Result {
	covered := len(o.words) - o.remaining
	r := &Result{
		Selected:        o.selected,
		TotalSentences:  len(o.selected),
		WordsCovered:    covered,
		TotalWords:      len(o.words),
		CoveragePercent: round2(float64(covered) / float64(len(o.words)) * 100),
		ProcessingTime:  round2(elapsed.Seconds()),
		Algorithm:       algorithm,
	}
	if len(o.selected) > 0 {
		r.Efficiency = round2(float64(covered) / float64(len(o.selected)))
	}

	inSelection := make(map[int][]int)
	for _, s := range o.selected {
		for _, w := range o.coverage[s.Index] {
			inSelection[w] = append(inSelection[w], s.Index)
		}
	}

	r.CoverageMap = make([]Coverage, len(o.words))
	for i, w := range o.words {
		if o.uncovered[i] {
			r.Missing = append(r.Missing, w)
		}
		idx := inSelection[i]
		slices.Sort(idx)
		r.CoverageMap[i] = Coverage{
			Word:            w,
			Found:           !o.uncovered[i],
			SentenceCount:   len(idx),
			SentenceIndices: idx[:min(len(idx), 5)],
		}
	}
	return r
}
