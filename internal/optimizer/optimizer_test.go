package optimizer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

func words(names ...string) []Word {
	out := make([]Word, len(names))
	for i, n := range names {
		out[i] = Word{French: n, English: "en-" + n}
	}
	return out
}

func newOptimizer(t *testing.T, ws []Word, sentences []string, opts Options, progress ProgressFunc) *Optimizer {
	t.Helper()
	m, err := NewMatcher(ws, v1.StrictnessNormal)
	require.NoError(t, err)
	o, err := New(ws, sentences, m, opts, progress)
	require.NoError(t, err)
	return o
}

func selectedIndices(r *Result) []int {
	out := make([]int, len(r.Selected))
	for i, s := range r.Selected {
		out[i] = s.Index
	}
	return out
}

func TestRun_Greedy(t *testing.T) {
	ws := words("chat", "chien", "oiseau", "poisson", "souris")
	sentences := []string{
		"le chat",
		"le chat et le chien",
		"un oiseau et un poisson et un chat",
		"une souris",
		"rien ici",
	}

	r, err := newOptimizer(t, ws, sentences, Options{}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1, 3}, selectedIndices(r))
	assert.Equal(t, 5, r.WordsCovered)
	assert.Equal(t, 100.0, r.CoveragePercent)
	assert.Equal(t, 1.67, r.Efficiency)
	assert.Empty(t, r.Missing)
	assert.Equal(t, v1.AlgorithmGreedy, r.Algorithm)
	assert.Equal(t, []string{"chien"}, r.Selected[1].NewWords)
	assert.Equal(t, 2, r.Selected[1].TotalWords)
}

func TestRun_WeightedGreedyPrefersReinforcement(t *testing.T) {
	ws := words("a1", "b1", "c1", "d1", "e1")
	sentences := []string{
		"a1 b1 c1",
		"d1",
		"d1 a1 b1",
		"e1",
	}

	r, err := newOptimizer(t, ws, sentences, Options{}, nil).Run(context.Background(), v1.AlgorithmWeightedGreedy)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, selectedIndices(r))

	r, err = newOptimizer(t, ws, sentences, Options{}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, selectedIndices(r))
}

func TestRun_WeightedGreedyStopsWithoutNewWords(t *testing.T) {
	ws := words("chat", "licorne")
	sentences := []string{"le chat", "un chat", "deux chat"}

	r, err := newOptimizer(t, ws, sentences, Options{MaxSentences: 10}, nil).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []int{0}, selectedIndices(r))
	assert.Equal(t, v1.AlgorithmWeightedGreedy, r.Algorithm)
	assert.Equal(t, []Word{ws[1]}, r.Missing)
	assert.Equal(t, 50.0, r.CoveragePercent)
}

func TestRun_BeamSearchBeatsGreedy(t *testing.T) {
	// Greedy grabs the four-word sentence first and then needs two more;
	// two sentences suffice.
	ws := words("w1", "w2", "w3", "w4", "w5", "w6")
	sentences := []string{
		"w1 w2 w3",
		"w4 w5 w6",
		"w2 w3 w4 w5",
	}

	greedy, err := newOptimizer(t, ws, sentences, Options{}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)
	assert.Len(t, greedy.Selected, 3)

	var stages []string
	beam, err := newOptimizer(t, ws, sentences, Options{}, func(p Progress) {
		stages = append(stages, p.Stage)
	}).Run(context.Background(), v1.AlgorithmBeamSearch)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, selectedIndices(beam))
	assert.Equal(t, 100.0, beam.CoveragePercent)
	assert.Contains(t, stages, "Beam search level 1/3...")
}

func TestRun_MaxSentences(t *testing.T) {
	ws := words("a1", "b1", "c1")
	r, err := newOptimizer(t, ws, []string{"a1", "b1", "c1"}, Options{MaxSentences: 2}, nil).
		Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalSentences)
	assert.Len(t, r.Missing, 1)
}

func TestRun_ProgressInterval(t *testing.T) {
	var ws []Word
	var sentences []string
	for i := 0; i < 25; i++ {
		w := fmt.Sprintf("mot%d", i)
		ws = append(ws, Word{French: w})
		sentences = append(sentences, "voici "+w)
	}

	var mu sync.Mutex
	var reports []Progress
	_, err := newOptimizer(t, ws, sentences, Options{}, func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, p)
	}).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)

	want := []Progress{
		{Stage: "Analyzing sentences...", Total: 25},
		{Stage: "Analyzing sentences...", Current: 25, Total: 25},
		{Stage: "Optimizing (Greedy)...", Current: 10, Total: 25, WordsCovered: 10, SentencesSelected: 10},
		{Stage: "Optimizing (Greedy)...", Current: 20, Total: 25, WordsCovered: 20, SentencesSelected: 20},
	}
	if diff := cmp.Diff(want, reports); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_CoverageMap(t *testing.T) {
	ws := words("chat", "chien", "licorne")
	sentences := []string{"chat chien", "chat"}

	r, err := newOptimizer(t, ws, sentences, Options{}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)

	require.Len(t, r.CoverageMap, 3)
	assert.Equal(t, Coverage{Word: ws[0], Found: true, SentenceCount: 1, SentenceIndices: []int{0}}, r.CoverageMap[0])
	assert.False(t, r.CoverageMap[2].Found)
	assert.Zero(t, r.CoverageMap[2].SentenceCount)
}

func TestRun_Errors(t *testing.T) {
	o := newOptimizer(t, words("chat"), []string{"chat"}, Options{}, nil)
	_, err := o.Run(context.Background(), "simulated_annealing")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, v1.AlgorithmGreedy)
	assert.ErrorIs(t, err, context.Canceled)

	m, err := NewMatcher(nil, v1.StrictnessNormal)
	require.NoError(t, err)
	_, err = New(nil, []string{"x"}, m, Options{}, nil)
	assert.ErrorIs(t, err, ErrEmptyWordList)
}

func TestRun_ParallelPrecomputeMatchesSequential(t *testing.T) {
	ws := words("alpha", "beta", "gamma")
	var sentences []string
	for i := 0; i < 1000; i++ {
		sentences = append(sentences, []string{"alpha", "beta gamma", "rien", "gamma alpha"}[i%4])
	}

	one, err := newOptimizer(t, ws, sentences, Options{Workers: 1}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)
	many, err := newOptimizer(t, ws, sentences, Options{Workers: 8}, nil).Run(context.Background(), v1.AlgorithmGreedy)
	require.NoError(t, err)

	assert.Equal(t, selectedIndices(one), selectedIndices(many))
	assert.Equal(t, []int{1, 0}, selectedIndices(one))
}
