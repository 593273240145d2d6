package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		name     string
		percent  int
		expected string
	}{
		{"zero", 0, "  0%"},
		{"single_digit", 7, "  7%"},
		{"normal", 42, " 42%"},
		{"full", 100, "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPercent(tt.percent))
		})
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		name     string
		view     jobclient.ProgressView
		expected string
	}{
		{
			name:     "empty",
			view:     jobclient.ProgressView{},
			expected: "[  0%] - words 0/0, sentences 0",
		},
		{
			name: "with_counter",
			view: jobclient.ProgressView{
				Stage: "Optimizing (Greedy)...", Percent: 42, WordsCovered: 84, TotalWords: 200,
				SentencesSelected: 12, Current: 5, Total: 100,
			},
			expected: "[ 42%] Optimizing (Greedy)... words 84/200, sentences 12 (Analyzing sentence 5 of 100)",
		},
		{
			name: "total_without_current",
			view: jobclient.ProgressView{
				Stage: "Loaded 100 sentences", Percent: 0, TotalWords: 200, Total: 100,
			},
			expected: "[  0%] Loaded 100 sentences words 0/200, sentences 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatProgress(tt.view))
		})
	}
}

func TestFormatSummary(t *testing.T) {
	sum := jobclient.Summarize(600, v1.ResultSet{
		TotalSentences:  1,
		TotalWords:      3,
		WordsCovered:    2,
		CoveragePercent: 66.67,
		AlgorithmUsed:   v1.AlgorithmGreedy,
		MissingWords:    []v1.MissingWord{"licorne"},
		SheetURL:        "https://example.com/sheet",
	})

	assert.Equal(t, []string{
		"completed: 1 sentence (under target)",
		"coverage: 66.67% of 3 words",
		"algorithm: greedy",
		"warning: 1 word not covered",
		"sheet: https://example.com/sheet",
	}, FormatSummary(sum))
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"negative", -time.Second, "0s"},
		{"seconds", 42*time.Second + 300*time.Millisecond, "42s"},
		{"minutes", 75 * time.Second, "1m 15s"},
		{"hours_and_minutes", 8100 * time.Second, "2h 15m"},
		{"only_hours", 7200 * time.Second, "2h 0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatElapsed(tt.d))
		})
	}
}
