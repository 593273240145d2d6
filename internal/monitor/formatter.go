package monitor

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vocabopt/internal/jobclient"
)

// FormatPercent formats a whole percentage right-aligned as " 42%".
func FormatPercent(p int) string {
	return fmt.Sprintf("%3d%%", p)
}

// FormatCounts formats coverage counters as "words 84/200, sentences 12".
func FormatCounts(v jobclient.ProgressView) string {
	return fmt.Sprintf("words %d/%d, sentences %d", v.WordsCovered, v.TotalWords, v.SentencesSelected)
}

// FormatAnalyzing returns "Analyzing sentence X of Y", or "" when the
// service reported no sentence counter.
func FormatAnalyzing(v jobclient.ProgressView) string {
	if !v.Analyzing() {
		return ""
	}
	return fmt.Sprintf("Analyzing sentence %d of %d", v.Current, v.Total)
}

// FormatProgress formats a progress view as a single line.
func FormatProgress(v jobclient.ProgressView) string {
	line := fmt.Sprintf("[%s] %s %s", FormatPercent(v.Percent), stageOrDash(v.Stage), FormatCounts(v))
	if a := FormatAnalyzing(v); a != "" {
		line += " (" + a + ")"
	}
	return line
}

func stageOrDash(stage string) string {
	if stage == "" {
		return "-"
	}
	return stage
}

// FormatSentences formats the selected sentence count against the target,
// e.g. "12 sentences (under target)".
func FormatSentences(s jobclient.Summary) string {
	noun := "sentences"
	if s.Results.TotalSentences == 1 {
		noun = "sentence"
	}
	return fmt.Sprintf("%d %s (%s)", s.Results.TotalSentences, noun, s.TargetLabel)
}

// FormatSummary returns the lines describing a completed job.
func FormatSummary(s jobclient.Summary) []string {
	lines := []string{
		"completed: " + FormatSentences(s),
		"coverage: " + s.CoverageLine,
		"algorithm: " + s.AlgorithmLabel,
	}
	if s.HasMissingWords() {
		lines = append(lines, "warning: "+s.MissingWarning)
	}
	if s.SheetURL != "" {
		lines = append(lines, "sheet: "+s.SheetURL)
	}
	return lines
}

// FormatElapsed formats a duration as "Xh Ym", "Xm Ys" or "Xs".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
