package jobclient

import (
	"fmt"
	"math"
	"strings"

	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// Percent returns min(100, round(covered/total*100)). A non-positive total
// falls back to defaultTotal.
func Percent(covered, total, defaultTotal int) int {
	if total <= 0 {
		total = defaultTotal
	}
	if total <= 0 || covered <= 0 {
		return 0
	}
	p := int(math.Round(float64(covered) / float64(total) * 100))
	return min(p, 100)
}

// Summary is the rendered view of a completed job.
type Summary struct {
	Results      v1.ResultSet
	MaxSentences int

	// OverBy is how many sentences exceed MaxSentences; zero when under target.
	OverBy      int
	TargetLabel string

	MissingCount   int
	MissingWarning string

	AlgorithmLabel string
	CoverageLine   string
	SheetURL       string
}

// UnderTarget reports whether the selection fits within MaxSentences.
func (s Summary) UnderTarget() bool {
	return s.OverBy == 0
}

// HasMissingWords reports whether the missing-words warning applies.
func (s Summary) HasMissingWords() bool {
	return s.MissingCount > 0
}

// Summarize compares a result set with the requested sentence limit.
func Summarize(maxSentences int, rs v1.ResultSet) Summary {
	s := Summary{
		Results:      rs,
		MaxSentences: maxSentences,
		MissingCount: len(rs.MissingWords),
		SheetURL:     rs.SheetURL,
	}

	if rs.TotalSentences <= maxSentences {
		s.TargetLabel = "under target"
	} else {
		s.OverBy = rs.TotalSentences - maxSentences
		s.TargetLabel = fmt.Sprintf("%d over target", s.OverBy)
	}

	if s.MissingCount > 0 {
		noun := "words"
		if s.MissingCount == 1 {
			noun = "word"
		}
		s.MissingWarning = fmt.Sprintf("%d %s not covered", s.MissingCount, noun)
	}

	s.AlgorithmLabel = strings.Replace(rs.AlgorithmUsed, "_", " ", 1)
	s.CoverageLine = fmt.Sprintf("%s%% of %d words", formatFloat(rs.CoveragePercent), rs.TotalWords)
	return s
}

// formatFloat drops a trailing ".0" so 100 prints as "100" and 87.5 as "87.5".
func formatFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
