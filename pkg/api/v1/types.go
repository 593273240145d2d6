// Package v1 holds the wire types shared by the optimizer service and its clients.
package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Endpoint paths.
const (
	PathOptimize    = "/api/optimize"
	PathProgress    = "/api/progress"
	PathListOutputs = "/api/list-outputs"
	PathDownload    = "/api/download/"
	PathTest        = "/api/test"
	PathHealth      = "/health"
)

// Multipart form field names for POST /api/optimize.
const (
	FieldSentenceFile = "sentence_file"
	FieldWordListURL  = "word_list_url"
	FieldMaxSentences = "max_sentences"
	FieldStrictness   = "strictness"
	FieldAlgorithm    = "algorithm"
)

// Algorithms understood by the optimizer.
const (
	AlgorithmGreedy         = "greedy"
	AlgorithmWeightedGreedy = "weighted_greedy"
	AlgorithmBeamSearch     = "beam_search"
)

// Matching strictness levels.
const (
	StrictnessExact   = "exact"
	StrictnessNormal  = "normal"
	StrictnessLenient = "lenient"
)

// Progress is the response body for GET /api/progress.
//
// Every response reflects the cumulative state of the single active job.
// Zero numeric fields mean "not reported".
type Progress struct {
	Stage             string     `json:"stage"`
	Current           int        `json:"current,omitempty"`
	Total             int        `json:"total,omitempty"`
	WordsCovered      int        `json:"words_covered"`
	SentencesSelected int        `json:"sentences_selected"`
	Complete          bool       `json:"complete"`
	Error             string     `json:"error,omitempty"`
	Results           *ResultSet `json:"results,omitempty"`
}

// ResultSet is the terminal payload of a successful job.
type ResultSet struct {
	TotalSentences  int           `json:"total_sentences"`
	WordsCovered    int           `json:"words_covered"`
	TotalWords      int           `json:"total_words"`
	CoveragePercent float64       `json:"coverage_percent"`
	Efficiency      float64       `json:"efficiency"`
	ProcessingTime  float64       `json:"processing_time"`
	AlgorithmUsed   string        `json:"algorithm_used"`
	MissingWords    []MissingWord `json:"missing_words"`
	SheetURL        string        `json:"sheet_url,omitempty"`
}

// MissingWord is a word-list entry that no selected sentence covers.
//
// Older services emitted the full word entry as an object; newer ones send
// the bare word. Both decode into the same value.
type MissingWord string

// UnmarshalJSON implements json.Unmarshaler.
func (w *MissingWord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var entry struct {
			French string `json:"french"`
			Word   string `json:"word"`
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("decode missing word entry: %w", err)
		}
		if entry.French != "" {
			*w = MissingWord(entry.French)
		} else {
			*w = MissingWord(entry.Word)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode missing word: %w", err)
	}
	*w = MissingWord(s)
	return nil
}

// StartResponse is the response body for a successful POST /api/optimize.
type StartResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OutputFile describes one artifact produced by a finished job.
type OutputFile struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"`
}

// ListOutputsResponse is the response body for GET /api/list-outputs.
// Files are ordered most recent first.
type ListOutputsResponse struct {
	Files []OutputFile `json:"files"`
}

// TestResponse is the response body for GET /api/test.
type TestResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Features []string `json:"features"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
