package jobclient

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// SourceFile is a sentence file held in memory until submission.
type SourceFile struct {
	Name string
	Data []byte
}

// maxSourceFileSize bounds OpenSourceFile. The service rejects larger uploads.
const maxSourceFileSize = 64 << 20

// OpenSourceFile reads a sentence file from disk.
func OpenSourceFile(path string) (SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("stat sentence file: %w", err)
	}
	if info.IsDir() {
		return SourceFile{}, fmt.Errorf("sentence file %s is a directory", path)
	}
	if info.Size() > maxSourceFileSize {
		return SourceFile{}, fmt.Errorf("sentence file too large: %d bytes (max %d)", info.Size(), maxSourceFileSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the user
	if err != nil {
		return SourceFile{}, fmt.Errorf("read sentence file: %w", err)
	}
	return SourceFile{Name: filepath.Base(path), Data: data}, nil
}

// Params are the user-entered job parameters. MaxSentences is kept as the
// raw text so it can be validated before anything is sent.
type Params struct {
	WordListURL  string
	MaxSentences string
	Strictness   string
	Algorithm    string
}

// JobRequest is one validated submission.
type JobRequest struct {
	File         SourceFile
	WordListURL  string
	MaxSentences int
	Strictness   string
	// Algorithm is optional; the field is omitted from the form when empty.
	Algorithm string
}

// acceptsExtension reports whether name ends in one of exts, ignoring case.
func acceptsExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func validateFile(f SourceFile, exts []string) error {
	if f.Name == "" {
		return &ValidationError{Field: v1.FieldSentenceFile, Reason: "no file selected"}
	}
	if !acceptsExtension(f.Name, exts) {
		return &ValidationError{
			Field:  v1.FieldSentenceFile,
			Reason: fmt.Sprintf("%q must end in one of %s", f.Name, strings.Join(exts, ", ")),
		}
	}
	return nil
}

// newJobRequest validates p against cfg and builds the request for f.
func newJobRequest(f *SourceFile, p Params, cfg SessionConfig) (JobRequest, error) {
	if f == nil {
		return JobRequest{}, &ValidationError{Field: v1.FieldSentenceFile, Reason: "no file selected"}
	}
	if err := validateFile(*f, cfg.AllowedExtensions); err != nil {
		return JobRequest{}, err
	}

	url := strings.TrimSpace(p.WordListURL)
	if url == "" {
		return JobRequest{}, &ValidationError{Field: v1.FieldWordListURL, Reason: "word list URL is required"}
	}
	if !strings.Contains(url, cfg.WordListPattern) {
		return JobRequest{}, &ValidationError{
			Field:  v1.FieldWordListURL,
			Reason: fmt.Sprintf("must be a %s link", cfg.WordListPattern),
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(p.MaxSentences))
	if err != nil || n <= 0 {
		return JobRequest{}, &ValidationError{
			Field:  v1.FieldMaxSentences,
			Reason: fmt.Sprintf("%q is not a positive integer", p.MaxSentences),
		}
	}

	strictness := p.Strictness
	if strictness == "" {
		strictness = v1.StrictnessNormal
	}

	return JobRequest{
		File:         *f,
		WordListURL:  url,
		MaxSentences: n,
		Strictness:   strictness,
		Algorithm:    p.Algorithm,
	}, nil
}
