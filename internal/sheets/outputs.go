package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
	"github.com/fyrsmithlabs/vocabopt/internal/sanitize"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// ErrOutputNotFound is returned by Open for unknown or unsafe names.
var ErrOutputNotFound = errors.New("file not found")

// maxListed is how many outputs List returns.
const maxListed = 20

const timestampLayout = "20060102_150405"

// OutputStore keeps the CSV artifacts of finished runs in one directory.
type OutputStore struct {
	dir string
}

// NewOutputStore creates dir if needed.
func NewOutputStore(dir string) (*OutputStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &OutputStore{dir: dir}, nil
}

// Dir returns the output directory.
func (s *OutputStore) Dir() string {
	return s.dir
}

// Save writes the sentence, summary, missing-word and coverage CSVs for r
// and returns their names. The missing-word file is only written when some
// words are missing.
func (s *OutputStore) Save(r *optimizer.Result, at time.Time) ([]string, error) {
	ts := at.Format(timestampLayout)

	files := []struct {
		prefix string
		skip   bool
		rows   func() [][]string
	}{
		{"optimized_sentences", false, func() [][]string { return sentenceRows(r) }},
		{"summary", false, func() [][]string { return summaryRows(r) }},
		{"missing_words", len(r.Missing) == 0, func() [][]string { return missingRows(r) }},
		{"coverage_map", false, func() [][]string { return coverageRows(r) }},
	}

	var names []string
	for _, f := range files {
		if f.skip {
			continue
		}
		name := fmt.Sprintf("%s_%s.csv", f.prefix, ts)
		if err := writeCSV(filepath.Join(s.dir, name), f.rows()); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 -- name built by Save
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func itoa(i int) string { return strconv.Itoa(i) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func sentenceRows(r *optimizer.Result) [][]string {
	rows := [][]string{{"Row", "Sentence", "Words Covered", "New Words", "Total Words"}}
	for i, s := range r.Selected {
		rows = append(rows, []string{
			itoa(i + 1), s.Sentence, strings.Join(s.NewWords, ", "), itoa(len(s.NewWords)), itoa(s.TotalWords),
		})
	}
	return rows
}

func summaryRows(r *optimizer.Result) [][]string {
	return [][]string{
		{"Metric", "Value"},
		{"Total Sentences", itoa(r.TotalSentences)},
		{"Words Covered", fmt.Sprintf("%d/%d", r.WordsCovered, r.TotalWords)},
		{"Coverage %", ftoa(r.CoveragePercent)},
		{"Efficiency", ftoa(r.Efficiency)},
		{"Algorithm", r.Algorithm},
		{"Processing Time", ftoa(r.ProcessingTime)},
	}
}

func missingRows(r *optimizer.Result) [][]string {
	rows := [][]string{{"French", "English", "POS"}}
	for _, w := range r.Missing {
		rows = append(rows, []string{w.French, w.English, w.POS})
	}
	return rows
}

func coverageRows(r *optimizer.Result) [][]string {
	rows := [][]string{{"French", "English", "POS", "Found", "Count"}}
	for _, c := range r.CoverageMap {
		found := "No"
		if c.Found {
			found = "Yes"
		}
		rows = append(rows, []string{c.Word.French, c.Word.English, c.Word.POS, found, itoa(c.SentenceCount)})
	}
	return rows
}

// List returns up to 20 .csv outputs, most recently modified first.
func (s *OutputStore) List() ([]v1.OutputFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []v1.OutputFile{}, nil
		}
		return nil, fmt.Errorf("list outputs: %w", err)
	}

	files := make([]v1.OutputFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, v1.OutputFile{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: float64(info.ModTime().UnixNano()) / 1e9,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Modified != files[j].Modified {
			return files[i].Modified > files[j].Modified
		}
		return files[i].Name > files[j].Name
	})
	if len(files) > maxListed {
		files = files[:maxListed]
	}
	return files, nil
}

// Open returns the named output for reading. Names that leave the output
// directory are reported as not found.
func (s *OutputStore) Open(name string) (io.ReadSeekCloser, os.FileInfo, error) {
	path, err := sanitize.Within(s.dir, name)
	if err != nil {
		return nil, nil, ErrOutputNotFound
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil, ErrOutputNotFound
	}
	f, err := os.Open(path) // #nosec G304 -- name confined to dir above
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, info, nil
}
