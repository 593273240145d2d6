// Package sheets loads vocabulary lists and sentence files and writes the
// CSV artifacts of finished runs.
package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
)

// ErrEmptyWordList is returned when a sheet has no usable rows.
var ErrEmptyWordList = errors.New("word list is empty")

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
var gidPattern = regexp.MustCompile(`gid=([0-9]+)`)

// WordListURL converts a Google Sheets edit or share link into its CSV
// export link. Export links and non-Sheets URLs are returned unchanged.
func WordListURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid word list URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid word list URL %q: scheme must be http or https", raw)
	}
	if u.Host != "docs.google.com" {
		return u.String(), nil
	}

	m := sheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("invalid word list URL %q: no spreadsheet id", raw)
	}
	if strings.HasSuffix(u.Path, "/export") && u.Query().Get("format") == "csv" {
		return u.String(), nil
	}

	export := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", m[1])
	gid := u.Query().Get("gid")
	if gid == "" {
		if g := gidPattern.FindStringSubmatch(u.Fragment); g != nil {
			gid = g[1]
		}
	}
	if gid != "" {
		export += "&gid=" + gid
	}
	return export, nil
}

// LoadWordList fetches a sheet as CSV and parses it with ParseWordList.
func LoadWordList(ctx context.Context, client *http.Client, sheetURL string) ([]optimizer.Word, error) {
	exportURL, err := WordListURL(sheetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch word list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch word list: unexpected status code %d (is the sheet shared publicly?)", resp.StatusCode)
	}
	return ParseWordList(resp.Body)
}

var headerNames = map[string]string{
	"french":         "french",
	"word":           "french",
	"mot":            "french",
	"english":        "english",
	"translation":    "english",
	"pos":            "pos",
	"part of speech": "pos",
	"type":           "pos",
}

// ParseWordList reads CSV rows of french, english and part of speech. A
// first row naming a "french" or "word" column is treated as a header and
// may reorder the columns. Rows with an empty first field are skipped.
func ParseWordList(r io.Reader) ([]optimizer.Word, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse word list: %w", err)
	}
	return parseWordRows(rows)
}

// parseWordRows applies the ParseWordList column rules to rows that are
// already split into cells.
func parseWordRows(rows [][]string) ([]optimizer.Word, error) {
	cols := map[string]int{"french": 0, "english": 1, "pos": 2}
	if len(rows) > 0 {
		if header, ok := detectHeader(rows[0]); ok {
			cols = header
			rows = rows[1:]
		}
	}

	cell := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(row[i], "\ufeff"))
	}

	var words []optimizer.Word
	for _, row := range rows {
		french := cell(row, "french")
		if french == "" {
			continue
		}
		words = append(words, optimizer.Word{
			French:  french,
			English: cell(row, "english"),
			POS:     cell(row, "pos"),
		})
	}
	if len(words) == 0 {
		return nil, ErrEmptyWordList
	}
	return words, nil
}

func detectHeader(row []string) (map[string]int, bool) {
	cols := map[string]int{}
	for i, c := range row {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		if key, ok := headerNames[name]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	_, ok := cols["french"]
	return cols, ok
}
