package sheets

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ParseSentences reads sentences from an uploaded file. For .csv and .tsv
// the first column of every row is used; for .txt every non-blank line.
func ParseSentences(name string, r io.Reader) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".tsv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		if ext == ".tsv" {
			cr.Comma = '\t'
		}

		var out []string
		for {
			row, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			if len(row) == 0 {
				continue
			}
			if s := clean(row[0]); s != "" {
				out = append(out, s)
			}
		}
		return out, nil

	case ".txt":
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		var out []string
		for sc.Scan() {
			if s := clean(sc.Text()); s != "" {
				out = append(out, s)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported sentence file type %q", ext)
	}
}

func clean(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
