package sheets

import (
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/vocabopt/internal/sanitize"
)

// StoreUpload copies r into dir under the sanitized form of name and
// returns the written path.
func StoreUpload(dir, name string, r io.Reader) (string, error) {
	safe := sanitize.FileName(name)
	if safe == "" {
		return "", fmt.Errorf("unusable file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path, err := sanitize.Within(dir, safe)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 -- name sanitized above
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
