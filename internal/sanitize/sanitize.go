// Package sanitize turns untrusted file names into safe base names.
//
// Uploaded sentence files and downloaded output files both cross a trust
// boundary: names come from a browser form or from the service listing.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxNameLength is the maximum length of a sanitized file name.
	MaxNameLength = 128

	// HashSuffixLength is the length of the hash suffix added to truncated names.
	// Format: _<8-char-hash> = 9 characters total
	HashSuffixLength = 9
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName reduces an uploaded file name to a base name made of ASCII
// letters, digits, dots, dashes and underscores.
//
// Rules applied:
//   - Accents are folded ("élan" -> "elan")
//   - Directory components are dropped, with either separator
//   - Whitespace runs become one underscore
//   - Leading dots and underscores are trimmed
//   - Names longer than MaxNameLength are truncated with a hash suffix,
//     keeping the extension
//
// An empty result means the name is unusable.
func FileName(name string) string {
	if folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), name); err == nil {
		name = folded
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")

	if len(name) > MaxNameLength {
		name = truncateWithHash(name)
	}
	return name
}

// truncateWithHash truncates a name to fit within MaxNameLength, appending a
// hash of the original before the extension.
//
// Format: <truncated>_<8-char-hash><ext>
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	hashSuffix := "_" + hex.EncodeToString(hash[:])[:8]

	ext := filepath.Ext(s)
	if len(ext) > 16 {
		ext = ""
	}
	stem := strings.TrimSuffix(s, ext)

	maxStem := MaxNameLength - HashSuffixLength - len(ext)
	if len(stem) > maxStem {
		stem = stem[:maxStem]
	}
	stem = strings.TrimRight(stem, "_.-")

	return stem + hashSuffix + ext
}
