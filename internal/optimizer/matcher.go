package optimizer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// Word is one entry of the vocabulary list. French may hold gender
// variants separated by "|", such as "un|une".
type Word struct {
	French  string
	English string
	POS     string
}

const (
	// minStemRunes is the shortest token matched by stem in lenient mode.
	minStemRunes = 4
	stemRunes    = 5
)

type phrase struct {
	re   *regexp.Regexp
	word int
}

// Matcher finds vocabulary words in sentences.
//
// Matching is token based. Multi-word variants are matched as whole
// phrases. Strictness controls how far tokens are normalized:
//
//	exact    lower-casing only; "l'homme" is one token
//	normal   also folds accents and strips elided articles (l', d', qu'...)
//	lenient  also matches tokens sharing a five-rune prefix
//
// A Matcher is safe for concurrent use.
type Matcher struct {
	strictness string
	tokens     map[string][]int
	stems      map[string][]int
	phrases    []phrase
}

// NewMatcher indexes words for the given strictness.
func NewMatcher(words []Word, strictness string) (*Matcher, error) {
	switch strictness {
	case v1.StrictnessExact, v1.StrictnessNormal, v1.StrictnessLenient:
	case "":
		strictness = v1.StrictnessNormal
	default:
		return nil, fmt.Errorf("unknown strictness %q", strictness)
	}

	m := &Matcher{
		strictness: strictness,
		tokens:     make(map[string][]int),
		stems:      make(map[string][]int),
	}

	for idx, w := range words {
		for _, variant := range Variants(w.French) {
			v := m.normalize(variant)
			if strings.ContainsFunc(v, unicode.IsSpace) {
				m.phrases = append(m.phrases, phrase{re: phraseRegexp(v), word: idx})
				continue
			}
			for _, tok := range m.tokenize(v) {
				m.tokens[tok] = appendUnique(m.tokens[tok], idx)
				if stem, ok := m.stem(tok); ok {
					m.stems[stem] = appendUnique(m.stems[stem], idx)
				}
			}
		}
	}
	return m, nil
}

// Strictness returns the effective strictness level.
func (m *Matcher) Strictness() string {
	return m.strictness
}

// Match returns the sorted indices of the words found in sentence.
func (m *Matcher) Match(sentence string) []int {
	if strings.TrimSpace(sentence) == "" {
		return nil
	}
	s := m.normalize(sentence)

	found := make(map[int]struct{})
	for _, p := range m.phrases {
		if p.re.MatchString(s) {
			found[p.word] = struct{}{}
		}
	}
	for _, tok := range m.tokenize(s) {
		for _, idx := range m.tokens[tok] {
			found[idx] = struct{}{}
		}
		if stem, ok := m.stem(tok); ok {
			for _, idx := range m.stems[stem] {
				found[idx] = struct{}{}
			}
		}
	}

	out := make([]int, 0, len(found))
	for idx := range found {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// Variants splits a word-list entry on "|".
func Variants(french string) []string {
	var out []string
	for _, v := range strings.Split(french, "|") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (m *Matcher) normalize(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	s = cases.Lower(language.French).String(norm.NFC.String(s))
	if m.strictness == v1.StrictnessExact {
		return s
	}
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		return s
	}
	return folded
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' || r == '-'
}

// elisions are the clitics French attaches with an apostrophe.
var elisions = []string{"jusqu'", "lorsqu'", "puisqu'", "quoiqu'", "qu'", "l'", "d'", "j'", "m'", "n'", "s'", "t'", "c'"}

func (m *Matcher) tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !isTokenRune(r) })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f == "" {
			continue
		}
		out = append(out, f)
		if m.strictness == v1.StrictnessExact {
			continue
		}
		for _, e := range elisions {
			if rest, ok := strings.CutPrefix(f, e); ok && rest != "" {
				out = append(out, rest)
				break
			}
		}
	}
	return out
}

func (m *Matcher) stem(tok string) (string, bool) {
	if m.strictness != v1.StrictnessLenient {
		return "", false
	}
	r := []rune(tok)
	if len(r) < minStemRunes {
		return "", false
	}
	return string(r[:min(len(r), stemRunes)]), true
}

// phraseRegexp matches v bounded by non-letters. Go's \b is ASCII only.
func phraseRegexp(v string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(v) + `(?:$|[^\p{L}\p{N}])`)
}

func appendUnique(s []int, v int) []int {
	if n := len(s); n > 0 && s[n-1] == v {
		return s
	}
	return append(s, v)
}
