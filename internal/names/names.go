// Package names parses and folds personal names for scoring and
// de-duplication.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contact-intel/internal/lexicon"
)

// Fold lowercases s and strips diacritics ("José" -> "jose").
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Parsed is a name split into folded tokens with honorifics and suffixes
// removed.
type Parsed struct {
	Raw      string
	Tokens   []string
	Prefixes []string
	Suffixes []string
}

// Parse splits name into tokens. "Last, First" is reordered to
// "First Last" unless the part after the comma is a suffix ("Smith, Jr.").
func Parse(name string, lex *lexicon.Lexicon) Parsed {
	p := Parsed{Raw: name}
	name = strings.TrimSpace(name)
	if name == "" {
		return p
	}

	if before, after, ok := strings.Cut(name, ","); ok {
		after = strings.TrimSpace(after)
		if after != "" && !allSuffixes(after, lex) {
			name = after + " " + before
		} else {
			name = before + " " + after
		}
	}

	fields := strings.Fields(name)
	for len(fields) > 0 && lex.IsNamePrefix(fields[0]) {
		p.Prefixes = append(p.Prefixes, cleanToken(fields[0]))
		fields = fields[1:]
	}
	for len(fields) > 0 && lex.IsNameSuffix(fields[len(fields)-1]) {
		p.Suffixes = append(p.Suffixes, cleanToken(fields[len(fields)-1]))
		fields = fields[:len(fields)-1]
	}

	for _, f := range fields {
		if tok := cleanToken(f); tok != "" {
			p.Tokens = append(p.Tokens, tok)
		}
	}
	return p
}

// First returns the first token or "".
func (p Parsed) First() string {
	if len(p.Tokens) == 0 {
		return ""
	}
	return p.Tokens[0]
}

// Last returns the final token, or "" for single-token names.
func (p Parsed) Last() string {
	if len(p.Tokens) < 2 {
		return ""
	}
	return p.Tokens[len(p.Tokens)-1]
}

// Middle returns the tokens between first and last.
func (p Parsed) Middle() []string {
	if len(p.Tokens) < 3 {
		return nil
	}
	return p.Tokens[1 : len(p.Tokens)-1]
}

// Normalized returns the folded tokens joined by single spaces.
func (p Parsed) Normalized() string {
	return strings.Join(p.Tokens, " ")
}

// HasAffixes reports whether an honorific or suffix was stripped.
func (p Parsed) HasAffixes() bool {
	return len(p.Prefixes) > 0 || len(p.Suffixes) > 0
}

// IsInitial reports whether tok is a single letter.
func IsInitial(tok string) bool {
	return len([]rune(tok)) == 1
}

// LongestRun returns the length of the longest run of one repeated rune.
func LongestRun(s string) int {
	best, run := 0, 0
	var prev rune
	for i, r := range strings.ToLower(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		if run > best {
			best = run
		}
	}
	return best
}

// cleanToken folds a raw token and drops everything but letters, digits,
// hyphens and apostrophes.
func cleanToken(s string) string {
	s = Fold(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-'")
}

func allSuffixes(s string, lex *lexicon.Lexicon) bool {
	for _, f := range strings.Fields(s) {
		if !lex.IsNameSuffix(f) {
			return false
		}
	}
	return true
}
