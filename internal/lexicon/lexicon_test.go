package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Compiles(t *testing.T) {
	lex := Default()
	assert.NotEmpty(t, lex.CredibleDomains)
	assert.NotEmpty(t, lex.SpamPatterns)
	assert.NotEmpty(t, lex.FreelancerBioPatterns)
	assert.NotEmpty(t, lex.JournalistKeywords)
}

func TestDomainLists(t *testing.T) {
	lex := Default()

	assert.True(t, lex.IsCredibleDomain("nytimes.com"))
	assert.True(t, lex.IsCredibleDomain("www.nytimes.com"))
	assert.True(t, lex.IsCredibleDomain("cooking.nytimes.com"))
	assert.False(t, lex.IsCredibleDomain("notnytimes.com"))
	assert.False(t, lex.IsCredibleDomain(""))

	assert.True(t, lex.IsPersonalEmailDomain("Gmail.com"))
	assert.False(t, lex.IsPersonalEmailDomain("nytimes.com"))
}

func TestCanonicalFirstName(t *testing.T) {
	lex := Default()
	assert.Equal(t, "robert", lex.CanonicalFirstName("Bob"))
	assert.Equal(t, "william", lex.CanonicalFirstName("bill"))
	assert.Equal(t, "william", lex.CanonicalFirstName("William"))
	assert.Equal(t, "zelda", lex.CanonicalFirstName("Zelda"))
}

func TestSameOutlet(t *testing.T) {
	lex := Default()
	assert.True(t, lex.SameOutlet("www.nytimes.com", "nytimes.com"))
	assert.True(t, lex.SameOutlet("nyt.com", "nytimes.com"))
	assert.True(t, lex.SameOutlet("news.bbc.co.uk", "bbc.com"))
	assert.False(t, lex.SameOutlet("nytimes.com", "wsj.com"))
	assert.False(t, lex.SameOutlet("", "wsj.com"))
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"www.nytimes.com", "nytimes.com"},
		{"cooking.nytimes.com", "nytimes.com"},
		{"news.bbc.co.uk", "bbc.co.uk"},
		{"NYTimes.com.", "nytimes.com"},
		{"localhost", "localhost"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseDomain(tt.in))
		})
	}
}

func TestMatchHelpers(t *testing.T) {
	terms := compileTerms([]string{"Reporter", "editor", " "})
	require.Len(t, terms, 2)
	assert.Equal(t, []string{"reporter"}, MatchTerms("Senior REPORTER at large", terms))
	assert.Empty(t, MatchTerms("reporters", terms))

	res, err := compileAll("test", []string{`\d+`, `x`})
	require.NoError(t, err)
	assert.True(t, AnyMatch("abc 12", res))
	assert.False(t, AnyMatch("abc", res))
	assert.Equal(t, 3, CountMatches("1 22 x", res))
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
personal_email_domains:
  - example.org
nicknames:
  theodore: [ted]
`), 0o600))

	lex, err := Load(path)
	require.NoError(t, err)

	assert.True(t, lex.IsPersonalEmailDomain("example.org"))
	assert.False(t, lex.IsPersonalEmailDomain("gmail.com"), "lists are replaced")
	assert.Equal(t, "theodore", lex.CanonicalFirstName("ted"))
	assert.Equal(t, "robert", lex.CanonicalFirstName("bob"), "maps are merged")
	assert.True(t, lex.IsCredibleDomain("nytimes.com"), "untouched tables keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nicknames: [unterminated"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestCompile_InvalidPattern(t *testing.T) {
	_, err := Compile(Tables{SpamPatterns: []PatternSpec{{Name: "broken", Pattern: "(", Weight: 1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
