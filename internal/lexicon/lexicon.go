// Package lexicon loads the declarative pattern tables (domain lists, spam
// and freelancer indicators, nickname and outlet alias tables) that drive the
// scoring heuristics. Tables are compiled once and are read-only afterwards,
// so a *Lexicon is safe for concurrent use.
package lexicon

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// PatternSpec is a named, weighted regular expression in YAML form.
type PatternSpec struct {
	Name    string  `yaml:"name"`
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// Tables is the raw YAML shape of the lexicon.
type Tables struct {
	CredibleDomains                []string            `yaml:"credible_domains"`
	TopTierDomains                 []string            `yaml:"top_tier_domains"`
	SuspiciousDomainPatterns       []string            `yaml:"suspicious_domain_patterns"`
	SpamDomains                    []string            `yaml:"spam_domains"`
	SpamPatterns                   []PatternSpec       `yaml:"spam_patterns"`
	JournalistKeywords             []string            `yaml:"journalist_keywords"`
	JournalisticIndicators         []string            `yaml:"journalistic_indicators"`
	OutletNames                    []string            `yaml:"outlet_names"`
	ProfessionalTitlePatterns      []string            `yaml:"professional_title_patterns"`
	BylinePatterns                 []string            `yaml:"byline_patterns"`
	ContactSectionPatterns         []string            `yaml:"contact_section_patterns"`
	StructurePatterns              []string            `yaml:"structure_patterns"`
	ExpertisePatterns              []PatternSpec       `yaml:"expertise_patterns"`
	AffiliationPatterns            []string            `yaml:"affiliation_patterns"`
	SupportedLanguages             []string            `yaml:"supported_languages"`
	TrackingParams                 []string            `yaml:"tracking_params"`
	ProfessionalBackgroundKeywords []string            `yaml:"professional_background_keywords"`
	SuspiciousNamePatterns         []string            `yaml:"suspicious_name_patterns"`
	NamePrefixes                   []string            `yaml:"name_prefixes"`
	NameSuffixes                   []string            `yaml:"name_suffixes"`
	FreelancerBioPatterns          []PatternSpec       `yaml:"freelancer_bio_patterns"`
	FreelancerTitlePatterns        []PatternSpec       `yaml:"freelancer_title_patterns"`
	SocialFreelancePatterns        []string            `yaml:"social_freelance_patterns"`
	PersonalEmailDomains           []string            `yaml:"personal_email_domains"`
	Nicknames                      map[string][]string `yaml:"nicknames"`
	OutletAliases                  map[string][]string `yaml:"outlet_aliases"`
	TitleModifiers                 []string            `yaml:"title_modifiers"`
}

// Pattern is a compiled, weighted regular expression.
type Pattern struct {
	Name   string
	Re     *regexp.Regexp
	Weight float64
}

// Term is a keyword or phrase matched on word boundaries.
type Term struct {
	Text string
	Re   *regexp.Regexp
}

// Lexicon is the compiled, immutable form of Tables.
type Lexicon struct {
	CredibleDomains          []string
	TopTierDomains           []string
	SuspiciousDomainPatterns []*regexp.Regexp
	SpamDomains              []string
	SpamPatterns             []Pattern
	JournalistKeywords       []Term
	JournalisticIndicators   []Term
	OutletNames              []Term
	ProfessionalTitles       []*regexp.Regexp
	BylinePatterns           []*regexp.Regexp
	ContactSectionPatterns   []*regexp.Regexp
	StructurePatterns        []*regexp.Regexp
	ExpertisePatterns        []Pattern
	AffiliationPatterns      []*regexp.Regexp
	BackgroundKeywords       []Term
	SuspiciousNamePatterns   []*regexp.Regexp
	FreelancerBioPatterns    []Pattern
	FreelancerTitlePatterns  []Pattern
	SocialFreelancePatterns  []*regexp.Regexp

	supportedLanguages   map[string]struct{}
	trackingParams       map[string]struct{}
	namePrefixes         map[string]struct{}
	nameSuffixes         map[string]struct{}
	personalEmailDomains map[string]struct{}
	titleModifiers       map[string]struct{}
	nicknameCanonical    map[string]string
	outletCanonical      map[string]string
}

// Default compiles the embedded tables. It panics only if the embedded YAML
// is invalid, which is a build defect.
func Default() *Lexicon {
	lex, err := Load("")
	if err != nil {
		panic(err)
	}
	return lex
}

// Load compiles the embedded tables, then applies the override file at path
// if one is given. Top-level keys present in the override replace the
// embedded values; map tables are merged key by key.
func Load(path string) (*Lexicon, error) {
	var t Tables
	if err := yaml.Unmarshal(defaultTables, &t); err != nil {
		return nil, eris.Wrap(err, "lexicon: parse embedded tables")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "lexicon: read %s", path)
		}
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, eris.Wrapf(err, "lexicon: parse %s", path)
		}
	}

	return Compile(t)
}

// Compile turns raw tables into a Lexicon.
func Compile(t Tables) (*Lexicon, error) {
	lex := &Lexicon{
		CredibleDomains:      lowerAll(t.CredibleDomains),
		TopTierDomains:       lowerAll(t.TopTierDomains),
		SpamDomains:          lowerAll(t.SpamDomains),
		supportedLanguages:   toSet(t.SupportedLanguages),
		trackingParams:       toSet(t.TrackingParams),
		namePrefixes:         toSet(t.NamePrefixes),
		nameSuffixes:         toSet(t.NameSuffixes),
		personalEmailDomains: toSet(t.PersonalEmailDomains),
		titleModifiers:       toSet(t.TitleModifiers),
		nicknameCanonical:    make(map[string]string),
		outletCanonical:      make(map[string]string),
	}

	var err error
	regexLists := []struct {
		name string
		src  []string
		dst  *[]*regexp.Regexp
	}{
		{"suspicious_domain_patterns", t.SuspiciousDomainPatterns, &lex.SuspiciousDomainPatterns},
		{"professional_title_patterns", t.ProfessionalTitlePatterns, &lex.ProfessionalTitles},
		{"byline_patterns", t.BylinePatterns, &lex.BylinePatterns},
		{"contact_section_patterns", t.ContactSectionPatterns, &lex.ContactSectionPatterns},
		{"structure_patterns", t.StructurePatterns, &lex.StructurePatterns},
		{"affiliation_patterns", t.AffiliationPatterns, &lex.AffiliationPatterns},
		{"suspicious_name_patterns", t.SuspiciousNamePatterns, &lex.SuspiciousNamePatterns},
		{"social_freelance_patterns", t.SocialFreelancePatterns, &lex.SocialFreelancePatterns},
	}
	for _, rl := range regexLists {
		if *rl.dst, err = compileAll(rl.name, rl.src); err != nil {
			return nil, err
		}
	}

	patternLists := []struct {
		name string
		src  []PatternSpec
		dst  *[]Pattern
	}{
		{"spam_patterns", t.SpamPatterns, &lex.SpamPatterns},
		{"expertise_patterns", t.ExpertisePatterns, &lex.ExpertisePatterns},
		{"freelancer_bio_patterns", t.FreelancerBioPatterns, &lex.FreelancerBioPatterns},
		{"freelancer_title_patterns", t.FreelancerTitlePatterns, &lex.FreelancerTitlePatterns},
	}
	for _, pl := range patternLists {
		if *pl.dst, err = compilePatterns(pl.name, pl.src); err != nil {
			return nil, err
		}
	}

	lex.JournalistKeywords = compileTerms(t.JournalistKeywords)
	lex.JournalisticIndicators = compileTerms(t.JournalisticIndicators)
	lex.OutletNames = compileTerms(t.OutletNames)
	lex.BackgroundKeywords = compileTerms(t.ProfessionalBackgroundKeywords)

	// Sorted keys keep canonical assignment stable when a nickname is shared
	// between two full names (e.g. alex).
	for _, canonical := range sortedKeys(t.Nicknames) {
		c := strings.ToLower(canonical)
		if _, ok := lex.nicknameCanonical[c]; !ok {
			lex.nicknameCanonical[c] = c
		}
		for _, nick := range t.Nicknames[canonical] {
			n := strings.ToLower(nick)
			if _, ok := lex.nicknameCanonical[n]; !ok {
				lex.nicknameCanonical[n] = c
			}
		}
	}
	for _, canonical := range sortedKeys(t.OutletAliases) {
		c := strings.ToLower(canonical)
		lex.outletCanonical[c] = c
		for _, alias := range t.OutletAliases[canonical] {
			lex.outletCanonical[strings.ToLower(alias)] = c
		}
	}

	return lex, nil
}

// IsCredibleDomain matches domain exactly or as a subdomain of a listed
// domain. Entries starting with "." match as suffixes (".gov").
func (l *Lexicon) IsCredibleDomain(domain string) bool {
	return matchDomainList(domain, l.CredibleDomains)
}

// IsTopTierDomain reports membership in the top-tier outlet list.
func (l *Lexicon) IsTopTierDomain(domain string) bool {
	return matchDomainList(domain, l.TopTierDomains)
}

// IsSuspiciousDomain reports whether any suspicious pattern matches.
func (l *Lexicon) IsSuspiciousDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, re := range l.SuspiciousDomainPatterns {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// IsSpamDomain reports whether domain contains a known spam substring.
func (l *Lexicon) IsSpamDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, s := range l.SpamDomains {
		if s != "" && strings.Contains(domain, s) {
			return true
		}
	}
	return false
}

// IsSupportedLanguage reports whether lang (or its base tag) is supported.
func (l *Lexicon) IsSupportedLanguage(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return false
	}
	if _, ok := l.supportedLanguages[lang]; ok {
		return true
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		_, ok := l.supportedLanguages[lang[:i]]
		return ok
	}
	return false
}

// IsTrackingParam reports whether a query parameter is a tracking marker.
func (l *Lexicon) IsTrackingParam(name string) bool {
	_, ok := l.trackingParams[strings.ToLower(name)]
	return ok
}

// IsNamePrefix reports whether tok is an honorific such as "Mr".
func (l *Lexicon) IsNamePrefix(tok string) bool {
	_, ok := l.namePrefixes[normalizeAffix(tok)]
	return ok
}

// IsNameSuffix reports whether tok is a generational or degree suffix.
func (l *Lexicon) IsNameSuffix(tok string) bool {
	_, ok := l.nameSuffixes[normalizeAffix(tok)]
	return ok
}

// IsPersonalEmailDomain reports whether domain is a consumer mail provider.
func (l *Lexicon) IsPersonalEmailDomain(domain string) bool {
	_, ok := l.personalEmailDomains[strings.ToLower(domain)]
	return ok
}

// IsTitleModifier reports whether tok is a seniority modifier ("senior").
func (l *Lexicon) IsTitleModifier(tok string) bool {
	_, ok := l.titleModifiers[strings.ToLower(strings.TrimSuffix(tok, "."))]
	return ok
}

// CanonicalFirstName maps a nickname to its full form ("bill" -> "william").
// Unknown names are returned lowercased.
func (l *Lexicon) CanonicalFirstName(name string) string {
	n := strings.ToLower(name)
	if c, ok := l.nicknameCanonical[n]; ok {
		return c
	}
	return n
}

// OutletKey maps a domain to its canonical organization domain.
func (l *Lexicon) OutletKey(domain string) string {
	d := strings.ToLower(domain)
	if c, ok := l.outletCanonical[d]; ok {
		return c
	}
	return d
}

// SameOutlet reports whether two hosts belong to one organization: the same
// registrable domain or aliases of one outlet.
func (l *Lexicon) SameOutlet(a, b string) bool {
	a, b = BaseDomain(a), BaseDomain(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || l.OutletKey(a) == l.OutletKey(b)
}

// BaseDomain reduces a host to its registrable domain, keeping three labels
// for two-letter country suffixes with a short second level ("bbc.co.uk").
func BaseDomain(host string) string {
	host = strings.TrimPrefix(strings.ToLower(strings.Trim(strings.TrimSpace(host), ".")), "www.")
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	n := len(labels)
	if n <= 2 {
		return host
	}
	if len(labels[n-1]) == 2 && len(labels[n-2]) <= 3 {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// MatchTerms returns the distinct terms found in text, in table order.
func MatchTerms(text string, terms []Term) []string {
	var out []string
	for _, t := range terms {
		if t.Re.MatchString(text) {
			out = append(out, t.Text)
		}
	}
	return out
}

// AnyMatch reports whether any expression matches text.
func AnyMatch(text string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// CountMatches returns the total number of matches of all expressions.
func CountMatches(text string, res []*regexp.Regexp) int {
	n := 0
	for _, re := range res {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

func matchDomainList(domain string, list []string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	if domain == "" {
		return false
	}
	for _, d := range list {
		if strings.HasPrefix(d, ".") {
			if strings.HasSuffix(domain, d) {
				return true
			}
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func compileAll(name string, src []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(src))
	for _, s := range src {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, eris.Wrapf(err, "lexicon: compile %s %q", name, s)
		}
		out = append(out, re)
	}
	return out, nil
}

func compilePatterns(name string, src []PatternSpec) ([]Pattern, error) {
	out := make([]Pattern, 0, len(src))
	for _, p := range src {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "lexicon: compile %s %q", name, p.Name)
		}
		out = append(out, Pattern{Name: p.Name, Re: re, Weight: p.Weight})
	}
	return out, nil
}

func compileTerms(src []string) []Term {
	out := make([]Term, 0, len(src))
	for _, s := range src {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, Term{Text: s, Re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `\b`)})
	}
	return out
}

func normalizeAffix(tok string) string {
	return strings.ToLower(strings.Trim(strings.ReplaceAll(tok, ".", ""), ", "))
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
