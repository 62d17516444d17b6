package assess

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
)

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe  = regexp.MustCompile(`(\+?\d{1,2}[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)
	handleRe = regexp.MustCompile(`(^|[\s(])@[A-Za-z0-9_]{2,15}\b`)
	tokenRe  = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// page is a ParsedContent with the derived values every signal needs.
type page struct {
	content   model.ParsedContent
	url       *url.URL
	domain    string
	text      string // title + body
	wordCount int
}

func newPage(c model.ParsedContent, u *url.URL) page {
	domain := c.Metadata.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")

	words := c.Metadata.WordCount
	if words <= 0 {
		words = len(strings.Fields(c.Content))
	}

	return page{
		content:   c,
		url:       u,
		domain:    domain,
		text:      c.Title + "\n" + c.Content,
		wordCount: words,
	}
}

func (a *Assessor) credibility(p page) float64 {
	score := 0.5
	if a.lex.IsCredibleDomain(p.domain) {
		score += 0.2
	}
	if a.lex.IsSuspiciousDomain(p.domain) {
		score -= 0.2
	}
	if strings.TrimSpace(p.content.Author) != "" {
		score += 0.1
	}
	if p.content.PublishedAt != nil {
		score += 0.05
	}
	if n := len([]rune(strings.TrimSpace(p.content.Title))); n >= a.cfg.MinTitleLength && n <= a.cfg.MaxTitleLength {
		score += 0.05
	}
	if p.wordCount >= a.cfg.MinWordCount && p.wordCount <= a.cfg.MaxWordCount {
		score += 0.1
	}
	if a.lex.IsSupportedLanguage(p.content.Language) {
		score += 0.05
	}
	if len(p.content.Links) >= a.cfg.MinLinks {
		score += 0.05
	}
	if len(p.content.Images) >= 1 {
		score += 0.05
	}
	return model.Round4(model.Clamp01(score))
}

func (a *Assessor) relevance(p page) float64 {
	score := 0.5
	if len(lexicon.MatchTerms(p.content.Title, a.lex.JournalistKeywords)) > 0 {
		score += 0.15
	}
	if emailRe.MatchString(p.content.Content) || phoneRe.MatchString(p.content.Content) || handleRe.MatchString(p.content.Content) {
		score += 0.1
	}
	if lexicon.AnyMatch(p.content.Content, a.lex.BylinePatterns) {
		score += 0.1
	}
	if len(lexicon.MatchTerms(p.text, a.lex.OutletNames)) > 0 {
		score += 0.1
	}
	if lexicon.AnyMatch(p.text, a.lex.ProfessionalTitles) {
		score += 0.1
	}
	if lexicon.AnyMatch(p.content.Content, a.lex.ContactSectionPatterns) {
		score += 0.05
	}
	return model.Round4(model.Clamp01(score))
}

// freshness is a step function of days since publication. Undated pages are
// neutral.
func (a *Assessor) freshness(published *time.Time) float64 {
	if published == nil {
		return 0.5
	}
	days := a.now().Sub(*published).Hours() / 24
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.9
	case days <= 30:
		return 0.8
	case days <= 90:
		return 0.6
	case days <= 365:
		return 0.4
	default:
		return 0.2
	}
}

func (a *Assessor) authority(p page) float64 {
	score := 0.5
	switch {
	case a.lex.IsTopTierDomain(p.domain):
		score += 0.2
	case a.lex.IsCredibleDomain(p.domain):
		score += 0.1
	}
	if strings.EqualFold(p.url.Scheme, "https") {
		score += 0.1
	}
	if a.isProfessionalURL(p.url) {
		score += 0.05
	}

	structure := 0.0
	for _, re := range a.lex.StructurePatterns {
		if re.MatchString(p.content.Content) {
			structure += 0.05
		}
	}
	score += math.Min(structure, 0.15)

	expertise := 0.0
	for _, pat := range a.lex.ExpertisePatterns {
		if pat.Re.MatchString(p.text) {
			expertise += pat.Weight
		}
	}
	score += math.Min(expertise, 0.2)

	if a.lex.IsSuspiciousDomain(p.domain) {
		score -= 0.2
	}
	return model.Round4(model.Clamp01(score))
}

// isProfessionalURL rejects URLs without a host or carrying tracking
// parameters.
func (a *Assessor) isProfessionalURL(u *url.URL) bool {
	if u.Host == "" {
		return false
	}
	for name := range u.Query() {
		if a.lex.IsTrackingParam(name) {
			return false
		}
	}
	return true
}

// spamScore is a risk score: higher is worse.
func (a *Assessor) spamScore(p page) float64 {
	score := 0.0
	for _, pat := range a.lex.SpamPatterns {
		if pat.Re.MatchString(p.text) {
			score += pat.Weight
		}
	}

	if strings.Count(p.text, "!")+strings.Count(p.text, "?") > 10 {
		score += 0.15
	}

	tokens := tokenRe.FindAllString(p.text, -1)
	if countAllCaps(tokens) >= 5 {
		score += 0.1
	}
	if repetitionRatio(tokens) > 0.1 {
		score += 0.2
	}

	if a.lex.IsSpamDomain(p.domain) {
		score += 0.5
	}
	return model.Round4(model.Clamp01(score))
}

// contactInfoRichness is a weighted sum of capped, normalized counts of
// contact signals.
func (a *Assessor) contactInfoRichness(p page) (float64, bool) {
	body := p.content.Content
	emails := len(distinct(emailRe.FindAllString(body, -1)))
	phones := len(distinct(phoneRe.FindAllString(body, -1)))
	handles := len(distinct(trimAll(handleRe.FindAllString(body, -1))))
	titles := lexicon.CountMatches(body, a.lex.ProfessionalTitles)
	affiliations := lexicon.CountMatches(body, a.lex.AffiliationPatterns)

	score := 0.25*capped(emails, 3) +
		0.20*capped(phones, 2) +
		0.20*capped(handles, 3) +
		0.15*capped(titles, 2) +
		0.10*capped(affiliations, 2)
	if lexicon.AnyMatch(body, a.lex.ContactSectionPatterns) {
		score += 0.10
	}
	return model.Round4(model.Clamp01(score)), emails+phones+handles > 0
}

func capped(n, limit int) float64 {
	if n > limit {
		n = limit
	}
	return float64(n) / float64(limit)
}

func countAllCaps(tokens []string) int {
	n := 0
	for _, tok := range tokens {
		letters := 0
		upper := true
		for _, r := range tok {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if !unicode.IsUpper(r) {
				upper = false
				break
			}
		}
		if upper && letters >= 3 {
			n++
		}
	}
	return n
}

// repetitionRatio is the share of distinct terms (3+ chars) that occur more
// than ten times. Keyword-stuffed pages have few terms repeated heavily.
func repetitionRatio(tokens []string) float64 {
	counts := make(map[string]int)
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		counts[strings.ToLower(tok)]++
	}
	if len(counts) == 0 {
		return 0
	}
	repeated := 0
	for _, c := range counts {
		if c > 10 {
			repeated++
		}
	}
	return float64(repeated) / float64(len(counts))
}

func distinct(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = struct{}{}
	}
	return set
}

func trimAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.TrimLeft(s, " \t\n(")
	}
	return out
}
