package scoring

import (
	"strings"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

// TargetCriteria narrows relevance to a campaign's beats, outlets and
// languages.
type TargetCriteria struct {
	Beats     []string `json:"beats,omitempty"`
	Outlets   []string `json:"outlets,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Relevance rates how useful the contact is as a media contact, optionally
// against target criteria. content may be nil.
func (s *Scorer) Relevance(c model.ExtractedContact, content *model.ParsedContent, target *TargetCriteria) float64 {
	score := 0.5
	own := c.Title + "\n" + c.Bio

	if len(lexicon.MatchTerms(own, s.lex.JournalistKeywords)) > 0 {
		score += 0.15
	}
	if len(lexicon.MatchTerms(c.Bio, s.lex.OutletNames)) > 0 {
		score += 0.1
	}
	if lexicon.AnyMatch(c.Title, s.lex.ProfessionalTitles) {
		score += 0.1
	}

	if content != nil {
		if isByline(c.Name, content) {
			score += 0.15
		}
		if email := strings.TrimSpace(c.Email); email != "" && strings.Contains(strings.ToLower(content.Content), strings.ToLower(email)) {
			score += 0.1
		}
	}

	if target != nil {
		text := names.Fold(own)
		if content != nil {
			text += "\n" + names.Fold(content.Title)
		}
		if containsAny(text, target.Beats) {
			score += 0.1
		}
		if s.matchesOutlet(c, content, target.Outlets) {
			score += 0.1
		}
		if content != nil && languageMatches(content.Language, target.Languages) {
			score += 0.05
		}
	}

	return model.Round4(model.Clamp01(score))
}

// isByline reports whether the contact is the page author or appears in a
// "By <name>" line.
func isByline(name string, content *model.ParsedContent) bool {
	n := names.Fold(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	if author := names.Fold(strings.TrimSpace(content.Author)); author != "" {
		if strings.Contains(author, n) || strings.Contains(n, author) {
			return true
		}
	}
	body := names.Fold(content.Content)
	return strings.Contains(body, "by "+n)
}

func (s *Scorer) matchesOutlet(c model.ExtractedContact, content *model.ParsedContent, outlets []string) bool {
	if len(outlets) == 0 {
		return false
	}
	domain := s.lex.OutletKey(sourceDomain(c, content))
	emailDomain := s.lex.OutletKey(model.EmailDomain(c.Email))
	text := names.Fold(c.Title + "\n" + c.Bio)
	for _, o := range outlets {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		key := s.lex.OutletKey(o)
		if key == domain || key == emailDomain || strings.Contains(text, o) {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		t = names.Fold(strings.TrimSpace(t))
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func languageMatches(lang string, want []string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return false
	}
	base, _, _ := strings.Cut(lang, "-")
	for _, w := range want {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == lang || w == base {
			return true
		}
	}
	return false
}
