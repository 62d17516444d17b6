package model

import "time"

// ContentMetadata holds fetcher-computed statistics about a page.
type ContentMetadata struct {
	WordCount   int    `json:"word_count"`
	ReadingTime int    `json:"reading_time"`
	Domain      string `json:"domain"`
}

// ParsedContent is a fetched web page reduced to plain text. It is produced
// by an external fetcher and treated as read-only.
type ParsedContent struct {
	URL         string          `json:"url"`
	Title       string          `json:"title,omitempty"`
	Author      string          `json:"author,omitempty"`
	Content     string          `json:"content"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Language    string          `json:"language,omitempty"`
	Links       []string        `json:"links,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Metadata    ContentMetadata `json:"metadata"`
}

// Assessment factor keys.
const (
	FactorCredibility         = "credibility"
	FactorRelevance           = "relevance"
	FactorFreshness           = "freshness"
	FactorAuthority           = "authority"
	FactorSpamScore           = "spam_score"
	FactorContactInfoRichness = "contact_info_richness"
)

// ContentQualityAssessment is the scored view of one ParsedContent. It is
// created once per page and never mutated afterwards.
type ContentQualityAssessment struct {
	URL             string             `json:"url"`
	Credibility     float64            `json:"credibility"`
	Relevance       float64            `json:"relevance"`
	Freshness       float64            `json:"freshness"`
	Authority       float64            `json:"authority"`
	SpamScore       float64            `json:"spam_score"`
	OverallScore    float64            `json:"overall_score"`
	HasContactInfo  bool               `json:"has_contact_info"`
	IsJournalistic  bool               `json:"is_journalistic"`
	Factors         map[string]float64 `json:"factors"`
	Recommendations []string           `json:"recommendations"`
}

// ContactInfoRichness returns the contact-info sub-score recorded in Factors.
func (a *ContentQualityAssessment) ContactInfoRichness() float64 {
	if a == nil || a.Factors == nil {
		return 0
	}
	return a.Factors[FactorContactInfoRichness]
}
