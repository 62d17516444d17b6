package model

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ExtractionMethod identifies how a contact was pulled from its source page.
type ExtractionMethod string

const (
	ExtractionAI      ExtractionMethod = "AI_BASED"
	ExtractionRule    ExtractionMethod = "RULE_BASED"
	ExtractionHybrid  ExtractionMethod = "HYBRID"
	ExtractionManual  ExtractionMethod = "MANUAL"
	ExtractionUnknown ExtractionMethod = "UNKNOWN"
)

// VerificationStatus tracks review state of an extracted contact.
type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "PENDING"
	VerificationConfirmed    VerificationStatus = "CONFIRMED"
	VerificationManualReview VerificationStatus = "MANUAL_REVIEW"
	VerificationRejected     VerificationStatus = "REJECTED"
)

// SocialProfile is a social-media account attributed to a contact.
type SocialProfile struct {
	Platform  string `json:"platform"`
	Handle    string `json:"handle,omitempty"`
	URL       string `json:"url,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
	Followers int    `json:"followers,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Key returns a normalized identity for de-duplicating profiles.
func (p SocialProfile) Key() string {
	id := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Handle), "@"))
	if id == "" {
		id = strings.ToLower(strings.TrimRight(strings.TrimSpace(p.URL), "/"))
	}
	return strings.ToLower(strings.TrimSpace(p.Platform)) + ":" + id
}

// ContactMetadata carries the per-factor breakdown written by scoring.
type ContactMetadata struct {
	ConfidenceFactors map[string]float64 `json:"confidence_factors,omitempty"`
	QualityFactors    map[string]float64 `json:"quality_factors,omitempty"`
}

// ExtractedContact is a provisional contact record produced by the extractor.
// Scoring and de-duplication are the only stages that change it.
type ExtractedContact struct {
	ID                 string             `json:"id"`
	ExtractionID       string             `json:"extraction_id"`
	SearchID           string             `json:"search_id"`
	SourceURL          string             `json:"source_url"`
	Name               string             `json:"name"`
	Title              string             `json:"title,omitempty"`
	Email              string             `json:"email,omitempty"`
	Bio                string             `json:"bio,omitempty"`
	SocialProfiles     []SocialProfile    `json:"social_profiles,omitempty"`
	ConfidenceScore    float64            `json:"confidence_score"`
	RelevanceScore     float64            `json:"relevance_score"`
	QualityScore       float64            `json:"quality_score"`
	ExtractionMethod   ExtractionMethod   `json:"extraction_method"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	IsDuplicate        bool               `json:"is_duplicate"`
	Metadata           ContactMetadata    `json:"metadata"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Clone returns a deep copy so stages can update scores without aliasing
// the caller's slices and maps.
func (c ExtractedContact) Clone() ExtractedContact {
	out := c
	out.SocialProfiles = slices.Clone(c.SocialProfiles)
	out.Metadata.ConfidenceFactors = maps.Clone(c.Metadata.ConfidenceFactors)
	out.Metadata.QualityFactors = maps.Clone(c.Metadata.QualityFactors)
	return out
}

// Contact is the de-duplicated person handed to freelancer analysis.
type Contact struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Title          string          `json:"title,omitempty"`
	Email          string          `json:"email,omitempty"`
	Bio            string          `json:"bio,omitempty"`
	SocialProfiles []SocialProfile `json:"social_profiles,omitempty"`
}

// ContactFromExtracted projects an extracted record onto a Contact.
func ContactFromExtracted(c ExtractedContact) Contact {
	return Contact{
		ID:             c.ID,
		Name:           c.Name,
		Title:          c.Title,
		Email:          c.Email,
		Bio:            c.Bio,
		SocialProfiles: slices.Clone(c.SocialProfiles),
	}
}

// EmailDomain returns the lowercased domain part of an email, or "".
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}
