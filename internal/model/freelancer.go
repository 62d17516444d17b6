package model

import "time"

// Byline is one published article attributed to a contact at an outlet.
type Byline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Beats       []string  `json:"beats,omitempty"`
}

// OutletHistory is the byline history of one contact at one outlet.
type OutletHistory struct {
	OutletID     string   `json:"outlet_id"`
	OutletName   string   `json:"outlet_name,omitempty"`
	OutletDomain string   `json:"outlet_domain,omitempty"`
	Bylines      []Byline `json:"bylines"`
}

// Relationship classifies how a contact works with an outlet.
type Relationship string

const (
	RelationshipStaff       Relationship = "staff"
	RelationshipFreelancer  Relationship = "freelancer"
	RelationshipContributor Relationship = "contributor"
	RelationshipStringer    Relationship = "stringer"
	RelationshipUnknown     Relationship = "unknown"
)

// ActivityLevel buckets byline frequency at an outlet.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "high"
	ActivityMedium ActivityLevel = "medium"
	ActivityLow    ActivityLevel = "low"
)

// Evidence records one signal that contributed to a classification.
type Evidence struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Weight      float64   `json:"weight"`
	Source      string    `json:"source,omitempty"`
	ObservedAt  time.Time `json:"observed_at,omitempty"`
}

// OutletAssociation is a contact's scored relationship with one outlet.
type OutletAssociation struct {
	OutletID         string        `json:"outlet_id"`
	OutletName       string        `json:"outlet_name"`
	OutletDomain     string        `json:"outlet_domain"`
	Relationship     Relationship  `json:"relationship"`
	Confidence       float64       `json:"confidence"`
	RecencyScore     float64       `json:"recency_score"`
	ActivityLevel    ActivityLevel `json:"activity_level"`
	LastByline       time.Time     `json:"last_byline,omitempty"`
	TotalBylines     int           `json:"total_bylines"`
	RecentBylines    int           `json:"recent_bylines"`
	AverageFrequency float64       `json:"average_frequency"`
	Beats            []string      `json:"beats,omitempty"`
	Evidence         []Evidence    `json:"evidence,omitempty"`
	// BylineURLs lets incremental updates skip bylines already counted.
	BylineURLs []string `json:"byline_urls,omitempty"`
	// BylineDates keeps publication dates for cadence analysis on update.
	BylineDates []time.Time `json:"byline_dates,omitempty"`
}

// RecencyPattern describes how a contact's activity is trending.
type RecencyPattern string

const (
	PatternIncreasing RecencyPattern = "increasing"
	PatternDeclining  RecencyPattern = "declining"
	PatternSporadic   RecencyPattern = "sporadic"
	PatternConsistent RecencyPattern = "consistent"
)

// ActivitySummary aggregates activity across all outlets.
type ActivitySummary struct {
	TotalBylines     int            `json:"total_bylines"`
	BylinesLast30    int            `json:"bylines_last_30"`
	BylinesLast90    int            `json:"bylines_last_90"`
	ActiveOutlets30  int            `json:"active_outlets_30"`
	ActiveOutlets    int            `json:"active_outlets"`
	OutletCount      int            `json:"outlet_count"`
	DiversityIndex   float64        `json:"diversity_index"`
	RecencyPattern   RecencyPattern `json:"recency_pattern"`
	MostRecentByline time.Time      `json:"most_recent_byline,omitempty"`
	TopBeats         []string       `json:"top_beats,omitempty"`
}

// ContactTiming recommends when to reach out.
type ContactTiming string

const (
	TimingImmediate ContactTiming = "immediate"
	TimingMonitor   ContactTiming = "monitor"
	TimingSeasonal  ContactTiming = "seasonal"
)

// PitchApproach recommends how to frame a pitch.
type PitchApproach string

const (
	PitchOutletSpecific PitchApproach = "outlet_specific"
	PitchMultiOutlet    PitchApproach = "multi_outlet"
	PitchPersonalBrand  PitchApproach = "personal_brand"
)

// ContactStrategy is the outreach recommendation for a contact.
type ContactStrategy struct {
	ContactTiming    ContactTiming `json:"contact_timing"`
	PitchApproach    PitchApproach `json:"pitch_approach"`
	PreferredOutlets []string      `json:"preferred_outlets,omitempty"`
	Notes            []string      `json:"notes"`
	Warnings         []string      `json:"warnings"`
}

// FreelancerProfile is rebuildable from a contact and its byline history.
type FreelancerProfile struct {
	ContactID       string              `json:"contact_id"`
	IsFreelancer    bool                `json:"is_freelancer"`
	Confidence      float64             `json:"confidence"`
	Outlets         []OutletAssociation `json:"outlets"`
	PrimaryOutlet   *OutletAssociation  `json:"primary_outlet,omitempty"`
	RecentActivity  ActivitySummary     `json:"recent_activity"`
	ContactStrategy ContactStrategy     `json:"contact_strategy"`
	Reasoning       string              `json:"reasoning"`
	AnalyzedAt      time.Time           `json:"analyzed_at"`
}
