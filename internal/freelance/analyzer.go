// Package freelance classifies contacts as staff or freelance and ranks
// their outlet relationships by recency-weighted strength.
//
// Analysis runs in five stages: per-outlet relationship classification,
// recency scoring, freelancer-status detection across outlets, the primary
// outlet and activity summary, and outreach strategy. Profiles hold the
// per-outlet byline keys and dates they were built from, so UpdateProfile can
// fold in new bylines for some outlets without touching the others.
package freelance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// Analyzer builds FreelancerProfiles. It holds only read-only configuration
// and is safe for concurrent use.
type Analyzer struct {
	cfg         config.FreelanceConfig
	lex         *lexicon.Lexicon
	now         func() time.Time
	concurrency int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock sets the reference time for recency.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithConcurrency sets the worker count for AnalyzeMany.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) { a.concurrency = n }
}

// New creates an Analyzer.
func New(cfg config.FreelanceConfig, lex *lexicon.Lexicon, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:         cfg,
		lex:         lex,
		now:         time.Now,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subject is one contact with its per-outlet byline history.
type Subject struct {
	Contact   model.Contact         `json:"contact"`
	Histories []model.OutletHistory `json:"histories"`
}

// Analyze builds a profile from scratch. Histories sharing an outlet ID are
// combined and repeated bylines counted once.
func (a *Analyzer) Analyze(contact model.Contact, histories []model.OutletHistory) (*model.FreelancerProfile, error) {
	if strings.TrimSpace(contact.ID) == "" {
		return nil, eris.New("freelance: contact id is required")
	}
	now := a.now()

	var outlets []model.OutletAssociation
	for _, h := range mergeHistories(histories) {
		outlets = append(outlets, a.associate(contact, h, now))
	}

	p := a.finish(contact, outlets, now)
	zap.L().Debug("freelance: analyzed contact",
		zap.String("contact_id", contact.ID),
		zap.Int("outlets", len(p.Outlets)),
		zap.Bool("is_freelancer", p.IsFreelancer),
		zap.Float64("confidence", p.Confidence),
	)
	return p, nil
}

// AnalyzeMany analyzes subjects concurrently. Failed subjects are logged and
// reported without aborting the batch.
func (a *Analyzer) AnalyzeMany(ctx context.Context, subjects []Subject) ([]*model.FreelancerProfile, []*resilience.BatchItemError) {
	return resilience.Batch(ctx, "freelance", subjects, a.concurrency,
		func(s Subject) string { return s.Contact.ID },
		func(s Subject) (*model.FreelancerProfile, error) { return a.Analyze(s.Contact, s.Histories) },
	)
}

// UpdateProfile merges new byline batches into an existing profile. Only
// outlets present in batches are reclassified and rescored; the rest are
// kept as they were. Status, summary and strategy are then re-derived over
// all outlets. The input profile is not modified.
func (a *Analyzer) UpdateProfile(profile *model.FreelancerProfile, contact model.Contact, batches []model.OutletHistory) (*model.FreelancerProfile, error) {
	if profile == nil {
		return nil, eris.New("freelance: update requires an existing profile")
	}
	if contact.ID != "" && profile.ContactID != "" && contact.ID != profile.ContactID {
		return nil, eris.Errorf("freelance: profile %s does not belong to contact %s", profile.ContactID, contact.ID)
	}
	if contact.ID == "" {
		contact.ID = profile.ContactID
	}
	now := a.now()

	outlets := make([]model.OutletAssociation, len(profile.Outlets))
	index := make(map[string]int, len(profile.Outlets))
	for i, o := range profile.Outlets {
		outlets[i] = cloneAssociation(o)
		index[o.OutletID] = i
	}

	updated := 0
	for _, batch := range mergeHistories(batches) {
		i, ok := index[batch.OutletID]
		if !ok {
			index[batch.OutletID] = len(outlets)
			outlets = append(outlets, a.associate(contact, batch, now))
			updated++
			continue
		}

		prev := outlets[i]
		h := storedHistory(prev)
		if h.OutletName == "" {
			h.OutletName = batch.OutletName
		}
		if h.OutletDomain == "" {
			h.OutletDomain = batch.OutletDomain
		}
		h.Bylines = append(h.Bylines, batch.Bylines...)

		next := a.associate(contact, h, now)
		next.Beats = unionOrdered(prev.Beats, next.Beats)
		outlets[i] = next
		updated++
	}

	p := a.finish(contact, outlets, now)
	zap.L().Debug("freelance: updated profile",
		zap.String("contact_id", contact.ID),
		zap.Int("outlets_updated", updated),
		zap.Int("outlets", len(p.Outlets)),
	)
	return p, nil
}

// finish runs the cross-outlet stages over scored associations.
func (a *Analyzer) finish(contact model.Contact, outlets []model.OutletAssociation, now time.Time) *model.FreelancerProfile {
	rankOutlets(outlets, a.cfg)

	status := a.detectStatus(contact, outlets)
	primary := a.primaryOutlet(outlets)
	summary := a.summarize(outlets, now)

	p := &model.FreelancerProfile{
		ContactID:      contact.ID,
		IsFreelancer:   status.confidence > a.cfg.FreelancerThreshold,
		Confidence:     status.confidence,
		Outlets:        outlets,
		PrimaryOutlet:  primary,
		RecentActivity: summary,
		AnalyzedAt:     now.UTC(),
	}
	if p.Outlets == nil {
		p.Outlets = []model.OutletAssociation{}
	}
	p.ContactStrategy = a.strategy(p)
	p.Reasoning = reasoning(p, status)
	return p
}

func reasoning(p *model.FreelancerProfile, status statusResult) string {
	var b strings.Builder
	if p.IsFreelancer {
		fmt.Fprintf(&b, "classified as freelancer (confidence %.2f)", p.Confidence)
	} else {
		fmt.Fprintf(&b, "classified as staff or unaffiliated (freelancer confidence %.2f)", p.Confidence)
	}
	if len(status.signals) > 0 {
		fmt.Fprintf(&b, "; signals: %s", strings.Join(status.signals, ", "))
	}
	fmt.Fprintf(&b, "; %d outlet(s)", len(p.Outlets))
	if p.PrimaryOutlet != nil {
		fmt.Fprintf(&b, "; primary outlet %s (%s, recency %.2f)",
			outletLabel(*p.PrimaryOutlet), p.PrimaryOutlet.Relationship, p.PrimaryOutlet.RecencyScore)
	} else {
		b.WriteString("; no clear primary outlet")
	}
	return b.String()
}

// mergeHistories combines histories by outlet ID in first-seen order.
// Histories without an ID fall back to their domain, then their name.
func mergeHistories(histories []model.OutletHistory) []model.OutletHistory {
	var out []model.OutletHistory
	index := make(map[string]int)
	for _, h := range histories {
		id := strings.TrimSpace(h.OutletID)
		if id == "" {
			id = strings.ToLower(strings.TrimSpace(h.OutletDomain))
		}
		if id == "" {
			id = strings.ToLower(strings.TrimSpace(h.OutletName))
		}
		if id == "" {
			zap.L().Warn("freelance: skipping history without outlet identity", zap.Int("bylines", len(h.Bylines)))
			continue
		}
		h.OutletID = id

		i, ok := index[id]
		if !ok {
			index[id] = len(out)
			h.Bylines = append([]model.Byline(nil), h.Bylines...)
			out = append(out, h)
			continue
		}
		if out[i].OutletName == "" {
			out[i].OutletName = h.OutletName
		}
		if out[i].OutletDomain == "" {
			out[i].OutletDomain = h.OutletDomain
		}
		out[i].Bylines = append(out[i].Bylines, h.Bylines...)
	}
	return out
}

// storedHistory rebuilds the byline history an association was scored from.
// Per-byline beats are not kept, only the association's beat list.
func storedHistory(o model.OutletAssociation) model.OutletHistory {
	h := model.OutletHistory{
		OutletID:     o.OutletID,
		OutletName:   o.OutletName,
		OutletDomain: o.OutletDomain,
	}
	for i, key := range o.BylineURLs {
		var at time.Time
		if i < len(o.BylineDates) {
			at = o.BylineDates[i]
		}
		h.Bylines = append(h.Bylines, model.Byline{URL: key, PublishedAt: at})
	}
	return h
}

func cloneAssociation(o model.OutletAssociation) model.OutletAssociation {
	o.Beats = append([]string(nil), o.Beats...)
	o.Evidence = append([]model.Evidence(nil), o.Evidence...)
	o.BylineURLs = append([]string(nil), o.BylineURLs...)
	o.BylineDates = append([]time.Time(nil), o.BylineDates...)
	return o
}

func unionOrdered(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// rankOutlets orders associations by strength, then byline count, then ID.
func rankOutlets(outlets []model.OutletAssociation, cfg config.FreelanceConfig) {
	sort.SliceStable(outlets, func(i, j int) bool {
		si, sj := strength(outlets[i], cfg), strength(outlets[j], cfg)
		if si != sj {
			return si > sj
		}
		if outlets[i].TotalBylines != outlets[j].TotalBylines {
			return outlets[i].TotalBylines > outlets[j].TotalBylines
		}
		return outlets[i].OutletID < outlets[j].OutletID
	})
}

// strength is the recency-weighted relationship strength used for ranking
// and primary outlet selection.
func strength(o model.OutletAssociation, cfg config.FreelanceConfig) float64 {
	return model.Round4(cfg.PrimaryRecencyWeight*o.RecencyScore + cfg.PrimaryConfidenceWeight*o.Confidence)
}

func outletLabel(o model.OutletAssociation) string {
	switch {
	case o.OutletName != "":
		return o.OutletName
	case o.OutletDomain != "":
		return o.OutletDomain
	default:
		return o.OutletID
	}
}
