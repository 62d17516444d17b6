package freelance

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

const (
	day          = 24 * time.Hour
	trailingYear = 365 * day
)

// Evidence types recorded on associations and in status reasoning.
const (
	EvidenceEmailDomain   = "email_domain"
	EvidenceFrequency     = "byline_frequency"
	EvidenceOutletMention = "outlet_mention"
	EvidenceStringerTitle = "stringer_title"
)

// associate classifies one outlet relationship and scores its recency.
func (a *Analyzer) associate(contact model.Contact, h model.OutletHistory, now time.Time) model.OutletAssociation {
	bylines := uniqueBylines(h.Bylines)

	o := model.OutletAssociation{
		OutletID:     h.OutletID,
		OutletName:   strings.TrimSpace(h.OutletName),
		OutletDomain: outletDomain(h, bylines),
		TotalBylines: len(bylines),
	}
	if o.OutletName == "" {
		o.OutletName = o.OutletDomain
	}

	inYear := 0
	recentWindow := time.Duration(a.cfg.RecentWindowDays) * day
	for _, b := range bylines {
		o.BylineURLs = append(o.BylineURLs, bylineKey(b))
		o.BylineDates = append(o.BylineDates, b.PublishedAt.UTC())
		if b.PublishedAt.IsZero() {
			continue
		}
		if b.PublishedAt.After(o.LastByline) {
			o.LastByline = b.PublishedAt.UTC()
		}
		age := now.Sub(b.PublishedAt)
		if age <= trailingYear {
			inYear++
		}
		if age <= recentWindow {
			o.RecentBylines++
		}
	}
	o.AverageFrequency = model.Round4(float64(inYear) / 12)
	o.Beats = rankBeats(bylines)

	var score float64
	source := ""
	if len(bylines) > 0 {
		source = bylines[0].URL
	}

	emailDomain := model.EmailDomain(contact.Email)
	emailMatch := emailDomain != "" && o.OutletDomain != "" && a.lex.SameOutlet(emailDomain, o.OutletDomain)
	if emailMatch {
		score += 0.4
		o.Evidence = append(o.Evidence, model.Evidence{
			Type:        EvidenceEmailDomain,
			Description: fmt.Sprintf("email domain %s matches outlet %s", emailDomain, o.OutletDomain),
			Weight:      0.4,
		})
	}

	freq := frequencyScore(o.AverageFrequency)
	if freq > 0 {
		score += freq
		o.Evidence = append(o.Evidence, model.Evidence{
			Type:        EvidenceFrequency,
			Description: fmt.Sprintf("%.2f bylines per month over the trailing year", o.AverageFrequency),
			Weight:      freq,
			Source:      source,
			ObservedAt:  o.LastByline,
		})
	}

	if mentionsOutlet(contact, o) {
		score += 0.3
		o.Evidence = append(o.Evidence, model.Evidence{
			Type:        EvidenceOutletMention,
			Description: fmt.Sprintf("title or bio mentions %s", outletLabel(o)),
			Weight:      0.3,
		})
	}

	o.Confidence = model.Round4(model.Clamp01(score))
	o.ActivityLevel = activityLevel(freq)
	o.Relationship = a.relationship(contact, o, emailMatch, freq)
	if o.Relationship == model.RelationshipStringer {
		o.Evidence = append(o.Evidence, model.Evidence{
			Type:        EvidenceStringerTitle,
			Description: "title identifies the contact as a stringer",
		})
	}

	days := -1.0
	if !o.LastByline.IsZero() {
		days = max(0, now.Sub(o.LastByline).Hours()/24)
	}
	o.RecencyScore = a.recencyScore(days, o.RecentBylines, o.Confidence, o.ActivityLevel)
	return o
}

// frequencyScore buckets articles per month.
func frequencyScore(perMonth float64) float64 {
	switch {
	case perMonth > 8:
		return 0.4
	case perMonth > 4:
		return 0.3
	case perMonth > 1:
		return 0.2
	case perMonth > 0:
		return 0.1
	default:
		return 0
	}
}

func activityLevel(freq float64) model.ActivityLevel {
	switch {
	case freq >= 0.3:
		return model.ActivityHigh
	case freq >= 0.2:
		return model.ActivityMedium
	default:
		return model.ActivityLow
	}
}

// relationship resolves the label: staff needs a matching email domain and
// high frequency, freelancer a non-matching domain with high or medium
// frequency, and any other outlet with bylines is a contributor.
func (a *Analyzer) relationship(contact model.Contact, o model.OutletAssociation, emailMatch bool, freq float64) model.Relationship {
	level := activityLevel(freq)
	switch {
	case emailMatch && level == model.ActivityHigh:
		return model.RelationshipStaff
	case !emailMatch && stringerTitle(contact.Title):
		return model.RelationshipStringer
	case !emailMatch && (level == model.ActivityHigh || level == model.ActivityMedium):
		return model.RelationshipFreelancer
	case level == model.ActivityLow && o.TotalBylines > 0:
		return model.RelationshipContributor
	default:
		return model.RelationshipUnknown
	}
}

func stringerTitle(title string) bool {
	for _, tok := range strings.Fields(names.Fold(title)) {
		if strings.Trim(tok, ".,;:()") == "stringer" {
			return true
		}
	}
	return false
}

// recencyScore decays with days since the last byline. days < 0 means no
// dated byline. The result is non-increasing in days with the other inputs
// fixed.
func (a *Analyzer) recencyScore(days float64, recentBylines int, confidence float64, level model.ActivityLevel) float64 {
	if days < 0 || a.cfg.DecayDays <= 0 {
		return 0
	}
	r := math.Exp(-days / a.cfg.DecayDays)
	if days <= float64(a.cfg.FreshDays) {
		r *= a.cfg.FreshBoost
	}
	if recentBylines > a.cfg.RecentBylinesMin {
		r *= a.cfg.RecentBoost
	}
	if days > float64(a.cfg.StaleDays) {
		r *= a.cfg.StalePenalty
	}
	r *= confidence * a.activityMultiplier(level)
	return model.Round4(model.Clamp01(r))
}

func (a *Analyzer) activityMultiplier(level model.ActivityLevel) float64 {
	switch level {
	case model.ActivityHigh:
		return a.cfg.Activity.High
	case model.ActivityMedium:
		return a.cfg.Activity.Medium
	default:
		return a.cfg.Activity.Low
	}
}

// mentionsOutlet reports whether the contact's title or bio names the
// outlet or its domain label ("nytimes").
func mentionsOutlet(contact model.Contact, o model.OutletAssociation) bool {
	text := " " + normalizeText(contact.Title+" "+contact.Bio) + " "
	if strings.TrimSpace(text) == "" {
		return false
	}
	var needles []string
	if o.OutletName != "" && o.OutletName != o.OutletDomain {
		needles = append(needles, normalizeText(o.OutletName))
	}
	if base := lexicon.BaseDomain(o.OutletDomain); base != "" {
		needles = append(needles, base)
		if label, _, ok := strings.Cut(base, "."); ok && len(label) >= 3 {
			needles = append(needles, label)
		}
	}
	for _, n := range needles {
		if n != "" && strings.Contains(text, " "+n+" ") {
			return true
		}
	}
	return false
}

// normalizeText folds text and collapses punctuation other than dots to
// single spaces.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(names.Fold(s), func(r rune) bool {
		return !(r == '.' || r == '-' || r == '\'' || 'a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".")
	}
	return strings.Join(fields, " ")
}

func outletDomain(h model.OutletHistory, bylines []model.Byline) string {
	if d := strings.TrimSpace(h.OutletDomain); d != "" {
		return strings.TrimPrefix(strings.ToLower(d), "www.")
	}
	for _, b := range bylines {
		if u, err := url.Parse(strings.TrimSpace(b.URL)); err == nil && u.Hostname() != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	return ""
}

// bylineKey identifies a byline for de-duplication: its URL, or its date
// and title when it has none.
func bylineKey(b model.Byline) string {
	if u := strings.TrimSpace(b.URL); u != "" {
		return u
	}
	return b.PublishedAt.UTC().Format(time.RFC3339) + " " + strings.TrimSpace(b.Title)
}

// uniqueBylines drops repeated bylines, keeping the first, and orders the
// rest newest first.
func uniqueBylines(in []model.Byline) []model.Byline {
	seen := make(map[string]bool, len(in))
	out := make([]model.Byline, 0, len(in))
	for _, b := range in {
		k := bylineKey(b)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return bylineKey(out[i]) < bylineKey(out[j])
	})
	return out
}

// rankBeats returns distinct lowercased beats by descending count, ties
// alphabetical.
func rankBeats(bylines []model.Byline) []string {
	counts := make(map[string]int)
	for _, b := range bylines {
		for _, beat := range b.Beats {
			beat = strings.ToLower(strings.TrimSpace(beat))
			if beat != "" {
				counts[beat]++
			}
		}
	}
	return sortedByCount(counts)
}

func sortedByCount(counts map[string]int) []string {
	if len(counts) == 0 {
		return nil
	}
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
