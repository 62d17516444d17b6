package dedupe

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-intel/internal/model"
)

// Merge builds the canonical record for a group. The selected contact is the
// base; empty scalar fields are backfilled from the other members in rank
// order, social profiles are unioned and metadata factors merged with the
// base winning. The base's scores and verification status are kept.
func (d *Detector) Merge(group model.DuplicateGroup, contacts []model.ExtractedContact) (model.ExtractedContact, error) {
	if !group.Contains(group.SelectedContact) {
		return model.ExtractedContact{}, eris.Errorf("dedupe: selected contact %s is not a member of group %s", group.SelectedContact, group.ID)
	}

	byID := make(map[string]model.ExtractedContact, len(contacts))
	for _, c := range contacts {
		if _, ok := byID[c.ID]; !ok {
			byID[c.ID] = c
		}
	}

	base, ok := byID[group.SelectedContact]
	if !ok {
		return model.ExtractedContact{}, eris.Errorf("dedupe: selected contact %s not found", group.SelectedContact)
	}

	var others []model.ExtractedContact
	for _, id := range group.Contacts {
		if id == group.SelectedContact {
			continue
		}
		c, ok := byID[id]
		if !ok {
			return model.ExtractedContact{}, eris.Errorf("dedupe: group %s member %s not found", group.ID, id)
		}
		others = append(others, c)
	}
	sort.SliceStable(others, func(a, b int) bool { return ranksBefore(others[a], others[b]) })

	merged := base.Clone()
	merged.IsDuplicate = false
	for _, o := range others {
		backfill(&merged.Name, o.Name)
		backfill(&merged.Title, o.Title)
		backfill(&merged.Email, o.Email)
		backfill(&merged.Bio, o.Bio)
		backfill(&merged.SourceURL, o.SourceURL)
		merged.SocialProfiles = unionProfiles(merged.SocialProfiles, o.SocialProfiles)
		merged.Metadata.ConfidenceFactors = mergeFactors(merged.Metadata.ConfidenceFactors, o.Metadata.ConfidenceFactors)
		merged.Metadata.QualityFactors = mergeFactors(merged.Metadata.QualityFactors, o.Metadata.QualityFactors)
	}
	return merged, nil
}

// MergeAll merges every group, in group order.
func (d *Detector) MergeAll(groups []model.DuplicateGroup, contacts []model.ExtractedContact) ([]model.ExtractedContact, error) {
	out := make([]model.ExtractedContact, 0, len(groups))
	for _, g := range groups {
		m, err := d.Merge(g, contacts)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func backfill(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
		*dst = src
	}
}

// unionProfiles appends profiles not already present by platform and
// handle. Matching base profiles only gain values they lack.
func unionProfiles(base, extra []model.SocialProfile) []model.SocialProfile {
	index := make(map[string]int, len(base))
	for i, p := range base {
		index[p.Key()] = i
	}
	for _, p := range extra {
		i, ok := index[p.Key()]
		if !ok {
			index[p.Key()] = len(base)
			base = append(base, p)
			continue
		}
		cur := &base[i]
		backfill(&cur.Handle, p.Handle)
		backfill(&cur.URL, p.URL)
		backfill(&cur.Bio, p.Bio)
		if cur.Followers == 0 {
			cur.Followers = p.Followers
		}
		cur.Verified = cur.Verified || p.Verified
	}
	return base
}

func mergeFactors(base, extra map[string]float64) map[string]float64 {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]float64, len(extra))
	}
	for k, v := range extra {
		if _, ok := base[k]; !ok {
			base[k] = v
		}
	}
	return base
}
