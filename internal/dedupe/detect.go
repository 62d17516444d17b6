// Package dedupe clusters contacts that refer to the same person and merges
// each cluster into one canonical record.
//
// Grouping is union-find with a complete-link check. Candidate pairs scoring
// above Threshold are visited in descending similarity (ties by contact
// ID) and two clusters are joined only if every cross pair scores at least
// LinkThreshold. Group membership therefore does not depend on input order.
//
// Comparisons are all-pairs, O(n²), while n(n-1)/2 <= MaxPairwise. Larger
// batches only compare contacts sharing a blocking key: normalized email,
// email local part, outlet domain or surname.
package dedupe

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

// groupNamespace seeds deterministic group IDs.
var groupNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("contact-intel/duplicate-group"))

// Detector finds and merges duplicate contacts. It is stateless apart from
// read-only configuration and safe for concurrent use.
type Detector struct {
	cfg config.DedupeConfig
	lex *lexicon.Lexicon
}

// New creates a Detector.
func New(cfg config.DedupeConfig, lex *lexicon.Lexicon) *Detector {
	return &Detector{cfg: cfg, lex: lex}
}

type pairKey struct{ i, j int }

type edge struct {
	pairKey
	sim model.SimilarityResult
}

// session caches pairwise similarity for one Detect call.
type session struct {
	d        *Detector
	contacts []model.ExtractedContact
	sims     map[pairKey]model.SimilarityResult
}

func (s *session) similarity(i, j int) model.SimilarityResult {
	if i > j {
		i, j = j, i
	}
	k := pairKey{i, j}
	if r, ok := s.sims[k]; ok {
		return r
	}
	r := s.d.Similarity(s.contacts[i], s.contacts[j])
	s.sims[k] = r
	return r
}

// Detect groups duplicates and returns the canonical contacts in input order
// of each group's selected member.
func (d *Detector) Detect(contacts []model.ExtractedContact) model.DetectionResult {
	res := model.DetectionResult{
		UniqueContacts:  []model.ExtractedContact{},
		DuplicateGroups: []model.DuplicateGroup{},
		Duplicates:      []model.ExtractedContact{},
	}
	if len(contacts) == 0 {
		return res
	}

	s := &session{d: d, contacts: contacts, sims: make(map[pairKey]model.SimilarityResult)}

	var edges []edge
	for _, k := range d.candidates(contacts) {
		sim := s.similarity(k.i, k.j)
		if sim.Overall > d.cfg.Threshold {
			edges = append(edges, edge{pairKey: k, sim: sim})
		}
	}
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].sim.Overall != edges[y].sim.Overall {
			return edges[x].sim.Overall > edges[y].sim.Overall
		}
		return pairLess(contacts, edges[x].pairKey, edges[y].pairKey)
	})

	uf := newUnionFind(len(contacts))
	for _, e := range edges {
		ri, rj := uf.find(e.i), uf.find(e.j)
		if ri == rj || !s.completeLink(uf.members(ri), uf.members(rj), d.cfg.LinkThreshold) {
			continue
		}
		uf.union(ri, rj)
	}

	selected := make(map[int]model.DuplicateGroup)
	skipped := make(map[int]bool)
	for _, members := range uf.clusters() {
		if len(members) < 2 {
			continue
		}
		g, selIdx := d.buildGroup(s, members)
		selected[selIdx] = g
		for _, m := range members {
			if m != selIdx {
				skipped[m] = true
			}
		}
	}

	for i, c := range contacts {
		switch {
		case skipped[i]:
			dup := c.Clone()
			dup.IsDuplicate = true
			res.Duplicates = append(res.Duplicates, dup)
		case selected[i].ID != "":
			g := selected[i]
			res.DuplicateGroups = append(res.DuplicateGroups, g)
			res.TotalDuplicates += len(g.Contacts) - 1
		}
	}

	merged, err := d.MergeAll(res.DuplicateGroups, contacts)
	if err != nil {
		// buildGroup always selects a member, so MergeAll cannot fail here.
		zap.L().Error("dedupe: merge groups", zap.Error(err))
	}
	next := 0
	for i, c := range contacts {
		switch {
		case skipped[i]:
		case selected[i].ID != "":
			if merged != nil {
				res.UniqueContacts = append(res.UniqueContacts, merged[next])
			} else {
				res.UniqueContacts = append(res.UniqueContacts, c.Clone())
			}
			next++
		default:
			res.UniqueContacts = append(res.UniqueContacts, c.Clone())
		}
	}
	res.DuplicateRate = model.Round4(float64(res.TotalDuplicates) / float64(len(contacts)))

	zap.L().Info("dedupe: detection complete",
		zap.Int("contacts", len(contacts)),
		zap.Int("groups", len(res.DuplicateGroups)),
		zap.Int("duplicates", res.TotalDuplicates),
		zap.Int("comparisons", len(s.sims)),
	)
	return res
}

// completeLink reports whether every cross pair of the two clusters is at
// least floor similar.
func (s *session) completeLink(a, b []int, floor float64) bool {
	for _, i := range a {
		for _, j := range b {
			if s.similarity(i, j).Overall < floor {
				return false
			}
		}
	}
	return true
}

// candidates returns the pairs to compare, ordered by index.
func (d *Detector) candidates(contacts []model.ExtractedContact) []pairKey {
	n := len(contacts)
	if n*(n-1)/2 <= d.cfg.MaxPairwise {
		out := make([]pairKey, 0, n*(n-1)/2)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				out = append(out, pairKey{i, j})
			}
		}
		return out
	}

	buckets := make(map[string][]int)
	for i, c := range contacts {
		for _, k := range d.blockingKeys(c) {
			buckets[k] = append(buckets[k], i)
		}
	}
	seen := make(map[pairKey]bool)
	for _, idx := range buckets {
		for x := 0; x < len(idx); x++ {
			for y := x + 1; y < len(idx); y++ {
				seen[pairKey{idx[x], idx[y]}] = true
			}
		}
	}
	out := make([]pairKey, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].i != out[b].i {
			return out[a].i < out[b].i
		}
		return out[a].j < out[b].j
	})

	zap.L().Debug("dedupe: bucketed candidates",
		zap.Int("contacts", n),
		zap.Int("buckets", len(buckets)),
		zap.Int("pairs", len(out)),
	)
	return out
}

func (d *Detector) blockingKeys(c model.ExtractedContact) []string {
	var keys []string
	if email := strings.TrimSpace(c.Email); email != "" {
		norm := NormalizeEmail(email)
		keys = append(keys, "e:"+norm)
		if local, _, ok := strings.Cut(norm, "@"); ok && len(local) >= 3 {
			keys = append(keys, "l:"+local)
		}
	}
	if domain := d.outletDomain(c); domain != "" {
		keys = append(keys, "o:"+d.lex.OutletKey(lexicon.BaseDomain(domain)))
	}
	p := names.Parse(c.Name, d.lex)
	if last := p.Last(); last != "" {
		keys = append(keys, "s:"+last)
	}
	if first := p.First(); first != "" {
		// "Smith, Jane" and "Jane Smith" parse alike, but "Smith Jane" does not.
		keys = append(keys, "s:"+first)
	}
	return keys
}

// buildGroup describes a cluster and returns it with the index of its
// selected contact.
func (d *Detector) buildGroup(s *session, members []int) (model.DuplicateGroup, int) {
	sel := members[0]
	for _, m := range members[1:] {
		if ranksBefore(s.contacts[m], s.contacts[sel]) {
			sel = m
		}
	}

	var sum float64
	weakest := 1.0
	pairs := 0
	var anyEmail, anyName, anyOutlet bool
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			sim := s.similarity(members[x], members[y])
			sum += sim.Overall
			weakest = min(weakest, sim.Overall)
			pairs++
			anyEmail = anyEmail || sim.Email == 1
			anyName = anyName || sim.Name >= 0.9
			anyOutlet = anyOutlet || (sim.Outlet >= 0.9 && sim.Name >= 0.8)
		}
	}

	dupType := model.DuplicateCombined
	switch {
	case anyEmail:
		dupType = model.DuplicateEmail
	case anyName:
		dupType = model.DuplicateName
	case anyOutlet:
		dupType = model.DuplicateOutlet
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = s.contacts[m].ID
	}
	sort.Strings(ids)

	mean := model.Round4(sum / float64(pairs))
	g := model.DuplicateGroup{
		ID:              uuid.NewSHA1(groupNamespace, []byte(strings.Join(ids, "\x00"))).String(),
		Contacts:        ids,
		SimilarityScore: mean,
		DuplicateType:   dupType,
		ConfidenceScore: model.Round4(weakest),
		SelectedContact: s.contacts[sel].ID,
		Reasoning: fmt.Sprintf("%d contacts matched on %s signal; mean similarity %.2f, weakest link %.2f; kept %s (confidence %.2f)",
			len(members), strings.ToLower(string(dupType)), mean, weakest, s.contacts[sel].ID, s.contacts[sel].ConfidenceScore),
	}
	return g, sel
}

// ranksBefore orders contacts for selection: highest confidence, then
// highest quality, then earliest creation, then lowest ID.
func ranksBefore(a, b model.ExtractedContact) bool {
	if a.ConfidenceScore != b.ConfidenceScore {
		return a.ConfidenceScore > b.ConfidenceScore
	}
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return earlier(a.CreatedAt, b.CreatedAt)
	}
	return a.ID < b.ID
}

// earlier treats a zero time as latest.
func earlier(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}

// pairLess orders pairs by their contact IDs, falling back to indices.
func pairLess(contacts []model.ExtractedContact, x, y pairKey) bool {
	x1, x2 := orderedIDs(contacts[x.i].ID, contacts[x.j].ID)
	y1, y2 := orderedIDs(contacts[y.i].ID, contacts[y.j].ID)
	if x1 != y1 {
		return x1 < y1
	}
	if x2 != y2 {
		return x2 < y2
	}
	if x.i != y.i {
		return x.i < y.i
	}
	return x.j < y.j
}

func orderedIDs(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
