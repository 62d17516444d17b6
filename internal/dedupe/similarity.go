package dedupe

import (
	"net/url"
	"slices"
	"strings"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

// Similarity compares two contacts. Every sub-score is symmetric, so
// Similarity(a, b) == Similarity(b, a).
func (d *Detector) Similarity(a, b model.ExtractedContact) model.SimilarityResult {
	res := model.SimilarityResult{
		Email:  d.emailSimilarity(a.Email, b.Email),
		Name:   max(d.nameSimilarity(a.Name, b.Name), d.nameSimilarity(b.Name, a.Name)),
		Title:  d.titleSimilarity(a.Title, b.Title),
		Outlet: d.outletSimilarity(d.outletDomain(a), d.outletDomain(b)),
	}

	w := d.cfg.Weights
	var combined float64
	switch {
	case strings.TrimSpace(a.Email) != "" && strings.TrimSpace(b.Email) != "":
		combined = w.Email*res.Email + w.Name*res.Name + w.Title*res.Title + w.Outlet*res.Outlet
		if res.Email == 1 {
			combined = max(0.95, combined)
		}
	case w.Name+w.Title+w.Outlet > 0:
		// Without two emails to compare, the email weight is spread over
		// the remaining signals.
		combined = (w.Name*res.Name + w.Title*res.Title + w.Outlet*res.Outlet) / (w.Name + w.Title + w.Outlet)
	}
	res.Overall = model.Round4(model.Clamp01(combined))
	return res
}

// NormalizeEmail folds common aliases of one mailbox onto a single key:
// case, +tags, dots and underscores in the local part, and googlemail.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return email
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	local = strings.NewReplacer(".", "", "_", "").Replace(local)
	if domain == "googlemail.com" {
		domain = "gmail.com"
	}
	return local + "@" + domain
}

func (d *Detector) emailSimilarity(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) || NormalizeEmail(a) == NormalizeEmail(b) {
		return 1
	}
	return 0
}

// nameSimilarity is evaluated in both directions by Similarity; the rules
// themselves are ordered from strongest to weakest.
func (d *Detector) nameSimilarity(a, b string) float64 {
	pa, pb := names.Parse(a, d.lex), names.Parse(b, d.lex)
	if len(pa.Tokens) == 0 || len(pb.Tokens) == 0 {
		return 0
	}
	if pa.Normalized() == pb.Normalized() {
		return 1
	}

	firstA, firstB := pa.First(), pb.First()
	lastA, lastB := pa.Last(), pb.Last()

	if lastA != "" && lastA == lastB {
		switch {
		case firstA == firstB && middlesCompatible(pa.Middle(), pb.Middle()):
			return 0.95
		case d.lex.CanonicalFirstName(firstA) == d.lex.CanonicalFirstName(firstB):
			return 0.9
		case names.IsInitial(firstA) && strings.HasPrefix(firstB, firstA):
			return 0.85
		}
	}

	sortedA, sortedB := slices.Sorted(slices.Values(pa.Tokens)), slices.Sorted(slices.Values(pb.Tokens))
	if slices.Equal(sortedA, sortedB) {
		return 0.95
	}

	return model.Round4(max(
		levenshteinSimilarity(pa.Normalized(), pb.Normalized()),
		levenshteinSimilarity(strings.Join(sortedA, " "), strings.Join(sortedB, " ")),
	))
}

// middlesCompatible allows a missing middle name or an initial standing in
// for the full middle name.
func middlesCompatible(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x == y {
			continue
		}
		if names.IsInitial(x) && strings.HasPrefix(y, x) || names.IsInitial(y) && strings.HasPrefix(x, y) {
			continue
		}
		return false
	}
	return true
}

// titleSimilarity gives 1 for identical titles, 0.9 for the same words in a
// different order, 0.8 for seniority variants ("Senior Editor" vs "Editor")
// and scaled token overlap otherwise.
func (d *Detector) titleSimilarity(a, b string) float64 {
	ta, tb := titleTokens(a), titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if slices.Equal(ta, tb) {
		return 1
	}

	setA, setB := toSet(ta), toSet(tb)
	if equalSets(setA, setB) {
		return 0.9
	}

	coreA, coreB := d.coreTitle(setA), d.coreTitle(setB)
	if len(coreA) > 0 && equalSets(coreA, coreB) {
		return 0.8
	}

	return model.Round4(0.7 * jaccard(setA, setB))
}

func titleTokens(title string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(names.Fold(title), func(r rune) bool {
		return r == ' ' || r == ',' || r == '/' || r == '&' || r == '-' || r == '\t'
	}) {
		f = strings.Trim(f, ".;:()")
		if f != "" && f != "of" && f != "and" && f != "the" {
			out = append(out, f)
		}
	}
	return out
}

func (d *Detector) coreTitle(set map[string]struct{}) map[string]struct{} {
	core := make(map[string]struct{}, len(set))
	for tok := range set {
		if !d.lex.IsTitleModifier(tok) {
			core[tok] = struct{}{}
		}
	}
	return core
}

// outletDomain is the host of the contact's source URL, falling back to a
// non-personal email domain.
func (d *Detector) outletDomain(c model.ExtractedContact) string {
	if raw := strings.TrimSpace(c.SourceURL); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	if domain := model.EmailDomain(c.Email); domain != "" && !d.lex.IsPersonalEmailDomain(domain) {
		return domain
	}
	return ""
}

// outletSimilarity gives 1 for identical domains, 0.9 for subdomains of the
// same site and 0.85 for known aliases of one organization.
func (d *Detector) outletSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	baseA, baseB := lexicon.BaseDomain(a), lexicon.BaseDomain(b)
	if baseA == baseB {
		return 0.9
	}
	if d.lex.OutletKey(baseA) == d.lex.OutletKey(baseB) {
		return 0.85
	}
	return 0
}

func levenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func equalSets(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
