package model

// SimilarityResult holds pairwise similarity sub-scores between two contacts.
type SimilarityResult struct {
	Overall float64 `json:"overall"`
	Email   float64 `json:"email"`
	Name    float64 `json:"name"`
	Title   float64 `json:"title"`
	Outlet  float64 `json:"outlet"`
}

// DuplicateType records the strongest signal that joined a group.
type DuplicateType string

const (
	DuplicateEmail    DuplicateType = "EMAIL"
	DuplicateName     DuplicateType = "NAME"
	DuplicateOutlet   DuplicateType = "OUTLET"
	DuplicateCombined DuplicateType = "COMBINED"
)

// DuplicateGroup is a cluster of contact IDs that refer to the same person.
type DuplicateGroup struct {
	ID              string        `json:"id"`
	Contacts        []string      `json:"contacts"`
	SimilarityScore float64       `json:"similarity_score"`
	DuplicateType   DuplicateType `json:"duplicate_type"`
	ConfidenceScore float64       `json:"confidence_score"`
	SelectedContact string        `json:"selected_contact"`
	Reasoning       string        `json:"reasoning"`
}

// Contains reports whether id is a member of the group.
func (g DuplicateGroup) Contains(id string) bool {
	for _, c := range g.Contacts {
		if c == id {
			return true
		}
	}
	return false
}

// DetectionResult is the output of a de-duplication pass.
type DetectionResult struct {
	UniqueContacts  []ExtractedContact `json:"unique_contacts"`
	DuplicateGroups []DuplicateGroup   `json:"duplicate_groups"`
	// Duplicates holds copies of the non-selected group members with
	// IsDuplicate set, for persistence.
	Duplicates      []ExtractedContact `json:"duplicates"`
	TotalDuplicates int                `json:"total_duplicates"`
	DuplicateRate   float64            `json:"duplicate_rate"`
}
