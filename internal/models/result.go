package models

// ScoredConcept is the per-(concept, foreground query) pertinence score row.
type ScoredConcept struct {
	ConceptID       string  `json:"concept_id" db:"concept_id"`
	QueryID         int     `json:"query_id" db:"query_id"`
	Pertinence      float64 `json:"pertinence" db:"pertinence"`
	PertinenceRatio float64 `json:"pertinence_ratio" db:"pertinence_ratio"`
	NAbstracts      int     `json:"n_abstracts" db:"n_abstracts"`
}

// RankedTerm is one row of the ranked concept table shown for a (background, foreground) pair.
type RankedTerm struct {
	ConceptID       string  `json:"concept_id"`
	Concept         string  `json:"concept"`
	Pertinence      float64 `json:"pertinence"`
	PertinenceRatio float64 `json:"pertinence_ratio"`
	NAbstracts      int     `json:"n_abstracts"`
}
