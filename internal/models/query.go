// Package models defines the read-only records of the term-mining database and the
// render-ready shapes derived from them.
package models

// Query is a saved literature search together with the number of abstracts it matched.
type Query struct {
	ID          int    `json:"query_id" db:"query_id"`
	Name        string `json:"name" db:"name"`
	QueryString string `json:"query_string" db:"query_string"`
	Size        int    `json:"size" db:"size"`
}

// Concept is a normalized vocabulary term recognized by the upstream annotator.
type Concept struct {
	ID   string `json:"concept_id" db:"concept_id"`
	Name string `json:"concept" db:"concept"`
}

// QueryOption is one entry of a query dropdown. Value is the stringified query id.
type QueryOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
