package storage

import (
	"fmt"

	"github.com/hyperjump/emma/internal/models"
)

// Snapshot is the immutable copy of the Query and Concept reference tables taken
// when the accessor is constructed.
type Snapshot struct {
	queries      []models.Query
	queryIndex   map[int]int
	concepts     []models.Concept
	conceptIndex map[string]int
}

// NewSnapshot indexes queries and concepts, keeping the given order.
func NewSnapshot(queries []models.Query, concepts []models.Concept) *Snapshot {
	s := &Snapshot{
		queries:      queries,
		queryIndex:   make(map[int]int, len(queries)),
		concepts:     concepts,
		conceptIndex: make(map[string]int, len(concepts)),
	}
	for i, q := range queries {
		s.queryIndex[q.ID] = i
	}
	for i, c := range concepts {
		s.conceptIndex[c.ID] = i
	}
	return s
}

// Query returns a copy of the query row for id.
func (s *Snapshot) Query(id int) (*models.Query, error) {
	i, ok := s.queryIndex[id]
	if !ok {
		return nil, fmt.Errorf("query %d: %w", id, models.ErrNotFound)
	}
	q := s.queries[i]
	return &q, nil
}

// ConceptName returns the display name for a concept id.
func (s *Snapshot) ConceptName(id string) (string, error) {
	i, ok := s.conceptIndex[id]
	if !ok {
		return "", fmt.Errorf("concept %s: %w", id, models.ErrNotFound)
	}
	return s.concepts[i].Name, nil
}

// Queries returns the query rows in load order. The slice is a copy.
func (s *Snapshot) Queries() []models.Query {
	return append([]models.Query(nil), s.queries...)
}

// Concepts returns the concept rows in load order. The slice is a copy.
func (s *Snapshot) Concepts() []models.Concept {
	return append([]models.Concept(nil), s.concepts...)
}
