// Package storage defines the read-only accessor over the term-mining database.
package storage

import (
	"context"

	"github.com/hyperjump/emma/internal/models"
)

// SupportedBackground is the only background query with a pertinence score table.
const SupportedBackground = 0

// Storage defines the read operations the dashboard needs.
type Storage interface {
	// Per-request queries
	RankedTerms(ctx context.Context, bg, fg int) ([]models.RankedTerm, error)
	MatchingPMIDs(ctx context.Context, conceptID string, bg, fg int) ([]int64, error)
	Abstract(ctx context.Context, pmid int64) (*models.Abstract, error)
	TermLocations(ctx context.Context, pmid int64, conceptID string) ([]models.Span, error)

	// Reference tables, loaded once
	ConceptName(conceptID string) (string, error)
	QueryRow(queryID int) (*models.Query, error)
	AllQueries() []models.Query
	Concepts() []models.Concept

	Ping(ctx context.Context) error
	Close() error
}
