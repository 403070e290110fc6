// Package format turns accessor rows into the shapes the dashboard renders: concept
// lookups by table row, annotated abstracts with rebased spans, and highlighted segments.
package format

import (
	"context"
	"fmt"

	"github.com/hyperjump/emma/internal/models"
)

// Source is the subset of the accessor the formatter reads from.
type Source interface {
	RankedTerms(ctx context.Context, bg, fg int) ([]models.RankedTerm, error)
	MatchingPMIDs(ctx context.Context, conceptID string, bg, fg int) ([]int64, error)
	Abstract(ctx context.Context, pmid int64) (*models.Abstract, error)
	TermLocations(ctx context.Context, pmid int64, conceptID string) ([]models.Span, error)
}

// Formatter resolves table rows and abstracts against a Source.
type Formatter struct {
	source Source
}

// NewFormatter creates a formatter reading from source.
func NewFormatter(source Source) *Formatter {
	return &Formatter{source: source}
}

// LookupConceptID returns the concept id shown at row of the ranked table for (bg, fg).
func (f *Formatter) LookupConceptID(ctx context.Context, row, bg, fg int) (string, error) {
	terms, err := f.source.RankedTerms(ctx, bg, fg)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= len(terms) {
		return "", fmt.Errorf("row %d of %d ranked terms: %w", row, len(terms), models.ErrRowOutOfRange)
	}
	return terms[row].ConceptID, nil
}

// FindRowMatching is the inverse of LookupConceptID. ok is false when the concept is
// not in the table.
func (f *Formatter) FindRowMatching(ctx context.Context, conceptID string, bg, fg int) (row int, ok bool, err error) {
	terms, err := f.source.RankedTerms(ctx, bg, fg)
	if err != nil {
		return 0, false, err
	}
	for i, t := range terms {
		if t.ConceptID == conceptID {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// AnnotatedAbstract loads one abstract and the spans of conceptID inside it.
func (f *Formatter) AnnotatedAbstract(ctx context.Context, pmid int64, conceptID string) (*models.AnnotatedAbstract, error) {
	abs, err := f.source.Abstract(ctx, pmid)
	if err != nil {
		return nil, err
	}
	spans, err := f.source.TermLocations(ctx, pmid, conceptID)
	if err != nil {
		return nil, err
	}
	return BuildAnnotatedAbstract(abs, spans)
}

// AnnotatedAbstracts returns every foreground abstract that mentions conceptID, in pmid order.
func (f *Formatter) AnnotatedAbstracts(ctx context.Context, conceptID string, bg, fg int) ([]*models.AnnotatedAbstract, error) {
	pmids, err := f.source.MatchingPMIDs(ctx, conceptID, bg, fg)
	if err != nil {
		return nil, err
	}
	out := make([]*models.AnnotatedAbstract, 0, len(pmids))
	for _, pmid := range pmids {
		a, err := f.AnnotatedAbstract(ctx, pmid, conceptID)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// BuildAnnotatedAbstract splits spans between title and body and rebases them.
// Spans beginning before TextPos belong to the title and are shifted by TitlePos; the
// rest are shifted by TextPos. Without a body every span belongs to the title.
// A title that does not start before its body is reported as ErrDataIntegrity.
func BuildAnnotatedAbstract(abs *models.Abstract, spans []models.Span) (*models.AnnotatedAbstract, error) {
	out := &models.AnnotatedAbstract{
		PMID:             abs.PMID,
		Title:            abs.Title,
		TitleAnnotations: []models.Span{},
		TextAnnotations:  []models.Span{},
	}
	if !abs.HasText() {
		for _, s := range spans {
			out.TitleAnnotations = append(out.TitleAnnotations, s.Shift(abs.TitlePos))
		}
		return out, nil
	}

	if abs.TitlePos >= abs.TextPos {
		return nil, fmt.Errorf("pmid %d: title_pos %d is not before text_pos %d: %w",
			abs.PMID, abs.TitlePos, abs.TextPos, models.ErrDataIntegrity)
	}
	out.Text = *abs.Text
	out.HasText = true
	for _, s := range spans {
		if s.Start < abs.TextPos {
			out.TitleAnnotations = append(out.TitleAnnotations, s.Shift(abs.TitlePos))
		} else {
			out.TextAnnotations = append(out.TextAnnotations, s.Shift(abs.TextPos))
		}
	}
	return out, nil
}
