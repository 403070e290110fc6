// Package conceptindex provides an in-memory Bleve index over concept display names,
// used to filter the ranked concept table by name.
package conceptindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/emma/internal/models"
)

// Hit is a concept matched by a name search.
type Hit struct {
	ConceptID string  `json:"concept_id"`
	Concept   string  `json:"concept"`
	Score     float64 `json:"score"`
}

type conceptDoc struct {
	Name string `json:"name"`
}

// Index searches concept names.
type Index struct {
	index bleve.Index
	names map[string]string
	vocab *vocabulary
}

// New builds a memory-only index over concepts.
func New(concepts []models.Concept) (*Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", nameField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create concept index: %w", err)
	}

	names := make(map[string]string, len(concepts))
	all := make([]string, 0, len(concepts))
	batch := index.NewBatch()
	for _, c := range concepts {
		names[c.ID] = c.Name
		all = append(all, c.Name)
		if err := batch.Index(c.ID, conceptDoc{Name: c.Name}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index concept %s: %w", c.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index concepts: %w", err)
	}
	return &Index{index: index, names: names, vocab: newVocabulary(all)}, nil
}

// Search returns up to limit concepts whose names match every term of text. The last
// term also matches as a prefix so partially typed names find results. Text goes
// through the same analyzer as the names, so stop words such as "of" are ignored
// rather than required.
func (i *Index) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	terms := i.analyze(text)
	if len(terms) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	conjuncts := make([]blevequery.Query, 0, len(terms))
	for n, term := range terms {
		exact := bleve.NewTermQuery(term)
		exact.SetField("name")
		if n < len(terms)-1 {
			conjuncts = append(conjuncts, exact)
			continue
		}
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("name")
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(exact, prefix))
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = limit
	results, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("concept search failed: %w", err)
	}
	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hits = append(hits, Hit{ConceptID: h.ID, Concept: i.names[h.ID], Score: h.Score})
	}
	return hits, nil
}

// analyze returns the indexed terms of text in order, without duplicates.
func (i *Index) analyze(text string) []string {
	analyzer := i.index.Mapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return strings.Fields(strings.ToLower(text))
	}
	var terms []string
	seen := make(map[string]bool)
	for _, tok := range analyzer.Analyze([]byte(text)) {
		term := string(tok.Term)
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}

// Matching returns the set of concept ids matching text, for filtering a table.
func (i *Index) Matching(ctx context.Context, text string) (map[string]bool, error) {
	hits, err := i.Search(ctx, text, len(i.names))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(hits))
	for _, h := range hits {
		ids[h.ConceptID] = true
	}
	return ids, nil
}

// Size returns the number of indexed concepts.
func (i *Index) Size() int {
	return len(i.names)
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
