package controller

import (
	"context"
	"strings"

	"github.com/hyperjump/emma/internal/format"
	"github.com/hyperjump/emma/internal/models"
)

// SelectionPrompt is shown until a concept is selected.
const SelectionPrompt = "Select a UMLS concept using the radio buttons on the left."

// Backend is what the controller reads from; *storage.SQLStorage satisfies it.
type Backend interface {
	format.Source
	ConceptName(conceptID string) (string, error)
	QueryRow(queryID int) (*models.Query, error)
	AllQueries() []models.Query
}

// ConceptMatcher resolves a filter string to the set of matching concept ids.
type ConceptMatcher interface {
	Matching(ctx context.Context, text string) (map[string]bool, error)
}

// TableRow is one line of the ranked concept table. Row is the index into the full
// ranked list and stays the same when the table is filtered.
type TableRow struct {
	Row int `json:"row"`
	models.RankedTerm
	Selected bool `json:"selected"`
}

// AbstractView is an abstract ready to render with its concept mentions highlighted.
type AbstractView struct {
	PMID    int64            `json:"pmid"`
	Title   []models.Segment `json:"title"`
	Text    []models.Segment `json:"text"`
	HasText bool             `json:"has_text"`
}

// View holds every derived cell of the dashboard.
type View struct {
	State             State                `json:"state"`
	BackgroundOptions []models.QueryOption `json:"background_options"`
	ForegroundOptions []models.QueryOption `json:"foreground_options"`
	BackgroundQuery   string               `json:"background_query"`
	ForegroundQuery   string               `json:"foreground_query"`
	Terms             []TableRow           `json:"terms"`
	TotalTerms        int                  `json:"total_terms"`
	ConceptID         string               `json:"concept_id,omitempty"`
	SelectionInfo     string               `json:"selection_info"`
	Abstracts         []AbstractView       `json:"abstracts"`
}

// Controller derives views from a backend.
type Controller struct {
	backend   Backend
	formatter *format.Formatter
	matcher   ConceptMatcher
}

// Option configures a Controller.
type Option func(*Controller)

// WithConceptMatcher sets the matcher used for the table filter. Without one the filter
// is a case-insensitive substring match on concept names.
func WithConceptMatcher(m ConceptMatcher) Option {
	return func(c *Controller) { c.matcher = m }
}

// New creates a controller over backend.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{backend: backend, formatter: format.NewFormatter(backend)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Derive computes the view for state using a default controller.
func Derive(ctx context.Context, backend Backend, state State) (*View, error) {
	return New(backend).Derive(ctx, state)
}

// Derive recomputes every cell for state.
func (c *Controller) Derive(ctx context.Context, state State) (*View, error) {
	queries := c.backend.AllQueries()
	v := &View{
		State:             state,
		BackgroundOptions: format.BackgroundOptions(queries),
		ForegroundOptions: format.ForegroundOptions(queries),
	}

	var err error
	if v.BackgroundQuery, err = QueryDetail(c.backend, state.Background); err != nil {
		return nil, err
	}
	if v.ForegroundQuery, err = QueryDetail(c.backend, state.Foreground); err != nil {
		return nil, err
	}

	terms, err := RankedTermsTable(ctx, c.backend, state)
	if err != nil {
		return nil, err
	}
	v.TotalTerms = len(terms)

	conceptID, selected, err := SelectedConceptID(ctx, c.formatter, state)
	if err != nil {
		return nil, err
	}
	if selected {
		v.ConceptID = conceptID
	}
	if v.SelectionInfo, err = SelectionInfo(c.backend, conceptID, selected); err != nil {
		return nil, err
	}

	if v.Terms, err = c.tableRows(ctx, terms, state); err != nil {
		return nil, err
	}
	if v.Abstracts, err = AbstractsView(ctx, c.formatter, state, conceptID, selected); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Controller) tableRows(ctx context.Context, terms []models.RankedTerm, state State) ([]TableRow, error) {
	keep := func(models.RankedTerm) bool { return true }
	if state.Filter != "" {
		if c.matcher != nil {
			ids, err := c.matcher.Matching(ctx, state.Filter)
			if err != nil {
				return nil, err
			}
			keep = func(t models.RankedTerm) bool { return ids[t.ConceptID] }
		} else {
			needle := strings.ToLower(state.Filter)
			keep = func(t models.RankedTerm) bool { return strings.Contains(strings.ToLower(t.Concept), needle) }
		}
	}

	rows := make([]TableRow, 0, len(terms))
	for i, t := range terms {
		if !keep(t) {
			continue
		}
		rows = append(rows, TableRow{
			Row:        i,
			RankedTerm: t,
			Selected:   state.SelectedRow != nil && *state.SelectedRow == i,
		})
	}
	return rows, nil
}

// RankedTermsTable is empty until both queries are chosen.
func RankedTermsTable(ctx context.Context, b format.Source, state State) ([]models.RankedTerm, error) {
	if state.Background == nil || state.Foreground == nil {
		return []models.RankedTerm{}, nil
	}
	return b.RankedTerms(ctx, *state.Background, *state.Foreground)
}

// QueryDetail returns the query string of the chosen query, or "" when none is chosen.
func QueryDetail(b Backend, queryID *int) (string, error) {
	if queryID == nil {
		return "", nil
	}
	q, err := b.QueryRow(*queryID)
	if err != nil {
		return "", err
	}
	return q.QueryString, nil
}

// SelectedConceptID resolves the selected row. ok is false while any of the row or
// the two queries is unset.
func SelectedConceptID(ctx context.Context, f *format.Formatter, state State) (id string, ok bool, err error) {
	if state.SelectedRow == nil || state.Background == nil || state.Foreground == nil {
		return "", false, nil
	}
	id, err = f.LookupConceptID(ctx, *state.SelectedRow, *state.Background, *state.Foreground)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SelectionInfo is the label above the abstracts.
func SelectionInfo(b Backend, conceptID string, ok bool) (string, error) {
	if !ok {
		return SelectionPrompt, nil
	}
	name, err := b.ConceptName(conceptID)
	if err != nil {
		return "", err
	}
	return "Selected UMLS concept: " + name, nil
}

// AbstractsView lists the foreground abstracts mentioning the selected concept.
func AbstractsView(ctx context.Context, f *format.Formatter, state State, conceptID string, ok bool) ([]AbstractView, error) {
	if !ok {
		return []AbstractView{}, nil
	}
	annotated, err := f.AnnotatedAbstracts(ctx, conceptID, *state.Background, *state.Foreground)
	if err != nil {
		return nil, err
	}
	out := make([]AbstractView, 0, len(annotated))
	for _, a := range annotated {
		av := AbstractView{
			PMID:  a.PMID,
			Title: format.Decorate(a.Title, a.TitleAnnotations),
			Text:  []models.Segment{},
		}
		if a.HasText {
			av.HasText = true
			av.Text = format.Decorate(a.Text, a.TextAnnotations)
		}
		out = append(out, av)
	}
	return out, nil
}
