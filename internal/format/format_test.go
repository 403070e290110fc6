package format

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/emma/internal/models"
)

type fakeSource struct {
	terms     []models.RankedTerm
	pmids     map[string][]int64
	abstracts map[int64]*models.Abstract
	spans     map[int64][]models.Span
	termsErr  error
}

func (f *fakeSource) RankedTerms(ctx context.Context, bg, fg int) ([]models.RankedTerm, error) {
	if f.termsErr != nil {
		return nil, f.termsErr
	}
	return f.terms, nil
}

func (f *fakeSource) MatchingPMIDs(ctx context.Context, conceptID string, bg, fg int) ([]int64, error) {
	return f.pmids[conceptID], nil
}

func (f *fakeSource) Abstract(ctx context.Context, pmid int64) (*models.Abstract, error) {
	a, ok := f.abstracts[pmid]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a, nil
}

func (f *fakeSource) TermLocations(ctx context.Context, pmid int64, conceptID string) ([]models.Span, error) {
	return f.spans[pmid], nil
}

func strPtr(s string) *string { return &s }

func newFakeSource() *fakeSource {
	return &fakeSource{
		terms: []models.RankedTerm{
			{ConceptID: "C1", Concept: "One", Pertinence: 3},
			{ConceptID: "C2", Concept: "Two", Pertinence: 2},
			{ConceptID: "C3", Concept: "Three", Pertinence: 1},
		},
		pmids: map[string][]int64{"C1": {10, 20}},
		abstracts: map[int64]*models.Abstract{
			10: {PMID: 10, Title: "Title one", Text: strPtr("Body of one"), TitlePos: 0, TextPos: 10},
			20: {PMID: 20, Title: "Only a title", TitlePos: 100},
		},
		spans: map[int64][]models.Span{
			10: {{Start: 0, End: 5}, {Start: 10, End: 14}},
			20: {{Start: 105, End: 106}},
		},
	}
}

func TestLookupConceptID(t *testing.T) {
	f := NewFormatter(newFakeSource())
	ctx := context.Background()

	id, err := f.LookupConceptID(ctx, 1, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if id != "C2" {
		t.Errorf("row 1: got %s, want C2", id)
	}

	for _, row := range []int{-1, 3, 100} {
		if _, err := f.LookupConceptID(ctx, row, 0, 1); !errors.Is(err, models.ErrRowOutOfRange) {
			t.Errorf("row %d: got %v, want ErrRowOutOfRange", row, err)
		}
	}
}

func TestLookupConceptID_PropagatesSourceError(t *testing.T) {
	src := newFakeSource()
	src.termsErr = models.ErrUnsupportedQuery
	f := NewFormatter(src)
	if _, err := f.LookupConceptID(context.Background(), 0, 1, 1); !errors.Is(err, models.ErrUnsupportedQuery) {
		t.Errorf("got %v, want ErrUnsupportedQuery", err)
	}
}

func TestFindRowMatching_RoundTrip(t *testing.T) {
	src := newFakeSource()
	f := NewFormatter(src)
	ctx := context.Background()

	for row := range src.terms {
		id, err := f.LookupConceptID(ctx, row, 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		got, ok, err := f.FindRowMatching(ctx, id, 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || got != row {
			t.Errorf("round trip for row %d: got %d (ok=%v)", row, got, ok)
		}
	}

	if _, ok, err := f.FindRowMatching(ctx, "C404", 0, 1); err != nil || ok {
		t.Errorf("missing concept: ok=%v err=%v", ok, err)
	}
}

func TestBuildAnnotatedAbstract_SplitsAndRebases(t *testing.T) {
	abs := &models.Abstract{PMID: 1, Title: "t", Text: strPtr("x"), TitlePos: 0, TextPos: 20}
	got, err := BuildAnnotatedAbstract(abs, []models.Span{{Start: 5, End: 10}, {Start: 25, End: 30}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.TitleAnnotations, []models.Span{{Start: 5, End: 10}}) {
		t.Errorf("title annotations: got %v", got.TitleAnnotations)
	}
	if !reflect.DeepEqual(got.TextAnnotations, []models.Span{{Start: 5, End: 10}}) {
		t.Errorf("text annotations: got %v", got.TextAnnotations)
	}
	if got.Text != "x" || got.Title != "t" || got.PMID != 1 {
		t.Errorf("record fields: got %+v", got)
	}
}

func TestBuildAnnotatedAbstract_BoundaryGoesToText(t *testing.T) {
	abs := &models.Abstract{PMID: 1, Title: "t", Text: strPtr("x"), TitlePos: 3, TextPos: 20}
	got, err := BuildAnnotatedAbstract(abs, []models.Span{{Start: 19, End: 21}, {Start: 20, End: 22}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.TitleAnnotations, []models.Span{{Start: 16, End: 18}}) {
		t.Errorf("title annotations: got %v", got.TitleAnnotations)
	}
	if !reflect.DeepEqual(got.TextAnnotations, []models.Span{{Start: 0, End: 2}}) {
		t.Errorf("text annotations: got %v", got.TextAnnotations)
	}
}

func TestBuildAnnotatedAbstract_NoText(t *testing.T) {
	abs := &models.Abstract{PMID: 2, Title: "Only a title", TitlePos: 100, TextPos: 0}
	got, err := BuildAnnotatedAbstract(abs, []models.Span{{Start: 105, End: 106}, {Start: 300, End: 301}})
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Span{{Start: 5, End: 6}, {Start: 200, End: 201}}
	if !reflect.DeepEqual(got.TitleAnnotations, want) {
		t.Errorf("title annotations: got %v, want %v", got.TitleAnnotations, want)
	}
	if got.Text != "" || len(got.TextAnnotations) != 0 {
		t.Errorf("expected empty text, got %q / %v", got.Text, got.TextAnnotations)
	}
}

func TestBuildAnnotatedAbstract_EmptyTextIsNotNull(t *testing.T) {
	abs := &models.Abstract{PMID: 4, Title: "Title only in practice", Text: strPtr(""), TitlePos: 0, TextPos: 23}
	got, err := BuildAnnotatedAbstract(abs, []models.Span{{Start: 0, End: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasText || got.Text != "" {
		t.Errorf("empty body should still be present: HasText=%v Text=%q", got.HasText, got.Text)
	}

	null, err := BuildAnnotatedAbstract(&models.Abstract{PMID: 5, Title: "t"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if null.HasText {
		t.Error("NULL body should not be reported as present")
	}
}

func TestBuildAnnotatedAbstract_DataIntegrity(t *testing.T) {
	for _, pos := range []struct{ title, text int }{{20, 20}, {30, 20}} {
		abs := &models.Abstract{PMID: 3, Title: "t", Text: strPtr("x"), TitlePos: pos.title, TextPos: pos.text}
		if _, err := BuildAnnotatedAbstract(abs, nil); !errors.Is(err, models.ErrDataIntegrity) {
			t.Errorf("title_pos=%d text_pos=%d: got %v, want ErrDataIntegrity", pos.title, pos.text, err)
		}
	}
}

func TestAnnotatedAbstracts(t *testing.T) {
	f := NewFormatter(newFakeSource())
	got, err := f.AnnotatedAbstracts(context.Background(), "C1", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 abstracts, got %d", len(got))
	}
	if got[0].PMID != 10 || !reflect.DeepEqual(got[0].TextAnnotations, []models.Span{{Start: 0, End: 4}}) {
		t.Errorf("abstract 10: got %+v", got[0])
	}
	if got[1].PMID != 20 || !reflect.DeepEqual(got[1].TitleAnnotations, []models.Span{{Start: 5, End: 6}}) {
		t.Errorf("abstract 20: got %+v", got[1])
	}

	none, err := f.AnnotatedAbstracts(context.Background(), "C2", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty result, got %v", none)
	}
}

func TestAnnotatedAbstracts_MissingAbstract(t *testing.T) {
	src := newFakeSource()
	src.pmids["C2"] = []int64{404}
	f := NewFormatter(src)
	if _, err := f.AnnotatedAbstracts(context.Background(), "C2", 0, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
