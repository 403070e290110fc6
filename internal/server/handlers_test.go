package server

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/models"
	"github.com/hyperjump/emma/internal/storage/storagetest"
)

func TestHandleQueries(t *testing.T) {
	env := newTestEnv(t, false)

	var list struct {
		Queries []models.Query `json:"queries"`
	}
	decode(t, env.get(t, "/api/v1/queries"), &list)
	if len(list.Queries) != 3 || list.Queries[2].Name != "Obesity" {
		t.Errorf("queries: %+v", list.Queries)
	}

	var q models.Query
	decode(t, env.get(t, "/api/v1/queries/1"), &q)
	if q.QueryString != "vaping OR e-cigarette" || q.Size != 2 {
		t.Errorf("query 1: %+v", q)
	}
}

func TestHandleOptions(t *testing.T) {
	env := newTestEnv(t, false)
	var out struct {
		Background []models.QueryOption `json:"background"`
		Foreground []models.QueryOption `json:"foreground"`
	}
	decode(t, env.get(t, "/api/v1/options"), &out)
	if len(out.Background) != 1 || out.Background[0].Value != "0" {
		t.Errorf("background: %+v", out.Background)
	}
	want := []models.QueryOption{
		{Label: "Vaping (2 abstracts)", Value: "1"},
		{Label: "Obesity (1 abstract)", Value: "2"},
	}
	if !reflect.DeepEqual(out.Foreground, want) {
		t.Errorf("foreground: got %+v, want %+v", out.Foreground, want)
	}
}

func TestHandleTerms(t *testing.T) {
	env := newTestEnv(t, false)
	var out struct {
		Terms []models.RankedTerm `json:"terms"`
	}
	decode(t, env.get(t, "/api/v1/terms?bg=0&fg=2"), &out)
	if len(out.Terms) != 3 || out.Terms[0].ConceptID != storagetest.Obesity {
		t.Errorf("terms: %+v", out.Terms)
	}
}

func TestHandleTermLookupAndFind(t *testing.T) {
	env := newTestEnv(t, false)

	var lookup struct {
		ConceptID string `json:"concept_id"`
		Concept   string `json:"concept"`
	}
	decode(t, env.get(t, "/api/v1/terms/lookup?bg=0&fg=1&row=0"), &lookup)
	if lookup.ConceptID != storagetest.ECig || lookup.Concept != "Electronic Cigarettes" {
		t.Errorf("lookup: %+v", lookup)
	}

	var found findResponse
	decode(t, env.get(t, "/api/v1/terms/find?bg=0&fg=1&concept="+lookup.ConceptID), &found)
	if !found.Found || found.Row == nil || *found.Row != 0 {
		t.Errorf("find: %+v", found)
	}

	var missing findResponse
	decode(t, env.get(t, "/api/v1/terms/find?bg=0&fg=1&concept="+storagetest.Obesity), &missing)
	if missing.Found || missing.Row != nil {
		t.Errorf("find missing: %+v", missing)
	}
}

func TestHandleConcept(t *testing.T) {
	env := newTestEnv(t, false)
	var c models.Concept
	decode(t, env.get(t, "/api/v1/concepts/"+storagetest.Asthma), &c)
	if c.Name != "Asthma" {
		t.Errorf("concept: %+v", c)
	}
}

func TestHandleConceptSearch(t *testing.T) {
	env := newTestEnv(t, true)
	var out struct {
		Concepts []struct {
			ConceptID string `json:"concept_id"`
		} `json:"concepts"`
	}
	w := env.get(t, "/api/v1/concepts/search?q=electronic&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	decode(t, w, &out)
	if len(out.Concepts) != 1 || out.Concepts[0].ConceptID != storagetest.ECig {
		t.Errorf("search: %+v", out.Concepts)
	}
}

func TestHandleConceptSearch_DidYouMean(t *testing.T) {
	env := newTestEnv(t, true)
	var out struct {
		Concepts   []interface{} `json:"concepts"`
		DidYouMean string        `json:"did_you_mean"`
	}
	decode(t, env.get(t, "/api/v1/concepts/search?q=astma"), &out)
	if len(out.Concepts) != 0 {
		t.Fatalf("expected no hits, got %v", out.Concepts)
	}
	if out.DidYouMean != "asthma" {
		t.Errorf("did_you_mean: got %q", out.DidYouMean)
	}
}

func TestHandleConceptPMIDs(t *testing.T) {
	env := newTestEnv(t, false)
	var out struct {
		PMIDs []int64 `json:"pmids"`
	}
	decode(t, env.get(t, "/api/v1/concepts/"+storagetest.Asthma+"/pmids?bg=0&fg=2"), &out)
	if !reflect.DeepEqual(out.PMIDs, []int64{103, 104}) {
		t.Errorf("pmids: %v", out.PMIDs)
	}
}

func TestHandleConceptAbstracts(t *testing.T) {
	env := newTestEnv(t, false)
	var out struct {
		Abstracts []models.AnnotatedAbstract `json:"abstracts"`
	}
	decode(t, env.get(t, "/api/v1/concepts/"+storagetest.Asthma+"/abstracts?bg=0&fg=2"), &out)
	if len(out.Abstracts) != 2 {
		t.Fatalf("abstracts: %+v", out.Abstracts)
	}
	first := out.Abstracts[0]
	if first.PMID != 103 || len(first.TitleAnnotations) != 0 {
		t.Errorf("abstract 103: %+v", first)
	}
	if !reflect.DeepEqual(first.TextAnnotations, []models.Span{{Start: 14, End: 20}}) {
		t.Errorf("abstract 103 text spans: %v", first.TextAnnotations)
	}
}

func TestHandleAbstract(t *testing.T) {
	env := newTestEnv(t, false)

	var abs models.Abstract
	decode(t, env.get(t, "/api/v1/abstracts/102"), &abs)
	if abs.PMID != 102 || abs.Text != nil {
		t.Errorf("abstract 102: %+v", abs)
	}

	var locs struct {
		Locations []models.Span `json:"locations"`
	}
	decode(t, env.get(t, "/api/v1/abstracts/101/locations?concept="+storagetest.ECig), &locs)
	if !reflect.DeepEqual(locs.Locations, []models.Span{{Start: 0, End: 6}, {Start: 28, End: 49}}) {
		t.Errorf("locations: %v", locs.Locations)
	}

	var annotated models.AnnotatedAbstract
	decode(t, env.get(t, "/api/v1/abstracts/101/annotated?concept="+storagetest.ECig), &annotated)
	if !reflect.DeepEqual(annotated.TextAnnotations, []models.Span{{Start: 0, End: 21}}) {
		t.Errorf("annotated text spans: %v", annotated.TextAnnotations)
	}
}

func TestHandleView(t *testing.T) {
	env := newTestEnv(t, false)

	var empty controller.View
	decode(t, env.get(t, "/api/v1/view"), &empty)
	if empty.SelectionInfo != controller.SelectionPrompt || len(empty.Terms) != 0 {
		t.Errorf("empty view: %+v", empty)
	}

	var v controller.View
	decode(t, env.get(t, "/api/v1/view?bg=0&fg=1&row=1"), &v)
	if v.ConceptID != storagetest.Asthma || len(v.Abstracts) != 1 || !v.Terms[1].Selected {
		t.Errorf("view: %+v", v)
	}
	if v.State.SelectedRow == nil || *v.State.SelectedRow != 1 {
		t.Errorf("state echo: %+v", v.State)
	}
}
