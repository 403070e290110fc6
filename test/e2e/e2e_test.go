package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/conceptindex"
	"github.com/hyperjump/emma/internal/config"
	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/models"
	"github.com/hyperjump/emma/internal/server"
	"github.com/hyperjump/emma/internal/storage"
	"github.com/hyperjump/emma/internal/storage/storagetest"
)

const e2eAbstracts = 120

func startServer(t *testing.T, corpus *Corpus) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite3",
			Path:        WriteDatabase(t, corpus),
			ScoreTables: map[int]string{0: storagetest.ScoreTable},
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
	config.ApplyDefaults(cfg)

	metrics := server.NewMetrics()
	store, err := storage.NewSQLStorage(context.Background(), cfg.Database, storage.WithCacheObserver(metrics))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := conceptindex.New(store.Concepts())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	srv, err := server.NewServer(store, cfg, zap.NewNop(), server.WithConceptIndex(idx), server.WithMetrics(metrics))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string, v interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
}

func TestE2E_RankedTablesAndAbstracts(t *testing.T) {
	corpus := BuildCorpus(e2eAbstracts)
	ts := startServer(t, corpus)

	for fg := 1; fg <= foregroundQueries; fg++ {
		t.Run(fmt.Sprintf("foreground %d", fg), func(t *testing.T) {
			var table struct {
				Terms []models.RankedTerm `json:"terms"`
			}
			getJSON(t, ts, fmt.Sprintf("/api/v1/terms?bg=0&fg=%d", fg), &table)
			if len(table.Terms) != corpus.RankedCount(fg) {
				t.Fatalf("ranked %d concepts, want %d", len(table.Terms), corpus.RankedCount(fg))
			}
			for i := 1; i < len(table.Terms); i++ {
				if table.Terms[i-1].Pertinence < table.Terms[i].Pertinence {
					t.Errorf("row %d out of order", i)
				}
			}

			for row, term := range table.Terms {
				var found struct {
					Found bool `json:"found"`
					Row   *int `json:"row"`
				}
				getJSON(t, ts, fmt.Sprintf("/api/v1/terms/find?bg=0&fg=%d&concept=%s", fg, term.ConceptID), &found)
				if !found.Found || *found.Row != row {
					t.Errorf("find %s: got %+v, want row %d", term.ConceptID, found, row)
				}

				var view controller.View
				getJSON(t, ts, fmt.Sprintf("/api/v1/view?bg=0&fg=%d&row=%d", fg, row), &view)
				if len(view.Abstracts) != term.NAbstracts {
					t.Errorf("%s: %d abstracts, want %d", term.Concept, len(view.Abstracts), term.NAbstracts)
				}
				name := corpus.ConceptName(term.ConceptID)
				for _, a := range view.Abstracts {
					for _, seg := range append(append([]models.Segment{}, a.Title...), a.Text...) {
						if seg.Highlight && seg.Text != name {
							t.Errorf("pmid %d: highlighted %q, want %q", a.PMID, seg.Text, name)
						}
					}
				}
			}
		})
	}
}

func TestE2E_DashboardHighlightsMultiByteConcept(t *testing.T) {
	corpus := BuildCorpus(e2eAbstracts)
	ts := startServer(t, corpus)

	const name = "Sjögren Syndrome"
	var id string
	for _, c := range corpus.Concepts {
		if c.Name == name {
			id = c.ID
		}
	}

	for fg := 1; fg <= foregroundQueries; fg++ {
		var found struct {
			Found bool `json:"found"`
			Row   *int `json:"row"`
		}
		getJSON(t, ts, fmt.Sprintf("/api/v1/terms/find?bg=0&fg=%d&concept=%s", fg, id), &found)
		if !found.Found {
			continue
		}

		q := url.Values{"bg": {"0"}, "fg": {fmt.Sprint(fg)}, "row": {fmt.Sprint(*found.Row)}}
		resp, err := http.Get(ts.URL + "/?" + q.Encode())
		if err != nil {
			t.Fatal(err)
		}
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		highlights := doc.Find("span.highlight")
		if highlights.Length() == 0 {
			t.Fatalf("foreground %d: no highlights for %s", fg, name)
		}
		highlights.Each(func(_ int, s *goquery.Selection) {
			if s.Text() != name {
				t.Errorf("highlight %q, want %q", s.Text(), name)
			}
		})
		return
	}
	t.Fatalf("%s is not ranked in any foreground query", name)
}

func TestE2E_ConceptSearchFiltersTable(t *testing.T) {
	corpus := BuildCorpus(e2eAbstracts)
	ts := startServer(t, corpus)

	var all, filtered controller.View
	getJSON(t, ts, "/api/v1/view?bg=0&fg=2", &all)
	getJSON(t, ts, "/api/v1/view?bg=0&fg=2&q=sleep", &filtered)
	if len(filtered.Terms) != 1 || filtered.Terms[0].Concept != "Sleep Apnea" {
		t.Fatalf("filtered: %+v", filtered.Terms)
	}
	if all.Terms[filtered.Terms[0].Row].ConceptID != filtered.Terms[0].ConceptID {
		t.Error("filtered row index should point into the full table")
	}
}
