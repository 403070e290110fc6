package e2e

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/emma/internal/storage/storagetest"
)

// WriteDatabase stores the corpus in a fresh SQLite file and returns its path.
func WriteDatabase(tb testing.TB, c *Corpus) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "corpus.sqlite3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		tb.Fatalf("open corpus database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(storagetest.Schema); err != nil {
		tb.Fatalf("create schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		tb.Fatal(err)
	}
	exec := func(query string, args ...interface{}) {
		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()
			tb.Fatalf("%s: %v", query, err)
		}
	}
	for _, q := range c.Queries {
		exec(`INSERT INTO Query VALUES (?, ?, ?)`, q.ID, q.Name, q.QueryString)
		exec(`INSERT INTO QuerySize VALUES (?, ?)`, q.ID, q.Size)
	}
	for _, concept := range c.Concepts {
		exec(`INSERT INTO Concept VALUES (?, ?)`, concept.ID, concept.Name)
	}
	for _, a := range c.Abstracts {
		exec(`INSERT INTO Abstract VALUES (?, ?, ?, ?, ?)`, a.PMID, a.Title, a.Text, a.TitlePos, a.TextPos)
		for _, m := range a.Mentions {
			exec(`INSERT INTO Positional VALUES (?, ?, ?, ?)`, a.PMID, m.ConceptID, m.Start, m.End)
		}
		for id := range a.conceptIDs() {
			exec(`INSERT INTO Score VALUES (?, ?, 1.0)`, a.PMID, id)
		}
	}
	for q, pmids := range c.Members {
		for _, pmid := range pmids {
			exec(`INSERT INTO QueryResult VALUES (?, ?)`, pmid, q)
		}
	}
	for _, s := range c.Scores {
		exec(`INSERT INTO `+storagetest.ScoreTable+` VALUES (?, ?, ?, ?, ?)`,
			s.ConceptID, s.QueryID, s.Pertinence, s.PertinenceRatio, s.NAbstracts)
	}
	if err := tx.Commit(); err != nil {
		tb.Fatal(err)
	}
	return path
}
