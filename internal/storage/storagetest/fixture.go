// Package storagetest builds a small term-mining database on disk for tests.
//
// Fixture summary (background query 0, score table VsChildAsthmaScore):
//
//	query 1 "Vaping":  Electronic Cigarettes (5.2) > Asthma (2.5) > Child (0.7)
//	query 2 "Obesity": Obesity (4.0) > Asthma (1.0) > Child (0.5)
//
// Asthma is scored in pmids 101, 103, 104; only 101 belongs to query 1 and only
// 103 and 104 belong to query 2. Pmid 102 has no body text; pmid 105 has a title
// that starts after its body (a data-integrity violation).
package storagetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// Concept ids used by the fixture.
const (
	Asthma     = "C0004096"
	Child      = "C0008059"
	ECig       = "C3496560"
	Obesity    = "C0028754"
	Unscored   = "C0011849"
	ScoreTable = "VsChildAsthmaScore"
)

// Schema creates the term-mining tables.
const Schema = `
CREATE TABLE Query (query_id INTEGER PRIMARY KEY, name TEXT NOT NULL, query_string TEXT NOT NULL);
CREATE TABLE QuerySize (query_id INTEGER PRIMARY KEY, size INTEGER NOT NULL);
CREATE TABLE Concept (concept_id TEXT PRIMARY KEY, concept TEXT NOT NULL);
CREATE TABLE Abstract (pmid INTEGER PRIMARY KEY, title TEXT NOT NULL, text TEXT, title_pos INTEGER NOT NULL, text_pos INTEGER NOT NULL);
CREATE TABLE Positional (pmid INTEGER NOT NULL, concept_id TEXT NOT NULL, beginning INTEGER NOT NULL, "end" INTEGER NOT NULL);
CREATE TABLE Score (pmid INTEGER NOT NULL, concept_id TEXT NOT NULL, score REAL);
CREATE TABLE QueryResult (pmid INTEGER NOT NULL, query_id INTEGER NOT NULL);
CREATE TABLE VsChildAsthmaScore (concept_id TEXT NOT NULL, query_id INTEGER NOT NULL, pertinence REAL NOT NULL, pertinence_ratio REAL NOT NULL, n_abstracts INTEGER NOT NULL);
`

var fixture = []string{
	`INSERT INTO Query VALUES
		(0, 'Child asthma', 'asthma[mh] AND child[mh]'),
		(1, 'Vaping', 'vaping OR e-cigarette'),
		(2, 'Obesity', 'obesity[mh]')`,
	`INSERT INTO QuerySize VALUES (0, 3), (1, 2), (2, 1)`,
	`INSERT INTO Concept VALUES
		('C0004096', 'Asthma'),
		('C0008059', 'Child'),
		('C3496560', 'Electronic Cigarettes'),
		('C0028754', 'Obesity'),
		('C0011849', 'Diabetes Mellitus')`,
	`INSERT INTO VsChildAsthmaScore VALUES
		('C0004096', 1, 2.5, 1.2, 2),
		('C3496560', 1, 5.2, 3.1, 2),
		('C0008059', 1, 0.7, 0.9, 1),
		('C0028754', 2, 4.0, 2.0, 1),
		('C0004096', 2, 1.0, 1.1, 2),
		('C0008059', 2, 0.5, 0.8, 1)`,
	`INSERT INTO Abstract VALUES
		(101, 'Vaping and asthma in teens.', 'Electronic cigarettes worsen asthma symptoms.', 0, 28),
		(102, 'E-cigarette use among children.', NULL, 0, 0),
		(103, 'Childhood obesity trends.', 'Obesity rose; asthma too.', 10, 40),
		(104, 'Asthma outcomes.', 'Outcomes improved.', 0, 17),
		(105, 'Broken offsets.', 'Body.', 50, 10)`,
	`INSERT INTO Positional VALUES
		(101, 'C0004096', 57, 63),
		(101, 'C0004096', 11, 17),
		(101, 'C3496560', 0, 6),
		(101, 'C3496560', 28, 49),
		(102, 'C3496560', 0, 11),
		(102, 'C0008059', 22, 30),
		(103, 'C0028754', 20, 27),
		(103, 'C0028754', 40, 47),
		(103, 'C0004096', 54, 60),
		(104, 'C0004096', 0, 6),
		(105, 'C0008059', 0, 5)`,
	`INSERT INTO Score VALUES
		(101, 'C0004096', 1.0),
		(101, 'C3496560', 1.0),
		(102, 'C3496560', 1.0),
		(102, 'C0008059', 1.0),
		(103, 'C0028754', 1.0),
		(103, 'C0004096', 1.0),
		(104, 'C0004096', 1.0),
		(105, 'C0008059', 1.0)`,
	`INSERT INTO QueryResult VALUES
		(101, 0), (102, 0), (103, 0),
		(101, 1), (102, 1),
		(103, 2), (104, 2), (105, 2)`,
}

// NewDatabase writes the schema and fixture rows to a fresh SQLite file under
// t.TempDir() and returns its path.
func NewDatabase(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "term_miner.sqlite3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for _, stmt := range fixture {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("load fixture: %v", err)
		}
	}
	return path
}

// NewEmptyDatabase writes only the schema, for tests that need reference tables without rows.
func NewEmptyDatabase(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.sqlite3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open empty database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return path
}
