package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/config"
	"github.com/hyperjump/emma/internal/models"
)

// SQLStorage implements Storage over database/sql. It never writes.
type SQLStorage struct {
	db          *sql.DB
	sb          sq.StatementBuilderType
	scoreTables map[int]string
	snapshot    *Snapshot
	terms       *termsCache
	observer    CacheObserver
	logger      *zap.Logger
}

var _ Storage = (*SQLStorage)(nil)

// Option configures a SQLStorage.
type Option func(*SQLStorage)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStorage) { s.logger = l }
}

// WithCacheObserver reports ranked-terms cache hits and misses to o.
func WithCacheObserver(o CacheObserver) Option {
	return func(s *SQLStorage) { s.observer = o }
}

// NewSQLStorage opens the database described by cfg and loads the query and concept
// reference tables. SQLite databases are opened read-only and must already exist.
func NewSQLStorage(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*SQLStorage, error) {
	var (
		dsn         = cfg.DataSource()
		placeholder sq.PlaceholderFormat
	)
	switch cfg.Driver {
	case "sqlite3":
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("database file %s: %w", cfg.Path, err)
		}
		dsn = sqliteDSN(cfg.Path)
		placeholder = sq.Question
	case "postgres":
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStorage{
		db:          db,
		sb:          sq.StatementBuilder.PlaceholderFormat(placeholder),
		scoreTables: cfg.ScoreTables,
		terms:       newTermsCache(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadSnapshot(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load reference tables: %w", err)
	}
	s.logger.Info("reference tables loaded",
		zap.String("driver", cfg.Driver),
		zap.Int("queries", len(s.snapshot.queries)),
		zap.Int("concepts", len(s.snapshot.concepts)),
	)
	return s, nil
}

// sqliteDSN returns a read-only URI filename for path, escaping characters that would
// otherwise start the query or fragment.
func sqliteDSN(path string) string {
	u := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: path}).EscapedPath(),
		RawQuery: "mode=ro",
	}
	return u.String()
}

func (s *SQLStorage) loadSnapshot(ctx context.Context) error {
	query, args, err := s.sb.
		Select("q.query_id", "q.name", "q.query_string", "qs.size").
		From("Query q").
		Join("QuerySize qs ON q.query_id = qs.query_id").
		OrderBy("q.query_id").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("select queries: %w", err)
	}
	var queries []models.Query
	for rows.Next() {
		var q models.Query
		if err := rows.Scan(&q.ID, &q.Name, &q.QueryString, &q.Size); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	query, args, err = s.sb.Select("concept_id", "concept").From("Concept").OrderBy("concept_id").ToSql()
	if err != nil {
		return err
	}
	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("select concepts: %w", err)
	}
	defer rows.Close()
	var concepts []models.Concept
	for rows.Next() {
		var c models.Concept
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return fmt.Errorf("scan concept: %w", err)
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.snapshot = NewSnapshot(queries, concepts)
	return nil
}

// scoreTable returns the pertinence table for a background query.
func (s *SQLStorage) scoreTable(bg int) (string, error) {
	if bg != SupportedBackground {
		return "", fmt.Errorf("background query %d: %w", bg, models.ErrUnsupportedQuery)
	}
	table, ok := s.scoreTables[bg]
	if !ok {
		return "", fmt.Errorf("no score table configured for background query %d: %w", bg, models.ErrUnsupportedQuery)
	}
	return table, nil
}

// RankedTerms returns the concepts scored for fg against bg, highest pertinence first.
// Results are cached per (bg, fg) for the life of the process and a cache hit returns
// the same slice; callers must not modify it.
func (s *SQLStorage) RankedTerms(ctx context.Context, bg, fg int) ([]models.RankedTerm, error) {
	table, err := s.scoreTable(bg)
	if err != nil {
		return nil, err
	}
	terms, hit, err := s.terms.getOrLoad(ctx, termsKey{bg: bg, fg: fg}, func(loadCtx context.Context) ([]models.RankedTerm, error) {
		return s.loadRankedTerms(loadCtx, table, fg)
	})
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		if hit {
			s.observer.CacheHit()
		} else {
			s.observer.CacheMiss()
		}
	}
	return terms, nil
}

func (s *SQLStorage) loadRankedTerms(ctx context.Context, table string, fg int) ([]models.RankedTerm, error) {
	start := time.Now()
	query, args, err := s.sb.
		Select("c.concept_id", "c.concept", "s.pertinence", "s.pertinence_ratio", "s.n_abstracts").
		From("Concept c").
		Join(table+" s ON c.concept_id = s.concept_id").
		Where(sq.Eq{"s.query_id": fg}).
		OrderBy("s.pertinence DESC", "c.concept_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select ranked terms: %w", err)
	}
	defer rows.Close()

	terms := []models.RankedTerm{}
	for rows.Next() {
		var t models.RankedTerm
		if err := rows.Scan(&t.ConceptID, &t.Concept, &t.Pertinence, &t.PertinenceRatio, &t.NAbstracts); err != nil {
			return nil, fmt.Errorf("scan ranked term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("ranked terms loaded",
		zap.String("table", table),
		zap.Int("fg", fg),
		zap.Int("terms", len(terms)),
		zap.Duration("took", time.Since(start)),
	)
	return terms, nil
}

// MatchingPMIDs returns, in ascending order, the documents scored for conceptID that
// also belong to the foreground query's result set.
func (s *SQLStorage) MatchingPMIDs(ctx context.Context, conceptID string, bg, fg int) ([]int64, error) {
	if _, err := s.scoreTable(bg); err != nil {
		return nil, err
	}
	query, args, err := s.sb.
		Select("sc.pmid").
		Distinct().
		From("Score sc").
		Join("QueryResult qr ON sc.pmid = qr.pmid").
		Where(sq.Eq{"qr.query_id": fg, "sc.concept_id": conceptID}).
		OrderBy("sc.pmid").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pmids: %w", err)
	}
	defer rows.Close()

	pmids := []int64{}
	for rows.Next() {
		var pmid int64
		if err := rows.Scan(&pmid); err != nil {
			return nil, fmt.Errorf("scan pmid: %w", err)
		}
		pmids = append(pmids, pmid)
	}
	return pmids, rows.Err()
}

// Abstract returns the abstract with the given pmid.
func (s *SQLStorage) Abstract(ctx context.Context, pmid int64) (*models.Abstract, error) {
	query, args, err := s.sb.
		Select("pmid", "title", "text", "title_pos", "text_pos").
		From("Abstract").
		Where(sq.Eq{"pmid": pmid}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		abs  models.Abstract
		text sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&abs.PMID, &abs.Title, &text, &abs.TitlePos, &abs.TextPos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("abstract %d: %w", pmid, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if text.Valid {
		abs.Text = &text.String
	}
	return &abs, nil
}

// TermLocations returns the spans where conceptID was recognized in pmid, ordered by
// beginning. Overlapping spans are returned as stored.
func (s *SQLStorage) TermLocations(ctx context.Context, pmid int64, conceptID string) ([]models.Span, error) {
	query, args, err := s.sb.
		Select("beginning", `"end"`).
		From("Positional").
		Where(sq.Eq{"pmid": pmid, "concept_id": conceptID}).
		OrderBy("beginning", `"end"`).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select positionals: %w", err)
	}
	defer rows.Close()

	spans := []models.Span{}
	for rows.Next() {
		var span models.Span
		if err := rows.Scan(&span.Start, &span.End); err != nil {
			return nil, fmt.Errorf("scan positional: %w", err)
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

// ConceptName returns the display name of a concept.
func (s *SQLStorage) ConceptName(conceptID string) (string, error) {
	return s.snapshot.ConceptName(conceptID)
}

// QueryRow returns the saved query with the given id.
func (s *SQLStorage) QueryRow(queryID int) (*models.Query, error) {
	return s.snapshot.Query(queryID)
}

// AllQueries returns all saved queries in load order.
func (s *SQLStorage) AllQueries() []models.Query {
	return s.snapshot.Queries()
}

// Concepts returns all concepts in load order.
func (s *SQLStorage) Concepts() []models.Concept {
	return s.snapshot.Concepts()
}

// CachedPairs returns how many (background, foreground) pairs have cached ranked terms.
func (s *SQLStorage) CachedPairs() int {
	return s.terms.len()
}

// Ping verifies the database connection.
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
