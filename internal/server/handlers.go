package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/format"
	"github.com/hyperjump/emma/internal/models"
	"github.com/hyperjump/emma/internal/storage"
)

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queries": s.storage.AllQueries()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id, err := urlInt(r, "id")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	q, err := s.storage.QueryRow(id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	queries := s.storage.AllQueries()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"background": format.BackgroundOptions(queries),
		"foreground": format.ForegroundOptions(queries),
	})
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	terms, err := s.storage.RankedTerms(r.Context(), bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"bg": bg, "fg": fg, "terms": terms})
}

func (s *Server) handleTermLookup(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	row, err := requiredInt(r, "row")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	id, err := s.formatter.LookupConceptID(r.Context(), row, bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	name, err := s.storage.ConceptName(id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"row": row, "concept_id": id, "concept": name})
}

type findResponse struct {
	ConceptID string `json:"concept_id"`
	Found     bool   `json:"found"`
	Row       *int   `json:"row,omitempty"`
}

func (s *Server) handleTermFind(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	conceptID, err := requiredString(r, "concept")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	row, ok, err := s.formatter.FindRowMatching(r.Context(), conceptID, bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	resp := findResponse{ConceptID: conceptID, Found: ok}
	if ok {
		resp.Row = &row
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConcept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, err := s.storage.ConceptName(id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.Concept{ID: id, Name: name})
}

func (s *Server) handleConceptSearch(w http.ResponseWriter, r *http.Request) {
	if s.concepts == nil {
		s.respondError(w, http.StatusNotImplemented, "concept search not enabled")
		return
	}
	text, err := requiredString(r, "q")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	limit := 20
	if l, err := optionalInt(r, "limit"); err != nil {
		s.respondFailure(w, r, err)
		return
	} else if l != nil && *l > 0 {
		limit = *l
	}
	hits, err := s.concepts.Search(r.Context(), text, limit)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.logger.Debug("concept search", zap.String("q", text), zap.Int("hits", len(hits)))
	resp := map[string]interface{}{"query": text, "concepts": hits}
	if len(hits) == 0 {
		if suggestion, ok := s.concepts.Suggest(text); ok {
			resp["did_you_mean"] = suggestion
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConceptPMIDs(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	pmids, err := s.storage.MatchingPMIDs(r.Context(), id, bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"concept_id": id, "pmids": pmids})
}

func (s *Server) handleConceptAbstracts(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	abstracts, err := s.formatter.AnnotatedAbstracts(r.Context(), id, bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"concept_id": id, "abstracts": abstracts})
}

func (s *Server) handleAbstract(w http.ResponseWriter, r *http.Request) {
	pmid, err := urlInt64(r, "pmid")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	abs, err := s.storage.Abstract(r.Context(), pmid)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, abs)
}

func (s *Server) handleAbstractLocations(w http.ResponseWriter, r *http.Request) {
	pmid, err := urlInt64(r, "pmid")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	conceptID, err := requiredString(r, "concept")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	spans, err := s.storage.TermLocations(r.Context(), pmid, conceptID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"pmid": pmid, "concept_id": conceptID, "locations": spans})
}

func (s *Server) handleAnnotatedAbstract(w http.ResponseWriter, r *http.Request) {
	pmid, err := urlInt64(r, "pmid")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	conceptID, err := requiredString(r, "concept")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	a, err := s.formatter.AnnotatedAbstract(r.Context(), pmid, conceptID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	state, err := stateFromRequest(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	view, err := s.controller.Derive(r.Context(), state)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// cachedPairs is implemented by storages that cache ranked terms.
type cachedPairs interface {
	CachedPairs() int
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "ok",
		"driver":         s.config.Database.Driver,
		"queries":        len(s.storage.AllQueries()),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if c, ok := s.storage.(cachedPairs); ok {
		resp["cached_pairs"] = c.CachedPairs()
	}
	if s.concepts != nil {
		resp["indexed_concepts"] = s.concepts.Size()
	}
	if s.config.Database.Driver == "sqlite3" {
		if size, err := storage.DatabaseSizeBytes(s.config.Database.Path); err == nil {
			resp["database_size_bytes"] = size
		}
	}
	s.mu.Lock()
	if s.dbChanged {
		resp["database_changed"] = map[string]interface{}{
			"at":  s.dbChangedAt.UTC().Format(time.RFC3339),
			"ops": s.dbChangedOps,
		}
	}
	s.mu.Unlock()

	status := http.StatusOK
	if err := s.storage.Ping(r.Context()); err != nil {
		s.logger.Error("health: ping failed", zap.Error(err))
		resp["status"] = "unavailable"
		resp["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

// respondFailure maps err to a status, logging server-side failures.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, models.ErrUnsupportedQuery) {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
