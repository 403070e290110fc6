package server

import (
	"bytes"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/export"
)

func (s *Server) handleExportTerms(w http.ResponseWriter, r *http.Request) {
	bg, fg, err := queryPair(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	background, err := s.storage.QueryRow(bg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	foreground, err := s.storage.QueryRow(fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	meta := export.Meta{Background: *background, Foreground: *foreground}
	terms, err := s.storage.RankedTerms(r.Context(), bg, fg)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTerms(&buf, meta, terms); err != nil {
		s.logger.Error("export terms", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to build spreadsheet")
		return
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
