package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/format"
)

//go:embed templates/*.html
var templatesFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

type pageData struct {
	Title       string
	LastUpdated string
	View        *controller.View
	BG          string
	FG          string
	Row         string
	ExportURL   string
	Error       string
}

// pageState reads the dashboard state. A missing bg or fg falls back to the
// configured default; an empty one means nothing is selected.
func (s *Server) pageState(r *http.Request) (controller.State, error) {
	state, err := stateFromRequest(r)
	if err != nil {
		return state, err
	}
	q := r.URL.Query()
	if _, ok := q["bg"]; !ok {
		state.Background = controller.Int(s.config.Dashboard.DefaultBackground)
	}
	if _, ok := q["fg"]; !ok {
		state.Foreground = controller.Int(s.config.Dashboard.DefaultForeground)
	}
	return state, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	data := pageData{
		Title:       s.config.Dashboard.Title,
		LastUpdated: s.config.Dashboard.LastUpdated,
	}

	state, err := s.pageState(r)
	if err == nil {
		data.View, err = s.controller.Derive(r.Context(), state)
	}
	if err != nil {
		status = statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("dashboard failed", zap.Error(err))
		}
		data.Error = err.Error()
		queries := s.storage.AllQueries()
		data.View = &controller.View{
			State:             state,
			BackgroundOptions: format.BackgroundOptions(queries),
			ForegroundOptions: format.ForegroundOptions(queries),
			SelectionInfo:     controller.SelectionPrompt,
		}
	}

	data.BG = intString(state.Background)
	data.FG = intString(state.Foreground)
	data.Row = intString(state.SelectedRow)
	if state.Background != nil && state.Foreground != nil && data.Error == "" {
		data.ExportURL = "/export/terms.xlsx?" + url.Values{"bg": {data.BG}, "fg": {data.FG}}.Encode()
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard", data); err != nil {
		s.logger.Error("render dashboard", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
