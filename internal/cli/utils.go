// Package cli provides output helpers for the emma command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/format"
	"github.com/hyperjump/emma/internal/models"
	"github.com/hyperjump/emma/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// Highlight markers used for concept mentions in text output.
const (
	HighlightOpen  = "[["
	HighlightClose = "]]"
)

const conceptWidth = 40

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteQueries lists the saved queries with their dropdown labels.
func WriteQueries(w io.Writer, queries []models.Query, f OutputFormat) error {
	if f == OutputJSON {
		return writeJSON(w, queries)
	}
	for _, q := range queries {
		role := "foreground"
		if q.ID == queries[0].ID {
			role = "background"
		}
		fmt.Fprintf(w, "%3d  %-10s  %s\n", q.ID, role, format.QueryOption(q).Label)
		fmt.Fprintf(w, "     %s\n", q.QueryString)
	}
	return nil
}

// WriteTerms writes the ranked table. A positive limit keeps only the top rows.
func WriteTerms(w io.Writer, terms []models.RankedTerm, limit int, f OutputFormat) error {
	if limit > 0 && len(terms) > limit {
		terms = terms[:limit]
	}
	if f == OutputJSON {
		return writeJSON(w, terms)
	}
	fmt.Fprintf(w, "%4s  %-*s  %-9s  %10s  %8s  %9s\n", "Row", conceptWidth, "Concept", "CUI", "Pertinence", "Ratio", "Abstracts")
	for i, t := range terms {
		fmt.Fprintf(w, "%4d  %-*s  %-9s  %10.3f  %8.3f  %9d\n",
			i, conceptWidth, utils.Truncate(t.Concept, conceptWidth-3), t.ConceptID, t.Pertinence, t.PertinenceRatio, t.NAbstracts)
	}
	if len(terms) == 0 {
		fmt.Fprintln(w, "No ranked concepts.")
	}
	return nil
}

// WriteAbstracts writes the abstracts for a selected concept with mentions marked.
func WriteAbstracts(w io.Writer, selectionInfo string, abstracts []controller.AbstractView, f OutputFormat) error {
	if f == OutputJSON {
		return writeJSON(w, map[string]interface{}{"selection": selectionInfo, "abstracts": abstracts})
	}
	fmt.Fprintf(w, "%s\n\n", selectionInfo)
	for _, a := range abstracts {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s (PMID %d)\n", format.PlainText(a.Title, HighlightOpen, HighlightClose), a.PMID)
		if a.HasText {
			fmt.Fprintf(w, "\n%s\n", format.PlainText(a.Text, HighlightOpen, HighlightClose))
		}
		fmt.Fprintln(w)
	}
	if len(abstracts) == 0 {
		fmt.Fprintln(w, "No abstracts.")
	}
	return nil
}
