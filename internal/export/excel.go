// Package export writes ranked concept tables as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/emma/internal/models"
)

// TermsSheet is the worksheet holding the ranked terms.
const TermsSheet = "Ranked terms"

// ContentTypeXLSX is the media type of the workbook written by WriteTerms.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var termsHeader = []interface{}{"Rank", "Concept", "CUI", "Pertinence", "Pertinence ratio", "Abstracts"}

// Meta describes which comparison a workbook holds.
type Meta struct {
	Background models.Query
	Foreground models.Query
}

// Filename returns a download name such as "emma_terms_bg0_fg1.xlsx".
func (m Meta) Filename() string {
	return fmt.Sprintf("emma_terms_bg%d_fg%d.xlsx", m.Background.ID, m.Foreground.ID)
}

// WriteTerms writes terms in rank order to a workbook on w. A second sheet records the
// two queries the ranking compares.
func WriteTerms(w io.Writer, meta Meta, terms []models.RankedTerm) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TermsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(TermsSheet, "A1", &termsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, t := range terms {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, t.Concept, t.ConceptID, t.Pertinence, t.PertinenceRatio, t.NAbstracts}
		if err := f.SetSheetRow(TermsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetPanes(TermsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet("Queries"); err != nil {
		return fmt.Errorf("add queries sheet: %w", err)
	}
	for i, q := range []struct {
		role  string
		query models.Query
	}{{"Background", meta.Background}, {"Foreground", meta.Foreground}} {
		row := []interface{}{q.role, q.query.ID, q.query.Name, q.query.QueryString, q.query.Size}
		if err := f.SetSheetRow("Queries", fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write query row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
