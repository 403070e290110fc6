package models

// Abstract is a PubMed record. TitlePos and TextPos are absolute character offsets where
// the title and the body begin in the annotator's document coordinates. Text is nil when
// the record has no body.
type Abstract struct {
	PMID     int64   `json:"pmid" db:"pmid"`
	Title    string  `json:"title" db:"title"`
	Text     *string `json:"text" db:"text"`
	TitlePos int     `json:"title_pos" db:"title_pos"`
	TextPos  int     `json:"text_pos" db:"text_pos"`
}

// HasText reports whether the abstract has a body.
func (a *Abstract) HasText() bool {
	return a.Text != nil
}

// Span is a half-open [Start, End) character range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Shift returns the span moved left by offset.
func (s Span) Shift(offset int) Span {
	return Span{Start: s.Start - offset, End: s.End - offset}
}

// Positional records where a concept was recognized inside a document.
type Positional struct {
	PMID      int64  `json:"pmid" db:"pmid"`
	ConceptID string `json:"concept_id" db:"concept_id"`
	Span
}

// AnnotatedAbstract is an abstract whose concept spans have been split between title and
// body and rebased to be relative to the start of each.
type AnnotatedAbstract struct {
	PMID             int64  `json:"pmid"`
	Title            string `json:"title"`
	Text             string `json:"text"`
	HasText          bool   `json:"has_text"`
	TitleAnnotations []Span `json:"title_annotations"`
	TextAnnotations  []Span `json:"text_annotations"`
}

// Segment is a piece of rendered text, highlighted when it covers a concept span.
type Segment struct {
	Text      string `json:"text"`
	Highlight bool   `json:"highlight,omitempty"`
}
