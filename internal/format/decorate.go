package format

import (
	"sort"

	"github.com/hyperjump/emma/internal/models"
)

// Decorate splits text into plain and highlighted segments. Spans are walked in order of
// Start: the text up to a span is emitted plain, the span itself highlighted, and the
// remainder after the last span plain. Offsets count characters, not bytes, and are
// clamped to the text. Overlapping spans are not merged, so their text can repeat.
func Decorate(text string, spans []models.Span) []models.Segment {
	if len(spans) == 0 {
		return []models.Segment{{Text: text}}
	}
	sorted := append([]models.Span(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	runes := []rune(text)
	segments := make([]models.Segment, 0, 2*len(sorted)+1)
	cursor := 0
	for _, s := range sorted {
		segments = append(segments,
			models.Segment{Text: slice(runes, cursor, s.Start)},
			models.Segment{Text: slice(runes, s.Start, s.End), Highlight: true},
		)
		cursor = s.End
	}
	segments = append(segments, models.Segment{Text: slice(runes, cursor, len(runes))})
	return segments
}

// slice returns runes[from:to] with both bounds clamped; an inverted range is empty.
func slice(runes []rune, from, to int) string {
	from = clamp(from, 0, len(runes))
	to = clamp(to, 0, len(runes))
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlainText joins segments, marking highlights with open and close.
func PlainText(segments []models.Segment, open, close string) string {
	var n int
	for _, s := range segments {
		n += len(s.Text) + len(open) + len(close)
	}
	buf := make([]byte, 0, n)
	for _, s := range segments {
		if s.Highlight {
			buf = append(buf, open...)
			buf = append(buf, s.Text...)
			buf = append(buf, close...)
			continue
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
