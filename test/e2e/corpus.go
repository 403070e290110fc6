// Package e2e provides end-to-end tests over a generated term-mining corpus served
// through the full HTTP stack.
package e2e

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/emma/internal/models"
)

// Number of foreground queries; query 0 is the background corpus holding every abstract.
const foregroundQueries = 3

var conceptNames = []string{
	"Asthma", "Obesity", "Electronic Cigarettes", "Child", "Adolescent", "Sjögren Syndrome",
	"Hypertension", "Diabetes Mellitus", "Air Pollution", "Smoking", "Inflammation", "Allergens",
	"Bronchitis", "Pneumonia", "Body Mass Index", "Exercise", "Sleep Apnea", "Eczema",
	"Rhinitis", "Vitamin D", "Breast Feeding", "Premature Birth", "Anxiety", "Depression",
}

// Mention is a concept recognized at absolute character offsets [Start, End).
type Mention struct {
	ConceptID string
	Start     int
	End       int
}

// Abstract is a generated abstract with the mentions the annotator would have stored.
type Abstract struct {
	models.Abstract
	Mentions []Mention
}

// Corpus holds the rows of a generated term-mining database.
type Corpus struct {
	Queries   []models.Query
	Concepts  []models.Concept
	Abstracts []Abstract
	Members   map[int][]int64
	Scores    []models.ScoredConcept
	names     map[string]string
}

// BuildCorpus returns a corpus of n abstracts. Title and body offsets are non-zero and
// every tenth abstract has no body, so rebasing and the no-text path are both exercised.
func BuildCorpus(n int) *Corpus {
	c := &Corpus{
		Members: make(map[int][]int64),
		names:   make(map[string]string),
	}
	for i, name := range conceptNames {
		id := fmt.Sprintf("C%07d", 4096+i*37)
		c.Concepts = append(c.Concepts, models.Concept{ID: id, Name: name})
		c.names[id] = name
	}

	for i := 0; i < n; i++ {
		a := c.Concepts[i%len(c.Concepts)]
		b := c.Concepts[(i*7+3)%len(c.Concepts)]
		if b.ID == a.ID {
			b = c.Concepts[(i+1)%len(c.Concepts)]
		}

		pmid := int64(20000 + i)
		title := fmt.Sprintf("Effects of %s in cohort %d.", a.Name, i)
		abs := Abstract{Abstract: models.Abstract{PMID: pmid, Title: title, TitlePos: 5 * i}}
		abs.Mentions = append(abs.Mentions, mention(a, title, abs.TitlePos))

		if i%10 != 9 {
			text := fmt.Sprintf("Patients with %s showed changes in %s.", b.Name, a.Name)
			abs.Text = &text
			abs.TextPos = abs.TitlePos + utf8.RuneCountInString(title) + 1
			abs.Mentions = append(abs.Mentions,
				mention(b, text, abs.TextPos),
				lastMention(a, text, abs.TextPos),
			)
		} else {
			abs.TextPos = abs.TitlePos
		}
		c.Abstracts = append(c.Abstracts, abs)

		c.Members[0] = append(c.Members[0], pmid)
		fg := 1 + i%foregroundQueries
		c.Members[fg] = append(c.Members[fg], pmid)
	}

	c.Queries = append(c.Queries, models.Query{ID: 0, Name: "All abstracts", QueryString: "all[sb]", Size: len(c.Members[0])})
	for q := 1; q <= foregroundQueries; q++ {
		c.Queries = append(c.Queries, models.Query{
			ID:          q,
			Name:        fmt.Sprintf("Cohort group %d", q),
			QueryString: fmt.Sprintf("cohort[ti] AND group%d[sb]", q),
			Size:        len(c.Members[q]),
		})
	}
	c.Scores = c.buildScores()
	return c
}

func mention(concept models.Concept, text string, offset int) Mention {
	start := utf8.RuneCountInString(text[:strings.Index(text, concept.Name)])
	return Mention{ConceptID: concept.ID, Start: offset + start, End: offset + start + utf8.RuneCountInString(concept.Name)}
}

func lastMention(concept models.Concept, text string, offset int) Mention {
	start := utf8.RuneCountInString(text[:strings.LastIndex(text, concept.Name)])
	return Mention{ConceptID: concept.ID, Start: offset + start, End: offset + start + utf8.RuneCountInString(concept.Name)}
}

// buildScores scores each concept per foreground query by how concentrated its
// mentions are in that query compared to the whole corpus.
func (c *Corpus) buildScores() []models.ScoredConcept {
	background := make(map[string]int)
	foreground := make(map[int]map[string]int)
	for i, abs := range c.Abstracts {
		fg := 1 + i%foregroundQueries
		if foreground[fg] == nil {
			foreground[fg] = make(map[string]int)
		}
		for id := range abs.conceptIDs() {
			background[id]++
			foreground[fg][id]++
		}
	}

	var scores []models.ScoredConcept
	for fg := 1; fg <= foregroundQueries; fg++ {
		for id, n := range foreground[fg] {
			ratio := float64(n) / float64(background[id])
			scores = append(scores, models.ScoredConcept{
				ConceptID:       id,
				QueryID:         fg,
				Pertinence:      float64(n) * ratio,
				PertinenceRatio: ratio * foregroundQueries,
				NAbstracts:      n,
			})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].QueryID != scores[j].QueryID {
			return scores[i].QueryID < scores[j].QueryID
		}
		return scores[i].ConceptID < scores[j].ConceptID
	})
	return scores
}

func (a Abstract) conceptIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, m := range a.Mentions {
		ids[m.ConceptID] = true
	}
	return ids
}

// ConceptName returns the display name of a generated concept.
func (c *Corpus) ConceptName(id string) string {
	return c.names[id]
}

// RankedCount returns how many concepts are scored for a foreground query.
func (c *Corpus) RankedCount(fg int) int {
	n := 0
	for _, s := range c.Scores {
		if s.QueryID == fg {
			n++
		}
	}
	return n
}
