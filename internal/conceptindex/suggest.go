package conceptindex

import (
	"sort"
	"strings"
	"unicode"
)

// vocabulary holds the lowercased words of every concept name.
type vocabulary struct {
	words map[string]int
}

func newVocabulary(names []string) *vocabulary {
	v := &vocabulary{words: make(map[string]int)}
	for _, name := range names {
		for _, w := range splitWords(name) {
			v.words[w]++
		}
	}
	return v
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// maxDistance allows one edit for short words and two otherwise.
func maxDistance(word string) int {
	if len([]rune(word)) <= 4 {
		return 1
	}
	return 2
}

// closest returns the known word nearest to word, preferring words shared by more
// concept names and then alphabetical order.
func (v *vocabulary) closest(word string) (string, bool) {
	if _, ok := v.words[word]; ok {
		return word, false
	}
	limit := maxDistance(word)
	type candidate struct {
		word     string
		distance int
		freq     int
	}
	var candidates []candidate
	for w, freq := range v.words {
		if d := editDistance(word, w); d <= limit {
			candidates = append(candidates, candidate{w, d, freq})
		}
	}
	if len(candidates) == 0 {
		return word, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.freq != b.freq {
			return a.freq > b.freq
		}
		return a.word < b.word
	})
	return candidates[0].word, true
}

// Suggest returns text with each unknown word replaced by the closest word found in a
// concept name. ok is false when every word is already known or nothing is close.
func (i *Index) Suggest(text string) (suggestion string, ok bool) {
	words := splitWords(text)
	for n, w := range words {
		if fixed, changed := i.vocab.closest(w); changed {
			words[n] = fixed
			ok = true
		}
	}
	if !ok {
		return "", false
	}
	return strings.Join(words, " "), true
}

// editDistance is the optimal string alignment distance between a and b in runes, so
// an adjacent transposition counts as one edit.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
