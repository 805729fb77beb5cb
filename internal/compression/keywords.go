// Package compression implements the compression engine:
// gating, level selection, and the three compression strategies
// (Summarize, Generalize, Deduplicate).
package compression

import (
	"sort"
	"strings"
)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {}, "in": {},
	"on": {}, "to": {}, "for": {}, "with": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "as": {}, "at": {}, "by": {},
	"from": {}, "be": {}, "has": {}, "have": {}, "had": {}, "not": {}, "will": {}, "can": {},
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Keywords extracts the top-n lowercase tokens of length > 4,
// stopword-filtered, sorted by frequency descending.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range tokenize(text) {
		if len(w) <= 4 || isStopword(w) {
			continue
		}
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if n > 0 && len(order) > n {
		order = order[:n]
	}
	return order
}

func wordCount(text string) int {
	return len(tokenize(text))
}
