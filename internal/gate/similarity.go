// Package gate implements the prediction-error gate: a pure
// decision function over an incoming candidate and the memories most
// similar to it, routing new information to create/update/merge/skip.
package gate

import (
	"math"
	"strings"
)

// Comparable is the subset of a knowledge item the gate needs to compare
// two candidates, decoupling this package from internal/types so it can
// be exercised against raw strings/embeddings in tests.
type Comparable struct {
	Content   string
	Embedding []float64
}

// stopwords that must never count as a word-set token for Jaccard.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"and": {}, "or": {}, "but": {}, "of": {}, "in": {}, "on": {}, "to": {}, "it": {},
}

// wordSet tokenizes s into a case-folded set of words with length > 2,
// stopwords excluded.
func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Similarity scores incoming against candidate: cosine over embeddings
// when both are present, else Jaccard over word-sets. Zero when either
// side is textually/embedding-empty.
func Similarity(incoming, candidate Comparable) float64 {
	if len(incoming.Embedding) > 0 && len(candidate.Embedding) > 0 {
		return cosine(incoming.Embedding, candidate.Embedding)
	}
	return jaccard(incoming.Content, candidate.Content)
}
