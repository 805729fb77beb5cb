package gate

import (
	"regexp"
	"strings"
)

// ContradictionKind classifies why two texts were flagged contradictory.
// Values beyond the two implemented here are reserved for a stricter
// detector implementation: logical_conflict, temporal_conflict.
type ContradictionKind string

const (
	ContradictionNone           ContradictionKind = ""
	ContradictionDirectNegation ContradictionKind = "direct_negation"
	ContradictionValueConflict  ContradictionKind = "value_conflict"
	ContradictionLogicalConflict ContradictionKind = "logical_conflict"
	ContradictionTemporalConflict ContradictionKind = "temporal_conflict"
)

// ContradictionDetector is the pluggable interface behind the heuristic
// (Open Question (b), DESIGN.md): decide's signature never needs to
// change to accept a stricter implementation.
type ContradictionDetector interface {
	Detect(incoming, candidate string, similarity float64) ContradictionKind
}

// HeuristicDetector implements the heuristic exactly: negation
// pattern crossing, or numeral conflict at similarity ≥ 0.5.
type HeuristicDetector struct{}

var negationPairs = [][2]string{
	{"is not", "is"},
	{"cannot", "can"},
	{"false", "true"},
	{"never", "always"},
}

var numeralRe = regexp.MustCompile(`\d+(\.\d+)?`)

// Detect implements ContradictionDetector.
func (HeuristicDetector) Detect(incoming, candidate string, similarity float64) ContradictionKind {
	a, b := strings.ToLower(incoming), strings.ToLower(candidate)

	for _, pair := range negationPairs {
		neg, pos := pair[0], pair[1]
		aNeg, aPos := strings.Contains(a, neg), hasWordNotPhrase(a, pos, neg)
		bNeg, bPos := strings.Contains(b, neg), hasWordNotPhrase(b, pos, neg)
		if (aNeg && bPos && !bNeg) || (bNeg && aPos && !aNeg) {
			return ContradictionDirectNegation
		}
	}

	if similarity >= 0.5 {
		an := numeralRe.FindAllString(a, -1)
		bn := numeralRe.FindAllString(b, -1)
		if len(an) > 0 && len(bn) > 0 && !sameNumerals(an, bn) {
			return ContradictionValueConflict
		}
	}

	return ContradictionNone
}

// hasWordNotPhrase reports whether s contains pos as a standalone
// occurrence that is not merely a substring of neg (e.g. "is" inside
// "is not"), since negationPairs' pos values are prefixes of their neg
// counterpart.
func hasWordNotPhrase(s, pos, neg string) bool {
	withoutNeg := strings.ReplaceAll(s, neg, "")
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(pos) + `\b`).MatchString(withoutNeg)
}

func sameNumerals(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, n := range a {
		setA[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := setA[n]; !ok {
			return false
		}
	}
	return len(a) == len(b)
}
