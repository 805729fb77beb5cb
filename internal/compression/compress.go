package compression

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Strategy selects which compression algorithm compress() applies.
type Strategy string

const (
	StrategySummarize  Strategy = "summarize"
	StrategyGeneralize Strategy = "generalize"
	StrategyDeduplicate Strategy = "deduplicate"
)

// maxLostInformation bounds the advisory "lost information" list: typed
// and bounded, not exact-content tested.
const maxLostInformation = 20

// Result is compress's output.
type Result struct {
	Text             string
	Level            Level
	LostInformation  []string
}

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Compress applies strategy to content at the target level.
// preservedKeywords are never counted as lost information
// regardless of strategy.
func Compress(content string, level Level, strategy Strategy, preservedKeywords []string, maxLength int) Result {
	var compressed string
	switch strategy {
	case StrategyGeneralize:
		compressed = generalize(content, preservedKeywords)
	case StrategyDeduplicate:
		compressed = summarize(content, 0.5)
	default:
		compressed = summarize(content, level.ratio())
	}

	if maxLength > 0 && len(compressed) > maxLength {
		compressed = compressed[:maxLength-3] + "..."
	}

	return Result{
		Text:            compressed,
		Level:           level,
		LostInformation: lostInformation(content, compressed, preservedKeywords),
	}
}

// DeduplicateMerge merges a slice of near-duplicate contents pairwise
// before summarizing the merged text at ratio 0.5 (multi-input
// Deduplicate strategy).
func DeduplicateMerge(contents []string) string {
	if len(contents) == 0 {
		return ""
	}
	merged := contents[0]
	for _, c := range contents[1:] {
		merged = mergePair(merged, c)
	}
	return summarize(merged, 0.5)
}

func mergePair(a, b string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range splitSentences(a + ". " + b) {
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, ". ")
}

// summarize scores each sentence by keyword-density x position weight
// (earlier sentences weight higher), keeps ceil(ratio*N) of them in
// original order, and rejoins.
func summarize(text string, ratio float64) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	n := int(math.Ceil(ratio * float64(len(sentences))))
	if n <= 0 {
		n = 1
	}
	if n >= len(sentences) {
		return strings.Join(sentences, ". ")
	}

	freq := wordFrequency(text)
	type scored struct {
		idx   int
		score float64
	}
	scoredSentences := make([]scored, len(sentences))
	for i, s := range sentences {
		density := keywordDensity(s, freq)
		positionWeight := 1.0 - float64(i)/float64(len(sentences))*0.5
		scoredSentences[i] = scored{idx: i, score: density * positionWeight}
	}
	sort.SliceStable(scoredSentences, func(i, j int) bool { return scoredSentences[i].score > scoredSentences[j].score })
	kept := scoredSentences[:n]
	sort.Slice(kept, func(i, j int) bool { return kept[i].idx < kept[j].idx })

	out := make([]string, len(kept))
	for i, k := range kept {
		out[i] = sentences[k.idx]
	}
	return strings.Join(out, ". ")
}

// generalize keeps only sentences containing a preserved keyword,
// falling back to summarize at 0.3 when none match.
func generalize(text string, keywords []string) string {
	if len(keywords) == 0 {
		return summarize(text, 0.3)
	}
	lowerKeywords := make([]string, len(keywords))
	for i, k := range keywords {
		lowerKeywords[i] = strings.ToLower(k)
	}

	var kept []string
	for _, s := range splitSentences(text) {
		lower := strings.ToLower(s)
		for _, k := range lowerKeywords {
			if strings.Contains(lower, k) {
				kept = append(kept, s)
				break
			}
		}
	}
	if len(kept) == 0 {
		return summarize(text, 0.3)
	}
	return strings.Join(kept, ". ")
}

func wordFrequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, w := range tokenize(text) {
		if isStopword(w) {
			continue
		}
		freq[w]++
	}
	return freq
}

func keywordDensity(sentence string, freq map[string]int) float64 {
	words := tokenize(sentence)
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += freq[w]
	}
	return float64(total) / float64(len(words))
}

// lostInformation lists words >= 5 chars present in original but absent
// from compressed, excluding preserved keywords and stopwords, capped at
// 20 entries).
func lostInformation(original, compressed string, preservedKeywords []string) []string {
	preserved := make(map[string]struct{}, len(preservedKeywords))
	for _, k := range preservedKeywords {
		preserved[strings.ToLower(k)] = struct{}{}
	}
	present := make(map[string]struct{})
	for _, w := range tokenize(compressed) {
		present[w] = struct{}{}
	}

	seen := make(map[string]struct{})
	var lost []string
	for _, w := range tokenize(original) {
		if len(w) < 5 || isStopword(w) {
			continue
		}
		if _, ok := preserved[w]; ok {
			continue
		}
		if _, ok := present[w]; ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		lost = append(lost, w)
		if len(lost) >= maxLostInformation {
			break
		}
	}
	return lost
}
