package compression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeywordsFiltersShortAndStopwords(t *testing.T) {
	kws := Keywords("the quick brown fox jumps over the lazy dog repeatedly jumps jumps", 5)
	assert.Contains(t, kws, "jumps")
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "fox") // length 3, filtered
}

func TestShouldCompressGatesOnLengthImportanceAge(t *testing.T) {
	now := time.Now()
	longOld := Candidate{
		Content:   longText(60),
		Importance: 0.2,
		CreatedAt: now.Add(-40 * 24 * time.Hour),
	}
	assert.True(t, ShouldCompress(longOld, now, DefaultThresholds()))

	tooImportant := longOld
	tooImportant.Importance = 0.9
	assert.False(t, ShouldCompress(tooImportant, now, DefaultThresholds()))

	tooShort := Candidate{Content: "short", Importance: 0.1, CreatedAt: now.Add(-100 * 24 * time.Hour)}
	assert.False(t, ShouldCompress(tooShort, now, DefaultThresholds()))

	tooNew := longOld
	tooNew.CreatedAt = now
	assert.False(t, ShouldCompress(tooNew, now, DefaultThresholds()))
}

func TestSelectLevelEscalatesWithAgeAndLowAccess(t *testing.T) {
	now := time.Now()
	assert.Equal(t, LevelMaximum, SelectLevel(Candidate{CreatedAt: now.Add(-400 * 24 * time.Hour), AccessCount: 0}, now))
	assert.Equal(t, LevelNone, SelectLevel(Candidate{CreatedAt: now}, now))
}

func TestCompressRespectsMaxLength(t *testing.T) {
	text := longText(200)
	result := Compress(text, LevelModerate, StrategySummarize, nil, 50)
	assert.LessOrEqual(t, len(result.Text), 50)
}

func TestCompressLostInformationBoundedAndExcludesPreserved(t *testing.T) {
	text := "aardvark examines blueprint carefully documenting everything methodically without skipping anything important whatsoever here today"
	result := Compress(text, LevelMaximum, StrategySummarize, []string{"aardvark"}, 0)
	assert.LessOrEqual(t, len(result.LostInformation), maxLostInformation)
	for _, w := range result.LostInformation {
		assert.NotEqual(t, "aardvark", w)
	}
}

func TestGeneralizeFallsBackToSummarizeWhenNoKeywordsMatch(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."
	result := Compress(text, LevelLight, StrategyGeneralize, []string{"zzzznomatch"}, 0)
	assert.NotEmpty(t, result.Text)
}

func TestDeduplicateMergeDropsDuplicateSentences(t *testing.T) {
	merged := DeduplicateMerge([]string{"Water boils at 100 degrees celsius.", "Water boils at 100 degrees celsius. Ice melts at zero."})
	assert.NotEmpty(t, merged)
}

func longText(words int) string {
	out := ""
	for i := 0; i < words; i++ {
		out += "sentence content word filler repeated carefully. "
	}
	return out
}
