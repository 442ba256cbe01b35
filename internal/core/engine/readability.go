package engine

import (
	"math"
	"regexp"
	"strings"
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fleschKincaidGrade computes the standard grade-level estimate:
// 0.39*(words/sentences) + 11.8*(syllables/words) - 15.59.
func fleschKincaidGrade(text string) float64 {
	sentences := splitSentences(text)
	words := strings.Fields(text)
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	return 0.39*float64(len(words))/float64(len(sentences)) +
		11.8*float64(syllables)/float64(len(words)) - 15.59
}

// countSyllables approximates syllables as vowel groups, with the
// usual silent-e adjustment and a floor of one.
func countSyllables(word string) int {
	word = strings.ToLower(strings.Trim(word, ".,;:!?()[]\"'"))
	if word == "" {
		return 1
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// gradeBand is the degree-appropriate Flesch-Kincaid target range.
func gradeBand(degree string) (low, high float64) {
	switch degreeTier(degree) {
	case tierAdvanced:
		return 14, 18
	case tierIntermediate:
		return 12, 16
	default:
		return 10, 14
	}
}

// gradeMatch maps a grade level through a Gaussian centered on the
// band midpoint; variance derives from half the band width. The score
// peaks at 1.0 on the midpoint and decays smoothly outside the band.
func gradeMatch(grade float64, degree string) float64 {
	low, high := gradeBand(degree)
	mean := (low + high) / 2
	sigma := (high - low) / 2
	return math.Exp(-math.Pow(grade-mean, 2) / (2 * sigma * sigma))
}

func readabilityScore(answer, degree string) float64 {
	if strings.TrimSpace(answer) == "" {
		return neutralScore
	}
	return gradeMatch(fleschKincaidGrade(answer), degree)
}
