package engine

import (
	"regexp"
	"strings"
)

var defaultGreetings = []string{
	"hello", "hi", "hey", "greetings",
	"good morning", "good afternoon", "good evening",
}

var currencyCues = []string{
	"latest", "current", "recent", "new", "updated", "now", "today", "2024", "2025",
}

var comprehensiveCues = []string{
	"all", "different", "various", "list", "what are", "how many", "name", "types", "kinds",
}

var questionIndicators = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"explain", "define", "describe", "list", "?",
}

var anaphoricCues = []string{
	"it", "they", "them", "this", "that", "these", "those",
	"the paper", "the authors", "the document", "the study",
}

var referentKeywords = []string{
	"paper", "document", "author", "article", "study", "module", "course", "lecture",
}

var (
	directQuestionRe = regexp.MustCompile(`(?i)^\s*(what|how|why|when|where|who|which|explain|describe|define|compare|tell me|give me|show me|list|can you|could you)\b`)
	moduleRe         = regexp.MustCompile(`(?i)\bmodule\s+(\d+)\b`)
)

func isGreeting(query string, greetings []string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, "!.? ")
	for _, g := range greetings {
		if q == g || strings.HasPrefix(q, g+" ") {
			return true
		}
	}
	return false
}

func hasCurrencyCue(query string) bool {
	return containsAnyWord(query, currencyCues)
}

func hasComprehensiveCue(query string) bool {
	return containsAnyWord(query, comprehensiveCues)
}

func hasQuestionIndicator(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(q, "?") {
		return true
	}
	return containsAnyWord(query, questionIndicators)
}

func hasAnaphoricReference(query string) bool {
	return containsAnyWord(query, anaphoricCues)
}

// historyHasReferent reports whether prior turns mention something an
// anaphoric query could plausibly point back at.
func historyHasReferent(history []string) bool {
	for _, text := range history {
		if containsAnyWord(text, referentKeywords) {
			return true
		}
	}
	return false
}

// containsAnyWord matches single-word cues against whole tokens with
// surrounding punctuation stripped; multi-word cues are matched as
// substrings of the lower-cased query.
func containsAnyWord(text string, cues []string) bool {
	q := strings.ToLower(text)
	var tokens []string
	for _, f := range strings.Fields(q) {
		if t := strings.Trim(f, "?.,!;:"); t != "" {
			tokens = append(tokens, t)
		}
	}
	for _, cue := range cues {
		if strings.Contains(cue, " ") || cue == "?" {
			if strings.Contains(q, cue) {
				return true
			}
			continue
		}
		for _, t := range tokens {
			if t == cue {
				return true
			}
		}
	}
	return false
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"in": {}, "on": {}, "of": {}, "for": {}, "to": {}, "and": {}, "or": {},
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "who": {}, "which": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "tell": {}, "me": {},
	"about": {}, "all": {}, "list": {}, "many": {}, "there": {}, "name": {},
	"types": {}, "kinds": {}, "different": {}, "various": {},
	"explain": {}, "describe": {}, "define": {}, "give": {}, "show": {},
}

func contentWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "?.,!;:")
		if f == "" {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

func pluralize(word string) string {
	switch {
	case strings.HasSuffix(word, "s"):
		return word
	case strings.HasSuffix(word, "y") && len(word) > 1:
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}
