package engine

import (
	"context"
	"math"
	"testing"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

func TestGradeMatchPeaksAtBandMidpoint(t *testing.T) {
	tests := []struct {
		degree string
		grade  float64
	}{
		{"Doctor of Philosophy", 16},
		{"PhD in Computer Science", 16},
		{"Master of Science", 14},
		{"Bachelor of Arts", 12},
		{"", 12},
	}
	for _, tt := range tests {
		if got := gradeMatch(tt.grade, tt.degree); math.Abs(got-1.0) > 1e-9 {
			t.Fatalf("gradeMatch(%v, %q) = %v, want 1.0", tt.grade, tt.degree, got)
		}
	}
	if gradeMatch(8, "Doctor of Philosophy") > 0.1 {
		t.Fatal("far-off grade must score low")
	}
}

func TestGradeMatchStaysInUnitInterval(t *testing.T) {
	for grade := -5.0; grade <= 40; grade += 0.5 {
		got := gradeMatch(grade, "Master of Science")
		if got < 0 || got > 1 {
			t.Fatalf("gradeMatch(%v) = %v out of [0,1]", grade, got)
		}
	}
}

func TestFleschKincaidGradeOrdering(t *testing.T) {
	simple := "The cat sat. The dog ran. We all had fun."
	dense := "Multidimensional organizational heterogeneity fundamentally complicates institutional accountability frameworks considerably."
	if fleschKincaidGrade(simple) >= fleschKincaidGrade(dense) {
		t.Fatal("dense academic text must grade higher than simple text")
	}
	if fleschKincaidGrade("") != 0 {
		t.Fatal("empty text grades zero")
	}
}

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"table", 2},
		{"syllable", 3},
		{"idea", 2},
		{"rhythm", 1},
		{"make", 1},
	}
	for _, tt := range tests {
		if got := countSyllables(tt.word); got != tt.want {
			t.Fatalf("countSyllables(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestConsensusScore(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{0, 0.3}, {1, 0.5}, {2, 0.5}, {3, 0.7}, {4, 0.7}, {5, 0.8}, {9, 0.8},
	}
	for _, tt := range tests {
		if got := consensusScore(tt.count); got != tt.want {
			t.Fatalf("consensusScore(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestDomainCredibility(t *testing.T) {
	tests := []struct {
		url  string
		want float64
	}{
		{"https://mit.edu/paper", 0.9},
		{"https://research.ac.uk/x", 0.9},
		{"https://data.gov/report", 0.9},
		{"https://en.wikipedia.org/wiki/Flow", 0.7},
		{"https://scholar.google.com/x", 0.7},
		{"https://myblog.blogspot.com/post", 0.4},
		{"https://site.wordpress.com/post", 0.4},
		{"https://news.example.com/story", 0.5},
	}
	for _, tt := range tests {
		if got := domainCredibility(tt.url); got != tt.want {
			t.Fatalf("domainCredibility(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCredibilityScoreNoSourcesIsNeutral(t *testing.T) {
	if got := credibilityScore(nil); got != neutralScore {
		t.Fatalf("credibilityScore(nil) = %v", got)
	}
	edu := credibilityScore([]domain.Citation{{URL: "https://mit.edu/a"}})
	blog := credibilityScore([]domain.Citation{{URL: "https://x.blogspot.com/a"}})
	if edu <= blog {
		t.Fatalf("edu %v must beat blog %v", edu, blog)
	}
}

func TestCoherenceScoreShortAnswerIsZero(t *testing.T) {
	e := newTestEnv(t).engine
	if got := e.coherenceScore(context.Background(), "One sentence only."); got != 0.0 {
		t.Fatalf("coherence = %v, want 0 for a single sentence", got)
	}
}

func TestCoherenceScoreBounds(t *testing.T) {
	env := newTestEnvWithSettings(t, Settings{})
	answer := "First sentence here today. Second sentence here tomorrow. Third sentence here again."
	got := env.engine.coherenceScore(context.Background(), answer)
	if got < 0 || got > 1 {
		t.Fatalf("coherence = %v out of [0,1]", got)
	}
	env.embedder.err = errFake
	if got := env.engine.coherenceScore(context.Background(), answer); got != neutralScore {
		t.Fatalf("coherence on embedder error = %v, want neutral", got)
	}
}

func TestRelevanceScoreNeutralOnEmbedderError(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.err = errFake
	got := env.engine.relevanceScore(context.Background(), "q", "a", nil)
	if got != neutralScore {
		t.Fatalf("relevance = %v, want neutral on error", got)
	}
}

func TestRelevanceScoreBounds(t *testing.T) {
	env := newTestEnv(t)
	got := env.engine.relevanceScore(context.Background(), "what is flow", "flow is immersion", courseChunks())
	if got < 0 || got > 1 {
		t.Fatalf("relevance = %v out of [0,1]", got)
	}
}

func TestCoverageScoreMultiClause(t *testing.T) {
	env := newTestEnv(t)
	got := env.engine.coverageScore(context.Background(), "explain flow theory, and describe point systems", "both topics covered")
	if got < 0 || got > 1 {
		t.Fatalf("coverage = %v out of [0,1]", got)
	}
	// Constant embeddings make every clause similar to the answer.
	if got != 1 {
		t.Fatalf("coverage = %v, want full credit", got)
	}
}

func TestCoverageScoreLexicalFallback(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.err = errFake
	got := env.engine.coverageScore(context.Background(), "explain badges", "badges reward achievement")
	if got != 1 {
		t.Fatalf("lexical fallback = %v, want 1 with all content words present", got)
	}
	got = env.engine.coverageScore(context.Background(), "explain badges", "nothing relevant")
	if got != 0 {
		t.Fatalf("lexical fallback = %v, want 0 with no overlap", got)
	}
}

func TestFluencyProxyUniformSentences(t *testing.T) {
	got := fluencyProxy([]string{"one two three four", "five six seven eight"})
	if got != 1 {
		t.Fatalf("fluency = %v, want 1 for equal lengths", got)
	}
	uneven := fluencyProxy([]string{"a", "this sentence is very much longer than the first one by far"})
	if uneven >= got {
		t.Fatal("uneven sentence lengths must lower fluency")
	}
}

func TestWeakMetricsStableOrder(t *testing.T) {
	scores := map[string]float64{
		"coverage":  0.2,
		"relevance": 0.4,
		"overall":   0.3,
		"coherence": 0.9,
	}
	got := weakMetrics(scores, 0.7)
	if len(got) != 2 || got[0] != "relevance" || got[1] != "coverage" {
		t.Fatalf("weak = %v", got)
	}
}
