package engine

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

// neutralScore is the documented degradation value every metric falls
// back to on internal error instead of propagating the failure.
const neutralScore = 0.5

const coverageSimilarityFloor = 0.3

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// relevanceScore weighs query-answer similarity (0.7) against the
// answer's average similarity to the retrieved context (0.3).
func (e *Engine) relevanceScore(ctx context.Context, query, answer string, chunks []domain.RetrievedChunk) float64 {
	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return neutralScore
	}
	answerVec, err := e.embedder.EmbedQuery(ctx, answer)
	if err != nil {
		return neutralScore
	}
	queryAnswer := clamp01(cosine(queryVec, answerVec))

	if len(chunks) == 0 {
		return queryAnswer
	}
	texts := make([]string, 0, 5)
	for _, c := range chunks {
		texts = append(texts, c.Content)
		if len(texts) == 5 {
			break
		}
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return queryAnswer
	}
	var sum float64
	for _, v := range vectors {
		sum += clamp01(cosine(answerVec, v))
	}
	answerContext := sum / float64(len(vectors))

	return clamp01(0.7*queryAnswer + 0.3*answerContext)
}

// coherenceScore weighs mean adjacent-sentence similarity (0.7)
// against a sentence-length-consistency fluency proxy (0.3). Answers
// under two sentences score zero.
func (e *Engine) coherenceScore(ctx context.Context, answer string) float64 {
	sentences := splitSentences(answer)
	if len(sentences) < 2 {
		return 0.0
	}

	vectors, err := e.embedder.Embed(ctx, sentences)
	if err != nil || len(vectors) != len(sentences) {
		return neutralScore
	}
	var sum float64
	for i := 0; i < len(vectors)-1; i++ {
		sum += clamp01(cosine(vectors[i], vectors[i+1]))
	}
	adjacent := sum / float64(len(vectors)-1)

	return clamp01(0.7*adjacent + 0.3*fluencyProxy(sentences))
}

// fluencyProxy is 1 - clip(cv, 0, 1) where cv is the coefficient of
// variation of sentence word counts.
func fluencyProxy(sentences []string) float64 {
	lengths := make([]float64, len(sentences))
	var mean float64
	for i, s := range sentences {
		lengths[i] = float64(len(strings.Fields(s)))
		mean += lengths[i]
	}
	mean /= float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	cv := math.Sqrt(variance) / mean
	return 1 - clamp01(cv)
}

var clauseSplitRe = regexp.MustCompile(`(?i)[;,.]|\band\b|\bor\b`)

// coverageScore splits the query into sub-clauses and credits each
// clause whose embedding is close enough to the answer's. Falls back
// to whole-query similarity, then to lexical word overlap.
func (e *Engine) coverageScore(ctx context.Context, query, answer string) float64 {
	answerVec, err := e.embedder.EmbedQuery(ctx, answer)
	if err != nil {
		return lexicalOverlap(query, answer)
	}

	clauses := splitClauses(query)
	if len(clauses) > 0 {
		vectors, err := e.embedder.Embed(ctx, clauses)
		if err == nil && len(vectors) == len(clauses) {
			var covered float64
			for _, v := range vectors {
				if cosine(v, answerVec) > coverageSimilarityFloor {
					covered++
				}
			}
			return covered / float64(len(clauses))
		}
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return lexicalOverlap(query, answer)
	}
	return clamp01(cosine(queryVec, answerVec))
}

func splitClauses(query string) []string {
	parts := clauseSplitRe.Split(query, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(strings.Fields(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func lexicalOverlap(query, answer string) float64 {
	words := contentWords(query)
	if len(words) == 0 {
		return neutralScore
	}
	lower := strings.ToLower(answer)
	var hits float64
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return hits / float64(len(words))
}

// credibilityScore is a per-source domain heuristic averaged with
// fixed placeholder weights for author, recency, citation and
// integrity signals (0.2 each).
func credibilityScore(sources []domain.Citation) float64 {
	if len(sources) == 0 {
		return neutralScore
	}
	var sum float64
	for _, s := range sources {
		sum += domainCredibility(s.URL)
	}
	domainAvg := sum / float64(len(sources))
	return clamp01(0.2*domainAvg + 0.2*0.5 + 0.2*0.8 + 0.2*0.5 + 0.2*0.6)
}

func domainCredibility(url string) float64 {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, ".edu") || strings.Contains(u, ".gov") || strings.Contains(u, ".ac."):
		return 0.9
	case strings.Contains(u, ".org") || strings.Contains(u, "wikipedia") || strings.Contains(u, "scholar"):
		return 0.7
	case strings.Contains(u, "blogspot") || strings.Contains(u, "wordpress.com"):
		return 0.4
	default:
		return 0.5
	}
}

// consensusScore is a source-count proxy standing in for real
// claim-entailment modeling.
func consensusScore(sourceCount int) float64 {
	switch {
	case sourceCount >= 5:
		return 0.8
	case sourceCount >= 3:
		return 0.7
	case sourceCount >= 1:
		return 0.5
	default:
		return 0.3
	}
}

// consistencyScore is a fixed neutral prior; no contradiction detector
// is implemented.
func consistencyScore() float64 {
	return 0.75
}
