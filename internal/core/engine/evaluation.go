package engine

import (
	"context"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

// Metric names, also used to report weak dimensions to the refinement
// stage in a stable order.
var metricOrder = []string{
	"relevance", "readability", "coherence", "coverage",
	"credibility", "consensus", "consistency",
}

// runEvaluation grades the current answer. Course-sourced and
// web-sourced answers use different weight sets; web answers carry
// three extra source-quality metrics.
func (e *Engine) runEvaluation(ctx context.Context, state *domain.ConversationState) {
	query := state.RefinedQuery
	if query == "" {
		query = state.Query
	}
	answer := state.FinalResponse

	scores := map[string]float64{
		"relevance":   e.relevanceScore(ctx, query, answer, state.RetrievedChunks),
		"readability": readabilityScore(answer, state.Profile.Degree),
		"coherence":   e.coherenceScore(ctx, answer),
		"coverage":    e.coverageScore(ctx, query, answer),
	}

	var overall float64
	if state.CourseContentFound {
		overall = 0.35*scores["relevance"] +
			0.25*scores["readability"] +
			0.2*scores["coherence"] +
			0.2*scores["coverage"]
	} else {
		scores["credibility"] = credibilityScore(state.WebSearchCitations)
		scores["consensus"] = consensusScore(len(state.WebSearchCitations))
		scores["consistency"] = consistencyScore()
		overall = 0.3*scores["relevance"] +
			0.2*scores["readability"] +
			0.15*scores["coherence"] +
			0.15*scores["coverage"] +
			0.1*scores["credibility"] +
			0.05*scores["consensus"] +
			0.05*scores["consistency"]
	}
	scores["overall"] = overall

	state.EvaluationScores = scores
	state.EvaluationPassed = overall >= e.settings.PassThreshold
	state.ResponseHistory = append(state.ResponseHistory, domain.ResponseAttempt{
		Response: answer,
		Score:    overall,
	})

	e.logger.Debug("evaluation",
		"thread_id", state.ThreadID,
		"overall", overall,
		"passed", state.EvaluationPassed,
		"attempts", state.RefinementAttempts,
	)
}

func weakMetrics(scores map[string]float64, threshold float64) []string {
	weak := make([]string, 0, len(metricOrder))
	for _, name := range metricOrder {
		if score, ok := scores[name]; ok && score < threshold {
			weak = append(weak, name)
		}
	}
	return weak
}
