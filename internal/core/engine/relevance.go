package engine

import (
	"context"
	"fmt"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

type relevanceVerdict struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

// runRelevance gates the pipeline on course relevance. The classifier
// is prompted to be permissive and any error fails open to relevant.
func (e *Engine) runRelevance(ctx context.Context, state *domain.ConversationState) {
	query := state.RefinedQuery
	if query == "" {
		query = state.Query
	}

	userPrompt := buildRelevanceUserPrompt(query, state.CourseName, e.settings.CourseDescriptions[state.CourseName])

	var verdict relevanceVerdict
	if err := e.completeJSON(ctx, relevanceSystemPrompt, userPrompt, &verdict); err != nil {
		e.logger.Warn("relevance classification failed, treating as relevant", "error", err)
		state.IsRelevant = true
		state.RelevanceReason = "classification unavailable"
		return
	}

	state.IsRelevant = verdict.Relevant
	state.RelevanceReason = verdict.Reason

	if !verdict.Relevant {
		state.FinalResponse = fmt.Sprintf(
			"I can only help with questions related to %s. Your question doesn't seem to be about the course material (%s). Could you ask something about the course instead?",
			state.CourseName, verdict.Reason,
		)
	}
}
