package engine

import (
	"context"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

// runRefinement rewrites a failing answer targeting only its weak
// dimensions, then hands back to evaluation. A failed rewrite keeps
// the previous answer; the attempt still counts so the loop stays
// bounded.
func (e *Engine) runRefinement(ctx context.Context, state *domain.ConversationState) {
	state.RefinementAttempts++

	weak := weakMetrics(state.EvaluationScores, e.settings.PassThreshold)
	if len(weak) == 0 {
		weak = []string{"overall quality"}
	}

	revised, err := e.llm.Complete(ctx,
		refinementSystemPrompt,
		buildRefinementUserPrompt(state.FinalResponse, weak),
		ports.CompletionOptions{
			Temperature: e.settings.RefinementTemperature,
			MaxTokens:   e.settings.PersonalizationMaxTokens,
		},
	)
	if err != nil || strings.TrimSpace(revised) == "" {
		if err != nil {
			e.logger.Warn("refinement rewrite failed, keeping previous answer",
				"thread_id", state.ThreadID,
				"attempt", state.RefinementAttempts,
				"error", err,
			)
		}
		return
	}
	state.FinalResponse = strings.TrimSpace(revised)
}
