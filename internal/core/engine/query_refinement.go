package engine

import (
	"context"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

type vaguenessVerdict struct {
	IsVague           bool     `json:"is_vague"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// runQueryRefinement classifies vagueness and applies the deterministic
// overrides. The overrides only ever force is_vague=false; the model's
// vague verdict stands unless a heuristic contradicts it.
func (e *Engine) runQueryRefinement(ctx context.Context, state *domain.ConversationState) {
	query := strings.TrimSpace(state.Query)

	verdict := e.classifyVagueness(ctx, query, state.Messages)

	if verdict.IsVague && e.overridesVagueness(query, state) {
		verdict.IsVague = false
		verdict.FollowUpQuestions = nil
	}

	if verdict.IsVague {
		state.IsVague = true
		if len(verdict.FollowUpQuestions) > 0 {
			state.FollowUpQuestions = verdict.FollowUpQuestions[:1]
		} else {
			state.FollowUpQuestions = []string{"Could you say a bit more about what you want to know?"}
		}
		state.PendingFollowUp = true
		state.AccumulatedQuery = query
		return
	}

	state.IsVague = false
	state.RefinedQuery = query
}

// classifyVagueness asks the completion service for a verdict. Any
// error fails open to not-vague so the user is never blocked on a
// broken classifier.
func (e *Engine) classifyVagueness(ctx context.Context, query string, history []domain.Message) vaguenessVerdict {
	// The current turn's user message is already in history.
	prior := history
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}
	userPrompt := buildVaguenessUserPrompt(query, prior, e.settings.MaxHistoryTurns, e.settings.HistoryTurnChars)

	var verdict vaguenessVerdict
	if err := e.completeJSON(ctx, vaguenessSystemPrompt, userPrompt, &verdict); err != nil {
		e.logger.Warn("vagueness classification failed, treating as clear", "error", err)
		return vaguenessVerdict{IsVague: false}
	}
	return verdict
}

func (e *Engine) overridesVagueness(query string, state *domain.ConversationState) bool {
	// An anaphoric query only reads as a real question when the
	// conversation actually contains something to point back at.
	// Without a referent the vague verdict stands no matter how the
	// query is shaped.
	if hasAnaphoricReference(query) {
		texts := make([]string, 0, len(state.Messages))
		for _, m := range state.Messages {
			texts = append(texts, m.Content)
		}
		return historyHasReferent(texts)
	}
	if isGreeting(query, e.settings.Greetings) {
		return true
	}
	if directQuestionRe.MatchString(query) {
		return true
	}
	if moduleRe.MatchString(query) {
		return true
	}
	if len(query) < 50 && hasQuestionIndicator(query) {
		return true
	}
	return false
}

// resumeFollowUp handles the turn after a clarifying question: the new
// user input is the answer. The combination is re-classified; if still
// vague the next single follow-up goes out and the combined text
// becomes the accumulated query for the next round. Once clear, a
// refined question is synthesized and the pipeline proceeds from the
// relevance stage. Returns true when the turn should continue.
func (e *Engine) resumeFollowUp(ctx context.Context, state *domain.ConversationState, answer string) bool {
	combined := strings.TrimSpace(state.AccumulatedQuery + " " + answer)

	verdict := e.classifyVagueness(ctx, combined, state.Messages)
	if verdict.IsVague {
		state.IsVague = true
		if len(verdict.FollowUpQuestions) > 0 {
			state.FollowUpQuestions = verdict.FollowUpQuestions[:1]
		} else {
			state.FollowUpQuestions = []string{"Could you clarify what aspect you are asking about?"}
		}
		state.AccumulatedQuery = combined
		return false
	}

	state.PendingFollowUp = false
	state.Query = combined
	state.RefinedQuery = e.synthesizeRefinedQuery(ctx, state.AccumulatedQuery, answer, combined)
	state.AccumulatedQuery = ""
	state.IsVague = false
	return true
}

func (e *Engine) synthesizeRefinedQuery(ctx context.Context, original, answer, fallback string) string {
	refined, err := e.llm.Complete(ctx,
		followUpSynthesisSystemPrompt,
		buildFollowUpSynthesisPrompt(original, answer),
		ports.CompletionOptions{Temperature: 0.0, MaxTokens: 200},
	)
	if err != nil || strings.TrimSpace(refined) == "" {
		if err != nil {
			e.logger.Warn("refined query synthesis failed, using concatenation", "error", err)
		}
		return fallback
	}
	return strings.TrimSpace(refined)
}

func (e *Engine) greetingReply(query, courseName string) (string, bool) {
	if !isGreeting(query, e.settings.Greetings) {
		return "", false
	}
	return "Hello! I'm your tutor for " + courseName + ". What would you like to know about the course material?", true
}
