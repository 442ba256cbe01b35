package engine

import (
	"context"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

const noContentApology = "I'm sorry, I couldn't find anything in the course materials or on the web to answer your question. Could you try rephrasing it, or ask about a specific topic from the course?"

const generationFallback = "I'm sorry, I ran into a problem while preparing your answer. Please try asking again."

// runPersonalization generates the final answer from whichever context
// the router selected and resolves the citations the answer actually
// uses. Web-sourced answers get a trailing linked source list.
func (e *Engine) runPersonalization(ctx context.Context, state *domain.ConversationState) {
	if !state.CourseContentFound && !hasUsableWebResults(state) {
		state.FinalResponse = noContentApology
		return
	}

	answer, err := e.llm.Complete(ctx,
		buildPersonalizationSystemPrompt(state.Profile),
		buildPersonalizationUserPrompt(state),
		ports.CompletionOptions{
			Temperature: e.settings.PersonalizationTemperature,
			MaxTokens:   e.settings.PersonalizationMaxTokens,
		},
	)
	if err != nil {
		e.logger.Warn("answer generation failed", "error", err)
		state.FinalResponse = generationFallback
		return
	}
	answer = strings.TrimSpace(answer)

	if state.CourseContentFound {
		state.ResponseCitations = resolveCourseCitations(answer, state.CourseCitations)
		state.FinalResponse = answer
		return
	}

	citations := resolveWebCitations(answer, state.WebSearchCitations)
	state.ResponseCitations = citations
	state.FinalResponse = appendSourcesSection(answer, citations)
}

func hasUsableWebResults(state *domain.ConversationState) bool {
	text := strings.TrimSpace(state.WebSearchResults)
	return text != "" && !strings.HasPrefix(text, "Web search failed:")
}

const (
	tierIntroductory = "introductory"
	tierIntermediate = "intermediate"
	tierAdvanced     = "advanced"
)

func degreeTier(degree string) string {
	d := strings.ToLower(degree)
	switch {
	case strings.Contains(d, "phd") || strings.Contains(d, "doctor"):
		return tierAdvanced
	case strings.Contains(d, "master"):
		return tierIntermediate
	default:
		return tierIntroductory
	}
}
