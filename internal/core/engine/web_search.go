package engine

import (
	"context"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

const (
	webResultsDefault  = 5
	webResultsCurrency = 10
)

// runWebSearch issues one open-web search. Provider errors are stored
// as the result text rather than swallowed, so personalization can
// describe the failure to the user.
func (e *Engine) runWebSearch(ctx context.Context, state *domain.ConversationState) {
	query := state.RefinedQuery
	if query == "" {
		query = state.Query
	}

	numResults := webResultsDefault
	if hasCurrencyCue(query) {
		numResults = webResultsCurrency
	}

	result, err := e.web.Search(ctx, query, numResults)
	if err != nil {
		e.logger.Warn("web search failed", "error", err)
		state.WebSearchResults = "Web search failed: " + err.Error()
		return
	}

	state.WebSearchResults = result.Text
	state.WebSearchCitations = domain.DedupeCitations(result.Sources)
}
