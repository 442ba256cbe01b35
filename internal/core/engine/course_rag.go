package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

type answerabilityVerdict struct {
	AnswersQuestion bool   `json:"answers_question"`
	Reason          string `json:"reason"`
}

// runCourseRAG performs course-first retrieval: primary similarity
// search, conditional enhancement passes, empty-result retries, then
// the answerability gate. CourseContentFound is the one boolean the
// router reads afterwards.
func (e *Engine) runCourseRAG(ctx context.Context, state *domain.ConversationState) {
	query := state.RefinedQuery
	if query == "" {
		query = state.Query
	}

	chunks, err := e.searchCourse(ctx, query, state.CourseName, e.settings.TopK)
	if err != nil {
		e.logger.Warn("course retrieval failed, falling back to web", "error", err)
		state.CourseContentFound = false
		return
	}

	if m := moduleRe.FindStringSubmatch(query); m != nil {
		enhanced, err := e.searchCourse(ctx, fmt.Sprintf("%s module %s content topics", query, m[1]), state.CourseName, e.settings.TopK)
		if err == nil && len(enhanced) > 0 {
			chunks = enhanced
		}
	}

	if hasComprehensiveCue(query) {
		for _, broadened := range broadenedQueries(query) {
			extra, err := e.searchCourse(ctx, broadened, state.CourseName, e.settings.TopK)
			if err != nil {
				continue
			}
			chunks = mergeChunks(chunks, extra, 2*e.settings.TopK)
		}
	}

	if len(chunks) == 0 {
		for _, retry := range []string{strings.ToLower(query), query + " " + state.CourseName} {
			chunks, err = e.searchCourse(ctx, retry, state.CourseName, e.settings.TopK)
			if err == nil && len(chunks) > 0 {
				break
			}
		}
	}

	if len(chunks) == 0 {
		state.CourseContentFound = false
		return
	}

	state.RetrievedChunks = chunks
	state.CourseContext = formatContext(chunks, e.settings.ContextCharLimit)
	state.CourseCitations = citationsFromChunks(chunks)

	// Currency cues push toward web search regardless of what the
	// index returned; stored course material may be stale. The
	// answerability classifier is not consulted in that case.
	if hasCurrencyCue(query) {
		state.CourseContentFound = false
		return
	}

	state.CourseContentFound = e.checkAnswerability(ctx, state.CourseContext, query)
}

func (e *Engine) searchCourse(ctx context.Context, query, courseName string, topK int) ([]domain.RetrievedChunk, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := e.vectors.Query(ctx, vector, courseName, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	return chunks, nil
}

// checkAnswerability asks whether the context actually resolves the
// question. Errors fail open to true: using on-topic course content
// beats escalating to the open web unnecessarily.
func (e *Engine) checkAnswerability(ctx context.Context, contextBlock, query string) bool {
	var verdict answerabilityVerdict
	if err := e.completeJSON(ctx, answerabilitySystemPrompt, buildAnswerabilityUserPrompt(contextBlock, query), &verdict); err != nil {
		e.logger.Warn("answerability check failed, using course content", "error", err)
		return true
	}
	return verdict.AnswersQuestion
}

// broadenedQueries derives up to three wider variants of a
// comprehensive-listing query from its content words.
func broadenedQueries(query string) []string {
	words := contentWords(query)
	if len(words) == 0 {
		return nil
	}

	variants := make([]string, 0, 3)
	seen := map[string]struct{}{strings.ToLower(query): {}}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	add(words[0])
	add(pluralize(words[0]))
	add(singularize(words[0]))
	if len(words) > 1 {
		add(words[0] + " " + words[1])
	}

	if len(variants) > 3 {
		variants = variants[:3]
	}
	return variants
}

// mergeChunks appends extras not already present, deduplicating on a
// content-prefix key, and caps the merged set.
func mergeChunks(base, extra []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	seen := make(map[string]struct{}, len(base))
	for _, c := range base {
		seen[chunkKey(c)] = struct{}{}
	}
	for _, c := range extra {
		key := chunkKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, c)
	}
	if len(base) > limit {
		base = base[:limit]
	}
	return base
}

func chunkKey(c domain.RetrievedChunk) string {
	content := c.Content
	if len(content) > 50 {
		content = content[:50]
	}
	return content
}

// formatContext renders chunks into the prompt context block, capped
// at limit characters with an explicit truncation marker.
func formatContext(chunks []domain.RetrievedChunk, limit int) string {
	var b strings.Builder
	for i, c := range chunks {
		header := fmt.Sprintf("[%d] %s", i+1, c.DocumentName)
		if c.ModuleName != "" {
			header += ", " + c.ModuleName
		}
		if c.PageNumber > 0 {
			header += fmt.Sprintf(", Page %d", c.PageNumber)
		} else if c.Timestamp != "" {
			header += ", " + c.Timestamp
		}
		entry := header + "\n" + c.Content + "\n\n"
		if b.Len()+len(entry) > limit {
			b.WriteString("[context truncated]")
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimSpace(b.String())
}

func citationsFromChunks(chunks []domain.RetrievedChunk) []domain.Citation {
	citations := make([]domain.Citation, 0, len(chunks))
	for _, c := range chunks {
		citations = append(citations, domain.Citation{
			Document:  c.DocumentName,
			Module:    c.ModuleName,
			Page:      c.PageNumber,
			Timestamp: c.Timestamp,
		})
	}
	return domain.DedupeCitations(citations)
}
