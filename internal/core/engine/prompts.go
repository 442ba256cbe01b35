package engine

import (
	"fmt"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

const vaguenessSystemPrompt = `You are a classifier for a course tutoring assistant. Decide whether the student's question is too vague to answer without clarification. A question is vague when it is missing the subject, scope or context needed to retrieve course material. Respond with JSON only: {"is_vague": true|false, "follow_up_questions": ["..."]}. When the question is vague, propose short clarifying questions; otherwise return an empty list.`

const followUpSynthesisSystemPrompt = `You combine a student's original question with their answer to a clarifying question. Produce a single, self-contained refined question that captures both. Respond with the refined question only, no preamble.`

const relevanceSystemPrompt = `You are a lenient relevance gate for a course tutoring assistant. Accept any question that is plausibly connected to the course; reject only questions about clearly unrelated topics. Respond with JSON only: {"relevant": true|false, "reason": "..."}.`

const answerabilitySystemPrompt = `You judge whether retrieved course material actually answers a student's question, as opposed to being merely on-topic. Respond with JSON only: {"answers_question": true|false, "reason": "..."}.`

func buildVaguenessUserPrompt(query string, history []domain.Message, maxTurns, turnChars int) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		start := len(history) - maxTurns
		if start < 0 {
			start = 0
		}
		for _, msg := range history[start:] {
			content := msg.Content
			if len(content) > turnChars {
				content = content[:turnChars]
			}
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

func buildFollowUpSynthesisPrompt(originalQuery, followUpAnswer string) string {
	return fmt.Sprintf("Original question: %s\nClarification from the student: %s\n\nRefined question:", originalQuery, followUpAnswer)
}

func buildRelevanceUserPrompt(query, courseName, courseDescription string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", courseName)
	if courseDescription != "" {
		fmt.Fprintf(&b, "Course description: %s\n", courseDescription)
	}
	fmt.Fprintf(&b, "\nStudent question: %s", query)
	return b.String()
}

func buildAnswerabilityUserPrompt(contextBlock, query string) string {
	return fmt.Sprintf("Course material:\n%s\n\nQuestion: %s\n\nDoes this material answer the question?", contextBlock, query)
}

func buildPersonalizationSystemPrompt(profile domain.StudentProfile) string {
	tier := degreeTier(profile.Degree)
	var b strings.Builder
	b.WriteString("You are a course tutor answering a student's question.\n")
	switch tier {
	case tierAdvanced:
		b.WriteString("Explain at an advanced level: assume strong theoretical background, use precise terminology and discuss nuances and limitations.\n")
	case tierIntermediate:
		b.WriteString("Explain at an intermediate level: assume solid fundamentals, use standard terminology and add depth where it helps.\n")
	default:
		b.WriteString("Explain at an introductory level: define terms on first use, prefer concrete examples over formalism.\n")
	}
	if profile.Major != "" {
		fmt.Fprintf(&b, "Where natural, relate explanations to the student's field of study (%s).\n", profile.Major)
	}
	b.WriteString("Cite the material you use inline in the form (DocumentName, Page N) for course sources or (SourceName, URL) for web sources.")
	return b.String()
}

func buildPersonalizationUserPrompt(state *domain.ConversationState) string {
	query := state.RefinedQuery
	if query == "" {
		query = state.Query
	}
	var b strings.Builder
	if state.CourseContentFound {
		b.WriteString("Answer the question using the course material below.\n\n")
		b.WriteString("Course material:\n")
		b.WriteString(state.CourseContext)
	} else {
		b.WriteString("No course material covered this question. Answer using the web search results below.\n\n")
		b.WriteString("Web results:\n")
		b.WriteString(state.WebSearchResults)
	}
	b.WriteString("\n\n")
	if hasComprehensiveCue(query) {
		b.WriteString("The question asks for an exhaustive enumeration: list every distinct item found in the material, do not stop at examples.\n")
	}
	if !state.CourseContentFound && hasCurrencyCue(query) {
		b.WriteString("The question asks for current information: prioritize the most recent dates found in the results and state when each piece of information is from.\n")
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

func buildRefinementUserPrompt(response string, weakMetrics []string) string {
	var b strings.Builder
	b.WriteString("Rewrite the answer below to improve these dimensions: ")
	b.WriteString(strings.Join(weakMetrics, ", "))
	b.WriteString(".\nKeep all factual content and all citations exactly as they are. Do not add new claims.\n\nAnswer:\n")
	b.WriteString(response)
	return b.String()
}

const refinementSystemPrompt = `You revise answers from a course tutoring assistant. You will be told which quality dimensions are weak; improve only those while preserving the facts and citations of the original.`
