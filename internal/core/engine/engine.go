package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

// Disclaimer prepended when three refinement attempts still fail the
// quality gate.
const qualityDisclaimer = "Note: I could not fully meet the quality threshold in 3 attempts, but here is the best answer I can provide based on the available evidence.\n\n"

// Settings are the tunables of the pipeline. Zero values are replaced
// with defaults in New.
type Settings struct {
	TopK                       int
	PassThreshold              float64
	MaxHistoryTurns            int
	HistoryTurnChars           int
	ContextCharLimit           int
	PersonalizationTemperature float64
	PersonalizationMaxTokens   int
	RefinementTemperature      float64
	Greetings                  []string
	CourseDescriptions         map[string]string
}

// Engine is the orchestrator: it owns per-thread state, wires the
// stages into the routing graph and runs one turn to completion.
type Engine struct {
	llm          ports.CompletionService
	embedder     ports.Embedder
	vectors      ports.VectorStore
	web          ports.WebSearcher
	states       ports.StateStore
	interactions ports.InteractionLogger
	logger       *slog.Logger
	settings     Settings
}

func New(
	llm ports.CompletionService,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	web ports.WebSearcher,
	states ports.StateStore,
	interactions ports.InteractionLogger,
	logger *slog.Logger,
	settings Settings,
) *Engine {
	if settings.TopK <= 0 {
		settings.TopK = 10
	}
	if settings.PassThreshold <= 0 {
		settings.PassThreshold = 0.70
	}
	if settings.MaxHistoryTurns <= 0 {
		settings.MaxHistoryTurns = 15
	}
	if settings.HistoryTurnChars <= 0 {
		settings.HistoryTurnChars = 500
	}
	if settings.ContextCharLimit <= 0 {
		settings.ContextCharLimit = 8000
	}
	if settings.PersonalizationTemperature <= 0 {
		settings.PersonalizationTemperature = 0.7
	}
	if settings.PersonalizationMaxTokens <= 0 {
		settings.PersonalizationMaxTokens = 2000
	}
	if settings.RefinementTemperature <= 0 {
		settings.RefinementTemperature = 0.3
	}
	if len(settings.Greetings) == 0 {
		settings.Greetings = defaultGreetings
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		llm:          llm,
		embedder:     embedder,
		vectors:      vectors,
		web:          web,
		states:       states,
		interactions: interactions,
		logger:       logger,
		settings:     settings,
	}
}

// Ask runs one tutoring turn. It never returns an error for
// external-service failures inside the pipeline; those degrade to the
// documented fail-open defaults. Errors here mean the request itself
// was unusable or state persistence failed.
func (e *Engine) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("query is required"))
	}
	if strings.TrimSpace(req.CourseName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("course_name is required"))
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	state, err := e.states.Load(ctx, threadID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrThreadNotFound) {
			return nil, fmt.Errorf("load state: %w", err)
		}
		state = domain.NewConversationState(threadID, req.CourseName, req.Profile)
	}
	state.Messages = append(state.Messages, domain.Message{Role: domain.RoleUser, Content: query})

	if reply, ok := e.greetingReply(query, state.CourseName); ok {
		state.ResetTurn(query)
		state.PendingFollowUp = false
		state.AccumulatedQuery = ""
		state.FinalResponse = reply
		state.Messages = append(state.Messages, domain.Message{Role: domain.RoleAssistant, Content: reply})
		if err := e.states.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
		return &domain.AskResult{
			ThreadID: threadID,
			Outcome:  domain.OutcomeGreeting,
			Response: reply,
		}, nil
	}

	state.ResetTurn(query)

	start := domain.StageQueryRefinement
	if state.PendingFollowUp {
		resolved := e.resumeFollowUp(ctx, state, query)
		if !resolved {
			return e.finishTurn(ctx, state, domain.OutcomeFollowUp)
		}
		start = domain.StageRelevance
	}

	e.runPipeline(ctx, state, start)

	outcome := domain.OutcomeAnswered
	switch {
	case state.IsVague:
		outcome = domain.OutcomeFollowUp
	case !state.IsRelevant:
		outcome = domain.OutcomeNotRelevant
	case !state.EvaluationPassed:
		outcome = domain.OutcomeBelowThreshold
	}
	return e.finishTurn(ctx, state, outcome)
}

// runPipeline walks the stage graph from start until the terminal
// state. The refinement loop is bounded by MaxRefinementAttempts, so
// the walk always terminates.
func (e *Engine) runPipeline(ctx context.Context, state *domain.ConversationState, start domain.Stage) {
	current := start
	for current != domain.StageEnd {
		e.runStage(ctx, state, current)
		next := nextStage(current, state)
		e.recordTransition(state, current, next)

		if current == domain.StageEvaluation && next == domain.StageEnd && !state.EvaluationPassed {
			state.FinalResponse = qualityDisclaimer + state.FinalResponse
		}
		current = next
	}
}

func (e *Engine) runStage(ctx context.Context, state *domain.ConversationState, stage domain.Stage) {
	switch stage {
	case domain.StageQueryRefinement:
		e.runQueryRefinement(ctx, state)
	case domain.StageRelevance:
		e.runRelevance(ctx, state)
	case domain.StageCourseRAG:
		e.runCourseRAG(ctx, state)
	case domain.StageWebSearch:
		e.runWebSearch(ctx, state)
	case domain.StagePersonalization:
		e.runPersonalization(ctx, state)
	case domain.StageEvaluation:
		e.runEvaluation(ctx, state)
	case domain.StageRefinement:
		e.runRefinement(ctx, state)
	}
}

func (e *Engine) recordTransition(state *domain.ConversationState, from, to domain.Stage) {
	state.AgentLog.Append(domain.AgentMessage{
		Sender:   string(from),
		Receiver: string(to),
		Type:     "stage_complete",
		Content:  e.transitionSummary(state, from),
	})
	e.logger.Debug("stage transition",
		"thread_id", state.ThreadID,
		"from", string(from),
		"to", string(to),
	)
}

func (e *Engine) transitionSummary(state *domain.ConversationState, from domain.Stage) string {
	switch from {
	case domain.StageQueryRefinement:
		return fmt.Sprintf("is_vague=%t", state.IsVague)
	case domain.StageRelevance:
		return fmt.Sprintf("is_relevant=%t", state.IsRelevant)
	case domain.StageCourseRAG:
		return fmt.Sprintf("course_content_found=%t chunks=%d", state.CourseContentFound, len(state.RetrievedChunks))
	case domain.StageWebSearch:
		return fmt.Sprintf("sources=%d", len(state.WebSearchCitations))
	case domain.StageEvaluation:
		return fmt.Sprintf("overall=%.2f passed=%t attempts=%d", state.EvaluationScores["overall"], state.EvaluationPassed, state.RefinementAttempts)
	case domain.StageRefinement:
		return fmt.Sprintf("attempt=%d", state.RefinementAttempts)
	default:
		return ""
	}
}

func (e *Engine) finishTurn(ctx context.Context, state *domain.ConversationState, outcome domain.Outcome) (*domain.AskResult, error) {
	result := &domain.AskResult{
		ThreadID:           state.ThreadID,
		Outcome:            outcome,
		Response:           state.FinalResponse,
		Citations:          state.ResponseCitations,
		EvaluationScores:   state.EvaluationScores,
		RefinementAttempts: state.RefinementAttempts,
	}
	if outcome == domain.OutcomeAnswered || outcome == domain.OutcomeBelowThreshold {
		if state.CourseContentFound {
			result.SourceType = domain.SourceTypeCourse
		} else {
			result.SourceType = domain.SourceTypeWeb
		}
	}

	assistantText := state.FinalResponse
	if outcome == domain.OutcomeFollowUp {
		if len(state.FollowUpQuestions) > 0 {
			result.FollowUpQuestion = state.FollowUpQuestions[0]
		}
		result.Response = ""
		assistantText = result.FollowUpQuestion
	}
	if assistantText != "" {
		state.Messages = append(state.Messages, domain.Message{Role: domain.RoleAssistant, Content: assistantText})
	}

	if outcome == domain.OutcomeAnswered || outcome == domain.OutcomeBelowThreshold {
		e.logInteraction(ctx, state)
	}

	if err := e.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	e.logger.Info("turn finished",
		"thread_id", state.ThreadID,
		"outcome", string(outcome),
		"attempts", state.RefinementAttempts,
		"overall", state.EvaluationScores["overall"],
	)
	return result, nil
}

// logInteraction emits the audit record. Failures are logged and
// swallowed; the pipeline result is never affected.
func (e *Engine) logInteraction(ctx context.Context, state *domain.ConversationState) {
	if e.interactions == nil {
		return
	}
	rec := domain.BuildInteractionRecord(uuid.NewString(), state)
	if err := e.interactions.LogInteraction(ctx, rec); err != nil {
		e.logger.Warn("interaction log failed", "thread_id", state.ThreadID, "error", err)
	}
}

// ThreadEvents returns the thread's inter-stage event log.
func (e *Engine) ThreadEvents(ctx context.Context, threadID string) ([]domain.AgentMessage, error) {
	state, err := e.states.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return state.AgentLog.Entries(), nil
}

var _ ports.TutorService = (*Engine)(nil)
