package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

func askReq(query string) domain.AskRequest {
	return domain.AskRequest{
		ThreadID:   "t1",
		Query:      query,
		CourseName: "Gamification",
		Profile:    domain.StudentProfile{StudentID: "s1", Degree: "Master of Science", Major: "HCI"},
	}
}

func TestGreetingShortCircuit(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.engine.Ask(context.Background(), askReq("Hello!"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeGreeting {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if !strings.Contains(result.Response, "Gamification") {
		t.Fatalf("greeting reply = %q", result.Response)
	}
	if len(env.llm.calls) != 0 {
		t.Fatalf("completion service called for a greeting: %v", env.llm.calls)
	}
	if env.vectors.queries != 0 || env.web.calls != 0 {
		t.Fatal("retrieval invoked for a greeting")
	}
	state := env.states.states["t1"]
	if len(state.Messages) != 2 {
		t.Fatalf("messages = %d, want user+assistant", len(state.Messages))
	}
}

func TestVagueQueryHaltsWithOneFollowUp(t *testing.T) {
	env := newTestEnv(t)
	env.llm.vagueness = []string{`{"is_vague": true, "follow_up_questions": ["Which topic do you mean?", "What course is this for?"]}`}

	result, err := env.engine.Ask(context.Background(), askReq("tell me about it"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeFollowUp {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if result.FollowUpQuestion != "Which topic do you mean?" {
		t.Fatalf("follow-up = %q", result.FollowUpQuestion)
	}
	state := env.states.states["t1"]
	if len(state.FollowUpQuestions) != 1 {
		t.Fatalf("follow-up questions = %d, want exactly one", len(state.FollowUpQuestions))
	}
	if !state.PendingFollowUp {
		t.Fatal("pending follow-up not tracked")
	}
	if env.vectors.queries != 0 || env.web.calls != 0 {
		t.Fatal("retrieval invoked for a vague query")
	}
}

func TestDirectQuestionOverridesVagueVerdict(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.vagueness = []string{`{"is_vague": true, "follow_up_questions": ["Which aspect?"]}`}

	result, err := env.engine.Ask(context.Background(), askReq("What is flow theory in gamified learning environments?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q, want the override to push past the vague verdict", result.Outcome)
	}
}

func TestNotRelevantEndsTurnWithExplanation(t *testing.T) {
	env := newTestEnv(t)
	env.llm.relevance = `{"relevant": false, "reason": "cooking recipes are unrelated"}`

	result, err := env.engine.Ask(context.Background(), askReq("What is the best pasta recipe?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeNotRelevant {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if !strings.Contains(result.Response, "Gamification") || !strings.Contains(result.Response, "cooking recipes are unrelated") {
		t.Fatalf("response = %q", result.Response)
	}
	if env.vectors.queries != 0 {
		t.Fatal("retrieval invoked after relevance rejection")
	}
}

func TestCourseAnswerNeverInvokesWebSearch(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.answer = "NeuroQuest is a gamified learning platform (Course_Slides, Page 3). It rewards steady progress through quests."

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q, scores = %v", result.Outcome, result.EvaluationScores)
	}
	if result.RefinementAttempts != 0 {
		t.Fatalf("attempts = %d, want 0", result.RefinementAttempts)
	}
	if result.SourceType != domain.SourceTypeCourse {
		t.Fatalf("source type = %q", result.SourceType)
	}
	if env.web.calls != 0 {
		t.Fatal("web search invoked although course content was found")
	}
	state := env.states.states["t1"]
	if state.WebSearchResults != "" {
		t.Fatalf("web results set: %q", state.WebSearchResults)
	}
	if len(result.Citations) != 1 || result.Citations[0].Document != "Course_Slides" || result.Citations[0].Page != 3 {
		t.Fatalf("citations = %+v", result.Citations)
	}
	if result.Response == "" || !strings.Contains(result.Response, "(Course_Slides, Page 3)") {
		t.Fatalf("response = %q", result.Response)
	}
}

func TestWebFallbackAppendsSourcesSection(t *testing.T) {
	// A relaxed gate keeps the focus on routing and citation shape
	// rather than on metric arithmetic over the fixture text.
	env := newTestEnvWithSettings(t, Settings{PassThreshold: 0.5})
	env.web.result = &domain.WebSearchResult{
		Text: "Recent work on gamification shows sustained engagement effects.",
		Sources: []domain.Citation{
			{Document: "Example University", URL: "https://example.edu/gamification"},
		},
	}

	result, err := env.engine.Ask(context.Background(), askReq("Explain octalysis framework basics"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q, scores = %v", result.Outcome, result.EvaluationScores)
	}
	if result.SourceType != domain.SourceTypeWeb {
		t.Fatalf("source type = %q", result.SourceType)
	}
	if env.web.calls != 1 {
		t.Fatalf("web calls = %d", env.web.calls)
	}
	if env.web.numResults != 5 {
		t.Fatalf("num results = %d, want default 5", env.web.numResults)
	}
	if !strings.Contains(result.Response, "**Sources:**") {
		t.Fatalf("no sources section in %q", result.Response)
	}
	if !strings.Contains(result.Response, "https://example.edu/gamification") {
		t.Fatalf("source link missing in %q", result.Response)
	}
	if len(result.Citations) != 1 || result.Citations[0].URL != "https://example.edu/gamification" {
		t.Fatalf("citations = %+v", result.Citations)
	}
	state := env.states.states["t1"]
	if state.CourseContentFound {
		t.Fatal("course content marked found on web fallback")
	}
}

func TestCurrencyCueForcesWebSearchBeforeAnswerability(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()

	_, err := env.engine.Ask(context.Background(), askReq("What are the latest gamification trends?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if env.llm.countCalls(callAnswerability) != 0 {
		t.Fatal("answerability consulted although the currency override decides first")
	}
	if env.web.calls != 1 {
		t.Fatalf("web calls = %d, want fallback", env.web.calls)
	}
	if env.web.numResults != 10 {
		t.Fatalf("num results = %d, want widened count for currency queries", env.web.numResults)
	}
}

func TestAnswerabilityErrorFailsOpenToCourseContent(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.answerabilityErr = errFake

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.SourceType != domain.SourceTypeCourse {
		t.Fatalf("source type = %q, want course despite classifier error", result.SourceType)
	}
	if env.web.calls != 0 {
		t.Fatal("web search invoked although answerability fails open")
	}
}

func TestRelevanceErrorFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.relevance = "not json at all"

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q, want fail-open relevance", result.Outcome)
	}
}

func TestVaguenessErrorFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.vagueness = []string{"{broken"}

	result, err := env.engine.Ask(context.Background(), askReq("zxqv theory morphology overview please expanded detail"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome == domain.OutcomeFollowUp {
		t.Fatal("classifier error must not block the user with a follow-up")
	}
}

func TestDisclaimerAfterThreeFailedAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.ortho = true
	env.vectors.chunks = courseChunks()

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeBelowThreshold {
		t.Fatalf("outcome = %q, scores = %v", result.Outcome, result.EvaluationScores)
	}
	if result.RefinementAttempts != domain.MaxRefinementAttempts {
		t.Fatalf("attempts = %d, want %d", result.RefinementAttempts, domain.MaxRefinementAttempts)
	}
	if !strings.HasPrefix(result.Response, qualityDisclaimer) {
		t.Fatalf("disclaimer missing from %q", result.Response)
	}
	if strings.Count(result.Response, "quality threshold") != 1 {
		t.Fatalf("disclaimer repeated in %q", result.Response)
	}
	state := env.states.states["t1"]
	if len(state.ResponseHistory) != domain.MaxRefinementAttempts+1 {
		t.Fatalf("response history = %d evaluations", len(state.ResponseHistory))
	}
}

func TestPassingEvaluationCarriesNoDisclaimer(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if strings.Contains(result.Response, "quality threshold") {
		t.Fatalf("disclaimer on a passing answer: %q", result.Response)
	}
}

func TestSecondTurnResetsPerTurnState(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.ortho = true
	env.vectors.chunks = courseChunks()

	if _, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?")); err != nil {
		t.Fatalf("first ask: %v", err)
	}
	firstAttempts := env.states.states["t1"].RefinementAttempts
	if firstAttempts != domain.MaxRefinementAttempts {
		t.Fatalf("setup: attempts = %d", firstAttempts)
	}

	env.embedder.ortho = false
	env.embedder.indexes = nil
	result, err := env.engine.Ask(context.Background(), askReq("What is flow theory?"))
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if result.RefinementAttempts != 0 {
		t.Fatalf("attempts leaked across turns: %d", result.RefinementAttempts)
	}
	state := env.states.states["t1"]
	if len(state.Messages) != 4 {
		t.Fatalf("messages = %d, want both turns preserved", len(state.Messages))
	}
	if strings.Contains(state.FinalResponse, "quality threshold") {
		t.Fatal("previous turn's disclaimer leaked into the new turn")
	}
	if state.AgentLog.Len() == 0 {
		t.Fatal("agent log must persist across turns")
	}
}

func TestFollowUpResumptionProceedsFromRelevance(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.llm.vagueness = []string{
		`{"is_vague": true, "follow_up_questions": ["Which mechanic do you mean?"]}`,
		`{"is_vague": false, "follow_up_questions": []}`,
	}
	env.llm.synthesis = "How do experience points motivate students in gamified courses?"

	first, err := env.engine.Ask(context.Background(), askReq("tell me about it"))
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if first.Outcome != domain.OutcomeFollowUp {
		t.Fatalf("first outcome = %q", first.Outcome)
	}

	second, err := env.engine.Ask(context.Background(), askReq("experience points"))
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if second.Outcome != domain.OutcomeAnswered {
		t.Fatalf("second outcome = %q", second.Outcome)
	}
	if env.llm.countCalls(callSynthesis) != 1 {
		t.Fatalf("synthesis calls = %d", env.llm.countCalls(callSynthesis))
	}
	state := env.states.states["t1"]
	if state.PendingFollowUp {
		t.Fatal("pending follow-up not cleared after resumption")
	}
	if state.RefinedQuery != env.llm.synthesis {
		t.Fatalf("refined query = %q", state.RefinedQuery)
	}
	found := false
	for _, call := range env.embedder.calls {
		if call == env.llm.synthesis {
			found = true
		}
	}
	if !found {
		t.Fatal("retrieval did not use the synthesized refined query")
	}
}

func TestFollowUpStillVagueAsksNextQuestion(t *testing.T) {
	env := newTestEnv(t)
	env.llm.vagueness = []string{
		`{"is_vague": true, "follow_up_questions": ["Which mechanic do you mean?"]}`,
		`{"is_vague": true, "follow_up_questions": ["Is this about points or badges?"]}`,
	}

	if _, err := env.engine.Ask(context.Background(), askReq("tell me about it")); err != nil {
		t.Fatalf("first ask: %v", err)
	}
	second, err := env.engine.Ask(context.Background(), askReq("the mechanic"))
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if second.Outcome != domain.OutcomeFollowUp {
		t.Fatalf("outcome = %q", second.Outcome)
	}
	if second.FollowUpQuestion != "Is this about points or badges?" {
		t.Fatalf("follow-up = %q", second.FollowUpQuestion)
	}
	state := env.states.states["t1"]
	if !strings.Contains(state.AccumulatedQuery, "tell me about it") || !strings.Contains(state.AccumulatedQuery, "the mechanic") {
		t.Fatalf("accumulated query = %q", state.AccumulatedQuery)
	}
}

func TestInteractionRecordEmittedAfterAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()

	if _, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?")); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(env.interactions.records) != 1 {
		t.Fatalf("records = %d", len(env.interactions.records))
	}
	rec := env.interactions.records[0]
	if rec.SourceType != domain.SourceTypeCourse || rec.Question != "What is NeuroQuest?" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Response1 == "" || rec.Score1 <= 0 {
		t.Fatalf("first attempt not recorded: %+v", rec)
	}
}

func TestInteractionLoggerFailureDoesNotAffectTurn(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()
	env.interactions.err = errFake

	result, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?"))
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Outcome != domain.OutcomeAnswered {
		t.Fatalf("outcome = %q", result.Outcome)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Ask(context.Background(), askReq("   "))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestThreadEvents(t *testing.T) {
	env := newTestEnv(t)
	env.vectors.chunks = courseChunks()

	if _, err := env.engine.Ask(context.Background(), askReq("What is NeuroQuest?")); err != nil {
		t.Fatalf("ask: %v", err)
	}
	events, err := env.engine.ThreadEvents(context.Background(), "t1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no stage events recorded")
	}
	if events[0].Sender != string(domain.StageQueryRefinement) {
		t.Fatalf("first event sender = %q", events[0].Sender)
	}

	if _, err := env.engine.ThreadEvents(context.Background(), "missing"); !domain.IsKind(err, domain.ErrThreadNotFound) {
		t.Fatalf("err = %v, want thread not found", err)
	}
}
