package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
)

var errFake = errors.New("service unavailable")

const (
	callVagueness       = "vagueness"
	callSynthesis       = "synthesis"
	callRelevance       = "relevance"
	callAnswerability   = "answerability"
	callPersonalization = "personalization"
	callRefinement      = "refinement"
)

type fakeLLM struct {
	vagueness        []string
	synthesis        string
	relevance        string
	answerability    string
	answerabilityErr error
	answer           string
	answerErr        error
	refinement       string
	err              error

	calls []string
}

func (f *fakeLLM) Complete(_ context.Context, systemPrompt, _ string, _ ports.CompletionOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.Contains(systemPrompt, "is_vague"):
		f.calls = append(f.calls, callVagueness)
		if len(f.vagueness) == 0 {
			return `{"is_vague": false, "follow_up_questions": []}`, nil
		}
		out := f.vagueness[0]
		if len(f.vagueness) > 1 {
			f.vagueness = f.vagueness[1:]
		}
		return out, nil
	case strings.Contains(systemPrompt, "combine a student's original question"):
		f.calls = append(f.calls, callSynthesis)
		if f.synthesis == "" {
			return "synthesized refined question", nil
		}
		return f.synthesis, nil
	case strings.Contains(systemPrompt, "relevance gate"):
		f.calls = append(f.calls, callRelevance)
		if f.relevance == "" {
			return `{"relevant": true, "reason": "course topic"}`, nil
		}
		return f.relevance, nil
	case strings.Contains(systemPrompt, "answers_question"):
		f.calls = append(f.calls, callAnswerability)
		if f.answerabilityErr != nil {
			return "", f.answerabilityErr
		}
		if f.answerability == "" {
			return `{"answers_question": true, "reason": "covered"}`, nil
		}
		return f.answerability, nil
	case strings.Contains(systemPrompt, "You revise answers"):
		f.calls = append(f.calls, callRefinement)
		if f.refinement == "" {
			return "revised answer text with more detail here", nil
		}
		return f.refinement, nil
	default:
		f.calls = append(f.calls, callPersonalization)
		if f.answerErr != nil {
			return "", f.answerErr
		}
		if f.answer == "" {
			return "Here is an explanation based on the material. It covers the main idea in clear terms.", nil
		}
		return f.answer, nil
	}
}

func (f *fakeLLM) countCalls(tag string) int {
	n := 0
	for _, c := range f.calls {
		if c == tag {
			n++
		}
	}
	return n
}

// fakeEmbedder hands out either one constant vector (every cosine is
// 1.0) or per-text orthogonal basis vectors (every cross-text cosine
// is 0.0), which pins evaluation scores at the extremes.
type fakeEmbedder struct {
	ortho   bool
	err     error
	indexes map[string]int
	calls   []string
}

func (f *fakeEmbedder) vec(text string) []float32 {
	if !f.ortho {
		return []float32{1, 0, 0, 0}
	}
	if f.indexes == nil {
		f.indexes = make(map[string]int)
	}
	idx, ok := f.indexes[text]
	if !ok {
		idx = len(f.indexes) % 64
		f.indexes[text] = idx
	}
	v := make([]float32, 64)
	v[idx] = 1
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f.calls = append(f.calls, t)
		out[i] = f.vec(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, text)
	return f.vec(text), nil
}

type fakeVectorStore struct {
	chunks  []domain.RetrievedChunk
	err     error
	queries int
}

func (f *fakeVectorStore) Upsert(context.Context, []domain.ChunkPoint) error {
	return nil
}

func (f *fakeVectorStore) Query(context.Context, []float32, string, int) ([]domain.RetrievedChunk, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.RetrievedChunk(nil), f.chunks...), nil
}

type fakeWebSearcher struct {
	result     *domain.WebSearchResult
	err        error
	calls      int
	numResults int
}

func (f *fakeWebSearcher) Search(_ context.Context, _ string, numResults int) (*domain.WebSearchResult, error) {
	f.calls++
	f.numResults = numResults
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &domain.WebSearchResult{Text: "web answer material"}, nil
	}
	return f.result, nil
}

type fakeStateStore struct {
	states map[string]*domain.ConversationState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*domain.ConversationState)}
}

func (f *fakeStateStore) Load(_ context.Context, threadID string) (*domain.ConversationState, error) {
	state, ok := f.states[threadID]
	if !ok {
		return nil, domain.WrapError(domain.ErrThreadNotFound, "load state", errors.New(threadID))
	}
	return state, nil
}

func (f *fakeStateStore) Save(_ context.Context, state *domain.ConversationState) error {
	f.states[state.ThreadID] = state
	return nil
}

type fakeInteractionLogger struct {
	records []domain.InteractionRecord
	err     error
}

func (f *fakeInteractionLogger) LogInteraction(_ context.Context, rec domain.InteractionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type testEnv struct {
	engine       *Engine
	llm          *fakeLLM
	embedder     *fakeEmbedder
	vectors      *fakeVectorStore
	web          *fakeWebSearcher
	states       *fakeStateStore
	interactions *fakeInteractionLogger
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithSettings(t, Settings{})
}

func newTestEnvWithSettings(t *testing.T, settings Settings) *testEnv {
	t.Helper()
	env := &testEnv{
		llm:          &fakeLLM{},
		embedder:     &fakeEmbedder{},
		vectors:      &fakeVectorStore{},
		web:          &fakeWebSearcher{},
		states:       newFakeStateStore(),
		interactions: &fakeInteractionLogger{},
	}
	logger := slog.New(slog.DiscardHandler)
	env.engine = New(env.llm, env.embedder, env.vectors, env.web, env.states, env.interactions, logger, settings)
	return env
}

func courseChunks() []domain.RetrievedChunk {
	return []domain.RetrievedChunk{
		{Content: "NeuroQuest is a gamified learning platform.", DocumentName: "Course_Slides", ModuleName: "Module 2", PageNumber: 3, Score: 0.91},
		{Content: "Flow theory describes full task immersion.", DocumentName: "Lecture_Notes", PageNumber: 12, Score: 0.84},
	}
}
