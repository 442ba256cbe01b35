package ports

import (
	"context"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

// CompletionOptions tune a single completion call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// CompletionService produces text from a system/user prompt pair.
// JSON-mode calls must return a parseable object or an error.
type CompletionService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)
}

// Embedder builds vectors for chunks and query text. Dimensionality is
// fixed by configuration and must match the vector index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes course chunks and performs filtered similarity
// search scoped to a single course.
type VectorStore interface {
	Upsert(ctx context.Context, points []domain.ChunkPoint) error
	Query(ctx context.Context, vector []float32, courseName string, topK int) ([]domain.RetrievedChunk, error)
}

// WebSearcher runs one open-web search call.
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) (*domain.WebSearchResult, error)
}

// StateStore persists conversation state keyed by thread id.
type StateStore interface {
	Load(ctx context.Context, threadID string) (*domain.ConversationState, error)
	Save(ctx context.Context, state *domain.ConversationState) error
}

// InteractionLogger records completed turns for audit. Implementations
// must never let a logging failure surface into the pipeline.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, record domain.InteractionRecord) error
}
