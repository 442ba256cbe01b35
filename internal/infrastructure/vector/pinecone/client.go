package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
	"github.com/prismlab/course-tutor/internal/infrastructure/resilience"
)

// Client talks to a Pinecone index over its HTTP data-plane API.
// Chunks are scoped per course through a metadata equality filter.
type Client struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Namespace string
	Timeout   time.Duration
	Executor  *resilience.Executor
}

func New(host, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	executor := options.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		namespace:  options.Namespace,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type upsertVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

func (c *Client) Upsert(ctx context.Context, points []domain.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}

	vectors := make([]upsertVector, 0, len(points))
	for _, p := range points {
		vectors = append(vectors, upsertVector{
			ID:     p.ID,
			Values: p.Vector,
			Metadata: map[string]any{
				"course_name":   p.CourseName,
				"document_name": p.Chunk.DocumentName,
				"module_name":   p.Chunk.ModuleName,
				"page_number":   p.Chunk.PageNumber,
				"timestamp":     p.Chunk.Timestamp,
				"content":       p.Chunk.Content,
				"type":          p.Chunk.Type,
				"chunk_index":   p.Chunk.ChunkIndex,
			},
		})
	}

	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	return c.executor.Execute(ctx, "pinecone.upsert", func(ctx context.Context) error {
		return c.postJSON(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors, Namespace: c.namespace}, &resp, "upsert")
	}, classifyError)
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter"`
	IncludeMetadata bool           `json:"includeMetadata"`
	Namespace       string         `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

func (c *Client) Query(ctx context.Context, vector []float32, courseName string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 10
	}
	reqBody := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Filter:          map[string]any{"course_name": map[string]any{"$eq": courseName}},
		IncludeMetadata: true,
		Namespace:       c.namespace,
	}

	var resp queryResponse
	err := c.executor.Execute(ctx, "pinecone.query", func(ctx context.Context) error {
		return c.postJSON(ctx, "/query", reqBody, &resp, "query")
	}, classifyError)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.RetrievedChunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		chunks = append(chunks, domain.RetrievedChunk{
			Content:      metaString(m.Metadata, "content"),
			DocumentName: metaString(m.Metadata, "document_name"),
			ModuleName:   metaString(m.Metadata, "module_name"),
			PageNumber:   metaInt(m.Metadata, "page_number"),
			Timestamp:    metaString(m.Metadata, "timestamp"),
			Score:        m.Score,
			Type:         metaString(m.Metadata, "type"),
			ChunkIndex:   metaInt(m.Metadata, "chunk_index"),
		})
	}
	return chunks, nil
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// Pinecone returns every numeric metadata value as float64.
func metaInt(meta map[string]any, key string) int {
	if v, ok := meta[key].(float64); ok {
		return int(v)
	}
	return 0
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{operation: operation, statusCode: resp.StatusCode, status: resp.Status, body: string(data)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

var _ ports.VectorStore = (*Client)(nil)
