package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/prismlab/course-tutor/internal/core/domain"
	"github.com/prismlab/course-tutor/internal/core/ports"
	"github.com/prismlab/course-tutor/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://api.tavily.com"

// Client performs web searches through the Tavily API. A token-bucket
// limiter throttles outbound calls so burst traffic from refinement
// loops cannot exhaust the API quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Executor          *resilience.Executor
}

func New(apiKey string, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 2
	}
	executor := options.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		executor:   executor,
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, numResults int) (*domain.WebSearchResult, error) {
	if numResults <= 0 {
		numResults = 5
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tavily rate limit wait: %w", err)
	}

	reqBody := searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		MaxResults:    numResults,
		IncludeAnswer: true,
	}

	var resp searchResponse
	err := c.executor.Execute(ctx, "tavily.search", func(ctx context.Context) error {
		return c.postJSON(ctx, "/search", reqBody, &resp)
	}, classifyError)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	if strings.TrimSpace(resp.Answer) != "" {
		text.WriteString("[AI Answer] ")
		text.WriteString(strings.TrimSpace(resp.Answer))
		text.WriteString("\n\n")
	}

	sources := make([]domain.Citation, 0, len(resp.Results))
	for i, r := range resp.Results {
		fmt.Fprintf(&text, "%d. %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.Content)
		sources = append(sources, domain.Citation{Document: r.Title, URL: r.URL})
	}

	return &domain.WebSearchResult{
		Text:    strings.TrimSpace(text.String()),
		Sources: domain.DedupeCitations(sources),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tavily search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{statusCode: resp.StatusCode, status: resp.Status, body: string(data)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

var _ ports.WebSearcher = (*Client)(nil)
