package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/ports"
)

// completeJSON runs a JSON-mode completion and decodes the response
// into out. Models sometimes wrap the object in prose or code fences,
// so the first balanced-looking object is salvaged before decoding.
func (e *Engine) completeJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	raw, err := e.llm.Complete(ctx, systemPrompt, userPrompt, ports.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   500,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extractJSONObject(raw)), out)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
