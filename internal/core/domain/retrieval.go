package domain

import "fmt"

// RetrievedChunk is a unit of course material returned by the vector
// index. Immutable once produced by the retrieval stage.
type RetrievedChunk struct {
	Content      string  `json:"content"`
	DocumentName string  `json:"document_name"`
	ModuleName   string  `json:"module_name,omitempty"`
	PageNumber   int     `json:"page_number,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	Score        float64 `json:"score"`
	Type         string  `json:"type,omitempty"`
	ChunkIndex   int     `json:"chunk_index,omitempty"`
}

// ChunkPoint is the ingestion-side record upserted into the vector
// index. Vector dimensionality must match the index configuration.
type ChunkPoint struct {
	ID         string
	Vector     []float32
	CourseName string
	Chunk      RetrievedChunk
}

// Citation is a deduplicated provenance reference. Page and Timestamp
// are mutually exclusive; URL and Page are mutually exclusive (URL is
// set for web sources only).
type Citation struct {
	Document  string `json:"document"`
	Module    string `json:"module,omitempty"`
	Page      int    `json:"page,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Key identifies a citation for deduplication.
func (c Citation) Key() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Timestamp != "" {
		return c.Document + "|" + c.Module + "|" + c.Timestamp
	}
	return fmt.Sprintf("%s|%s|%d", c.Document, c.Module, c.Page)
}

// DedupeCitations keeps the first occurrence of each citation key,
// preserving order.
func DedupeCitations(citations []Citation) []Citation {
	seen := make(map[string]struct{}, len(citations))
	out := make([]Citation, 0, len(citations))
	for _, c := range citations {
		key := c.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// WebSearchResult is the raw outcome of one web-search call. Text may
// carry a provider error message; it is stored either way so downstream
// stages can describe the failure to the user.
type WebSearchResult struct {
	Text    string
	Sources []Citation
}
