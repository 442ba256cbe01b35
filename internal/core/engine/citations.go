package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prismlab/course-tutor/internal/core/domain"
)

// inlineCitationRe matches markers the generator is instructed to emit:
// (DocumentName, Page 3), (DocumentName, 00:12:30) or (SourceName, URL).
var inlineCitationRe = regexp.MustCompile(`\(([^,)]+),\s*(?:[Pp]age\s+)?([^)]+)\)`)

// resolveCourseCitations intersects the inline citations of a generated
// answer with the retrieved candidate set. Candidates arrive ordered by
// retrieval score. Naming variance between the model and the index is
// absorbed by normalized substring containment in either direction.
//
// Fallback ladder: no inline citations at all -> top five candidates;
// inline citations present but none verified -> the full candidate list
// (dropping every citation would be worse than over-citing).
func resolveCourseCitations(answer string, candidates []domain.Citation) []domain.Citation {
	if len(candidates) == 0 {
		return nil
	}

	matches := inlineCitationRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return topCitations(candidates, 5)
	}

	resolved := make([]domain.Citation, 0, len(matches))
	for _, m := range matches {
		doc := normalizeDocName(m[1])
		page, pageOK := parsePage(m[2])
		for _, cand := range candidates {
			candDoc := normalizeDocName(cand.Document)
			if !strings.Contains(candDoc, doc) && !strings.Contains(doc, candDoc) {
				continue
			}
			if pageOK && cand.Page > 0 && cand.Page != page {
				continue
			}
			resolved = append(resolved, cand)
		}
	}
	if len(resolved) == 0 {
		return append([]domain.Citation(nil), candidates...)
	}
	return domain.DedupeCitations(resolved)
}

// resolveWebCitations keeps the sources the answer actually refers to
// by name or URL, falling back to the top three provided sources.
func resolveWebCitations(answer string, sources []domain.Citation) []domain.Citation {
	if len(sources) == 0 {
		return nil
	}

	lower := strings.ToLower(answer)
	resolved := make([]domain.Citation, 0, len(sources))
	for _, src := range sources {
		if src.URL != "" && strings.Contains(lower, strings.ToLower(src.URL)) {
			resolved = append(resolved, src)
			continue
		}
		if src.Document != "" && strings.Contains(lower, strings.ToLower(src.Document)) {
			resolved = append(resolved, src)
		}
	}
	if len(resolved) == 0 {
		return topCitations(sources, 3)
	}
	return domain.DedupeCitations(resolved)
}

// appendSourcesSection adds the trailing linked source list web-sourced
// answers carry. Course-sourced answers keep citations inline only.
func appendSourcesSection(answer string, citations []domain.Citation) string {
	if len(citations) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n**Sources:**\n")
	for i, c := range citations {
		name := c.Document
		if name == "" {
			name = c.URL
		}
		if c.URL != "" {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, name, c.URL)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func topCitations(citations []domain.Citation, n int) []domain.Citation {
	out := domain.DedupeCitations(citations)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func normalizeDocName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func parsePage(raw string) (int, bool) {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return page, true
}
