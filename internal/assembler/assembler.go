package assembler

import (
	"fmt"
	"sort"
	"strings"
)

const contextHeader = "Based on the following relevant information:\n\n"

// Candidate is one retrieval hit as returned by the vector store.
type Candidate struct {
	ChunkID     string
	ChunkIndex  int
	Score       float64
	Text        string
	ContextText string
	Source      string
}

// renderText prefers the context-window form when the chunk carries one.
func (c Candidate) renderText() string {
	if c.ContextText != "" {
		return c.ContextText
	}
	return c.Text
}

// Assemble turns ranked retrieval candidates into a bounded prompt context
// and the list of source document names backing it. Candidates are re-sorted
// by score (ties broken by ascending chunk index), deduplicated by chunk ID,
// and appended highest-score-first until the next addition would exceed
// maxContextChars.
func Assemble(query string, candidates []Candidate, maxContextChars int) (string, []string) {
	if len(candidates) == 0 {
		return "", nil
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].ChunkIndex != ranked[j].ChunkIndex {
			return ranked[i].ChunkIndex < ranked[j].ChunkIndex
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})

	seen := make(map[string]bool, len(ranked))
	deduped := ranked[:0]
	for _, c := range ranked {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		deduped = append(deduped, c)
	}

	var builder strings.Builder
	var sources []string
	sourceSeen := make(map[string]bool)

	for i, c := range deduped {
		block := fmt.Sprintf("Source %d (%s):\n%s\n\n", i+1, c.Source, c.renderText())

		need := builder.Len() + len(block)
		if builder.Len() == 0 {
			need += len(contextHeader)
		}
		if need > maxContextChars {
			break
		}

		if builder.Len() == 0 {
			builder.WriteString(contextHeader)
		}
		builder.WriteString(block)

		if !sourceSeen[c.Source] {
			sourceSeen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}

	return builder.String(), sources
}
