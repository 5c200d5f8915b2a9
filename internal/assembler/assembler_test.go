package assembler

import (
	"strings"
	"testing"
)

func TestAssemble_OrdersByScoreThenIndex(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "c", ChunkIndex: 4, Score: 0.5, Text: "third", Source: "doc.pdf"},
		{ChunkID: "a", ChunkIndex: 2, Score: 0.9, Text: "second", Source: "doc.pdf"},
		{ChunkID: "b", ChunkIndex: 0, Score: 0.9, Text: "first", Source: "doc.pdf"},
	}

	context, _ := Assemble("q", candidates, 10000)

	firstAt := strings.Index(context, "first")
	secondAt := strings.Index(context, "second")
	thirdAt := strings.Index(context, "third")
	if firstAt < 0 || secondAt < 0 || thirdAt < 0 {
		t.Fatalf("expected all candidate texts in context, got:\n%s", context)
	}
	if !(firstAt < secondAt && secondAt < thirdAt) {
		t.Fatalf("expected score-descending, index-ascending order, got:\n%s", context)
	}
}

func TestAssemble_DeduplicatesChunks(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "a", ChunkIndex: 0, Score: 0.9, Text: "unique text", Source: "doc.pdf"},
		{ChunkID: "a", ChunkIndex: 0, Score: 0.7, Text: "unique text", Source: "doc.pdf"},
	}

	context, _ := Assemble("q", candidates, 10000)

	if got := strings.Count(context, "unique text"); got != 1 {
		t.Fatalf("expected duplicate chunk to appear once, appeared %d times", got)
	}
}

func TestAssemble_PrefersContextWindowForm(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "a", Score: 0.9, Text: "plain", ContextText: "before plain after", Source: "doc.pdf"},
	}

	context, _ := Assemble("q", candidates, 10000)

	if !strings.Contains(context, "before plain after") {
		t.Fatalf("expected the context-window form in the assembled context")
	}
}

func TestAssemble_RespectsBudget(t *testing.T) {
	big := strings.Repeat("x", 400)
	candidates := []Candidate{
		{ChunkID: "a", ChunkIndex: 0, Score: 0.9, Text: big, Source: "first.pdf"},
		{ChunkID: "b", ChunkIndex: 1, Score: 0.8, Text: big, Source: "second.pdf"},
		{ChunkID: "c", ChunkIndex: 2, Score: 0.7, Text: big, Source: "third.pdf"},
	}

	context, sources := Assemble("q", candidates, 600)

	if len(context) > 600 {
		t.Fatalf("context exceeds budget: %d chars", len(context))
	}
	if !strings.Contains(context, "first.pdf") {
		t.Fatalf("expected the highest-scored candidate to be included")
	}
	if strings.Contains(context, "second.pdf") || strings.Contains(context, "third.pdf") {
		t.Fatalf("expected lower-scored candidates to be dropped")
	}
	if len(sources) != 1 || sources[0] != "first.pdf" {
		t.Fatalf("expected sources [first.pdf], got %v", sources)
	}
}

func TestAssemble_ZeroBudgetYieldsEmptyContext(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "a", Score: 0.9, Text: "text", Source: "doc.pdf"},
	}

	context, sources := Assemble("q", candidates, 0)

	if context != "" {
		t.Fatalf("expected empty context, got %q", context)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %v", sources)
	}
}

func TestAssemble_SourcesDedupedInsertionOrder(t *testing.T) {
	candidates := []Candidate{
		{ChunkID: "a", ChunkIndex: 0, Score: 0.9, Text: "t1", Source: "alpha.pdf"},
		{ChunkID: "b", ChunkIndex: 1, Score: 0.8, Text: "t2", Source: "beta.pdf"},
		{ChunkID: "c", ChunkIndex: 2, Score: 0.7, Text: "t3", Source: "alpha.pdf"},
	}

	_, sources := Assemble("q", candidates, 10000)

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %v", sources)
	}
	if sources[0] != "alpha.pdf" || sources[1] != "beta.pdf" {
		t.Fatalf("expected insertion-ordered sources, got %v", sources)
	}
}

func TestAssemble_NoCandidates(t *testing.T) {
	context, sources := Assemble("q", nil, 1000)
	if context != "" || sources != nil {
		t.Fatalf("expected empty result for no candidates")
	}
}
