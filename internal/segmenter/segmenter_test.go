package segmenter

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func basicConfig(size, overlap int) Config {
	return Config{ChunkSize: size, ChunkOverlap: overlap, Mode: ModeBasic}
}

func TestSegment_ChunkCountFormula(t *testing.T) {
	// Boundary-free text so no snapping shifts the spans.
	cases := []struct {
		textLen int
		size    int
		overlap int
		want    int
	}{
		{2200, 1000, 200, 3},
		{1800, 1000, 200, 2},
		{1001, 1000, 500, 2},
		{1000, 1000, 200, 1},
		{500, 1000, 200, 1},
		{1, 1000, 200, 1},
	}

	for _, c := range cases {
		text := strings.Repeat("a", c.textLen)
		chunks, err := Segment(text, basicConfig(c.size, c.overlap))
		if err != nil {
			t.Fatalf("Segment(len=%d, size=%d, overlap=%d): %v", c.textLen, c.size, c.overlap, err)
		}
		if len(chunks) != c.want {
			t.Fatalf("len=%d size=%d overlap=%d: expected %d chunks, got %d",
				c.textLen, c.size, c.overlap, c.want, len(chunks))
		}
	}
}

func TestSegment_ExampleSpans(t *testing.T) {
	text := strings.Repeat("a", 2200)
	chunks, err := Segment(text, basicConfig(1000, 200))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	wantSpans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2200}}
	if len(chunks) != len(wantSpans) {
		t.Fatalf("expected %d chunks, got %d", len(wantSpans), len(chunks))
	}
	for i, w := range wantSpans {
		if chunks[i].Start != w[0] || chunks[i].End != w[1] {
			t.Fatalf("chunk %d: expected span [%d,%d), got [%d,%d)", i, w[0], w[1], chunks[i].Start, chunks[i].End)
		}
		if chunks[i].Index != i {
			t.Fatalf("chunk %d: expected index %d, got %d", i, i, chunks[i].Index)
		}
		if chunks[i].Text != text[w[0]:w[1]] {
			t.Fatalf("chunk %d: text does not match its span", i)
		}
	}
}

func TestSegment_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	cfg := Config{ChunkSize: 400, ChunkOverlap: 80, Mode: ModeContextual, ContextSize: 150}

	first, err := Segment(text, cfg)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	second, err := Segment(text, cfg)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-segmenting identical input produced different chunks")
	}
}

func TestSegment_SnapsToSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 350) + ". " + strings.Repeat("b", 400)
	chunks, err := Segment(text, basicConfig(400, 50))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if chunks[0].End != 352 {
		t.Fatalf("expected first chunk to snap to the sentence ending at 352, got %d", chunks[0].End)
	}
	if !strings.HasSuffix(chunks[0].Text, ". ") {
		t.Fatalf("expected first chunk to end with the sentence marker")
	}
	if chunks[1].Start != 302 {
		t.Fatalf("expected second chunk to start at 302, got %d", chunks[1].Start)
	}
}

func TestSegment_NoBoundaryInWindowSplitsRaw(t *testing.T) {
	// The only sentence ending sits outside the lookback window.
	text := "End. " + strings.Repeat("c", 995)
	chunks, err := Segment(text, basicConfig(500, 100))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if chunks[0].End != 500 {
		t.Fatalf("expected raw split at 500, got %d", chunks[0].End)
	}
}

func TestSegment_ContextualWindows(t *testing.T) {
	text := strings.Repeat("x", 900)
	cfg := Config{ChunkSize: 300, ChunkOverlap: 50, Mode: ModeContextual, ContextSize: 120}

	chunks, err := Segment(text, cfg)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	total := len(chunks)
	for i, ch := range chunks {
		if len(ch.ContextBefore) > cfg.ContextSize || len(ch.ContextAfter) > cfg.ContextSize {
			t.Fatalf("chunk %d: context window exceeds context size", i)
		}
		if ch.Start-len(ch.ContextBefore) < 0 || ch.End+len(ch.ContextAfter) > len(text) {
			t.Fatalf("chunk %d: context window extends past document edges", i)
		}
		wantPos := float64(i) / float64(total)
		if ch.Position != wantPos {
			t.Fatalf("chunk %d: expected position %f, got %f", i, wantPos, ch.Position)
		}
	}

	if chunks[0].ContextBefore != "" {
		t.Fatalf("first chunk should have no preceding context")
	}
	if chunks[total-1].ContextAfter != "" {
		t.Fatalf("last chunk should have no following context")
	}
}

func TestSegment_BasicModeOmitsContext(t *testing.T) {
	chunks, err := Segment(strings.Repeat("y", 1200), basicConfig(500, 100))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	for i, ch := range chunks {
		if ch.ContextBefore != "" || ch.ContextAfter != "" || ch.Position != 0 {
			t.Fatalf("chunk %d: basic mode should not carry context metadata", i)
		}
	}
}

func TestSegment_InputErrors(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		cfg     Config
		wantErr error
	}{
		{"empty text", "", basicConfig(100, 10), ErrEmptyText},
		{"whitespace only", "   \n\t  ", basicConfig(100, 10), ErrEmptyText},
		{"overlap equals size", "some text", basicConfig(100, 100), ErrInvalidConfig},
		{"overlap exceeds size", "some text", basicConfig(100, 150), ErrInvalidConfig},
		{"zero chunk size", "some text", basicConfig(0, 0), ErrInvalidConfig},
		{"negative overlap", "some text", basicConfig(100, -1), ErrInvalidConfig},
		{"unknown mode", "some text", Config{ChunkSize: 100, ChunkOverlap: 10, Mode: "fancy"}, ErrInvalidConfig},
		{"contextual without context size", "some text", Config{ChunkSize: 100, ChunkOverlap: 10, Mode: ModeContextual}, ErrInvalidConfig},
	}

	for _, c := range cases {
		_, err := Segment(c.text, c.cfg)
		if !errors.Is(err, c.wantErr) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.wantErr, err)
		}
	}
}

func TestSegment_MultiByteRunesStayIntact(t *testing.T) {
	// Every rune is three bytes, so any boundary computed in bytes
	// would land mid-encoding and corrupt the chunk text.
	text := strings.Repeat("€", 2200)
	cfg := Config{ChunkSize: 1000, ChunkOverlap: 200, Mode: ModeContextual, ContextSize: 150}

	chunks, err := Segment(text, cfg)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	wantSpans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2200}}
	if len(chunks) != len(wantSpans) {
		t.Fatalf("expected %d chunks, got %d", len(wantSpans), len(chunks))
	}
	for i, ch := range chunks {
		if ch.Start != wantSpans[i][0] || ch.End != wantSpans[i][1] {
			t.Fatalf("chunk %d: expected span [%d,%d), got [%d,%d)",
				i, wantSpans[i][0], wantSpans[i][1], ch.Start, ch.End)
		}
		if !utf8.ValidString(ch.Text) {
			t.Fatalf("chunk %d: text is not valid UTF-8", i)
		}
		if !utf8.ValidString(ch.ContextBefore) || !utf8.ValidString(ch.ContextAfter) {
			t.Fatalf("chunk %d: context window is not valid UTF-8", i)
		}
		if got := utf8.RuneCountInString(ch.Text); got != ch.End-ch.Start {
			t.Fatalf("chunk %d: expected %d runes, got %d", i, ch.End-ch.Start, got)
		}
	}
}

func TestSegment_ShortTextSingleChunk(t *testing.T) {
	text := "A short document."
	chunks, err := Segment(text, basicConfig(1000, 200))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("expected the single chunk to carry the whole text")
	}
}
