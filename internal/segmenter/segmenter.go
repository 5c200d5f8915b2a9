package segmenter

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how much surrounding information is attached to each chunk.
type Mode string

const (
	ModeBasic      Mode = "basic"
	ModeContextual Mode = "contextual"
)

var (
	ErrEmptyText     = errors.New("text is empty or whitespace-only")
	ErrInvalidConfig = errors.New("invalid chunking configuration")
)

// boundaryLookback is how far behind a raw split offset we search for a
// sentence ending before giving up and splitting mid-sentence.
const boundaryLookback = 100

var sentenceEndings = [][]rune{
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune("\n\n"),
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Mode         Mode
	ContextSize  int
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must be non-negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	switch c.Mode {
	case ModeBasic:
	case ModeContextual:
		if c.ContextSize <= 0 {
			return fmt.Errorf("%w: contextual mode requires a positive context size", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Chunk is one bounded span of the source text. Start and End are character
// (rune) offsets into the original text, so a boundary can never land inside
// a multi-byte encoding; Text == string([]rune(text)[Start:End]).
type Chunk struct {
	Index         int
	Text          string
	Start         int
	End           int
	ContextBefore string
	ContextAfter  string
	Position      float64
}

type span struct {
	start int
	end   int
}

// Segment splits text into ordered, overlapping chunks. Boundaries are
// snapped to the latest sentence ending within the lookback window; when
// none is found the split happens at the raw character offset. The result
// is fully determined by (text, cfg).
func Segment(text string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	runes := []rune(text)
	spans := computeSpans(runes, cfg.ChunkSize, cfg.ChunkOverlap)

	chunks := make([]Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = Chunk{
			Index: i,
			Text:  string(runes[s.start:s.end]),
			Start: s.start,
			End:   s.end,
		}
		if cfg.Mode == ModeContextual {
			chunks[i].ContextBefore = string(runes[max(0, s.start-cfg.ContextSize):s.start])
			chunks[i].ContextAfter = string(runes[s.end:min(len(runes), s.end+cfg.ContextSize)])
			chunks[i].Position = float64(i) / float64(len(spans))
		}
	}

	return chunks, nil
}

func computeSpans(runes []rune, size, overlap int) []span {
	var spans []span

	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			spans = append(spans, span{start, len(runes)})
			return spans
		}

		end = snapToSentence(runes, end)
		spans = append(spans, span{start, end})

		next := end - overlap
		if next <= start {
			// A snapped boundary landed inside the overlap; skip the
			// overlap for this step so the walk always advances.
			next = end
		}
		start = next
	}
}

// snapToSentence returns the end of the latest sentence ending within the
// lookback window before end, or end itself when the window has none.
func snapToSentence(runes []rune, end int) int {
	best := end
	for i := max(0, end-boundaryLookback); i < end; i++ {
		for _, marker := range sentenceEndings {
			if i+len(marker) <= end && hasMarkerAt(runes, i, marker) {
				best = i + len(marker)
			}
		}
	}
	return best
}

func hasMarkerAt(runes []rune, i int, marker []rune) bool {
	if i+len(marker) > len(runes) {
		return false
	}
	for j, r := range marker {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
