package utils

import (
	"strings"
	"testing"
)

func TestEmbeddingKey(t *testing.T) {
	key := EmbeddingKey("what is retrieval augmented generation?")

	if !strings.HasPrefix(key, "embedding:") {
		t.Fatalf("expected key to carry the embedding namespace, got %q", key)
	}
	if len(key) != len("embedding:")+32 {
		t.Fatalf("expected a 32-hex-digit digest, got %q", key)
	}
	if key != EmbeddingKey("what is retrieval augmented generation?") {
		t.Fatalf("expected identical text to map to the same key")
	}
	if key == EmbeddingKey("a different question") {
		t.Fatalf("expected different text to map to different keys")
	}
}
