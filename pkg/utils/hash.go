package utils

import (
	"crypto/md5"
	"fmt"
)

// EmbeddingKey derives the cache key for an embedding of the given text.
// The text is hashed so arbitrary-length queries map to fixed-size keys.
func EmbeddingKey(text string) string {
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("embedding:%x", hash)
}
