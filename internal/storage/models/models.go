package models

import "time"

type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count"`
	TextLength  int       `json:"text_length"`
	ChunkCount  int       `json:"chunk_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	ChunkIndex    int       `json:"chunk_index"`
	Text          string    `json:"text"`
	CharLength    int       `json:"char_length"`
	ContextBefore string    `json:"context_before,omitempty"`
	ContextAfter  string    `json:"context_after,omitempty"`
	Position      float64   `json:"position,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
