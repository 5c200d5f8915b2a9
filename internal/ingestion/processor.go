package ingestion

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/extractor"
	"github.com/ragchat/backend/internal/segmenter"
	"github.com/ragchat/backend/internal/storage/models"
	"github.com/ragchat/backend/internal/vector/milvus"
	"github.com/ragchat/backend/pkg/logger"
)

// Extractor pulls plain text out of uploaded document bytes.
type Extractor interface {
	Extract(data []byte) (*extractor.Extraction, error)
}

// Embedder turns chunk texts into embedding vectors, one per input.
type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore holds chunk embeddings for similarity search.
type VectorStore interface {
	Insert(ctx context.Context, records []milvus.ChunkRecord) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Catalog is the durable record of ingested documents and their chunks.
type Catalog interface {
	InsertDocumentWithChunks(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	DeleteDocument(ctx context.Context, id string) error
}

type Processor struct {
	extractor Extractor
	embedder  Embedder
	vectorDB  VectorStore
	catalog   Catalog
	chunkCfg  segmenter.Config
}

func NewProcessor(ext Extractor, embedder Embedder, vectorDB VectorStore, catalog Catalog, chunkCfg segmenter.Config) *Processor {
	return &Processor{
		extractor: ext,
		embedder:  embedder,
		vectorDB:  vectorDB,
		catalog:   catalog,
		chunkCfg:  chunkCfg,
	}
}

// ProcessDocument runs the full ingestion pipeline for one uploaded PDF:
// extract, segment, embed, index, catalog. If the catalog write fails after
// the vector insert succeeded, the vector entries are rolled back so the two
// stores never disagree about which documents exist.
func (p *Processor) ProcessDocument(ctx context.Context, filename string, data []byte) (*models.Document, error) {
	return p.ProcessDocumentWithConfig(ctx, filename, data, p.chunkCfg)
}

// ProcessDocumentWithConfig is ProcessDocument with per-upload chunking
// settings.
func (p *Processor) ProcessDocumentWithConfig(ctx context.Context, filename string, data []byte, chunkCfg segmenter.Config) (*models.Document, error) {
	logger.Info("Processing document",
		zap.String("filename", filename),
		zap.Int("size_bytes", len(data)),
	)

	extraction, err := p.extractor.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks, err := segmenter.Segment(extraction.Text, chunkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to segment text: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	docID := uuid.New().String()
	now := time.Now().UTC()

	doc := &models.Document{
		ID:          docID,
		Filename:    filename,
		SizeBytes:   int64(len(data)),
		PageCount:   extraction.PageCount,
		TextLength:  utf8.RuneCountInString(extraction.Text),
		ChunkCount:  len(chunks),
		ProcessedAt: now,
	}

	records := make([]milvus.ChunkRecord, 0, len(chunks))
	dbChunks := make([]*models.Chunk, 0, len(chunks))
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, chunk.Index)

		records = append(records, milvus.ChunkRecord{
			ChunkID:     chunkID,
			DocumentID:  docID,
			ChunkIndex:  int64(chunk.Index),
			Text:        chunk.Text,
			ContextText: contextText(chunk),
			Source:      filename,
			Embedding:   embeddings[i],
			CreatedAt:   now,
		})

		dbChunks = append(dbChunks, &models.Chunk{
			ID:            chunkID,
			DocumentID:    docID,
			ChunkIndex:    chunk.Index,
			Text:          chunk.Text,
			CharLength:    utf8.RuneCountInString(chunk.Text),
			ContextBefore: chunk.ContextBefore,
			ContextAfter:  chunk.ContextAfter,
			Position:      chunk.Position,
			CreatedAt:     now,
		})
	}

	if err := p.vectorDB.Insert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to insert into vector DB: %w", err)
	}

	if err := p.catalog.InsertDocumentWithChunks(ctx, doc, dbChunks); err != nil {
		// The vector insert already went through; undo it so a retry of
		// the upload does not leave orphaned embeddings behind.
		if rbErr := p.vectorDB.DeleteDocument(ctx, docID); rbErr != nil {
			logger.Error("Failed to roll back vector insert",
				zap.String("document_id", docID),
				zap.Error(rbErr),
			)
		}
		return nil, fmt.Errorf("failed to catalog document: %w", err)
	}

	logger.Info("Document processed successfully",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("pages", extraction.PageCount),
		zap.Int("chunks", len(chunks)),
	)

	return doc, nil
}

// DeleteDocument removes a document from both stores. The catalog is the
// source of truth, so it is deleted first; a missing document surfaces as
// sqlite.ErrDocumentNotFound before any vector state changes.
func (p *Processor) DeleteDocument(ctx context.Context, documentID string) error {
	if err := p.catalog.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	if err := p.vectorDB.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	logger.Info("Document deleted", zap.String("document_id", documentID))

	return nil
}

// contextText is the enriched representation indexed for contextual chunks.
// Basic chunks fall back to the chunk text itself.
func contextText(chunk segmenter.Chunk) string {
	if chunk.ContextBefore == "" && chunk.ContextAfter == "" {
		return ""
	}
	return chunk.ContextBefore + chunk.Text + chunk.ContextAfter
}
