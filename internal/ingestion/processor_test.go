package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ragchat/backend/internal/extractor"
	"github.com/ragchat/backend/internal/segmenter"
	"github.com/ragchat/backend/internal/storage/models"
	"github.com/ragchat/backend/internal/vector/milvus"
)

type fakeExtractor struct {
	text  string
	pages int
	err   error
}

func (f *fakeExtractor) Extract(_ []byte) (*extractor.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &extractor.Extraction{Text: f.text, PageCount: f.pages}, nil
}

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) GenerateBatchEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{float32(i), 1, 2}
	}
	return embeddings, nil
}

type fakeVectorStore struct {
	insertErr error
	deleteErr error
	inserted  []milvus.ChunkRecord
	deleted   []string
}

func (f *fakeVectorStore) Insert(_ context.Context, records []milvus.ChunkRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, records...)
	return nil
}

func (f *fakeVectorStore) DeleteDocument(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return f.deleteErr
}

type fakeCatalog struct {
	insertErr error
	deleteErr error
	docs      []*models.Document
	chunks    []*models.Chunk
	deleted   []string
}

func (f *fakeCatalog) InsertDocumentWithChunks(_ context.Context, doc *models.Document, chunks []*models.Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.docs = append(f.docs, doc)
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeCatalog) DeleteDocument(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func basicConfig() segmenter.Config {
	return segmenter.Config{ChunkSize: 100, ChunkOverlap: 20, Mode: segmenter.ModeBasic}
}

func TestProcessDocument_Success(t *testing.T) {
	ext := &fakeExtractor{text: strings.Repeat("alpha beta gamma. ", 20), pages: 3}
	embedder := &fakeEmbedder{}
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{}

	p := NewProcessor(ext, embedder, vectorDB, catalog, basicConfig())

	doc, err := p.ProcessDocument(context.Background(), "guide.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Filename != "guide.pdf" {
		t.Fatalf("unexpected filename %q", doc.Filename)
	}
	if doc.PageCount != 3 {
		t.Fatalf("expected page count 3, got %d", doc.PageCount)
	}
	if doc.ChunkCount == 0 {
		t.Fatalf("expected chunks to be produced")
	}
	if len(vectorDB.inserted) != doc.ChunkCount {
		t.Fatalf("expected %d vector records, got %d", doc.ChunkCount, len(vectorDB.inserted))
	}
	if len(catalog.chunks) != doc.ChunkCount {
		t.Fatalf("expected %d catalog chunks, got %d", doc.ChunkCount, len(catalog.chunks))
	}
	for i, rec := range vectorDB.inserted {
		if rec.DocumentID != doc.ID {
			t.Fatalf("vector record %d has document %q, want %q", i, rec.DocumentID, doc.ID)
		}
		if rec.Source != "guide.pdf" {
			t.Fatalf("vector record %d has source %q", i, rec.Source)
		}
	}
	if len(vectorDB.deleted) != 0 {
		t.Fatalf("no rollback expected on success")
	}
}

func TestProcessDocument_ContextualChunksIndexEnrichedText(t *testing.T) {
	cfg := segmenter.Config{ChunkSize: 100, ChunkOverlap: 20, Mode: segmenter.ModeContextual, ContextSize: 50}
	ext := &fakeExtractor{text: strings.Repeat("the quick brown fox. ", 20), pages: 1}
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{}

	p := NewProcessor(ext, &fakeEmbedder{}, vectorDB, catalog, cfg)

	if _, err := p.ProcessDocument(context.Background(), "fox.pdf", []byte("%PDF")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A middle chunk has text on both sides, so its indexed context text
	// must be wider than the chunk itself.
	if len(vectorDB.inserted) < 3 {
		t.Fatalf("expected at least three chunks, got %d", len(vectorDB.inserted))
	}
	mid := vectorDB.inserted[1]
	if len(mid.ContextText) <= len(mid.Text) {
		t.Fatalf("expected enriched context text, got %d <= %d", len(mid.ContextText), len(mid.Text))
	}
	if !strings.Contains(mid.ContextText, mid.Text) {
		t.Fatalf("context text must contain the chunk text")
	}
}

func TestProcessDocument_ExtractionFailureStopsPipeline(t *testing.T) {
	ext := &fakeExtractor{err: extractor.ErrNoText}
	embedder := &fakeEmbedder{}
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{}

	p := NewProcessor(ext, embedder, vectorDB, catalog, basicConfig())

	_, err := p.ProcessDocument(context.Background(), "scan.pdf", []byte("%PDF"))
	if !errors.Is(err, extractor.ErrNoText) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if len(embedder.calls) != 0 {
		t.Fatalf("embedder must not be called after extraction failure")
	}
	if len(vectorDB.inserted) != 0 || len(catalog.docs) != 0 {
		t.Fatalf("no writes expected after extraction failure")
	}
}

func TestProcessDocument_EmbeddingFailureLeavesStoresUntouched(t *testing.T) {
	ext := &fakeExtractor{text: strings.Repeat("text. ", 50), pages: 1}
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{}

	p := NewProcessor(ext, embedder, vectorDB, catalog, basicConfig())

	if _, err := p.ProcessDocument(context.Background(), "doc.pdf", []byte("%PDF")); err == nil {
		t.Fatalf("expected error")
	}
	if len(vectorDB.inserted) != 0 || len(catalog.docs) != 0 {
		t.Fatalf("no writes expected after embedding failure")
	}
}

func TestProcessDocument_CatalogFailureRollsBackVectors(t *testing.T) {
	ext := &fakeExtractor{text: strings.Repeat("text. ", 50), pages: 1}
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{insertErr: errors.New("disk full")}

	p := NewProcessor(ext, &fakeEmbedder{}, vectorDB, catalog, basicConfig())

	_, err := p.ProcessDocument(context.Background(), "doc.pdf", []byte("%PDF"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(vectorDB.deleted) != 1 {
		t.Fatalf("expected one rollback delete, got %d", len(vectorDB.deleted))
	}
	if len(vectorDB.inserted) > 0 && vectorDB.deleted[0] != vectorDB.inserted[0].DocumentID {
		t.Fatalf("rollback must target the inserted document")
	}
}

func TestDeleteDocument_CatalogFirst(t *testing.T) {
	vectorDB := &fakeVectorStore{}
	catalog := &fakeCatalog{}

	p := NewProcessor(&fakeExtractor{}, &fakeEmbedder{}, vectorDB, catalog, basicConfig())

	if err := p.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.deleted) != 1 || catalog.deleted[0] != "doc-1" {
		t.Fatalf("expected catalog delete for doc-1")
	}
	if len(vectorDB.deleted) != 1 || vectorDB.deleted[0] != "doc-1" {
		t.Fatalf("expected vector delete for doc-1")
	}
}

func TestDeleteDocument_MissingDocumentSkipsVectorDelete(t *testing.T) {
	vectorDB := &fakeVectorStore{}
	notFound := errors.New("document not found")
	catalog := &fakeCatalog{deleteErr: notFound}

	p := NewProcessor(&fakeExtractor{}, &fakeEmbedder{}, vectorDB, catalog, basicConfig())

	if err := p.DeleteDocument(context.Background(), "ghost"); !errors.Is(err, notFound) {
		t.Fatalf("expected catalog error to propagate, got %v", err)
	}
	if len(vectorDB.deleted) != 0 {
		t.Fatalf("vector delete must not run when the catalog delete fails")
	}
}
