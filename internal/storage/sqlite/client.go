package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/storage/models"
	"github.com/ragchat/backend/pkg/logger"
)

var ErrDocumentNotFound = errors.New("document not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		page_count INTEGER NOT NULL,
		text_length INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_processed ON documents(processed_at);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		char_length INTEGER NOT NULL,
		context_before TEXT NOT NULL DEFAULT '',
		context_after TEXT NOT NULL DEFAULT '',
		position REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_document_index ON document_chunks(document_id, chunk_index);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertDocumentWithChunks records a document and all of its chunks in a
// single transaction, so the catalog never holds a half-ingested document.
func (c *Client) InsertDocumentWithChunks(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, size_bytes, page_count, text_length, chunk_count, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		doc.ID,
		doc.Filename,
		doc.SizeBytes,
		doc.PageCount,
		doc.TextLength,
		doc.ChunkCount,
		doc.ProcessedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, document_id, chunk_index, text, char_length, context_before, context_after, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.ChunkIndex,
			chunk.Text,
			chunk.CharLength,
			chunk.ContextBefore,
			chunk.ContextAfter,
			chunk.Position,
			chunk.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logger.Debug("Document inserted",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)),
	)

	return nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT id, filename, size_bytes, page_count, text_length, chunk_count, processed_at FROM documents WHERE id = ?`

	var doc models.Document
	var processedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.Filename,
		&doc.SizeBytes,
		&doc.PageCount,
		&doc.TextLength,
		&doc.ChunkCount,
		&processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.ProcessedAt = time.Unix(processedAt, 0).UTC()

	return &doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	query := `SELECT id, filename, size_bytes, page_count, text_length, chunk_count, processed_at FROM documents ORDER BY processed_at DESC, id`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]models.Document, 0)
	for rows.Next() {
		var doc models.Document
		var processedAt int64

		err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.SizeBytes,
			&doc.PageCount,
			&doc.TextLength,
			&doc.ChunkCount,
			&processedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.ProcessedAt = time.Unix(processedAt, 0).UTC()
		documents = append(documents, doc)
	}

	return documents, rows.Err()
}

func (c *Client) GetDocumentChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, text, char_length, context_before, context_after, position, created_at
		FROM document_chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`

	rows, err := c.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]models.Chunk, 0)
	for rows.Next() {
		var chunk models.Chunk
		var createdAt int64

		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Text,
			&chunk.CharLength,
			&chunk.ContextBefore,
			&chunk.ContextAfter,
			&chunk.Position,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		chunk.CreatedAt = time.Unix(createdAt, 0).UTC()
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// DeleteDocument removes a document row; chunks go with it via the cascade.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}

	logger.Info("Document deleted from catalog", zap.String("document_id", id))

	return nil
}
