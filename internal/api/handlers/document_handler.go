package handlers

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/extractor"
	"github.com/ragchat/backend/internal/ingestion"
	"github.com/ragchat/backend/internal/metrics"
	"github.com/ragchat/backend/internal/segmenter"
	"github.com/ragchat/backend/internal/storage/models"
	"github.com/ragchat/backend/internal/storage/sqlite"
	"github.com/ragchat/backend/pkg/logger"
)

const maxUploadBytes = 50 << 20

type DocumentHandler struct {
	processor *ingestion.Processor
	catalog   *sqlite.Client
	chunkCfg  segmenter.Config
}

func NewDocumentHandler(processor *ingestion.Processor, catalog *sqlite.Client, chunkCfg segmenter.Config) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		catalog:   catalog,
		chunkCfg:  chunkCfg,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A PDF file is required in the 'file' field",
		})
	}

	if fileHeader.Size > maxUploadBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the maximum upload size",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}

	chunkCfg, err := h.chunkConfig(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	start := time.Now()
	doc, err := h.processor.ProcessDocumentWithConfig(c.Context(), fileHeader.Filename, data, chunkCfg)
	if err != nil {
		metrics.DocumentsProcessed.WithLabelValues("error").Inc()
		return uploadError(c, fileHeader.Filename, err)
	}

	metrics.DocumentsProcessed.WithLabelValues("success").Inc()
	metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	metrics.ChunksIndexed.Add(float64(doc.ChunkCount))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"page_count":  doc.PageCount,
		"text_length": doc.TextLength,
		"chunk_count": doc.ChunkCount,
	})
}

// chunkConfig applies optional multipart form overrides on top of the
// configured chunking defaults.
func (h *DocumentHandler) chunkConfig(c *fiber.Ctx) (segmenter.Config, error) {
	cfg := h.chunkCfg

	if raw := c.FormValue("chunk_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errors.New("chunk_size must be an integer")
		}
		cfg.ChunkSize = size
	}
	if raw := c.FormValue("chunk_overlap"); raw != "" {
		overlap, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errors.New("chunk_overlap must be an integer")
		}
		cfg.ChunkOverlap = overlap
	}
	if raw := c.FormValue("chunking_mode"); raw != "" {
		cfg.Mode = segmenter.Mode(raw)
	}
	if raw := c.FormValue("context_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errors.New("context_size must be an integer")
		}
		cfg.ContextSize = size
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func uploadError(c *fiber.Ctx, filename string, err error) error {
	logger.Error("Failed to process document",
		zap.String("filename", filename),
		zap.Error(err),
	)

	switch {
	case errors.Is(err, extractor.ErrInvalidPDF):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "The uploaded file is not a valid PDF",
		})
	case errors.Is(err, extractor.ErrNoText):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "No text could be extracted from the PDF",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	documents, err := h.catalog.ListDocuments(c.Context())
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": documents,
		"total":     len(documents),
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, err := h.catalog.GetDocument(c.Context(), id)
	if errors.Is(err, sqlite.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get document",
		})
	}

	var chunks []models.Chunk
	includeChunks := true
	if raw := c.Query("chunks"); raw != "" {
		includeChunks, _ = strconv.ParseBool(raw)
	}
	if includeChunks {
		chunks, err = h.catalog.GetDocumentChunks(c.Context(), id)
		if err != nil {
			logger.Error("Failed to get document chunks", zap.String("document_id", id), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to get document chunks",
			})
		}
	}

	return c.JSON(fiber.Map{
		"document": doc,
		"chunks":   chunks,
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	err := h.processor.DeleteDocument(c.Context(), id)
	if errors.Is(err, sqlite.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	if err != nil {
		logger.Error("Failed to delete document", zap.String("document_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "Document deleted",
		"document_id": id,
	})
}
