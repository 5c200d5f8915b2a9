package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/ragchat/backend/pkg/logger"
)

var (
	// ErrNoText means the PDF parsed but yielded no extractable text,
	// typically a scanned document without an OCR layer.
	ErrNoText = errors.New("no text extracted from pdf")

	ErrInvalidPDF = errors.New("invalid pdf document")
)

// Extraction is the text content pulled out of an uploaded document.
type Extraction struct {
	Text      string
	PageCount int
}

// PDFExtractor extracts plain text from in-memory PDF bytes.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(data []byte) (*Extraction, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pageCount := reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			logger.Warn("Failed to extract page text",
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}

		if sb.Len() > 0 && text != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	logger.Debug("PDF text extracted",
		zap.Int("pages", pageCount),
		zap.Int("text_length", len(text)),
	)

	return &Extraction{Text: text, PageCount: pageCount}, nil
}
