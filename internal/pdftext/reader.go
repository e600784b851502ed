package pdftext

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Reader extracts plain text from uploaded PDF documents.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a PDF text reader
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ExtractText returns the text of every page, joined with blank lines.
// An empty result is an error since downstream analysis needs text to
// work with; image-only scans should go through OCR first.
func (r *Reader) ExtractText(content []byte) (string, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	combined := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if combined == "" {
		return "", fmt.Errorf("no extractable text in PDF (%d pages)", doc.NumPage())
	}

	r.logger.Debug("PDF text extracted",
		zap.Int("pages", doc.NumPage()),
		zap.Int("text_length", len(combined)))

	return combined, nil
}
