package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/pkg/textextract"
)

// TextExtractor is the upstream collaborator that turns an uploaded file into
// pages in reading order.
type TextExtractor interface {
	Extract(ctx context.Context, data io.ReaderAt, size int64, fileType string) ([]models.Page, error)
	SupportedTypes() []string
}

type extractor struct{}

func NewTextExtractor() TextExtractor {
	return &extractor{}
}

func (e *extractor) Extract(ctx context.Context, data io.ReaderAt, size int64, fileType string) ([]models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := textextract.Extract(data, size, fileType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	pages := make([]models.Page, len(result.Pages))
	for i, p := range result.Pages {
		pages[i] = models.Page{Number: p.Number, Section: p.Section, Text: p.Text}
	}
	return pages, nil
}

func (e *extractor) SupportedTypes() []string {
	return textextract.SupportedTypes()
}

var mediaTypeExt = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
}

// FileType picks the extension used for extraction, preferring the file name
// over a content type. Known media types map onto their extension.
func FileType(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if ext, ok := mediaTypeExt[mt]; ok {
		return ext
	}
	return mt
}

// Supports reports whether ex can extract files of the given FileType.
func Supports(ex TextExtractor, fileType string) bool {
	return slices.Contains(ex.SupportedTypes(), fileType)
}

// ExtractFile reads a whole file and extracts its pages.
func ExtractFile(ctx context.Context, ex TextExtractor, r io.Reader, filename, contentType string) ([]models.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ex.Extract(ctx, bytes.NewReader(data), int64(len(data)), FileType(filename, contentType))
}
