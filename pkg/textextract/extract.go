package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the text of one page, numbered from 1 in reading order.
type Page struct {
	Number  int
	Section string
	Text    string
}

type ExtractedText struct {
	Pages    []Page
	Metadata map[string]string
}

func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	var (
		result *ExtractedText
		err    error
	)
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		result, err = extractPDF(data, size)
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		result, err = extractDOCX(data, size)
	case ".txt", "txt", "text/plain":
		result, err = extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	if err != nil {
		return nil, err
	}

	for i := range result.Pages {
		if result.Pages[i].Section == "" {
			result.Pages[i].Section = DetectSection(result.Pages[i].Text)
		}
	}
	return result, nil
}

// SupportedTypes lists the file extensions Extract accepts.
func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt"}
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return &ExtractedText{
		Pages: pages,
		Metadata: map[string]string{
			"type":  "pdf",
			"pages": fmt.Sprint(numPages),
		},
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var text string
	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		text = stripXMLTags(string(content))
		break
	}

	return &ExtractedText{
		Pages: []Page{{Number: 1, Text: text}},
		Metadata: map[string]string{
			"type": "docx",
		},
	}, nil
}

// extractTXT treats form feeds as page breaks, the way pdftotext writes them.
func extractTXT(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}

	parts := bytes.Split(buf, []byte("\f"))
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: string(p)})
	}

	return &ExtractedText{
		Pages: pages,
		Metadata: map[string]string{
			"type": "txt",
		},
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
