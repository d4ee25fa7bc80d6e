package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSection(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"all caps heading", "RISK FACTORS\nOur business is exposed to...", "RISK FACTORS"},
		{"title case heading", "\n\nManagement Discussion And Analysis\nRevenue grew.", "Management Discussion And Analysis"},
		{"too short", "Q3\nrevenue grew strongly this quarter", ""},
		{"long title rejected", "One Two Three Four Five Six Seven Eight Nine\nbody", ""},
		{"body only", "revenue grew 12% in the third quarter.\nmargins held.", ""},
		{"beyond first five lines", "a line\nb line\nc line\nd line\ne line\nLATE HEADING", ""},
		{"numbers and caps", "ITEM 1A. RISK FACTORS\ntext", "ITEM 1A. RISK FACTORS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSection(tt.text))
		})
	}
}

func TestExtractTXTSplitsFormFeeds(t *testing.T) {
	data := []byte("INTRODUCTION\nfirst page\fsecond page body\f")
	res, err := Extract(bytes.NewReader(data), int64(len(data)), "text/plain")
	require.NoError(t, err)

	require.Len(t, res.Pages, 3)
	assert.Equal(t, 1, res.Pages[0].Number)
	assert.Equal(t, "INTRODUCTION", res.Pages[0].Section)
	assert.Equal(t, "second page body", res.Pages[1].Text)
	assert.Equal(t, "", res.Pages[1].Section)
	assert.Equal(t, "", res.Pages[2].Text)
	assert.Equal(t, "txt", res.Metadata["type"])
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:p><w:t>world</w:t></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), ".docx")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "Hello world", res.Pages[0].Text)
}

func TestExtractRejectsUnknownType(t *testing.T) {
	_, err := Extract(bytes.NewReader(nil), 0, ".xls")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestExtractInvalidPDF(t *testing.T) {
	data := []byte("not a pdf at all")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".pdf")
	assert.ErrorContains(t, err, "open PDF")
}
