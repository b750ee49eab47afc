package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-voice/internal/agent/document/pdf/pdftest"
	"github.com/feichai0017/pdf-voice/internal/models"
)

func TestOpen_PageCountAndText(t *testing.T) {
	data := pdftest.Build("Report", "Hello world", "Second page", "Third page")

	doc, err := Open(data)
	require.NoError(t, err)

	assert.Equal(t, 3, doc.PageCount())

	text, err := doc.PageText(0)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello world")

	text, err = doc.PageText(2)
	require.NoError(t, err)
	assert.Contains(t, text, "Third page")
}

func TestPageText_OutOfRange(t *testing.T) {
	doc, err := Open(pdftest.Build("Report", "Only page"))
	require.NoError(t, err)

	_, err = doc.PageText(5)
	assert.Error(t, err)
}

func TestPageText_NoTextLayer(t *testing.T) {
	doc, err := Open(pdftest.Build("Scan", ""))
	require.NoError(t, err)

	text, err := doc.PageText(0)
	require.NoError(t, err)
	assert.Equal(t, "", strings.TrimSpace(text))
}

func TestOpen_Invalid(t *testing.T) {
	_, err := Open([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = Open(nil)
	assert.ErrorIs(t, err, ErrInvalidPDF)

	truncated := pdftest.Build("Report", "Hello")
	_, err = Open(truncated[:len(truncated)/2])
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestRead(t *testing.T) {
	doc, err := Read(bytes.NewReader(pdftest.Build("Report", "One", "Two")))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
}

func TestMetadata(t *testing.T) {
	data := pdftest.Build("Quarterly", "One", "Two")
	doc, err := Open(data)
	require.NoError(t, err)

	meta := doc.Metadata()
	assert.Equal(t, "Quarterly", meta.Title)
	assert.Equal(t, "Tester", meta.Author)
	assert.Equal(t, 2, meta.Pages)
	assert.Equal(t, int64(len(data)), meta.FileSize)
	assert.Equal(t, models.PDF, meta.FileType)
	assert.Equal(t, MimeType, meta.MimeType)
	assert.Len(t, meta.Hash, 64)
}
