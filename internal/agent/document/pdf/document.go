package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/pdf-voice/internal/models"
)

const MimeType = "application/pdf"

var ErrInvalidPDF = errors.New("invalid PDF document")

// Document is a PDF held in memory. It implements document.Document.
type Document struct {
	reader *pdf.Reader
	size   int64
	hash   string
}

// Open parses PDF bytes. The library panics on some malformed inputs, so
// those are turned into ErrInvalidPDF as well.
func Open(content []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	hash := sha256.Sum256(content)
	return &Document{
		reader: pdfReader,
		size:   int64(len(content)),
		hash:   hex.EncodeToString(hash[:]),
	}, nil
}

// Read reads r fully and opens it.
func Read(r io.Reader) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Open(content)
}

func (d *Document) PageCount() int {
	n := d.reader.NumPage()
	if n < 0 {
		return 0
	}
	return n
}

// PageText returns the plain text of the zero-based page index. Pages
// without a text layer (scanned images) yield "".
func (d *Document) PageText(index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: %v", index+1, r)
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", index+1)
	}

	// Font names are page-scoped resources, so no cache across pages.
	return page.GetPlainText(nil)
}

// Metadata reads the document info dictionary. Title and author are left
// empty when the dictionary is missing or unreadable.
func (d *Document) Metadata() (metadata models.DocumentMetadata) {
	metadata = models.DocumentMetadata{
		FileType:  models.PDF,
		FileSize:  d.size,
		MimeType:  MimeType,
		Pages:     d.PageCount(),
		Hash:      d.hash,
		CreatedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			metadata.Title, metadata.Author = "", ""
		}
	}()

	trailer := d.reader.Trailer()
	if trailer.IsNull() {
		return metadata
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return metadata
	}
	if title := info.Key("Title"); !title.IsNull() {
		metadata.Title = title.Text()
	}
	if author := info.Key("Author"); !author.IsNull() {
		metadata.Author = author.Text()
	}
	return metadata
}
