package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// Document is a read-only view over an ordered sequence of pages.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// PageText extracts the text of one page. index is zero-based.
	PageText(index int) (string, error)
}

// PageRange is a resolved 1-based inclusive page interval.
// Resolve guarantees 1 <= Start <= End+1 <= pageCount+1.
type PageRange struct {
	Start int
	End   int
}

// Empty reports whether the range selects no pages.
func (r PageRange) Empty() bool {
	return r.Start > r.End
}

// Len returns the number of selected pages.
func (r PageRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Span converts to the model representation.
func (r PageRange) Span() models.PageSpan {
	return models.PageSpan{Start: r.Start, End: r.End}
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Resolve applies defaults and clamps a requested interval to the document.
// A nil start means page 1, a nil end means the last page. Requests that
// fall outside the document are clamped rather than rejected.
func Resolve(pageCount int, requestedStart, requestedEnd *int) PageRange {
	if pageCount < 0 {
		pageCount = 0
	}

	start := 1
	if requestedStart != nil {
		start = *requestedStart
	}
	end := pageCount
	if requestedEnd != nil {
		end = *requestedEnd
	}

	start = max(1, start)
	end = min(pageCount, end)

	start = min(start, pageCount+1)
	if start > end {
		end = start - 1
	}
	return PageRange{Start: start, End: end}
}

// Extractor concatenates the text of a page range.
type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// CountPages returns the document's page count.
func (e *Extractor) CountPages(doc Document) int {
	return doc.PageCount()
}

// Extract reads pages in ascending order and joins their text with newlines.
// A page that fails to yield text contributes an empty string.
func (e *Extractor) Extract(ctx context.Context, doc Document, requestedStart, requestedEnd *int) (string, PageRange) {
	rng := Resolve(doc.PageCount(), requestedStart, requestedEnd)
	if rng.Empty() {
		e.logger.Debug("Empty page range",
			logger.Int("pageCount", doc.PageCount()),
			logger.String("range", rng.String()),
		)
		return "", rng
	}

	var b strings.Builder
	for i := rng.Start - 1; i < rng.End; i++ {
		text, err := doc.PageText(i)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				logger.Int("page", i+1),
				logger.Error(err),
			)
			text = ""
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), rng
}
