package assets

import (
	"context"
	"strings"

	"github.com/codefionn/hyphertext/internal/consts"
)

// EmbeddedImage is an image found inside an uploaded document.
type EmbeddedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Extraction is the text and images recovered from one document.
type Extraction struct {
	Text      string
	Summary   string
	Truncated bool
	PageCount int
	Images    []EmbeddedImage
}

// Extractor turns document bytes into text. A returned error is a user
// facing explanation that gets stored in place of the document text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Extraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte) (Extraction, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (Extraction, error) {
	return f(ctx, data)
}

// Extractors maps document MIME types to extractors. Types without an entry
// go to the fallback, which is the DOCX reader.
type Extractors struct {
	byType   map[string]Extractor
	fallback Extractor
}

// NewExtractors registers the built-in document readers. The PDF reader shells
// out through runner.
func NewExtractors(runner CommandRunner) *Extractors {
	docx := ExtractorFunc(ExtractDOCX)
	e := &Extractors{
		byType:   make(map[string]Extractor),
		fallback: docx,
	}
	e.Register("application/pdf", NewPDFExtractor(runner))
	e.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx)
	e.Register("application/msword", ExtractorFunc(func(context.Context, []byte) (Extraction, error) {
		return Extraction{}, ErrLegacyDoc
	}))
	e.Register("text/html", ExtractorFunc(ExtractHTML))
	for _, mime := range []string{"text/plain", "text/markdown", "text/csv"} {
		e.Register(mime, ExtractorFunc(ExtractText))
	}
	return e
}

// Register adds or replaces the extractor for a MIME type.
func (e *Extractors) Register(mimeType string, x Extractor) {
	e.byType[strings.ToLower(mimeType)] = x
}

// For returns the extractor handling mimeType.
func (e *Extractors) For(mimeType string) Extractor {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if x, ok := e.byType[base]; ok {
		return x
	}
	return e.fallback
}

// textBudget accumulates extracted chunks up to MaxExtractedTextChars.
type textBudget struct {
	parts     []string
	total     int
	truncated bool
}

// add appends chunk. When the chunk would overflow the budget it is cut if
// more than minKeep characters remain, marker is appended and add reports
// false.
func (b *textBudget) add(chunk string, minKeep int, marker string) bool {
	if b.truncated {
		return false
	}
	runes := []rune(chunk)
	if b.total+len(runes) > consts.MaxExtractedTextChars {
		remaining := consts.MaxExtractedTextChars - b.total
		if remaining > minKeep {
			b.parts = append(b.parts, string(runes[:remaining]))
		}
		if marker != "" {
			b.parts = append(b.parts, marker)
		}
		b.truncated = true
		b.total = consts.MaxExtractedTextChars
		return false
	}
	b.parts = append(b.parts, chunk)
	b.total += len(runes)
	return true
}

func (b *textBudget) finish(x *Extraction) {
	x.Text = strings.TrimSpace(strings.Join(b.parts, ""))
	x.Summary = summarize(x.Text)
	x.Truncated = b.truncated
}

func summarize(text string) string {
	runes := []rune(text)
	if len(runes) > consts.ExtractedSummaryChars {
		return string(runes[:consts.ExtractedSummaryChars])
	}
	return text
}
