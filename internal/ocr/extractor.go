package ocr

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedFormat = errors.New("ocr_unsupported_format")
	ErrEmptyDocument     = errors.New("ocr_empty_document")
)

// Document is a stored bill attachment handed to an extractor.
type Document struct {
	BillID      string
	StoragePath string
	ContentType string
	Data        []byte
}

// Extraction is what an extractor read from a document. Confidence is in [0,1].
type Extraction struct {
	Text       string
	Total      *decimal.Decimal
	Title      string
	Confidence float64
}

type Extractor interface {
	Extract(ctx context.Context, doc Document) (Extraction, error)
}

const maxTitleRunes = 255

var totalPattern = regexp.MustCompile(`(?i)\b(?:grand\s+)?total\b[^0-9\n-]*([0-9][0-9,]*(?:\.[0-9]+)?)`)

// TextExtractor reads plain-text documents. It takes the first non-blank
// line as the title and the last "total" figure as the amount.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (TextExtractor) Extract(ctx context.Context, doc Document) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	if !strings.HasPrefix(strings.ToLower(doc.ContentType), "text/") {
		return Extraction{}, ErrUnsupportedFormat
	}

	text := strings.TrimSpace(string(doc.Data))
	if text == "" {
		return Extraction{}, ErrEmptyDocument
	}

	out := Extraction{Text: text, Confidence: 0.5}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out.Title = line
			break
		}
	}
	if r := []rune(out.Title); len(r) > maxTitleRunes {
		out.Title = string(r[:maxTitleRunes])
	}

	matches := totalPattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		raw := strings.ReplaceAll(matches[len(matches)-1][1], ",", "")
		if total, err := decimal.NewFromString(raw); err == nil {
			out.Total = &total
			out.Confidence = 0.9
		}
	}
	return out, nil
}
