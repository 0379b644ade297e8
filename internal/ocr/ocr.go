package ocr

import (
	"context"
	"errors"
	"strings"
)

// Client abstracts the external text-extraction service. Both calls block
// until the remote operation reaches a terminal state.
type Client interface {
	AnalyzeFromURL(ctx context.Context, documentURL string) (Result, error)
	AnalyzeFromBytes(ctx context.Context, data []byte, contentType string) (Result, error)
}

// Result is the extraction output: ordered pages of ordered text lines.
type Result struct {
	Pages []Page
}

// Page holds the text lines of one document page, in reading order.
type Page struct {
	Lines []string
}

// Flatten joins every line in page order then line order, newline-separated.
// This is the canonical text handed to downstream stages.
func (r Result) Flatten() string {
	var b strings.Builder
	first := true
	for _, page := range r.Pages {
		for _, line := range page.Lines {
			if !first {
				b.WriteString("\n")
			}
			b.WriteString(line)
			first = false
		}
	}
	return b.String()
}

// AllLines returns every line in page order then line order.
func (r Result) AllLines() []string {
	out := []string{}
	for _, page := range r.Pages {
		out = append(out, page.Lines...)
	}
	return out
}

// ErrNoTextFound is returned when the document yields no text lines.
var ErrNoTextFound = errors.New("no text found in document")
