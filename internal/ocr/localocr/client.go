package localocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"

	"medscan-backend/internal/ocr"
)

// Client implements ocr.Client without an external service, for local
// development: PDFs are parsed directly, images go through tesseract.
// It is selected by OCR_PROVIDER=local and is never a fallback for the
// Azure provider within a pipeline invocation.
type Client struct {
	httpClient *http.Client
}

// NewClient constructs a local extraction client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AnalyzeFromURL fetches the capability URL and extracts text from the body.
func (c *Client) AnalyzeFromURL(ctx context.Context, documentURL string) (ocr.Result, error) {
	if strings.TrimSpace(documentURL) == "" {
		return ocr.Result{}, fmt.Errorf("document url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return ocr.Result{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ocr.Result{}, fmt.Errorf("fetch document: http status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("fetch document: %w", err)
	}
	return c.AnalyzeFromBytes(ctx, data, resp.Header.Get("Content-Type"))
}

// AnalyzeFromBytes extracts text from an in-memory document.
func (c *Client) AnalyzeFromBytes(ctx context.Context, data []byte, contentType string) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	if len(data) == 0 {
		return ocr.Result{}, fmt.Errorf("document bytes are required")
	}

	if isPDF(data, contentType) {
		return extractPDF(data)
	}
	return extractImage(data)
}

func isPDF(data []byte, contentType string) bool {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if clean == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func extractPDF(data []byte) (ocr.Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("parse pdf: %w", err)
	}

	result := ocr.Result{}
	total := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return ocr.Result{}, fmt.Errorf("pdf page %d: %w", i, err)
		}
		lines := splitLines(text)
		total += len(lines)
		result.Pages = append(result.Pages, ocr.Page{Lines: lines})
	}
	if total == 0 {
		return ocr.Result{}, ocr.ErrNoTextFound
	}
	return result, nil
}

func extractImage(data []byte) (ocr.Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract: %w", err)
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return ocr.Result{}, ocr.ErrNoTextFound
	}
	return ocr.Result{Pages: []ocr.Page{{Lines: lines}}}, nil
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ ocr.Client = (*Client)(nil)
