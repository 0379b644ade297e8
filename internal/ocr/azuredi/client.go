package azuredi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medscan-backend/internal/ocr"
)

const (
	defaultAPIVersion   = "2024-02-29-preview"
	defaultPollInterval = time.Second
	defaultTimeout      = 2 * time.Minute

	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// Client implements ocr.Client against Azure Document Intelligence.
// Analysis is a long-running operation: the submit call returns an
// Operation-Location, which is polled until it reaches a terminal state.
type Client struct {
	endpoint     string
	apiKey       string
	modelID      string
	apiVersion   string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithPollInterval overrides the polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTimeout bounds how long one analysis may stay in flight.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAPIVersion overrides the service API version.
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if strings.TrimSpace(v) != "" {
			c.apiVersion = v
		}
	}
}

// NewClient constructs a Document Intelligence client.
func NewClient(endpoint, apiKey, modelID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("OCR_ENDPOINT is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OCR_KEY is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "prebuilt-read"
	}
	c := &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		modelID:      modelID,
		apiVersion:   defaultAPIVersion,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type analyzeURLRequest struct {
	URLSource string `json:"urlSource"`
}

type operationResponse struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
	Error         *serviceError  `json:"error,omitempty"`
}

type analyzeResult struct {
	Pages []resultPage `json:"pages"`
}

type resultPage struct {
	Lines []resultLine `json:"lines"`
}

type resultLine struct {
	Content string `json:"content"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeFromURL submits a document by capability URL and awaits the result.
func (c *Client) AnalyzeFromURL(ctx context.Context, documentURL string) (ocr.Result, error) {
	if strings.TrimSpace(documentURL) == "" {
		return ocr.Result{}, fmt.Errorf("document url is required")
	}
	payload, err := json.Marshal(analyzeURLRequest{URLSource: documentURL})
	if err != nil {
		return ocr.Result{}, err
	}
	return c.analyze(ctx, bytes.NewReader(payload), "application/json")
}

// AnalyzeFromBytes submits raw document bytes and awaits the result.
func (c *Client) AnalyzeFromBytes(ctx context.Context, data []byte, contentType string) (ocr.Result, error) {
	if len(data) == 0 {
		return ocr.Result{}, fmt.Errorf("document bytes are required")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	return c.analyze(ctx, bytes.NewReader(data), contentType)
}

func (c *Client) analyze(ctx context.Context, body io.Reader, contentType string) (ocr.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opURL, err := c.submit(ctx, body, contentType)
	if err != nil {
		return ocr.Result{}, err
	}
	return c.await(ctx, opURL)
}

func (c *Client) submit(ctx context.Context, body io.Reader, contentType string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s", c.endpoint, c.modelID, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("ocr submit: %s", readServiceError(resp))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", errors.New("ocr submit: missing Operation-Location header")
	}
	return opURL, nil
}

func (c *Client) await(ctx context.Context, opURL string) (ocr.Result, error) {
	for {
		op, err := c.pollOnce(ctx, opURL)
		if err != nil {
			return ocr.Result{}, err
		}

		switch op.Status {
		case statusSucceeded:
			return toResult(op.AnalyzeResult)
		case statusFailed:
			if op.Error != nil {
				return ocr.Result{}, fmt.Errorf("ocr analysis failed: %s (%s)", op.Error.Message, op.Error.Code)
			}
			return ocr.Result{}, errors.New("ocr analysis failed")
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ocr.Result{}, fmt.Errorf("ocr poll: %w", ctx.Err())
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, opURL string) (operationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return operationResponse{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return operationResponse{}, fmt.Errorf("ocr poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return operationResponse{}, fmt.Errorf("ocr poll: %s", readServiceError(resp))
	}

	var op operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return operationResponse{}, fmt.Errorf("ocr poll parse: %w", err)
	}
	return op, nil
}

func toResult(analyzed *analyzeResult) (ocr.Result, error) {
	if analyzed == nil {
		return ocr.Result{}, errors.New("ocr analysis succeeded without a result body")
	}
	result := ocr.Result{Pages: make([]ocr.Page, 0, len(analyzed.Pages))}
	total := 0
	for _, page := range analyzed.Pages {
		lines := make([]string, 0, len(page.Lines))
		for _, line := range page.Lines {
			lines = append(lines, line.Content)
		}
		total += len(lines)
		result.Pages = append(result.Pages, ocr.Page{Lines: lines})
	}
	if total == 0 {
		return ocr.Result{}, ocr.ErrNoTextFound
	}
	return result, nil
}

func readServiceError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("http status %d", resp.StatusCode)
	}
	var parsed struct {
		Error *serviceError `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		return fmt.Sprintf("http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Code)
	}
	return fmt.Sprintf("http status %d", resp.StatusCode)
}

var _ ocr.Client = (*Client)(nil)
