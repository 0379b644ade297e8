package prescriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"medscan-backend/internal/llm"
	"medscan-backend/internal/ocr"
	"medscan-backend/internal/shared/telemetry"
)

const validAnalysisJSON = `{
	"riskLevel": "MODERATE",
	"summary": "Amoxicillin course with ibuprofen for pain.",
	"medicines": [{"name": "Amoxicillin", "type": "antibiotic", "dosage": "500mg", "frequency": "3x daily", "duration": "7 days", "instructions": "take with food"}],
	"interactions": [],
	"recommendations": ["Complete the full antibiotic course."],
	"extractedText": "Amoxicillin 500mg"
}`

type fakeStore struct {
	signCalls int
	signedURL string
	signErr   error
}

func (f *fakeStore) Save(ctx context.Context, fileName string, r io.Reader) (string, int64, string, error) {
	return "", 0, "", errors.New("not used")
}

func (f *fakeStore) Open(ctx context.Context, blobName string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

func (f *fakeStore) SignReadURL(ctx context.Context, blobName string, ttl time.Duration) (string, error) {
	f.signCalls++
	if f.signErr != nil {
		return "", f.signErr
	}
	if f.signedURL != "" {
		return f.signedURL, nil
	}
	return fmt.Sprintf("https://store.example/%s?sig=abc", blobName), nil
}

type fakeOCR struct {
	calls   int
	lastURL string
	result  ocr.Result
	err     error
}

func (f *fakeOCR) AnalyzeFromURL(ctx context.Context, documentURL string) (ocr.Result, error) {
	f.calls++
	f.lastURL = documentURL
	return f.result, f.err
}

func (f *fakeOCR) AnalyzeFromBytes(ctx context.Context, data []byte, contentType string) (ocr.Result, error) {
	return f.result, f.err
}

type fakeLLM struct {
	calls    int
	lastReq  llm.CompletionRequest
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type failingRepo struct {
	err error
}

func (r failingRepo) Create(ctx context.Context, rec Prescription) error { return r.err }
func (r failingRepo) GetByID(ctx context.Context, id string) (Prescription, error) {
	return Prescription{}, ErrNotFound
}
func (r failingRepo) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	return nil, r.err
}

func newTestService(store *fakeStore, ocrClient *fakeOCR, llmClient *fakeLLM, repo Repo) *Service {
	if repo == nil {
		repo = NewMemoryRepo()
	}
	return &Service{
		Repo:        repo,
		Store:       store,
		OCR:         ocrClient,
		LLM:         llmClient,
		SignTTL:     time.Hour,
		Temperature: 0.4,
		MaxTokens:   1000,
	}
}

func TestAnalyzePersistsRecord(t *testing.T) {
	store := &fakeStore{}
	ocrClient := &fakeOCR{result: ocr.Result{Pages: []ocr.Page{
		{Lines: []string{"Amoxicillin 500mg", "3x daily"}},
		{Lines: []string{"Ibuprofen 200mg"}},
	}}}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	repo := NewMemoryRepo()
	svc := newTestService(store, ocrClient, llmClient, repo)

	rec, err := svc.Analyze(context.Background(), "blob-1.png")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if rec.ID == "" {
		t.Fatalf("expected generated id")
	}
	if rec.BlobName != "blob-1.png" {
		t.Fatalf("blob name = %q", rec.BlobName)
	}
	wantText := "Amoxicillin 500mg\n3x daily\nIbuprofen 200mg"
	if rec.ExtractedText != wantText {
		t.Fatalf("extracted text = %q, want %q", rec.ExtractedText, wantText)
	}
	if rec.RiskLevel != RiskModerate {
		t.Fatalf("risk level = %q", rec.RiskLevel)
	}
	if rec.Structured == nil || len(rec.Structured.Medicines) != 1 {
		t.Fatalf("unexpected structured analysis %#v", rec.Structured)
	}
	if rec.AnalyzedAt.IsZero() {
		t.Fatalf("expected analyzed_at to be set")
	}

	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID after analyze: %v", err)
	}
	if stored.AIAnalysis != llmClient.response {
		t.Fatalf("stored raw analysis does not match model output")
	}

	if !strings.Contains(ocrClient.lastURL, "blob-1.png") {
		t.Fatalf("ocr did not receive the signed url, got %q", ocrClient.lastURL)
	}
	if llmClient.lastReq.System != llm.ClinicalSystemPrompt {
		t.Fatalf("llm did not receive the clinical system prompt")
	}
	if llmClient.lastReq.User != wantText {
		t.Fatalf("llm user message = %q", llmClient.lastReq.User)
	}
	if llmClient.lastReq.Temperature != 0.4 || llmClient.lastReq.MaxTokens != 1000 {
		t.Fatalf("llm params = %v / %v", llmClient.lastReq.Temperature, llmClient.lastReq.MaxTokens)
	}
}

func TestAnalyzeRejectsEmptyBlobName(t *testing.T) {
	store := &fakeStore{}
	ocrClient := &fakeOCR{}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	svc := newTestService(store, ocrClient, llmClient, nil)

	_, err := svc.Analyze(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.signCalls != 0 || ocrClient.calls != 0 || llmClient.calls != 0 {
		t.Fatalf("no external call should run on invalid input")
	}
}

func TestAnalyzeExtractionFailureSkipsLLM(t *testing.T) {
	store := &fakeStore{}
	ocrClient := &fakeOCR{err: errors.New("ocr unavailable")}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	repo := NewMemoryRepo()
	svc := newTestService(store, ocrClient, llmClient, repo)

	_, err := svc.Analyze(context.Background(), "blob-1.png")
	if err == nil {
		t.Fatalf("expected error")
	}
	if StageOf(err) != StageExtract {
		t.Fatalf("stage = %q, want %q", StageOf(err), StageExtract)
	}
	if llmClient.calls != 0 {
		t.Fatalf("llm must not be called after extraction failure")
	}
	if recs, _ := repo.List(context.Background(), 10, 0); len(recs) != 0 {
		t.Fatalf("nothing should be persisted after extraction failure")
	}
}

func TestAnalyzeSignURLFailureSkipsOCR(t *testing.T) {
	store := &fakeStore{signErr: errors.New("bucket gone")}
	ocrClient := &fakeOCR{}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	svc := newTestService(store, ocrClient, llmClient, nil)

	_, err := svc.Analyze(context.Background(), "blob-1.png")
	if StageOf(err) != StageSignURL {
		t.Fatalf("stage = %q, want %q", StageOf(err), StageSignURL)
	}
	if ocrClient.calls != 0 {
		t.Fatalf("ocr must not be called when signing fails")
	}
}

func TestAnalyzeMalformedOutputNotPersisted(t *testing.T) {
	store := &fakeStore{}
	ocrClient := &fakeOCR{result: ocr.Result{Pages: []ocr.Page{{Lines: []string{"text"}}}}}
	llmClient := &fakeLLM{response: "I cannot analyze this document."}
	repo := NewMemoryRepo()
	svc := newTestService(store, ocrClient, llmClient, repo)

	_, err := svc.Analyze(context.Background(), "blob-1.png")
	if !errors.Is(err, ErrMalformedAnalysis) {
		t.Fatalf("expected ErrMalformedAnalysis, got %v", err)
	}
	if StageOf(err) != StageValidate {
		t.Fatalf("stage = %q, want %q", StageOf(err), StageValidate)
	}
	if llmClient.calls != 1 {
		t.Fatalf("malformed output must not be retried, llm calls = %d", llmClient.calls)
	}
	if recs, _ := repo.List(context.Background(), 10, 0); len(recs) != 0 {
		t.Fatalf("nothing should be persisted on malformed output")
	}
}

func TestAnalyzePersistFailureReportsStage(t *testing.T) {
	var logs bytes.Buffer
	telemetry.SetWriter(&logs)
	t.Cleanup(func() { telemetry.SetWriter(os.Stdout) })

	store := &fakeStore{}
	ocrClient := &fakeOCR{result: ocr.Result{Pages: []ocr.Page{{Lines: []string{"text"}}}}}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	svc := newTestService(store, ocrClient, llmClient, failingRepo{err: errors.New("db down")})

	_, err := svc.Analyze(context.Background(), "blob-1.png")
	if StageOf(err) != StagePersist {
		t.Fatalf("stage = %q, want %q", StageOf(err), StagePersist)
	}
	if llmClient.calls != 1 {
		t.Fatalf("pipeline should complete analysis before persist failure, llm calls = %d", llmClient.calls)
	}

	// The computed analysis must be recoverable from the failure log alone.
	event := findLogEvent(t, logs.Bytes(), "prescriptions.persist_failed")
	if got, _ := event["ai_analysis"].(string); got != validAnalysisJSON {
		t.Fatalf("persist_failed log ai_analysis = %q, want full analysis text", got)
	}
	if got, _ := event["blob_name"].(string); got != "blob-1.png" {
		t.Fatalf("persist_failed log blob_name = %q", got)
	}
	if id, _ := event["prescription_id"].(string); id == "" {
		t.Fatalf("persist_failed log missing prescription_id")
	}
}

func findLogEvent(t *testing.T, logs []byte, message string) map[string]any {
	t.Helper()
	for _, line := range bytes.Split(logs, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal(line, &event); err != nil {
			t.Fatalf("malformed log line %q: %v", line, err)
		}
		if event["message"] == message {
			return event
		}
	}
	t.Fatalf("no %q event in captured logs:\n%s", message, logs)
	return nil
}

func TestAnalyzeTwiceProducesDistinctRecords(t *testing.T) {
	store := &fakeStore{}
	ocrClient := &fakeOCR{result: ocr.Result{Pages: []ocr.Page{{Lines: []string{"text"}}}}}
	llmClient := &fakeLLM{response: validAnalysisJSON}
	repo := NewMemoryRepo()
	svc := newTestService(store, ocrClient, llmClient, repo)

	first, err := svc.Analyze(context.Background(), "blob-1.png")
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := svc.Analyze(context.Background(), "blob-1.png")
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if first.ID == second.ID {
		t.Fatalf("repeated runs must produce distinct ids")
	}
	recs, err := repo.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}
