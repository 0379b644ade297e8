package prescriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medscan-backend/internal/llm"
	"medscan-backend/internal/ocr"
	"medscan-backend/internal/shared/metrics"
	"medscan-backend/internal/shared/storage/object"
	"medscan-backend/internal/shared/telemetry"
)

const logTextPrefix = 300

// Service runs the document analysis pipeline: sign a read URL for the
// stored blob, extract its text, ask the analyzer for a clinical read, then
// persist the result. Every run is synchronous; the caller waits for the
// record or a stage-attributed error.
type Service struct {
	Repo        Repo
	Store       object.ObjectStore
	OCR         ocr.Client
	LLM         llm.Client
	SignTTL     time.Duration
	Temperature float32
	MaxTokens   int
}

// Analyze runs the full pipeline for an already-uploaded blob and returns
// the persisted record.
func (s *Service) Analyze(ctx context.Context, blobName string) (Prescription, error) {
	if strings.TrimSpace(blobName) == "" {
		return Prescription{}, fmt.Errorf("%w: blob name is required", ErrInvalidInput)
	}

	metrics.IncPipelineStarted()
	started := time.Now()

	rec, err := s.run(ctx, blobName)
	if err != nil {
		metrics.IncPipelineFailed()
		telemetry.Error("prescriptions.pipeline_failed", map[string]any{
			"blob_name": blobName,
			"stage":     StageOf(err),
			"error":     err.Error(),
		})
		return Prescription{}, err
	}

	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(time.Since(started).Milliseconds()))
	telemetry.Info("prescriptions.pipeline_completed", map[string]any{
		"prescription_id": rec.ID,
		"blob_name":       rec.BlobName,
		"risk_level":      rec.RiskLevel,
		"duration_ms":     time.Since(started).Milliseconds(),
	})
	return rec, nil
}

func (s *Service) run(ctx context.Context, blobName string) (Prescription, error) {
	ttl := s.SignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	signedURL, err := s.Store.SignReadURL(ctx, blobName, ttl)
	if err != nil {
		return Prescription{}, stageErr(StageSignURL, err)
	}

	extraction, err := s.OCR.AnalyzeFromURL(ctx, signedURL)
	if err != nil {
		return Prescription{}, stageErr(StageExtract, err)
	}
	extracted := extraction.Flatten()
	telemetry.Info("prescriptions.text_extracted", map[string]any{
		"blob_name":   blobName,
		"chars":       len(extracted),
		"text_prefix": telemetry.TruncateText(extracted, logTextPrefix),
	})

	raw, err := newRetryingLLM(s.LLM, blobName).Complete(ctx, llm.CompletionRequest{
		System:      llm.ClinicalSystemPrompt,
		User:        extracted,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return Prescription{}, stageErr(StageAnalyze, err)
	}

	structured, err := ParseStructuredAnalysis(raw)
	if err != nil {
		telemetry.Error("prescriptions.analysis_malformed", map[string]any{
			"blob_name":  blobName,
			"raw_prefix": telemetry.TruncateText(raw, logTextPrefix),
			"error":      err.Error(),
		})
		return Prescription{}, stageErr(StageValidate, err)
	}

	rec := Prescription{
		ID:            uuid.NewString(),
		BlobName:      blobName,
		ExtractedText: extracted,
		AIAnalysis:    raw,
		Structured:    structured,
		RiskLevel:     structured.RiskLevel,
		AnalyzedAt:    time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, rec); err != nil {
		// The analysis was computed but not saved. Log the full payload so
		// an operator can recover it without rerunning the external calls.
		telemetry.Error("prescriptions.persist_failed", map[string]any{
			"prescription_id": rec.ID,
			"blob_name":       rec.BlobName,
			"ai_analysis":     rec.AIAnalysis,
			"risk_level":      rec.RiskLevel,
			"analyzed_at":     rec.AnalyzedAt,
			"error":           err.Error(),
		})
		return Prescription{}, stageErr(StagePersist, err)
	}

	return rec, nil
}

// GetByID returns a stored prescription.
func (s *Service) GetByID(ctx context.Context, id string) (Prescription, error) {
	if strings.TrimSpace(id) == "" {
		return Prescription{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns stored prescriptions newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	return s.Repo.List(ctx, limit, offset)
}
