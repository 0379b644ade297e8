package prescriptions

import "time"

// Prescription is the durable result of one full pipeline run.
type Prescription struct {
	ID            string              `json:"id"`
	BlobName      string              `json:"blob_name"`
	ExtractedText string              `json:"extracted_text"`
	AIAnalysis    string              `json:"ai_analysis"`
	Structured    *StructuredAnalysis `json:"structured,omitempty"`
	RiskLevel     string              `json:"risk_level,omitempty"`
	AnalyzedAt    time.Time           `json:"analyzed_at"`
}
