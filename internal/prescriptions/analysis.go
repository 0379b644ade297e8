package prescriptions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Risk levels the analyzer may assign.
const (
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

// StructuredAnalysis is the validated shape of the analyzer's JSON output.
type StructuredAnalysis struct {
	RiskLevel       string        `json:"riskLevel"`
	Summary         string        `json:"summary"`
	Medicines       []Medicine    `json:"medicines"`
	Interactions    []Interaction `json:"interactions"`
	Recommendations []string      `json:"recommendations"`
	ExtractedText   string        `json:"extractedText"`
}

// Medicine is one prescribed item.
type Medicine struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// Interaction is one flagged drug-drug interaction.
type Interaction struct {
	Drug1          string `json:"drug1"`
	Drug2          string `json:"drug2"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// ParseStructuredAnalysis parses and validates the analyzer's raw output.
// Any shape violation is ErrMalformedAnalysis; callers must not retry it.
func ParseStructuredAnalysis(raw string) (*StructuredAnalysis, error) {
	trimmed := strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a markdown fence.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedAnalysis)
	}

	var parsed StructuredAnalysis
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	switch parsed.RiskLevel {
	case RiskLow, RiskModerate, RiskHigh:
	default:
		return nil, fmt.Errorf("%w: unknown riskLevel %q", ErrMalformedAnalysis, parsed.RiskLevel)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedAnalysis)
	}
	if len(parsed.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: missing recommendations", ErrMalformedAnalysis)
	}
	for i, rec := range parsed.Recommendations {
		if strings.TrimSpace(rec) == "" {
			return nil, fmt.Errorf("%w: empty recommendation at index %d", ErrMalformedAnalysis, i)
		}
	}
	for i, med := range parsed.Medicines {
		if strings.TrimSpace(med.Name) == "" {
			return nil, fmt.Errorf("%w: medicine %d missing name", ErrMalformedAnalysis, i)
		}
	}

	return &parsed, nil
}
