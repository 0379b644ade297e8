package prescriptions

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateID       = errors.New("record id already exists")
	ErrMalformedAnalysis = errors.New("malformed analysis output")
)

// Pipeline stages, used to report which external call failed. Operators can
// tell "nothing happened" (sign_url, extract, analyze) apart from "analysis
// computed but not saved" (persist).
const (
	StageSignURL  = "sign_url"
	StageExtract  = "extract"
	StageAnalyze  = "analyze"
	StageValidate = "validate"
	StagePersist  = "persist"
)

// StageError wraps a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failing stage for err, or "" if it carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
