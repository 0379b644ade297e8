package prescriptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new prescription record.
func (r *PGRepo) Create(ctx context.Context, rec Prescription) error {
	const query = `
INSERT INTO prescriptions (id, blob_name, extracted_text, ai_analysis, structured, risk_level, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	structured, err := marshalStructured(rec.Structured)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.BlobName,
		rec.ExtractedText,
		rec.AIAnalysis,
		structured,
		nullableString(rec.RiskLevel),
		rec.AnalyzedAt,
	)
	return err
}

// GetByID returns a prescription by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Prescription, error) {
	const query = `
SELECT id, blob_name, extracted_text, ai_analysis, structured, risk_level, analyzed_at
FROM prescriptions
WHERE id = $1
LIMIT 1`

	var rec Prescription
	var structured sql.NullString
	var riskLevel sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.BlobName,
		&rec.ExtractedText,
		&rec.AIAnalysis,
		&structured,
		&riskLevel,
		&rec.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prescription{}, ErrNotFound
		}
		return Prescription{}, err
	}
	applyNullable(&rec, structured, riskLevel)
	return rec, nil
}

// List returns prescriptions newest-first with limit/offset.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Prescription, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, blob_name, extracted_text, ai_analysis, structured, risk_level, analyzed_at
FROM prescriptions
ORDER BY analyzed_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Prescription{}
	for rows.Next() {
		var rec Prescription
		var structured sql.NullString
		var riskLevel sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.BlobName,
			&rec.ExtractedText,
			&rec.AIAnalysis,
			&structured,
			&riskLevel,
			&rec.AnalyzedAt,
		); err != nil {
			return nil, err
		}
		applyNullable(&rec, structured, riskLevel)
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

func marshalStructured(s *StructuredAnalysis) (any, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func applyNullable(rec *Prescription, structured, riskLevel sql.NullString) {
	if structured.Valid {
		var parsed StructuredAnalysis
		if err := json.Unmarshal([]byte(structured.String), &parsed); err == nil {
			rec.Structured = &parsed
		}
	}
	if riskLevel.Valid {
		rec.RiskLevel = riskLevel.String
	}
}
