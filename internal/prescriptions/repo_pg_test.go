package prescriptions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateInsertsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	rec := Prescription{
		ID:            "rx-1",
		BlobName:      "blob-1.png",
		ExtractedText: "Amoxicillin 500mg",
		AIAnalysis:    validAnalysisJSON,
		Structured:    &StructuredAnalysis{RiskLevel: RiskLow, Summary: "s", Recommendations: []string{"r"}},
		RiskLevel:     RiskLow,
		AnalyzedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO prescriptions").
		WithArgs(
			rec.ID,
			rec.BlobName,
			rec.ExtractedText,
			rec.AIAnalysis,
			sqlmock.AnyArg(), // structured jsonb
			rec.RiskLevel,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM prescriptions").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "blob_name", "extracted_text", "ai_analysis", "structured", "risk_level", "analyzed_at"}))

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "blob_name", "extracted_text", "ai_analysis", "structured", "risk_level", "analyzed_at"}).
		AddRow("rx-2", "blob-2.png", "text", "{}", `{"riskLevel":"HIGH","summary":"s","recommendations":["r"]}`, "HIGH", now).
		AddRow("rx-1", "blob-1.png", "text", "{}", nil, nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM prescriptions").
		WithArgs(20, 0).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].Structured == nil || out[0].Structured.RiskLevel != RiskHigh {
		t.Fatalf("structured not decoded: %#v", out[0].Structured)
	}
	if out[1].Structured != nil || out[1].RiskLevel != "" {
		t.Fatalf("null columns should stay empty: %#v", out[1])
	}
}
