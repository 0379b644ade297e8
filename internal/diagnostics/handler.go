package diagnostics

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medscan-backend/internal/ocr"
	"medscan-backend/internal/shared/server/respond"
	"medscan-backend/internal/shared/telemetry"
)

const maxTestUploadSize = 10 << 20 // 10MB

// Handler exposes the OCR-only diagnostic endpoint. It runs extraction on
// an uploaded file without signing, analysis, or persistence, so operators
// can isolate OCR problems from the rest of the pipeline.
type Handler struct {
	OCR ocr.Client
}

// NewHandler constructs a Handler.
func NewHandler(ocrClient ocr.Client) *Handler {
	return &Handler{OCR: ocrClient}
}

// RegisterRoutes attaches diagnostic routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/test-ocr", h.testOCR)
}

func (h *Handler) testOCR(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTestUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if len(data) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "uploaded file is empty", nil)
		return
	}

	result, err := h.OCR.AnalyzeFromBytes(c.Request.Context(), data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, ocr.ErrNoTextFound) {
			respond.JSON(c, http.StatusOK, gin.H{"ocr_result": []string{}})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "extraction_failed", "text extraction failed", nil)
		return
	}

	lines := result.AllLines()
	telemetry.Info("diagnostics.ocr_tested", map[string]any{
		"file_name": fileHeader.Filename,
		"lines":     len(lines),
	})
	respond.JSON(c, http.StatusOK, gin.H{"ocr_result": lines})
}
