package prescriptions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medscan-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the prescriptions service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/prescriptions", h.list)
	rg.GET("/prescriptions/:id", h.get)
}

type analyzeRequest struct {
	BlobName string `json:"blob_name"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BlobName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "blob_name is required", nil)
		return
	}
	c.Set("blobName", req.BlobName)

	rec, err := h.Svc.Analyze(c.Request.Context(), req.BlobName)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, errorCode(err), "analysis failed", gin.H{
			"stage": StageOf(err),
		})
		return
	}

	c.Set("prescriptionId", rec.ID)
	respond.JSON(c, http.StatusOK, rec)
}

func errorCode(err error) string {
	if errors.Is(err, ErrMalformedAnalysis) {
		return "malformed_analysis"
	}
	switch StageOf(err) {
	case StageSignURL, StageExtract:
		return "extraction_failed"
	case StageAnalyze:
		return "analysis_failed"
	case StagePersist:
		return "persistence_failed"
	default:
		return "internal_error"
	}
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "prescription id is required", nil)
		return
	}

	rec, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "prescription not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch prescription", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, rec)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list prescriptions", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": recs, "count": len(recs)})
}
