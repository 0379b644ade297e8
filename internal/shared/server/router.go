package server

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"medscan-backend/internal/diagnostics"
	"medscan-backend/internal/documents"
	"medscan-backend/internal/prescriptions"
	"medscan-backend/internal/services/health"
	"medscan-backend/internal/shared/config"
	"medscan-backend/internal/shared/metrics"
	"medscan-backend/internal/shared/server/middleware"
	"medscan-backend/internal/shared/server/respond"
	localstore "medscan-backend/internal/shared/storage/object/local"
)

// RouterDeps holds the handlers the router wires up.
type RouterDeps struct {
	Config               config.Config
	Health               *health.Service
	DocumentsHandler     *documents.Handler
	PrescriptionsHandler *prescriptions.Handler
	DiagnosticsHandler   *diagnostics.Handler

	// LocalStore is set only when the local object store is active; it backs
	// the /objects capability URLs that OCR fetches documents from.
	LocalStore *localstore.Store
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})
	deps.DocumentsHandler.RegisterRoutes(api)
	deps.PrescriptionsHandler.RegisterRoutes(api)
	deps.DiagnosticsHandler.RegisterRoutes(api)

	r.GET("/metrics", metrics.Handler())

	if deps.LocalStore != nil {
		r.GET("/objects/*key", serveLocalObject(deps.LocalStore))
	}

	return r
}

// serveLocalObject serves a stored blob after checking the signed capability
// parameters produced by the local store.
func serveLocalObject(store *localstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		blobName, err := url.PathUnescape(key)
		if err != nil || blobName == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid object key", nil)
			return
		}

		if err := store.VerifyRead(blobName, c.Query("exp"), c.Query("sig")); err != nil {
			respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
			return
		}

		rc, err := store.Open(c.Request.Context(), blobName)
		if err != nil {
			respond.Error(c, http.StatusNotFound, "not_found", "object not found", nil)
			return
		}
		defer rc.Close()

		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, rc)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
