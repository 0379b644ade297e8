package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"medscan-backend/internal/diagnostics"
	"medscan-backend/internal/documents"
	"medscan-backend/internal/llm"
	openai "medscan-backend/internal/llm/openai"
	"medscan-backend/internal/ocr"
	"medscan-backend/internal/ocr/azuredi"
	"medscan-backend/internal/ocr/localocr"
	"medscan-backend/internal/prescriptions"
	"medscan-backend/internal/services/health"
	"medscan-backend/internal/shared/config"
	"medscan-backend/internal/shared/server"
	"medscan-backend/internal/shared/storage/db"
	"medscan-backend/internal/shared/storage/object"
	localstore "medscan-backend/internal/shared/storage/object/local"
	s3store "medscan-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	OCR    ocr.Client
	LLM    llm.Client

	PrescriptionsRepo    prescriptions.Repo
	DocumentsService     *documents.Service
	PrescriptionsService *prescriptions.Service
	DocumentsHandler     *documents.Handler
	PrescriptionsHandler *prescriptions.Handler
	DiagnosticsHandler   *diagnostics.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, localStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ocrClient, err := buildOCR(cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		OCR:    ocrClient,
		LLM:    llmClient,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:               cfg,
		Health:               health.NewService(cfg.Env),
		DocumentsHandler:     app.DocumentsHandler,
		PrescriptionsHandler: app.PrescriptionsHandler,
		DiagnosticsHandler:   app.DiagnosticsHandler,
		LocalStore:           localStore,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repository: %v", err)
			_ = sqlDB.Close()
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, *localstore.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		return store, nil, err
	default:
		store := localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL)
		return store, store, nil
	}
}

func buildOCR(cfg config.Config) (ocr.Client, error) {
	switch cfg.OCRProvider {
	case "azure":
		return azuredi.NewClient(cfg.OCREndpoint, cfg.OCRKey, cfg.OCRModelID,
			azuredi.WithPollInterval(cfg.OCRPollInterval),
			azuredi.WithTimeout(cfg.OCRTimeout),
		)
	default:
		return localocr.NewClient(), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "azure":
		return openai.NewAzureClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIKey, cfg.AzureOpenAIDeploy, cfg.AzureOpenAIAPIVer,
			openai.WithTimeout(cfg.LLMTimeout))
	default:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && isDevLike(cfg.Env) {
			log.Printf("bootstrap: OPENAI_API_KEY empty; analysis calls will fail until configured")
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, openai.WithTimeout(cfg.LLMTimeout))
	}
}

func buildServices(app *App) {
	var repo prescriptions.Repo
	if app.DB != nil {
		repo = &prescriptions.PGRepo{DB: app.DB}
	} else {
		repo = prescriptions.NewMemoryRepo()
	}

	docSvc := &documents.Service{Store: app.Store}
	rxSvc := &prescriptions.Service{
		Repo:        repo,
		Store:       app.Store,
		OCR:         app.OCR,
		LLM:         app.LLM,
		SignTTL:     app.Config.SignURLTTL,
		Temperature: app.Config.LLMTemperature,
		MaxTokens:   app.Config.LLMMaxTokens,
	}

	app.PrescriptionsRepo = repo
	app.DocumentsService = docSvc
	app.PrescriptionsService = rxSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.PrescriptionsHandler = prescriptions.NewHandler(rxSvc)
	app.DiagnosticsHandler = diagnostics.NewHandler(app.OCR)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
