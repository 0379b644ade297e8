package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	PublicBaseURL   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	SignURLTTL      time.Duration

	OCRProvider     string
	OCREndpoint     string
	OCRKey          string
	OCRModelID      string
	OCRPollInterval time.Duration
	OCRTimeout      time.Duration
	LLMTimeout      time.Duration

	LLMProvider         string
	LLMModel            string
	OpenAIAPIKey        string
	AzureOpenAIEndpoint string
	AzureOpenAIKey      string
	AzureOpenAIDeploy   string
	AzureOpenAIAPIVer   string
	LLMTemperature      float32
	LLMMaxTokens        int

	DatabaseURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:8080")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		SignURLTTL:      getEnvDuration("SIGN_URL_TTL", time.Hour),

		OCRProvider:     normalizeOCRProvider(getEnv("OCR_PROVIDER", "local")),
		OCREndpoint:     getEnv("OCR_ENDPOINT", ""),
		OCRKey:          getEnv("OCR_KEY", ""),
		OCRModelID:      getEnv("OCR_MODEL_ID", "prebuilt-read"),
		OCRPollInterval: getEnvDuration("OCR_POLL_INTERVAL", time.Second),
		OCRTimeout:      getEnvSeconds("OCR_TIMEOUT_SECONDS", 2*time.Minute),
		LLMTimeout:      getEnvSeconds("LLM_TIMEOUT_SECONDS", 2*time.Minute),

		LLMProvider:         normalizeLLMProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint: getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIKey:      getEnv("AZURE_OPENAI_KEY", ""),
		AzureOpenAIDeploy:   getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureOpenAIAPIVer:   getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		LLMTemperature:      getEnvFloat32("LLM_TEMPERATURE", 0.4),
		LLMMaxTokens:        getEnvInt("LLM_MAX_TOKENS", 1000),

		DatabaseURL: dbURL,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvFloat32(key string, def float32) float32 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		log.Printf("config env %s invalid float: %v", key, err)
		return def
	}
	return float32(val)
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid seconds: %q", key, raw)
		return def
	}
	return time.Duration(val) * time.Second
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeOCRProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "azure":
		return "azure"
	default:
		return "local"
	}
}

func normalizeLLMProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "azure":
		return "azure"
	default:
		return "openai"
	}
}
