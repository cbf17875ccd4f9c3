package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Session handling
	SessionSecret     string
	SessionTTLMinutes int
	AuthUsername      string
	AuthPasswordHash  string // bcrypt; empty means sessions are created without auth
	BcryptCost        int

	// Redis (session store + task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Chat / embeddings provider: "google" (default) or "openai"
	AIProvider            string
	GeminiAPIKey          string
	GeminiChatModel       string
	GoogleEmbeddingsModel string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIChatModel       string
	OpenAIEmbeddingsModel string
	EmbedMaxBatch         int
	ChatTier              string

	// Agent orchestration for web_qa
	AgentID             string
	AgentPollMillis     int
	AgentTimeoutSeconds int

	// Web search
	WebSearchEndpoint string
	WebSearchKey      string
	WebSearchMarket   string

	// Atlas Search / Vector Search
	SearchIndexName  string
	VectorIndexName  string
	VectorDimensions int
	IndexBatchSize   int

	// Pipeline tuning
	MaxChunkSize            int
	ChunkOverlap            int
	UploadChunkSize         int
	UploadChunkOverlap      int
	GuardTopK               int
	GuardMinMatches         int
	ExtractQualityThreshold float64
	SnippetPreviewChars     int
	DefaultTopK             int

	// Secondary extraction backend
	OCRServiceURL     string
	OCRServiceEnabled bool
	OCRTimeout        int

	// Uploads / blob store
	MaxFileSize         int64
	MaxUploadFiles      int
	FileStorageDir      string
	BlobURLTTLMinutes   int
	SyncProcessingLimit int64

	// Batch ingestion
	DataDir           string
	IngestCronMinutes int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/ia_assistant"),
		DBName:   getEnv("DB_NAME", "ia_assistant"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 240),
		AuthUsername:      getEnv("AUTH_USERNAME", ""),
		AuthPasswordHash:  getEnv("AUTH_PASSWORD_HASH", ""),
		BcryptCost:        getEnvInt("BCRYPT_COST", 12),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AIProvider:            getEnv("AI_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiChatModel:       getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbedMaxBatch:         getEnvInt("EMBED_MAX_BATCH", 96),
		ChatTier:              getEnv("CHAT_TIER", "free"),

		AgentID:             getEnv("AGENT_ID", ""),
		AgentPollMillis:     getEnvInt("AGENT_POLL_MILLIS", 800),
		AgentTimeoutSeconds: getEnvInt("AGENT_TIMEOUT_SECONDS", 90),

		WebSearchEndpoint: getEnv("WEB_SEARCH_ENDPOINT", "https://api.bing.microsoft.com/v7.0/search"),
		WebSearchKey:      getEnv("WEB_SEARCH_KEY", ""),
		WebSearchMarket:   getEnv("WEB_SEARCH_MARKET", "ko-KR"),

		SearchIndexName:  getEnv("SEARCH_INDEX_NAME", "chunks_text"),
		VectorIndexName:  getEnv("VECTOR_INDEX_NAME", "chunks_vector"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),
		IndexBatchSize:   getEnvInt("INDEX_BATCH_SIZE", 500),

		MaxChunkSize:            getEnvInt("MAX_CHUNK_SIZE", 900),
		ChunkOverlap:            getEnvInt("CHUNK_OVERLAP", 220),
		UploadChunkSize:         getEnvInt("UPLOAD_CHUNK_SIZE", 1200),
		UploadChunkOverlap:      getEnvInt("UPLOAD_CHUNK_OVERLAP", 150),
		GuardTopK:               getEnvInt("GUARD_TOP_K", 3),
		GuardMinMatches:         getEnvInt("GUARD_MIN_MATCHES", 2),
		ExtractQualityThreshold: getEnvFloat64("EXTRACT_QUALITY_THRESHOLD", 0.25),
		SnippetPreviewChars:     getEnvInt("SNIPPET_PREVIEW_CHARS", 400),
		DefaultTopK:             getEnvInt("DEFAULT_TOP_K", 8),

		OCRServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled: getEnvBool("OCR_SERVICE_ENABLED", false),
		OCRTimeout:        getEnvInt("OCR_TIMEOUT", 300), // 5 minutes

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 26214400), // 25MB per uploaded file
		MaxUploadFiles:      getEnvInt("MAX_UPLOAD_FILES", 5),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		BlobURLTTLMinutes:   getEnvInt("BLOB_URL_TTL_MINUTES", 60),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 5242880), // 5MB inline, larger files go to the worker

		DataDir:           getEnv("DATA_DIR", "./data"),
		IngestCronMinutes: getEnvInt("INGEST_CRON_MINUTES", 0), // 0 disables the scheduled sweep

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required (session tokens, media URLs) - set it in .env file")
	}

	switch cfg.AIProvider {
	case "google":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for AI_PROVIDER=google (chat, embeddings) - set it in .env file")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for AI_PROVIDER=openai (chat, embeddings) - set it in .env file")
		}
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q (expected google or openai)", cfg.AIProvider)
	}

	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}
	if cfg.UploadChunkOverlap >= cfg.UploadChunkSize {
		return nil, fmt.Errorf("UPLOAD_CHUNK_OVERLAP (%d) must be smaller than UPLOAD_CHUNK_SIZE (%d)", cfg.UploadChunkOverlap, cfg.UploadChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
