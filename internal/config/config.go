package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Gemini chunking agent
	GeminiAPIKey string
	GeminiModel  string

	// Remote OCR engine
	OCRBaseURL         string
	OCRAPIKey          string
	OCRModel           string
	OCRRequestsPerSec  float64
	OCRLanguages       string
	OCRConcurrency     int
	OCRConfidenceFloor float64

	// Analyzer
	SamplePageLimit int
	MinTextLength   int

	// Structural chunking
	ParentChunkSize    int
	ParentChunkOverlap int
	ChildChunkSize     int
	ChildChunkOverlap  int

	// Semantic chunking
	SemanticMaxRetries  int
	SemanticCallTimeout time.Duration

	// Coordination
	EnableFallback    bool
	MaxProcessingTime time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Persistence
	DatabasePath string
	RunRetention time.Duration

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("CHUNKD_API_KEY"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),

		OCRBaseURL:         envOr("OCR_BASE_URL", "http://localhost:8070"),
		OCRAPIKey:          os.Getenv("OCR_API_KEY"),
		OCRModel:           envOr("OCR_MODEL", "standard"),
		OCRRequestsPerSec:  envFloat("OCR_REQUESTS_PER_SEC", 4),
		OCRLanguages:       envOr("OCR_LANGUAGES", "eng"),
		OCRConcurrency:     envInt("OCR_CONCURRENCY", 4),
		OCRConfidenceFloor: envFloat("OCR_CONFIDENCE_FLOOR", 0),

		SamplePageLimit: envInt("SAMPLE_PAGE_LIMIT", 5),
		MinTextLength:   envInt("MIN_TEXT_LENGTH", 50),

		ParentChunkSize:    envInt("PARENT_CHUNK_SIZE", 1000),
		ParentChunkOverlap: envInt("PARENT_CHUNK_OVERLAP", 100),
		ChildChunkSize:     envInt("CHILD_CHUNK_SIZE", 300),
		ChildChunkOverlap:  envInt("CHILD_CHUNK_OVERLAP", 50),

		SemanticMaxRetries:  envInt("SEMANTIC_MAX_RETRIES", 3),
		SemanticCallTimeout: envDuration("SEMANTIC_CALL_TIMEOUT", 2*time.Minute),

		EnableFallback:    envBool("ENABLE_FALLBACK", true),
		MaxProcessingTime: envDuration("MAX_PROCESSING_TIME", 1*time.Hour),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DatabasePath: envOr("DATABASE_PATH", "chunkd.db"),
		RunRetention: envDuration("RUN_RETENTION", 7*24*time.Hour),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SamplePageLimit <= 0 {
		cfg.SamplePageLimit = 5
	}
	if cfg.ParentChunkSize <= 0 {
		cfg.ParentChunkSize = 1000
	}
	if cfg.ChildChunkSize <= 0 {
		cfg.ChildChunkSize = 300
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("CHUNKD_API_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.OCRBaseURL == "" {
		return fmt.Errorf("OCR_BASE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
