package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendChroma = "chroma"
)

// Config holds every setting the CLI reads from the environment (and an optional .env file).
type Config struct {
	OllamaURL       string
	// OllamaCPUURL points at an Ollama server without GPU access; used for the CPU device.
	OllamaCPUURL    string
	GenerationModel string
	EmbeddingModel  string

	GeminiAPIKey string
	GeminiModel  string

	// ModelCacheDir keeps the prepared model descriptor for the GPU path.
	ModelCacheDir string

	VectorBackend    string
	ChromaCollection string

	DocsPath    string
	WatchDocs   bool
	ArtifactDir string
	TopK        int

	RenderMarkdown bool
	LogLevel       string
	LogFile        string
	HTTPTimeout    time.Duration

	UnidocLicenseKey string
}

// Load reads .env (if present) and builds a Config with defaults for unset variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("CONFIG: No .env file found, relying on environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		OllamaURL:        getString("OLLAMA_URL", "http://localhost:11434"),
		GenerationModel:  getString("GENERATION_MODEL", "qwen3:0.6b"),
		OllamaCPUURL:     os.Getenv("OLLAMA_CPU_URL"),
		EmbeddingModel:   getString("EMBEDDING_MODEL", "all-minilm"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getString("GEMINI_MODEL", "gemini-2.5-flash"),
		ModelCacheDir:    getString("MODEL_CACHE_DIR", "ollama_qwen3_0_6b"),
		VectorBackend:    getString("VECTOR_BACKEND", BackendMemory),
		ChromaCollection: getString("CHROMA_COLLECTION", "qwenprimer-documents"),
		DocsPath:         os.Getenv("DOCS_PATH"),
		ArtifactDir:      getString("ARTIFACT_DIR", "rag_assets"),
		LogLevel:         getString("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
		UnidocLicenseKey: os.Getenv("UNIDOC_LICENSE_KEY"),
	}

	var err error
	if cfg.TopK, err = getInt("RAG_TOP_K", 2); err != nil {
		return nil, err
	}
	if cfg.WatchDocs, err = getBool("WATCH_DOCS", false); err != nil {
		return nil, err
	}
	if cfg.RenderMarkdown, err = getBool("RENDER_MARKDOWN", false); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.OllamaCPUURL == "" {
		cfg.OllamaCPUURL = cfg.OllamaURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that parse fine but make no sense.
func (c *Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("RAG_TOP_K must be at least 1, got %d", c.TopK)
	}
	switch c.VectorBackend {
	case BackendMemory, BackendChroma:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q (expected %q or %q)", c.VectorBackend, BackendMemory, BackendChroma)
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
