package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider selects the text-generation backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Config is the immutable process-wide configuration, built once at startup
// and passed by reference into every component that needs it.
type Config struct {
	// Text-generation provider selection.
	Provider       Provider
	AnthropicKey   string
	AnthropicModel string
	OpenAIKey      string
	OpenAIModel    string

	// Transcription backend: "whisper-cli" or "openai".
	TranscribeBackend string
	WhisperModel      string
	WhisperDevice     string
	WhisperBin        string

	// Chunking.
	ChunkSize    int
	ChunkOverlap int

	// Retry policy for external calls.
	RetryAttempts int
	RetryMinWait  time.Duration
	RetryMaxWait  time.Duration

	// Data directories.
	InputDir        string
	OutputDir       string
	IntermediateDir string
	ProcessedDir    string
	FailedDir       string

	// Service.
	ListenAddr        string
	HeartbeatInterval time.Duration

	// Logging.
	LogLevel string
}

// Load reads configuration from the environment, after a best-effort .env
// load, and applies defaults for anything unset.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Provider:       Provider(getEnv("LLM_PROVIDER", string(ProviderAnthropic))),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),

		TranscribeBackend: getEnv("TRANSCRIBE_BACKEND", "whisper-cli"),
		WhisperModel:      getEnv("WHISPER_MODEL", "large-v3"),
		WhisperDevice:     getEnv("WHISPER_DEVICE", "auto"),
		WhisperBin:        getEnv("WHISPER_BIN", "whisper-transcribe"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 6000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),

		RetryAttempts: getEnvAsInt("RETRY_ATTEMPTS", 5),
		RetryMinWait:  getEnvAsDuration("RETRY_MIN_WAIT", 2*time.Second),
		RetryMaxWait:  getEnvAsDuration("RETRY_MAX_WAIT", 60*time.Second),

		InputDir:        getEnv("INPUT_DIR", filepath.Join("data", "input")),
		OutputDir:       getEnv("OUTPUT_DIR", filepath.Join("data", "output")),
		IntermediateDir: getEnv("INTERMEDIATE_DIR", filepath.Join("data", "intermediate")),
		ProcessedDir:    getEnv("PROCESSED_DIR", filepath.Join("data", "processed")),
		FailedDir:       getEnv("FAILED_DIR", filepath.Join("data", "failed")),

		ListenAddr:        getEnv("LISTEN_ADDR", ":8000"),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider selection and chunking bounds.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.ChunkSize < 1000 || c.ChunkSize > 20000 {
		return fmt.Errorf("CHUNK_SIZE must be within [1000, 20000], got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap > 1000 {
		return fmt.Errorf("CHUNK_OVERLAP must be within [0, 1000], got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.RetryAttempts)
	}
	return nil
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

// Model returns the model name for the selected provider.
func (c *Config) Model() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicModel
	}
	return c.OpenAIModel
}

// EnsureDirs creates all data directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.InputDir,
		c.OutputDir,
		c.IntermediateDir,
		c.ProcessedDir,
		c.FailedDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
