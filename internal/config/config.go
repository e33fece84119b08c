// Package config handles gpal configuration and storage paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DataHomeEnv overrides the base data directory.
	DataHomeEnv = "GPAL_DATA_HOME"
	// DefaultIndexDir is the subdirectory under the data home that holds
	// per-project index collections.
	DefaultIndexDir = "gpal/index"
)

// Config holds the application configuration.
type Config struct {
	// DataHome is the base directory for persistent index storage.
	DataHome string `mapstructure:"data_home" yaml:"data_home,omitempty"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding,omitempty"`

	// Indexing configuration
	Indexing IndexingConfig `mapstructure:"indexing" yaml:"indexing,omitempty"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is the embedding provider: "gemini" or "ollama"
	Provider string `mapstructure:"provider" yaml:"provider,omitempty"`
	// Model is the embedding model name
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// Dimensions is the embedding vector dimensions
	Dimensions int `mapstructure:"dimensions" yaml:"dimensions,omitempty"`
	// BatchSize is the maximum number of texts per provider request
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size,omitempty"`
	// GeminiAPIKey is the API key for Gemini (also GEMINI_API_KEY env)
	GeminiAPIKey string `mapstructure:"gemini_api_key" yaml:"gemini_api_key,omitempty"`
	// GeminiBaseURL is the base URL for the Gemini API
	GeminiBaseURL string `mapstructure:"gemini_base_url" yaml:"gemini_base_url,omitempty"`
	// OllamaURL is the Ollama API URL
	OllamaURL string `mapstructure:"ollama_url" yaml:"ollama_url,omitempty"`
}

// IndexingConfig holds indexing settings.
type IndexingConfig struct {
	// ChunkSize is the chunk window size in lines
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`
	// ChunkOverlap is the overlap between consecutive chunks in lines
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap,omitempty"`
	// MaxFileSize is the maximum file size to index in bytes
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size,omitempty"`
	// Workers is the number of concurrent files embedded during a rebuild
	Workers int `mapstructure:"workers" yaml:"workers,omitempty"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	// Host is the server bind address
	Host string `mapstructure:"host" yaml:"host,omitempty"`
	// Port is the server port
	Port int `mapstructure:"port" yaml:"port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataHome: DataHome(),
		Embedding: EmbeddingConfig{
			Provider:   "gemini",
			Model:      "text-embedding-004",
			Dimensions: 768,
			BatchSize:  100,
			OllamaURL:  "http://localhost:11434",
		},
		Indexing: IndexingConfig{
			ChunkSize:    50,
			ChunkOverlap: 10,
			MaxFileSize:  10 * 1024 * 1024, // 10 MiB
			Workers:      4,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// DataHome returns the base directory for persistent data.
// Resolution order: $GPAL_DATA_HOME, $XDG_DATA_HOME, ~/.local/share.
func DataHome() string {
	if dir := os.Getenv(DataHomeEnv); dir != "" {
		return dir
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share"
	}
	return filepath.Join(home, ".local", "share")
}

// IndexRoot returns the directory that holds all per-project index collections.
func IndexRoot(dataHome string) string {
	if dataHome == "" {
		dataHome = DataHome()
	}
	return filepath.Join(dataHome, filepath.FromSlash(DefaultIndexDir))
}

// Load loads configuration from an optional gpal.yaml in the project root,
// layered under GPAL_* environment variables and built-in defaults.
func Load(projectDir string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("gpal")
	v.SetConfigType("yaml")
	if projectDir != "" {
		v.AddConfigPath(projectDir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("GPAL")
	v.AutomaticEnv()

	_ = v.BindEnv("data_home", DataHomeEnv)
	_ = v.BindEnv("embedding.provider", "GPAL_EMBEDDING_PROVIDER")
	_ = v.BindEnv("embedding.model", "GPAL_EMBEDDING_MODEL")
	_ = v.BindEnv("embedding.gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("embedding.gemini_base_url", "GPAL_GEMINI_BASE_URL")
	_ = v.BindEnv("embedding.ollama_url", "GPAL_OLLAMA_URL")
	_ = v.BindEnv("server.host", "GPAL_HOST")
	_ = v.BindEnv("server.port", "GPAL_PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.DataHome == "" {
		cfg.DataHome = DataHome()
	}

	return cfg, nil
}
