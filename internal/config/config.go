package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"convrag/internal/chunker"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// HashingEmbedderConfig configures the offline hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	Overlap      int    `yaml:"overlap"`
	MinChunkSize int    `yaml:"min_chunk_size"`
	MaxChunkSize int    `yaml:"max_chunk_size"`
}

// Options converts the section into chunker options.
func (c ChunkerConfig) Options() chunker.Options {
	return chunker.Options{
		ChunkSize:    c.ChunkSize,
		Overlap:      c.Overlap,
		MinChunkSize: c.MinChunkSize,
		MaxChunkSize: c.MaxChunkSize,
	}
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	VectorSize  int    `yaml:"vector_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig selects the session store and the history bound.
type MemoryConfig struct {
	Type      string       `yaml:"type"`
	MaxTurns  int          `yaml:"max_turns"`
	KeyPrefix string       `yaml:"key_prefix"`
	Redis     *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig contains connection details for the Redis session store.
type RedisConfig struct {
	URL     string `yaml:"url"`
	TTLSecs int    `yaml:"ttl_secs"`
}

// GeneratorConfig selects and configures answer generation.
type GeneratorConfig struct {
	Type         string   `yaml:"type"`
	BaseURL      string   `yaml:"base_url,omitempty"`
	APIKeyEnv    string   `yaml:"api_key_env,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Temperature  *float32 `yaml:"temperature,omitempty"`
	TimeoutSecs  int      `yaml:"timeout_secs,omitempty"`
	MaxSentences int      `yaml:"max_sentences,omitempty"`
}

// DatabaseConfig points at the Postgres database holding chunk metadata.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// RequestTimeout is the per-request deadline of the HTTP server.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, applyEnv(cfg)
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, applyEnv(cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/convrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/convrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, applyEnv(cfg)
}

// LoadDotEnv loads variables from a .env file in the working directory, if
// present. Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "convrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	opts := chunker.DefaultOptions()
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "hashing", Hashing: &HashingEmbedderConfig{Dimension: 256}},
		Chunker: ChunkerConfig{
			Strategy:     string(chunker.StrategyFixed),
			ChunkSize:    opts.ChunkSize,
			Overlap:      opts.Overlap,
			MinChunkSize: opts.MinChunkSize,
			MaxChunkSize: opts.MaxChunkSize,
		},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Memory:      MemoryConfig{Type: "local", MaxTurns: 5, KeyPrefix: "chat:"},
		Generator:   GeneratorConfig{Type: "extractive", MaxSentences: 3},
		Server:      ServerConfig{Addr: ":8000", RequestTimeoutSecs: 60},
		Log:         LogConfig{Level: "info"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Strategy == "" {
		cfg.Chunker.Strategy = string(chunker.StrategyFixed)
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "documents"
		}
	}
	if cfg.Memory.Type == "redis" && cfg.Memory.Redis == nil {
		cfg.Memory.Redis = &RedisConfig{}
	}
	if r := cfg.Memory.Redis; r != nil && r.URL == "" {
		r.URL = "redis://localhost:6379/0"
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-3.5-turbo"
		}
		if cfg.Generator.TimeoutSecs == 0 {
			cfg.Generator.TimeoutSecs = 60
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
}

// applyEnv lets deployment variables override the file. Setting REDIS_URL,
// QDRANT_URL or DATABASE_URL also selects the matching backend.
func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Memory.Type = "redis"
		if cfg.Memory.Redis == nil {
			cfg.Memory.Redis = &RedisConfig{}
		}
		cfg.Memory.Redis.URL = v
	}
	if v := os.Getenv("MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_TURNS: %w", err)
		}
		cfg.Memory.MaxTurns = n
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.VectorStore.Type = "qdrant"
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{Collection: "documents"}
		}
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
