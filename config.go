package qgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/qgen/default"
)

// Config represents the qgen service configuration.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Knowledge  KnowledgeConfig  `toml:"knowledge"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`

	// warnings collected while decoding (unknown keys).
	warnings []string
}

// ServerConfig holds settings for the HTTP facade.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// KnowledgeConfig holds settings for the knowledge base and its index.
type KnowledgeConfig struct {
	Path      string `toml:"path"`
	Sheet     string `toml:"sheet"`
	TopK      int    `toml:"top_k"`
	CachePath string `toml:"cache_path"`
}

// EmbeddingConfig holds settings for the embedding API.
type EmbeddingConfig struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	Model                string `toml:"model"`
	Dimensions           int    `toml:"dimensions"`
	QueryCacheTTLMinutes int    `toml:"query_cache_ttl_minutes"`
	QueryCacheCapacity   int    `toml:"query_cache_capacity"`
}

// GenerationConfig holds settings for the generative model.
type GenerationConfig struct {
	ModelPath         string  `toml:"model_path"`
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	APIType           string  `toml:"api_type"`
	MaxTokens         int     `toml:"max_tokens"`
	MaxInputTokens    int     `toml:"max_input_tokens"`
	Temperature       float64 `toml:"temperature"`
	TopP              float64 `toml:"top_p"`
	FrequencyPenalty  float64 `toml:"frequency_penalty"`
	PresencePenalty   float64 `toml:"presence_penalty"`
	AttemptMultiplier int     `toml:"attempt_multiplier"`
	MaxQuestions      int     `toml:"max_questions"`
}

// ConfigDir returns the config directory path.
// Resolution order: $QGEN_CONFIG_DIR > $XDG_CONFIG_HOME/qgen > ~/.config/qgen
func ConfigDir() string {
	if dir := os.Getenv("QGEN_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "qgen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "qgen-config")
	}
	return filepath.Join(home, ".config", "qgen")
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptPath returns the custom prompt template path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("qgen: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads the config file at ConfigPath, or returns defaults if it does not exist.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigFile(ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadConfigFile decodes the TOML file at path over the defaults,
// so keys missing from the file keep their default values.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		cfg.warnings = append(cfg.warnings, fmt.Sprintf("unknown config key %q", key.String()))
	}
	return cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	warnings := append([]string(nil), cfg.warnings...)
	switch cfg.Generation.APIType {
	case "completions", "chat_completions":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown generation api_type %q; using completions", cfg.Generation.APIType))
	}
	if cfg.Knowledge.TopK <= 0 {
		warnings = append(warnings, "knowledge top_k is not positive; no context will be retrieved")
	}
	if cfg.Generation.AttemptMultiplier <= 0 {
		warnings = append(warnings, "generation attempt_multiplier is not positive; using 3")
	}
	if cfg.Generation.MaxQuestions <= 0 {
		warnings = append(warnings, "generation max_questions is not positive; using 50")
	}
	if ResolveEmbeddingBaseURL(cfg) == "" {
		warnings = append(warnings, "embedding base_url is empty")
	}
	if ResolveGenerationBaseURL(cfg) == "" {
		warnings = append(warnings, "generation base_url is empty")
	}
	return warnings
}

func resolve(env, value string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return value
}

// ResolveListenAddr returns the HTTP listen address.
// Priority: $QGEN_LISTEN_ADDR env > config value.
func ResolveListenAddr(cfg *Config) string {
	return resolve("QGEN_LISTEN_ADDR", cfg.Server.ListenAddr)
}

// ResolveKnowledgePath returns the knowledge base file path.
// Priority: $QGEN_KNOWLEDGE_PATH env > config value.
func ResolveKnowledgePath(cfg *Config) string {
	return resolve("QGEN_KNOWLEDGE_PATH", cfg.Knowledge.Path)
}

// ResolveModelPath returns the generative model artifact directory.
// Priority: $QGEN_MODEL_PATH env > config value.
func ResolveModelPath(cfg *Config) string {
	return resolve("QGEN_MODEL_PATH", cfg.Generation.ModelPath)
}

// ResolveGenerationBaseURL returns the generation API base URL.
// Priority: $QGEN_GENERATION_API_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	return resolve("QGEN_GENERATION_API_BASE_URL", cfg.Generation.BaseURL)
}

// ResolveGenerationAPIKey returns the generation API key.
// Priority: $QGEN_GENERATION_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	return resolve("QGEN_GENERATION_API_KEY", cfg.Generation.APIKey)
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $QGEN_EMBEDDING_API_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	return resolve("QGEN_EMBEDDING_API_BASE_URL", cfg.Embedding.BaseURL)
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $QGEN_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	return resolve("QGEN_EMBEDDING_API_KEY", cfg.Embedding.APIKey)
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $QGEN_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	return resolve("QGEN_EMBEDDING_MODEL", cfg.Embedding.Model)
}
