// Package config loads eva-memory configuration from defaults, an optional
// config file, and EVA_MEMORY_* environment variables, in ascending
// precedence. CLI flags override all of these at the command layer.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingModel    = "nomic-embed-text:latest"
	defaultEmbeddingBaseURL  = "http://localhost:11434"
	defaultEmbeddingDims     = 768

	defaultChatProvider = "openai"
	defaultChatModel    = "gpt-4.1-mini"

	defaultVectorMetric = "l2"

	defaultSemanticWeight = 0.6
	defaultTextWeight     = 0.4
)

// EmbeddingConfig selects and parameterizes the embedding backend.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // ollama, openai, mock
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Dims     int    `mapstructure:"dims"`
}

// ChatConfig selects and parameterizes the text-generation backend used by
// the reconciliation engine.
type ChatConfig struct {
	Provider string `mapstructure:"provider"` // openai
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
}

// HybridConfig holds the score-fusion weights for hybrid search.
type HybridConfig struct {
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	TextWeight     float64 `mapstructure:"text_weight"`
}

// Config is the top-level configuration.
type Config struct {
	DataDir      string          `mapstructure:"data_dir"`
	DBPath       string          `mapstructure:"db_path"`
	VectorDir    string          `mapstructure:"vector_dir"`
	VectorMetric string          `mapstructure:"vector_metric"` // l2 or ip
	Embedding    EmbeddingConfig `mapstructure:"embedding"`
	Chat         ChatConfig      `mapstructure:"chat"`
	Hybrid       HybridConfig    `mapstructure:"hybrid"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eva-memory"
	}
	return filepath.Join(home, ".eva-memory")
}

// Load builds the configuration. configPath, when non-empty, names an
// explicit config file; otherwise <data dir>/config.yaml is tried. A missing
// config file is not an error.
func Load(configPath string) (Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("db_path", "")
	v.SetDefault("vector_dir", "")
	v.SetDefault("vector_metric", defaultVectorMetric)

	v.SetDefault("embedding.provider", defaultEmbeddingProvider)
	v.SetDefault("embedding.model", defaultEmbeddingModel)
	v.SetDefault("embedding.base_url", defaultEmbeddingBaseURL)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dims", defaultEmbeddingDims)

	v.SetDefault("chat.provider", defaultChatProvider)
	v.SetDefault("chat.model", defaultChatModel)
	v.SetDefault("chat.base_url", "")
	v.SetDefault("chat.api_key", "")

	v.SetDefault("hybrid.semantic_weight", defaultSemanticWeight)
	v.SetDefault("hybrid.text_weight", defaultTextWeight)

	v.SetEnvPrefix("EVA_MEMORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "sqlite", "memories.db")
	}
	if cfg.VectorDir == "" {
		cfg.VectorDir = filepath.Join(cfg.DataDir, "vecindex")
	}
	return cfg, nil
}

// EnsureDirs creates the data directories Load's paths point into.
func (c Config) EnsureDirs() error {
	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.VectorDir, 0o755)
}
