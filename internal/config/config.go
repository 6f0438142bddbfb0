// Package config provides configuration loading for lore.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ErrUnsupportedProvider is returned when a provider name in the
// configuration does not match any supported provider.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ModelProvider selects a language-model backend. The set is closed:
// provider names are resolved to one of these constants at load time.
type ModelProvider string

const (
	ModelOllama ModelProvider = "ollama"
	ModelOpenAI ModelProvider = "openai"
)

// EmbeddingProvider selects an embedding backend.
type EmbeddingProvider string

const (
	EmbeddingOllama EmbeddingProvider = "ollama"
	EmbeddingOpenAI EmbeddingProvider = "openai"
)

// StoreProvider selects a vector-store backend.
type StoreProvider string

const (
	StoreChromem StoreProvider = "chromem"
	StoreSQLite  StoreProvider = "sqlite"
)

// DatabaseConfig configures the vector store.
type DatabaseConfig struct {
	Provider         StoreProvider `koanf:"provider"`
	PersistDirectory string        `koanf:"persist_directory"`
	Collection       string        `koanf:"collection"`
}

// LLMConfig configures the language-model agent.
type LLMConfig struct {
	Provider    ModelProvider `koanf:"provider"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider EmbeddingProvider `koanf:"provider"`
	Model    string            `koanf:"model"`
	BaseURL  string            `koanf:"base_url"`
	APIKey   string            `koanf:"api_key"`
}

// ChatConfig configures the chat pipeline.
type ChatConfig struct {
	TopK int `koanf:"top_k"`
}

// EvaluationConfig configures the evaluation harness.
type EvaluationConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	LLM        LLMConfig        `koanf:"llm"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Chat       ChatConfig       `koanf:"chat"`
	Evaluation EvaluationConfig `koanf:"evaluation"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Provider:         StoreChromem,
			PersistDirectory: ".lore",
			Collection:       "code_chunks",
		},
		LLM: LLMConfig{
			Provider:    ModelOllama,
			Model:       "qwen3:8b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.2,
		},
		Embedding: EmbeddingConfig{
			Provider: EmbeddingOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Chat:       ChatConfig{TopK: 10},
		Evaluation: EvaluationConfig{MaxConcurrent: 2},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
	}
}

const envPrefix = "LORE_"

// Load reads configuration from an optional YAML file, then overrides with
// LORE_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (LORE_DATABASE_PROVIDER, LORE_LLM_MODEL, ...)
//  2. YAML config file
//  3. Defaults
//
// Environment variables map section_field to section.field:
//
//	LORE_DATABASE_PERSIST_DIRECTORY -> database.persist_directory
//	LORE_CHAT_TOP_K                 -> chat.top_k
func Load(configPath string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("open config file: %w", err)
			}
		} else {
			defer f.Close()
			content, err := io.ReadAll(f)
			if err != nil {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	// Environment overrides. Sections are single words, so splitting on the
	// first underscore yields section.field_name.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return cfg, fmt.Errorf("load env config: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	// The OpenAI key is conventionally set via OPENAI_API_KEY.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate resolves provider names against the closed provider sets and
// checks value ranges.
func (c *Config) Validate() error {
	switch c.Database.Provider {
	case StoreChromem, StoreSQLite:
	default:
		return fmt.Errorf("%w: database provider %q", ErrUnsupportedProvider, c.Database.Provider)
	}
	switch c.LLM.Provider {
	case ModelOllama, ModelOpenAI:
	default:
		return fmt.Errorf("%w: llm provider %q", ErrUnsupportedProvider, c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case EmbeddingOllama, EmbeddingOpenAI:
	default:
		return fmt.Errorf("%w: embedding provider %q", ErrUnsupportedProvider, c.Embedding.Provider)
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("chat.top_k must be positive, got %d", c.Chat.TopK)
	}
	if c.Evaluation.MaxConcurrent <= 0 {
		return fmt.Errorf("evaluation.max_concurrent must be positive, got %d", c.Evaluation.MaxConcurrent)
	}
	return nil
}
