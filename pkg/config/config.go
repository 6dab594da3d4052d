// Package config provides configuration loading for docchat.
//
// Configuration is read from an optional YAML file, overridden by
// environment variables, with hardcoded defaults below both.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete docchat configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Document  DocumentConfig  `koanf:"document"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Chat      ChatConfig      `koanf:"chat"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowOrigins    []string      `koanf:"allow_origins"`
}

// DocumentConfig points at the document served by this process.
type DocumentConfig struct {
	Path        string `koanf:"path"`
	MaxChunkLen int    `koanf:"max_chunk_len"`
}

// OpenAIConfig selects the provider models.
type OpenAIConfig struct {
	ChatModel      string `koanf:"chat_model"`
	EmbeddingModel string `koanf:"embedding_model"`
}

// ChatConfig holds exchange policy.
type ChatConfig struct {
	TopK int `koanf:"top_k"`
}

// RateLimitConfig holds the per-client admission window.
type RateLimitConfig struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

// Load reads configuration from the YAML file at path (skipped when the
// file does not exist), then overrides with environment variables.
//
// Environment variables map section-first, for example:
//
//	SERVER_PORT            -> server.port
//	DOCUMENT_PATH          -> document.path
//	OPENAI_CHAT_MODEL      -> openai.chat_model
//	RATELIMIT_MAX_REQUESTS -> ratelimit.max_requests
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// SECTION_FIELD_NAME -> section.field_name: split on the first
		// underscore only, field names keep theirs.
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}
	}

	if cfg.Document.Path == "" {
		cfg.Document.Path = "document.md"
	}
	if cfg.Document.MaxChunkLen == 0 {
		cfg.Document.MaxChunkLen = 2000
	}

	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}

	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 3
	}

	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 5
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 60 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Document.Path == "" {
		return fmt.Errorf("document path is required")
	}
	if c.Document.MaxChunkLen < 1 {
		return fmt.Errorf("document max_chunk_len must be positive, got %d", c.Document.MaxChunkLen)
	}
	if c.Chat.TopK < 1 {
		return fmt.Errorf("chat top_k must be positive, got %d", c.Chat.TopK)
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("ratelimit max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit window must be positive, got %s", c.RateLimit.Window)
	}
	return nil
}
