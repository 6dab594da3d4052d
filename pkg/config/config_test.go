package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Contains(t, cfg.Server.AllowOrigins, "http://localhost:3000")

	assert.Equal(t, "document.md", cfg.Document.Path)
	assert.Equal(t, 2000, cfg.Document.MaxChunkLen)

	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)

	assert.Equal(t, 3, cfg.Chat.TopK)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("DOCUMENT_PATH", "/srv/manual.md")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4o-mini")
	t.Setenv("CHAT_TOP_K", "5")
	t.Setenv("RATELIMIT_MAX_REQUESTS", "10")
	t.Setenv("RATELIMIT_WINDOW", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/srv/manual.md", cfg.Document.Path)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, 5, cfg.Chat.TopK)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.Window)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
document:
  path: handbook.md
  max_chunk_len: 500
ratelimit:
  max_requests: 2
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "handbook.md", cfg.Document.Path)
	assert.Equal(t, 500, cfg.Document.MaxChunkLen)
	assert.Equal(t, 2, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	// Unset fields still get defaults.
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.ChatModel)
	assert.Equal(t, 3, cfg.Chat.TopK)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))
	t.Setenv("SERVER_PORT", "9002")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9002, cfg.Server.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Run("rejects negative top_k", func(t *testing.T) {
		t.Setenv("CHAT_TOP_K", "-1")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("rejects out of range port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("rejects negative window", func(t *testing.T) {
		t.Setenv("RATELIMIT_WINDOW", "-5s")
		_, err := Load("")
		assert.Error(t, err)
	})
}
