package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray .env or adventure.yaml is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "API_KEY", "ADVENTURE_SAVE_DIR", "ADVENTURE_STORAGE", "REDIS_ADDR", "ADVENTURE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Models.Story)
	assert.Equal(t, "Kore", cfg.Models.Voice)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, ".saves", cfg.Storage.Dir)
}

func TestLoadConfig_MissingKey(t *testing.T) {
	chdir(t)
	clearEnv(t)

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestLoadConfig_APIKeyFallback(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv("API_KEY", "fallback")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.GeminiAPIKey)
}

func TestLoadConfig_YAMLAndEnv(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ADVENTURE_SAVE_DIR", "/tmp/elsewhere")

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  voice: Puck
media:
  image_timeout: 15s
  audio: false
storage:
  backend: memory
  dir: ignored
logging:
  level: debug
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Puck", cfg.Models.Voice)
	assert.Equal(t, "gemini-2.5-flash", cfg.Models.Story, "unset fields keep defaults")
	assert.Equal(t, 15*time.Second, cfg.Media.ImageTimeout)
	assert.False(t, cfg.Media.Audio)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/elsewhere", cfg.Storage.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.GeminiAPIKey)
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	_, err := LoadConfig("missing.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte("models: [oops"), 0644))

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no key", func(c *Config) { c.GeminiAPIKey = "" }},
		{"no story model", func(c *Config) { c.Models.Story = "" }},
		{"zero timeout", func(c *Config) { c.Media.SpeechTimeout = 0 }},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.GeminiAPIKey = "key"
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
