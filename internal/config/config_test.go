package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"FIGMA_TOKEN", "FIGMA_API_HOST", "FIGMA_AUTH_SCHEME", "SCENE_SVG_BACKEND",
		"SCENE_RENDER_WORKERS", "SCENE_MAX_PIXELS", "SCENE_HTTP_ADDR", "SCENE_LOG_LEVEL", "SCENE_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	// keep a developer .env out of the picture
	t.Chdir(t.TempDir())
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://api.figma.com", cfg.Figma.Host)
	assert.Equal(t, BackendOKSVG, cfg.SVG.Backend)
	assert.Equal(t, 1, cfg.Document.RenderWorkers)
	assert.False(t, cfg.HasFigmaToken())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
figma:
  host: https://figma.example.test
  timeout: 5s
svg:
  backend: canvas
  scale: 2
  max_pixels: 1000000
document:
  render_workers: 4
observability:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	t.Setenv("FIGMA_TOKEN", "figd_secret")
	t.Setenv("SCENE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://figma.example.test", cfg.Figma.Host)
	assert.Equal(t, 5*time.Second, cfg.Figma.Timeout)
	assert.Equal(t, "figd_secret", cfg.Figma.Token)
	assert.Equal(t, BackendCanvas, cfg.SVG.Backend)
	assert.Equal(t, 2.0, cfg.SVG.Scale)
	assert.Equal(t, int64(1000000), cfg.SVG.MaxPixels)
	assert.Equal(t, 4, cfg.Document.RenderWorkers)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestTokenIsNeverReadFromYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("figma:\n  token: leaked\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Figma.Token)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("FIGMA_TOKEN"))
	require.NoError(t, os.WriteFile(".env", []byte("FIGMA_TOKEN=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FIGMA_TOKEN") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Figma.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.SVG.Backend = "cairo" }},
		{"zero scale", func(c *Config) { c.SVG.Scale = 0 }},
		{"no pixel budget", func(c *Config) { c.SVG.MaxPixels = 0 }},
		{"no workers", func(c *Config) { c.Document.RenderWorkers = 0 }},
		{"bad auth scheme", func(c *Config) { c.Figma.AuthScheme = "basic" }},
		{"bad host", func(c *Config) { c.Figma.Host = "api.figma.com" }},
		{"no upload budget", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMaxPixelsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCENE_MAX_PIXELS", "2048")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.SVG.MaxPixels)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
