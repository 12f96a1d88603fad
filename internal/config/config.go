// Package config provides configuration loading for the scene converter.
// Supports YAML files, a .env file, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scene converter.
type Config struct {
	Figma         FigmaConfig         `yaml:"figma"`
	SVG           SVGConfig           `yaml:"svg"`
	Document      DocumentConfig      `yaml:"document"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// FigmaConfig holds the remote export endpoint and its credential.
type FigmaConfig struct {
	Host       string        `yaml:"host"`
	Token      string        `yaml:"-"` // only from the environment
	AuthScheme string        `yaml:"auth_scheme"` // token or bearer
	Timeout    time.Duration `yaml:"timeout"`
}

// SVGConfig selects the vector rasterization backend. MaxPixels bounds the
// area of every rendered surface, vector or not.
type SVGConfig struct {
	Backend   string  `yaml:"backend"` // oksvg or canvas
	Scale     float64 `yaml:"scale"`
	MaxPixels int64   `yaml:"max_pixels"`
}

// DocumentConfig holds paginated document settings.
type DocumentConfig struct {
	RenderWorkers int `yaml:"render_workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

const (
	AuthSchemeToken  = "token"
	AuthSchemeBearer = "bearer"

	BackendOKSVG  = "oksvg"
	BackendCanvas = "canvas"
)

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load() // a missing .env is fine

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Figma: FigmaConfig{
			Host:       "https://api.figma.com",
			AuthScheme: AuthSchemeToken,
			Timeout:    30 * time.Second,
		},
		SVG: SVGConfig{
			Backend:   BackendOKSVG,
			Scale:     1.0,
			MaxPixels: 1 << 26,
		},
		Document: DocumentConfig{
			RenderWorkers: 1,
		},
		Server: ServerConfig{
			Addr:             "127.0.0.1:8090",
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SVG.Backend != BackendOKSVG && c.SVG.Backend != BackendCanvas {
		return fmt.Errorf("invalid svg backend: %s", c.SVG.Backend)
	}

	if c.SVG.Scale <= 0 || c.SVG.Scale > 16 {
		return fmt.Errorf("svg scale must be in (0, 16], got %v", c.SVG.Scale)
	}

	if c.SVG.MaxPixels <= 0 {
		return fmt.Errorf("max_pixels must be positive, got %d", c.SVG.MaxPixels)
	}

	if c.Document.RenderWorkers < 1 {
		return fmt.Errorf("render_workers must be at least 1, got %d", c.Document.RenderWorkers)
	}

	if c.Figma.AuthScheme != AuthSchemeToken && c.Figma.AuthScheme != AuthSchemeBearer {
		return fmt.Errorf("invalid figma auth scheme: %s", c.Figma.AuthScheme)
	}

	if !strings.HasPrefix(c.Figma.Host, "http://") && !strings.HasPrefix(c.Figma.Host, "https://") {
		return fmt.Errorf("figma host must be an http(s) URL: %s", c.Figma.Host)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	return nil
}

// HasFigmaToken reports whether a remote export credential is configured.
func (c *Config) HasFigmaToken() bool {
	return strings.TrimSpace(c.Figma.Token) != ""
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIGMA_TOKEN"); v != "" {
		cfg.Figma.Token = v
	}

	if v := os.Getenv("FIGMA_API_HOST"); v != "" {
		cfg.Figma.Host = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("FIGMA_AUTH_SCHEME"); v != "" {
		cfg.Figma.AuthScheme = strings.ToLower(v)
	}

	if v := os.Getenv("SCENE_SVG_BACKEND"); v != "" {
		cfg.SVG.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("SCENE_MAX_PIXELS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SVG.MaxPixels = n
		}
	}

	if v := os.Getenv("SCENE_RENDER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Document.RenderWorkers = n
		}
	}

	if v := os.Getenv("SCENE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	if v := os.Getenv("SCENE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("SCENE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
