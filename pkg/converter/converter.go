// Package converter is the embeddable entry point of the scene converter.
package converter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spherical/scene-converter/internal/config"
	"github.com/spherical/scene-converter/internal/dispatch"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/pipeline"
)

// Re-export types for the public API
type (
	Artifact        = domain.Artifact
	RemoteReference = domain.RemoteReference
	SceneDocument   = domain.SceneDocument
	Layer           = domain.Layer
	StreamEvent     = domain.StreamEvent
	EventType       = domain.EventType
	Phase           = domain.Phase
	State           = pipeline.State
	Config          = config.Config
)

// Event type constants
const (
	EventArtifactSubmitted = domain.EventArtifactSubmitted
	EventPageCount         = domain.EventPageCount
	EventPageRendered      = domain.EventPageRendered
	EventSceneReady        = domain.EventSceneReady
	EventConversionFailed  = domain.EventConversionFailed
)

// ErrSuperseded is returned when a newer conversion replaced this one
var ErrSuperseded = pipeline.ErrSuperseded

// Client is the main entry point for the converter library
type Client struct {
	controller *pipeline.Controller
	cfg        *config.Config
}

// NewClient creates a client from .env and environment configuration
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("Failed to load configuration", err)
	}
	return NewClientWithConfig(cfg, nil)
}

// NewClientWithConfig creates a client with an explicit configuration. A nil
// logger discards all log output.
func NewClientWithConfig(cfg *Config, logger *observability.Logger, opts ...pipeline.Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("Invalid configuration", err)
	}

	controller, err := pipeline.New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{controller: controller, cfg: cfg}, nil
}

// Convert runs one conversion and returns its scene document
func (c *Client) Convert(ctx context.Context, artifact Artifact) (*SceneDocument, error) {
	return c.controller.Convert(ctx, artifact)
}

// ConvertFile reads path and converts it. mediaType may be empty, in which
// case it is derived from the file extension. ref is only used for fig files.
func (c *Client) ConvertFile(ctx context.Context, path, mediaType string, ref *RemoteReference) (*SceneDocument, error) {
	artifact, err := ReadArtifact(path, mediaType, ref)
	if err != nil {
		return nil, err
	}
	return c.Convert(ctx, artifact)
}

// Process starts a conversion and streams its events. The channel is closed
// after the terminal scene_ready or conversion_failed event, when a newer
// submission supersedes this one, or when ctx ends.
func (c *Client) Process(ctx context.Context, artifact Artifact) (<-chan StreamEvent, error) {
	events, unsubscribe := c.controller.Subscribe(pipeline.DefaultEventBuffer)
	gen := c.controller.Submit(ctx, artifact)

	out := make(chan StreamEvent, pipeline.DefaultEventBuffer)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Generation > gen {
					return
				}
				if ev.Generation != gen {
					continue
				}
				out <- ev
				if ev.Type == EventSceneReady || ev.Type == EventConversionFailed {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// State returns the current pipeline state
func (c *Client) State() State {
	return c.controller.Snapshot()
}

// Scene returns the last successful scene document, or nil before the first one
func (c *Client) Scene() *SceneDocument {
	return c.controller.Scene()
}

// SceneText returns the current scene document as JSON text
func (c *Client) SceneText() (string, bool) {
	return c.controller.SceneText()
}

// ReadArtifact loads a file from disk into an Artifact
func ReadArtifact(path, mediaType string, ref *RemoteReference) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, domain.ValidationError("file not found: "+path, err)
		}
		return Artifact{}, domain.IOError("cannot read file: "+path, err)
	}
	if mediaType == "" {
		mediaType = dispatch.MediaTypeForFile(path)
	}
	return Artifact{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Data:      data,
		Reference: ref,
	}, nil
}
