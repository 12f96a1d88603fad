package adapter

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/surface"
)

// Still decodes png and jpeg bytes at their natural size
type Still struct {
	renderer  *surface.Renderer
	maxPixels int64
	logger    *observability.Logger
}

// NewStill creates a still-image adapter
func NewStill(renderer *surface.Renderer, logger *observability.Logger) *Still {
	return &Still{renderer: renderer, maxPixels: DefaultMaxPixels, logger: logger.WithComponent("still")}
}

// WithMaxPixels replaces the pixel budget of one decoded image
func (s *Still) WithMaxPixels(n int64) *Still {
	if n > 0 {
		s.maxPixels = n
	}
	return s
}

// Convert decodes the image and renders it onto exactly one surface
func (s *Still) Convert(ctx context.Context, artifact domain.Artifact, _ Progress) ([]*surface.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the header is read first so oversized images are never allocated
	cfg, format, err := image.DecodeConfig(bytes.NewReader(artifact.Data))
	if err != nil {
		s.logger.Error().Err(err).Str("artifact", artifact.Name).Msg("Failed to read image header")
		return nil, domain.DecodeError("Failed to decode image", err)
	}
	if err := checkPixels(float64(cfg.Width), float64(cfg.Height), s.maxPixels); err != nil {
		s.logger.Error().Int("width", cfg.Width).Int("height", cfg.Height).Str("format", format).Msg("Image size over limit")
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(artifact.Data))
	if err != nil {
		s.logger.Error().Err(err).Str("artifact", artifact.Name).Msg("Failed to decode image")
		return nil, domain.DecodeError("Failed to decode image", err)
	}

	b := img.Bounds()
	s.logger.Debug().Str("format", format).Int("width", b.Dx()).Int("height", b.Dy()).Msg("Decoded image")

	surf, err := s.renderer.Render(img, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	return []*surface.Surface{surf}, nil
}
