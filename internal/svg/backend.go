package svg

import (
	"fmt"

	"github.com/spherical/scene-converter/internal/domain"
)

// New returns the rasterizer registered under name ("oksvg" or "canvas").
func New(name string) (domain.SVGRasterizer, error) {
	switch name {
	case "", "oksvg":
		return OKSVGRasterizer{}, nil
	case "canvas":
		return CanvasRasterizer{}, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown svg backend %q", name), nil)
	}
}
