package svg

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

// CanvasRasterizer renders markup with tdewolff/canvas. It supports more of the
// SVG feature set (text, clip paths) than oksvg.
type CanvasRasterizer struct{}

// Rasterize parses the markup into a canvas and rasterizes it at a resolution
// that maps the canvas width onto the requested pixel width.
func (CanvasRasterizer) Rasterize(ctx context.Context, markup io.Reader, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := canvas.ParseSVG(markup)
	if err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	if c.W <= 0 || c.H <= 0 {
		return nil, fmt.Errorf("canvas: empty drawing (%vx%v)", c.W, c.H)
	}
	return rasterizer.Draw(c, canvas.DPMM(float64(width)/c.W), canvas.DefaultColorSpace), nil
}
