package svg

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// OKSVGRasterizer renders markup with oksvg onto a rasterx GV scanner.
type OKSVGRasterizer struct{}

// Rasterize parses the icon and draws it stretched over a width x height canvas.
func (OKSVGRasterizer) Rasterize(ctx context.Context, markup io.Reader, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(markup, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("oksvg: %w", err)
	}

	// an svg with only width/height has no viewBox to map from
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(width), float64(height)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)
	return img, nil
}
