// Package surface holds the offscreen raster surface and the renderer that draws
// decoded sources onto it.
package surface

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/spherical/scene-converter/internal/domain"
)

// Surface is a width x height RGBA pixel buffer
type Surface struct {
	img *image.RGBA
}

// New allocates a cleared surface of the given size
func New(width, height int) *Surface {
	s := &Surface{}
	s.Resize(width, height)
	return s
}

// Resize reallocates the buffer when the size changes
func (s *Surface) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if s.img != nil && s.img.Bounds().Dx() == width && s.img.Bounds().Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Clear resets every pixel to transparent black
func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// DrawImage draws src at the origin, scaled to fill the surface
func (s *Surface) DrawImage(src image.Image) {
	dst := s.img.Bounds()
	sb := src.Bounds()
	if sb.Dx() == dst.Dx() && sb.Dy() == dst.Dy() {
		draw.Draw(s.img, dst, src, sb.Min, draw.Over)
		return
	}
	draw.CatmullRom.Scale(s.img, dst, src, sb, draw.Over, nil)
}

// Width returns the surface width in pixels
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height returns the surface height in pixels
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Image exposes the pixel buffer for encoding
func (s *Surface) Image() image.Image { return s.img }

// At returns the color of a single pixel
func (s *Surface) At(x, y int) color.Color { return s.img.At(x, y) }

// Renderer draws a decoded visual source onto a fresh surface
type Renderer struct{}

// NewRenderer creates a surface renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render resizes a new surface to the target dimensions, clears it and draws src
// scaled to fill. The result depends only on its inputs.
func (r *Renderer) Render(src image.Image, width, height int) (*Surface, error) {
	if src == nil {
		return nil, domain.RenderError("no visual source to draw", nil)
	}
	if width <= 0 || height <= 0 {
		return nil, domain.RenderError("surface dimensions must be positive", fmt.Errorf("got %dx%d", width, height))
	}
	if src.Bounds().Empty() {
		return nil, domain.RenderError("visual source is empty", nil)
	}

	s := New(width, height)
	s.Clear()
	s.DrawImage(src)
	return s, nil
}
