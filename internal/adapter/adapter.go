// Package adapter turns one classified artifact into an ordered sequence of
// raster surfaces. There is one adapter per artifact kind.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/surface"
)

// Adapter converts the bytes of one artifact into surfaces in source order
type Adapter interface {
	Convert(ctx context.Context, artifact domain.Artifact, progress Progress) ([]*surface.Surface, error)
}

// Progress receives page-level notifications from paginated adapters.
// Nil callbacks are ignored.
type Progress struct {
	OnPageCount    func(total int)
	OnPageRendered func(done, total int)
}

func (p Progress) pageCount(total int) {
	if p.OnPageCount != nil {
		p.OnPageCount(total)
	}
}

func (p Progress) pageRendered(done, total int) {
	if p.OnPageRendered != nil {
		p.OnPageRendered(done, total)
	}
}

// Registry maps each artifact kind to its adapter
type Registry map[domain.Kind]Adapter

// For returns the adapter registered for kind
func (r Registry) For(kind domain.Kind) (Adapter, error) {
	a, ok := r[kind]
	if !ok || a == nil {
		return nil, domain.ConfigError(fmt.Sprintf("no adapter registered for %s artifacts", kind), nil)
	}
	return a, nil
}

// DefaultMaxPixels bounds the area of any surface an adapter allocates
const DefaultMaxPixels int64 = 1 << 26

var errTooLarge = errors.New("declared size exceeds the pixel limit")

// checkPixels rejects sizes whose area exceeds limit. Sizes are checked
// before any buffer is allocated; NaN and infinite sizes are rejected too.
func checkPixels(width, height float64, limit int64) error {
	area := math.Max(width, 1) * math.Max(height, 1)
	if math.IsNaN(area) || area > float64(limit) {
		return domain.DecodeError(
			fmt.Sprintf("Image of %.0fx%.0f pixels exceeds the limit of %d pixels", width, height, limit),
			errTooLarge,
		)
	}
	return nil
}
