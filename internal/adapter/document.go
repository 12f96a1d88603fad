package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/surface"
)

const (
	// PageScale is the fixed upscaling applied to every page viewport
	PageScale = 2.0

	baseDPI = 72.0
)

// Document renders every page of a paginated document onto its own surface
type Document struct {
	opener    domain.DocumentOpener
	renderer  *surface.Renderer
	workers   int
	maxPixels int64
	logger    *observability.Logger
}

// NewDocument creates a document adapter. workers <= 1 renders one page at a
// time; larger values render concurrently and reorder by page index.
func NewDocument(opener domain.DocumentOpener, renderer *surface.Renderer, workers int, logger *observability.Logger) *Document {
	if workers < 1 {
		workers = 1
	}
	return &Document{
		opener:    opener,
		renderer:  renderer,
		workers:   workers,
		maxPixels: DefaultMaxPixels,
		logger:    logger.WithComponent("document"),
	}
}

// WithMaxPixels replaces the pixel budget of one rendered page
func (d *Document) WithMaxPixels(n int64) *Document {
	if n > 0 {
		d.maxPixels = n
	}
	return d
}

// Convert opens the document and renders pages 1..N in order. Any page
// failure fails the whole document.
func (d *Document) Convert(ctx context.Context, artifact domain.Artifact, progress Progress) ([]*surface.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := d.opener.Open(artifact.Data)
	if err != nil {
		d.logger.Error().Err(err).Str("artifact", artifact.Name).Msg("Failed to open document")
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.DecodeError("Failed to open document", err)
	}
	defer src.Close()

	total := src.NumPage()
	if total <= 0 {
		return nil, domain.DecodeError("Document has no pages", nil)
	}
	progress.pageCount(total)
	d.logger.Info().Int("pages", total).Int("workers", d.workers).Msg("Rendering document")

	pages := make([]*surface.Surface, total)
	var done atomic.Int64

	render := func(ctx context.Context, index int) (err error) {
		// workers run outside the caller's goroutine
		defer func() {
			if r := recover(); r != nil {
				err = domain.RenderError(fmt.Sprintf("Failed to render page %d", index+1), fmt.Errorf("panic: %v", r))
			}
		}()
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := d.renderPage(src, index)
		if err != nil {
			d.logger.Error().Err(err).Int("page", index+1).Msg("Failed to render page")
			return err
		}
		pages[index] = s
		progress.pageRendered(int(done.Add(1)), total)
		return nil
	}

	if d.workers == 1 {
		for i := 0; i < total; i++ {
			if err := render(ctx, i); err != nil {
				return nil, err
			}
		}
		return pages, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := 0; i < total; i++ {
		g.Go(func() error {
			return render(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// renderPage sizes a fresh surface to the scaled page viewport and draws the
// page into it.
func (d *Document) renderPage(src domain.PageSource, index int) (*surface.Surface, error) {
	bounds, err := src.Bound(index)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("Failed to read page %d layout", index+1), err)
	}
	w, h := float64(bounds.Dx())*PageScale, float64(bounds.Dy())*PageScale
	if err := checkPixels(w, h, d.maxPixels); err != nil {
		return nil, err
	}
	width, height := int(math.Round(w)), int(math.Round(h))

	img, err := src.ImageDPI(index, baseDPI*PageScale)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("Failed to render page %d", index+1), err)
	}

	s, err := d.renderer.Render(img, width, height)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("Failed to render page %d", index+1), err)
	}
	return s, nil
}
