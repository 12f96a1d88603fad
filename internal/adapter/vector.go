package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/surface"
	"github.com/spherical/scene-converter/internal/svg"
)

var (
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
	errInvalidUTF8 = errors.New("invalid UTF-8 sequence")
)

// Vector rasterizes SVG markup at its intrinsic size
type Vector struct {
	rasterizer domain.SVGRasterizer
	renderer   *surface.Renderer
	scale      float64
	maxPixels  int64
	handles    *handlePool
	logger     *observability.Logger
}

// NewVector creates a vector adapter. scale multiplies the intrinsic size;
// values <= 0 mean 1.
func NewVector(rasterizer domain.SVGRasterizer, renderer *surface.Renderer, scale float64, logger *observability.Logger) *Vector {
	if scale <= 0 {
		scale = 1
	}
	return &Vector{
		rasterizer: rasterizer,
		renderer:   renderer,
		scale:      scale,
		maxPixels:  DefaultMaxPixels,
		handles:    &handlePool{},
		logger:     logger.WithComponent("vector"),
	}
}

// WithMaxPixels replaces the pixel budget of one rendered vector
func (v *Vector) WithMaxPixels(n int64) *Vector {
	if n > 0 {
		v.maxPixels = n
	}
	return v
}

// Convert reads the artifact as UTF-8 markup and renders one surface
func (v *Vector) Convert(ctx context.Context, artifact domain.Artifact, _ Progress) ([]*surface.Surface, error) {
	return v.ConvertMarkup(ctx, artifact.Data)
}

// ConvertMarkup renders raw markup bytes onto exactly one surface
func (v *Vector) ConvertMarkup(ctx context.Context, data []byte) ([]*surface.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		v.logger.Error().Int("bytes", len(data)).Msg("Markup is not valid UTF-8")
		return nil, domain.DecodeError("Failed to decode vector markup", errInvalidUTF8)
	}

	h := v.handles.acquire(data)
	defer h.Close()

	size, err := svg.IntrinsicSize(h.Reader())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read vector size")
		return nil, domain.DecodeError("Failed to decode vector markup", err)
	}
	if err := checkPixels(size.Width*v.scale, size.Height*v.scale, v.maxPixels); err != nil {
		v.logger.Error().Float64("width", size.Width).Float64("height", size.Height).Msg("Vector size over limit")
		return nil, err
	}
	width, height := size.Pixels(v.scale)

	img, err := v.rasterizer.Rasterize(ctx, h.Reader(), width, height)
	if err != nil {
		v.logger.Error().Err(err).Int("width", width).Int("height", height).Msg("Failed to rasterize vector markup")
		return nil, domain.DecodeError("Failed to decode vector markup", err)
	}

	surf, err := v.renderer.Render(img, width, height)
	if err != nil {
		return nil, err
	}
	return []*surface.Surface{surf}, nil
}

// Outstanding reports how many markup handles are currently held
func (v *Vector) Outstanding() int64 {
	return v.handles.outstanding.Load()
}

// markupHandle owns a copy of the markup for the duration of one decode
type markupHandle struct {
	buf  bytes.Buffer
	pool *handlePool
}

// Reader returns a fresh reader over the held markup
func (h *markupHandle) Reader() io.Reader {
	return bytes.NewReader(h.buf.Bytes())
}

// Close returns the handle to its pool. It must be called exactly once.
func (h *markupHandle) Close() error {
	h.buf.Reset()
	h.pool.outstanding.Add(-1)
	h.pool.pool.Put(h)
	return nil
}

type handlePool struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

func (p *handlePool) acquire(data []byte) *markupHandle {
	h, ok := p.pool.Get().(*markupHandle)
	if !ok {
		h = &markupHandle{}
	}
	h.pool = p
	h.buf.Write(data)
	p.outstanding.Add(1)
	return h
}
