package pdf

import (
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
)

// Opener opens in-memory PDF bytes with go-fitz
type Opener struct {
	validator *Validator
	logger    *observability.Logger
}

// NewOpener creates a new PDF opener instance. A nil logger falls back to
// the default console logger.
func NewOpener(logger *observability.Logger) *Opener {
	if logger == nil {
		logger = observability.DefaultLogger().WithComponent("pdf")
	}
	return &Opener{
		validator: NewValidator().WithLogger(logger),
		logger:    logger,
	}
}

// Open validates the bytes and returns a page source over the document
func (o *Opener) Open(data []byte) (domain.PageSource, error) {
	if err := o.validator.ValidateBytes(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		o.logger.Error().Err(err).Int("bytes", len(data)).Msg("go-fitz could not open document")
		return nil, domain.DecodeError("Failed to open PDF", err)
	}
	o.logger.Debug().Int("pages", doc.NumPage()).Msg("Opened PDF")
	return &document{doc: doc}, nil
}

// document adapts *fitz.Document to domain.PageSource. go-fitz serializes
// access to the underlying context, so concurrent page renders are safe.
type document struct {
	doc *fitz.Document
}

func (d *document) NumPage() int {
	return d.doc.NumPage()
}

func (d *document) Bound(page int) (image.Rectangle, error) {
	return d.doc.Bound(page)
}

func (d *document) ImageDPI(page int, dpi float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (d *document) Close() error {
	return d.doc.Close()
}
