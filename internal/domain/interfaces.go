package domain

import (
	"context"
	"image"
	"io"
)

// PageSource gives page-by-page access to an opened paginated document
type PageSource interface {
	// NumPage returns the number of pages in the document
	NumPage() int

	// Bound returns the page rectangle at 72 DPI; pages are 0-indexed
	Bound(page int) (image.Rectangle, error)

	// ImageDPI rasterizes a page at the given resolution
	ImageDPI(page int, dpi float64) (image.Image, error)

	// Close releases the document
	Close() error
}

// DocumentOpener opens a paginated document held in memory
type DocumentOpener interface {
	Open(data []byte) (PageSource, error)
}

// SVGRasterizer draws vector markup into a width x height bitmap
type SVGRasterizer interface {
	Rasterize(ctx context.Context, markup io.Reader, width, height int) (image.Image, error)
}

// ReferenceResolver obtains a file-key/node-id pair from the user
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, artifact Artifact) (*RemoteReference, error)
}
