// Package testutil builds in-memory artifacts for package tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// Solid returns a width x height image filled with c.
func Solid(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG encodes a solid image as PNG bytes.
func PNG(t testing.TB, width, height int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, Solid(width, height, c)))
	return buf.Bytes()
}

// JPEG encodes a solid image as JPEG bytes.
func JPEG(t testing.TB, width, height int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, Solid(width, height, c), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// SVG returns markup for a width x height canvas covered by one rectangle.
func SVG(width, height int, fill string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
  <rect x="0" y="0" width="%d" height="%d" fill="%s"/>
</svg>`, width, height, width, height, width, height, fill))
}

// PDFPage describes one page of a generated document, sizes in millimetres.
type PDFPage struct {
	Width, Height float64
	Fill          color.Color
}

// PDF writes a document with one filled page per entry.
func PDF(t testing.TB, pages ...PDFPage) []byte {
	t.Helper()
	require.NotEmpty(t, pages)

	var buf bytes.Buffer
	writer := pdf.New(&buf, pages[0].Width, pages[0].Height, nil)
	for i, page := range pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		ctx.SetFillColor(page.Fill)
		ctx.DrawPath(0, 0, canvas.Rectangle(page.Width, page.Height))
		c.RenderTo(writer)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}
