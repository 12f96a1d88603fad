// Package svg rasterizes SVG markup through one of two backends: srwiley/oksvg
// with rasterx scanners, or tdewolff/canvas with its rasterizer renderer.
package svg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Default replaced-element size used when the markup declares no dimensions.
const (
	DefaultWidth  = 300
	DefaultHeight = 150
)

// ErrNoSVGRoot is returned when the markup holds no <svg> element.
var ErrNoSVGRoot = errors.New("no <svg> root element")

// Size is an intrinsic size in CSS pixels
type Size struct {
	Width, Height float64
}

// Pixels scales the size and rounds to whole pixels, never below 1x1.
func (s Size) Pixels(scale float64) (int, int) {
	w := int(math.Round(s.Width * scale))
	h := int(math.Round(s.Height * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// IntrinsicSize reads the root <svg> element and resolves its size from the
// width/height attributes, then the viewBox, then the default 300x150.
func IntrinsicSize(r io.Reader) (Size, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return Size{}, ErrNoSVGRoot
		}
		if err != nil {
			return Size{}, fmt.Errorf("parse svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return Size{}, ErrNoSVGRoot
		}
		return sizeFromAttrs(se.Attr), nil
	}
}

func sizeFromAttrs(attrs []xml.Attr) Size {
	var (
		width, height float64
		vbW, vbH      float64
	)
	for _, a := range attrs {
		switch a.Name.Local {
		case "width":
			width = parseLength(a.Value)
		case "height":
			height = parseLength(a.Value)
		case "viewBox":
			vbW, vbH = parseViewBox(a.Value)
		}
	}

	switch {
	case width > 0 && height > 0:
		return Size{width, height}
	case width > 0 && vbW > 0 && vbH > 0:
		return Size{width, width * vbH / vbW}
	case height > 0 && vbW > 0 && vbH > 0:
		return Size{height * vbW / vbH, height}
	case vbW > 0 && vbH > 0:
		return Size{vbW, vbH}
	}

	s := Size{DefaultWidth, DefaultHeight}
	if width > 0 {
		s.Width = width
	}
	if height > 0 {
		s.Height = height
	}
	return s
}

var unitToPx = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
}

// parseLength converts an absolute SVG length to pixels. Relative units give 0.
func parseLength(v string) float64 {
	v = strings.TrimSpace(v)
	end := len(v)
	for end > 0 && (v[end-1] >= 'a' && v[end-1] <= 'z' || v[end-1] == '%') {
		end--
	}
	factor, ok := unitToPx[v[end:]]
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v[:end]), 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n * factor
}

func parseViewBox(v string) (float64, float64) {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return 0, 0
	}
	w, err1 := strconv.ParseFloat(fields[2], 64)
	h, err2 := strconv.ParseFloat(fields[3], 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0
	}
	return w, h
}
