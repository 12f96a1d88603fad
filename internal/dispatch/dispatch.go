// Package dispatch classifies artifacts by their declared media kind.
package dispatch

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/spherical/scene-converter/internal/domain"
)

var kinds = map[string]domain.Kind{
	"png":     domain.KindStill,
	"jpeg":    domain.KindStill,
	"jpg":     domain.KindStill,
	"pdf":     domain.KindDocument,
	"svg+xml": domain.KindVector,
	"fig":     domain.KindRemote,
}

// SupportedKinds lists the accepted media subtypes and extensions.
func SupportedKinds() []string {
	return []string{"png", "jpeg", "jpg", "pdf", "svg+xml", "fig"}
}

// Classify routes a declared media type or extension to an artifact kind.
// Only the declared kind is consulted; the bytes are never inspected.
func Classify(mediaType string) (domain.Kind, error) {
	key := normalize(mediaType)
	if kind, ok := kinds[key]; ok {
		return kind, nil
	}
	return domain.KindUnknown, domain.UnsupportedFormatError(mediaType)
}

// normalize reduces "image/SVG+XML; charset=utf-8" or ".PNG" to the lookup key.
func normalize(mediaType string) string {
	s := strings.TrimSpace(mediaType)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	return strings.ToLower(s)
}

// MediaTypeForFile derives the declared media type from a file name. The bare
// extension is used when the mime registry has no recognized entry (".fig"
// is often registered as an xfig drawing).
func MediaTypeForFile(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		if _, ok := kinds[normalize(mt)]; ok {
			return mt
		}
	}
	return strings.TrimPrefix(ext, ".")
}
