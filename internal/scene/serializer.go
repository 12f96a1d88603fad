// Package scene encodes rendered surfaces into the portable scene document.
package scene

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/surface"
)

// DataURLPrefix starts every layer source
const DataURLPrefix = "data:image/png;base64,"

// Serializer turns an ordered surface sequence into a SceneDocument
type Serializer struct {
	encoder png.Encoder
}

// NewSerializer creates a serializer with default PNG compression
func NewSerializer() *Serializer {
	return &Serializer{encoder: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

// Serialize encodes each surface in input order as one Bitmap layer
func (s *Serializer) Serialize(surfaces []*surface.Surface) (*domain.SceneDocument, error) {
	doc := &domain.SceneDocument{
		StageID: domain.StageID,
		Objects: make([]domain.Layer, 0, len(surfaces)),
	}
	for i, surf := range surfaces {
		src, err := s.encode(surf)
		if err != nil {
			return nil, domain.EncodeError(fmt.Sprintf("Failed to encode layer %d", i+1), err)
		}
		doc.Objects = append(doc.Objects, domain.Layer{Type: domain.LayerTypeBitmap, Src: src})
	}
	return doc, nil
}

// Text serializes the surfaces straight to the document's JSON text
func (s *Serializer) Text(surfaces []*surface.Surface) ([]byte, error) {
	doc, err := s.Serialize(surfaces)
	if err != nil {
		return nil, err
	}
	text, err := doc.MarshalText()
	if err != nil {
		return nil, domain.EncodeError("Failed to marshal scene document", err)
	}
	return text, nil
}

func (s *Serializer) encode(surf *surface.Surface) (string, error) {
	if surf == nil {
		return "", fmt.Errorf("surface is nil")
	}
	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, surf.Image()); err != nil {
		return "", err
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
