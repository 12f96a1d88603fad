package scene

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/surface"
	"github.com/spherical/scene-converter/internal/testutil"
)

func render(t *testing.T, w, h int, c color.Color) *surface.Surface {
	t.Helper()
	s, err := surface.NewRenderer().Render(testutil.Solid(w, h, c), w, h)
	require.NoError(t, err)
	return s
}

func decodeLayer(t *testing.T, l domain.Layer) (int, int, color.RGBA) {
	t.Helper()
	require.True(t, strings.HasPrefix(l.Src, DataURLPrefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(l.Src, DataURLPrefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy(), color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
}

func TestSerializeKeepsOrder(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	doc, err := NewSerializer().Serialize([]*surface.Surface{render(t, 3, 2, red), render(t, 5, 4, blue)})
	require.NoError(t, err)

	assert.Equal(t, "canvasId", doc.StageID)
	require.Len(t, doc.Objects, 2)

	w, h, c := decodeLayer(t, doc.Objects[0])
	assert.Equal(t, "Bitmap", doc.Objects[0].Type)
	assert.Equal(t, []int{3, 2}, []int{w, h})
	assert.Equal(t, red, c)

	w, h, c = decodeLayer(t, doc.Objects[1])
	assert.Equal(t, []int{5, 4}, []int{w, h})
	assert.Equal(t, blue, c)
}

func TestSerializeIsIdempotent(t *testing.T) {
	surfaces := []*surface.Surface{
		render(t, 8, 8, color.RGBA{G: 200, A: 255}),
		render(t, 2, 9, color.RGBA{R: 10, G: 20, B: 30, A: 128}),
	}
	s := NewSerializer()

	first, err := s.Text(surfaces)
	require.NoError(t, err)
	second, err := s.Text(surfaces)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTextShape(t *testing.T) {
	text, err := NewSerializer().Text([]*surface.Surface{render(t, 1, 1, color.White)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(text), "{\n  \"stageId\": \"canvasId\",\n  \"objects\": [\n    {\n      \"type\": \"Bitmap\","))
	assert.NotContains(t, string(text), `<`)
	assert.False(t, strings.HasSuffix(string(text), "\n"))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(text, &generic))
	assert.Len(t, generic, 2)
}

func TestSerializeEmpty(t *testing.T) {
	text, err := NewSerializer().Text(nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"stageId\": \"canvasId\",\n  \"objects\": []\n}", string(text))
}

func TestSerializeNilSurface(t *testing.T) {
	_, err := NewSerializer().Serialize([]*surface.Surface{nil})
	assert.True(t, domain.IsType(err, domain.ErrorTypeEncode))
}
