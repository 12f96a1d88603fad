package pipeline

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scene-converter/internal/adapter"
	"github.com/spherical/scene-converter/internal/config"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/surface"
	"github.com/spherical/scene-converter/internal/testutil"
)

// gatedAdapter blocks conversions of the artifact named "slow" until release
// is closed.
type gatedAdapter struct {
	started chan struct{}
	release chan struct{}
	failErr error
}

func newGatedAdapter() *gatedAdapter {
	return &gatedAdapter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAdapter) Convert(_ context.Context, artifact domain.Artifact, _ adapter.Progress) ([]*surface.Surface, error) {
	fill := color.RGBA{B: 255, A: 255}
	if artifact.Name == "slow" {
		close(g.started)
		<-g.release
		if g.failErr != nil {
			return nil, g.failErr
		}
		fill = color.RGBA{R: 255, A: 255}
	}
	s, err := surface.NewRenderer().Render(testutil.Solid(2, 2, fill), 2, 2)
	if err != nil {
		return nil, err
	}
	return []*surface.Surface{s}, nil
}

// gatedDocument announces two pages for "slow", then blocks until release
// before rendering them.
type gatedDocument struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedDocument) Convert(_ context.Context, artifact domain.Artifact, progress adapter.Progress) ([]*surface.Surface, error) {
	const total = 2
	progress.OnPageCount(total)
	if artifact.Name == "slow" {
		close(g.started)
		<-g.release
	}
	pages := make([]*surface.Surface, 0, total)
	for i := 1; i <= total; i++ {
		s, err := surface.NewRenderer().Render(testutil.Solid(2, 2, color.White), 2, 2)
		if err != nil {
			return nil, err
		}
		pages = append(pages, s)
		progress.OnPageRendered(i, total)
	}
	return pages, nil
}

type panickingAdapter struct{}

func (panickingAdapter) Convert(context.Context, domain.Artifact, adapter.Progress) ([]*surface.Surface, error) {
	panic("decoder bug")
}

func newController(t *testing.T, cfg *config.Config, opts ...Option) *Controller {
	t.Helper()
	c, err := New(cfg, observability.Nop(), opts...)
	require.NoError(t, err)
	return c
}

func pngArtifact(t *testing.T, name string) domain.Artifact {
	return domain.Artifact{Name: name, MediaType: "image/png", Data: testutil.PNG(t, 4, 3, color.White)}
}

func TestUnsupportedFormatLeavesNoScene(t *testing.T) {
	c := newController(t, nil)

	doc, err := c.Convert(context.Background(), domain.Artifact{Name: "notes.txt", MediaType: "text/plain", Data: []byte("hi")})
	assert.Nil(t, doc)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnsupportedFormat))

	_, ok := c.SceneText()
	assert.False(t, ok)

	state := c.Snapshot()
	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, domain.UnsupportedFormatMessage, state.Error)
	assert.False(t, state.HasScene)
}

func TestFailureKeepsPreviousScene(t *testing.T) {
	c := newController(t, nil)

	_, err := c.Convert(context.Background(), pngArtifact(t, "a.png"))
	require.NoError(t, err)
	before, ok := c.SceneText()
	require.True(t, ok)

	_, err = c.Convert(context.Background(), domain.Artifact{MediaType: "text/plain"})
	require.Error(t, err)

	after, ok := c.SceneText()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.PhaseFailed, c.Snapshot().Phase)
	assert.True(t, c.Snapshot().HasScene)
}

func TestJPEGProducesOneLayer(t *testing.T) {
	c := newController(t, nil)

	doc, err := c.Convert(context.Background(), domain.Artifact{
		Name:      "photo.jpg",
		MediaType: "image/jpeg",
		Data:      testutil.JPEG(t, 16, 16, color.RGBA{G: 255, A: 255}),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageID, doc.StageID)
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, domain.LayerTypeBitmap, doc.Objects[0].Type)

	state := c.Snapshot()
	assert.Equal(t, domain.PhaseReady, state.Phase)
	assert.Equal(t, "still", state.Kind)
	assert.Equal(t, uint64(1), state.Generation)
	assert.NotEmpty(t, state.ConversionID)
}

func TestSVGProducesOneLayer(t *testing.T) {
	c := newController(t, nil)

	doc, err := c.Convert(context.Background(), domain.Artifact{MediaType: "image/svg+xml", Data: testutil.SVG(10, 10, "#ff0000")})
	require.NoError(t, err)
	assert.Len(t, doc.Objects, 1)
}

func TestTwoPageDocument(t *testing.T) {
	c := newController(t, nil)
	events, unsubscribe := c.Subscribe(0)
	defer unsubscribe()

	data := testutil.PDF(t,
		testutil.PDFPage{Width: 30, Height: 30, Fill: color.RGBA{R: 255, A: 255}},
		testutil.PDFPage{Width: 30, Height: 30, Fill: color.RGBA{B: 255, A: 255}},
	)
	doc, err := c.Convert(context.Background(), domain.Artifact{Name: "two.pdf", MediaType: "application/pdf", Data: data})
	require.NoError(t, err)
	require.Len(t, doc.Objects, 2)
	assert.NotEqual(t, doc.Objects[0].Src, doc.Objects[1].Src)

	state := c.Snapshot()
	assert.Equal(t, domain.PhaseReady, state.Phase)
	assert.Equal(t, 2, state.PageCount)
	assert.Equal(t, 2, state.PagesRendered)

	var types []domain.EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventArtifactSubmitted,
		domain.EventPageCount,
		domain.EventPageRendered,
		domain.EventPageRendered,
		domain.EventSceneReady,
	}, types)
}

func TestRemoteMissingNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"err":null,"images":{}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Figma.Host = srv.URL
	cfg.Figma.Token = "secret"
	c := newController(t, cfg)

	_, err := c.Convert(context.Background(), domain.Artifact{
		MediaType: "fig",
		Reference: &domain.RemoteReference{FileKey: "abc", NodeID: "9:9"},
	})
	assert.True(t, domain.IsType(err, domain.ErrorTypeRemoteUnavailable))

	state := c.Snapshot()
	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, "remote export unavailable", state.Error)
	_, ok := c.SceneText()
	assert.False(t, ok)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	gated := newGatedAdapter()
	c := newController(t, nil, WithAdapter(domain.KindStill, gated))

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.Convert(context.Background(), domain.Artifact{Name: "slow", MediaType: "png"})
		slowDone <- err
	}()
	<-gated.started

	fast, err := c.Convert(context.Background(), domain.Artifact{Name: "fast", MediaType: "png"})
	require.NoError(t, err)

	close(gated.release)
	assert.ErrorIs(t, <-slowDone, ErrSuperseded)

	text, ok := c.SceneText()
	require.True(t, ok)
	want, err := fast.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, string(want), text)

	state := c.Snapshot()
	assert.Equal(t, uint64(2), state.Generation)
	assert.Equal(t, domain.PhaseReady, state.Phase)
	assert.Equal(t, "fast", state.Artifact)
}

func TestStaleFailureIsDiscarded(t *testing.T) {
	gated := newGatedAdapter()
	gated.failErr = domain.DecodeError("Failed to decode image", errors.New("boom"))
	c := newController(t, nil, WithAdapter(domain.KindStill, gated))

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.Convert(context.Background(), domain.Artifact{Name: "slow", MediaType: "png"})
		slowDone <- err
	}()
	<-gated.started

	_, err := c.Convert(context.Background(), domain.Artifact{Name: "fast", MediaType: "png"})
	require.NoError(t, err)

	close(gated.release)
	assert.ErrorIs(t, <-slowDone, ErrSuperseded)
	assert.Equal(t, domain.PhaseReady, c.Snapshot().Phase)
	assert.Empty(t, c.Snapshot().Error)
}

func TestSupersededDocumentDoesNotLeak(t *testing.T) {
	gated := &gatedDocument{started: make(chan struct{}), release: make(chan struct{})}
	c := newController(t, nil, WithAdapter(domain.KindDocument, gated))
	events, unsubscribe := c.Subscribe(20)
	defer unsubscribe()

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.Convert(context.Background(), domain.Artifact{Name: "slow", MediaType: "application/pdf"})
		slowDone <- err
	}()
	<-gated.started

	fast, err := c.Convert(context.Background(), pngArtifact(t, "fast.png"))
	require.NoError(t, err)

	close(gated.release)
	assert.ErrorIs(t, <-slowDone, ErrSuperseded)

	type seen struct {
		typ domain.EventType
		gen uint64
	}
	var got []seen
	for len(events) > 0 {
		ev := <-events
		got = append(got, seen{ev.Type, ev.Generation})
	}
	assert.Equal(t, []seen{
		{domain.EventArtifactSubmitted, 1},
		{domain.EventPageCount, 1},
		{domain.EventArtifactSubmitted, 2},
		{domain.EventSceneReady, 2},
	}, got)

	state := c.Snapshot()
	assert.Equal(t, uint64(2), state.Generation)
	assert.Equal(t, domain.PhaseReady, state.Phase)
	assert.Equal(t, "still", state.Kind)
	assert.Zero(t, state.PageCount)
	assert.Zero(t, state.PagesRendered)

	text, ok := c.SceneText()
	require.True(t, ok)
	want, err := fast.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, string(want), text)
}

func TestOversizedSVGFailsWithoutPanic(t *testing.T) {
	c := newController(t, nil)

	doc, err := c.Convert(context.Background(), domain.Artifact{
		Name:      "huge.svg",
		MediaType: "image/svg+xml",
		Data:      []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10000000000" height="10000000000"/>`),
	})
	assert.Nil(t, doc)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
	assert.Equal(t, domain.PhaseFailed, c.Snapshot().Phase)
	assert.Equal(t, domain.ErrorTypeDecode, c.Snapshot().ErrorType)
}

func TestConfiguredPixelBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SVG.MaxPixels = 10
	c := newController(t, cfg)

	_, err := c.Convert(context.Background(), pngArtifact(t, "a.png"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
}

func TestAdapterPanicBecomesFailure(t *testing.T) {
	c := newController(t, nil, WithAdapter(domain.KindStill, panickingAdapter{}))

	doc, err := c.Convert(context.Background(), pngArtifact(t, "a.png"))
	assert.Nil(t, doc)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRender))
	assert.Equal(t, domain.PhaseFailed, c.Snapshot().Phase)

	events, unsubscribe := c.Subscribe(10)
	defer unsubscribe()
	gen := c.Submit(context.Background(), pngArtifact(t, "b.png"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != domain.EventConversionFailed {
				continue
			}
			assert.Equal(t, gen, ev.Generation)
			assert.Equal(t, domain.ErrorTypeRender, c.Snapshot().ErrorType)
			return
		case <-deadline:
			t.Fatal("timed out waiting for conversion_failed")
		}
	}
}

func TestSubmitPublishesEvents(t *testing.T) {
	c := newController(t, nil)
	events, unsubscribe := c.Subscribe(10)
	defer unsubscribe()

	gen := c.Submit(context.Background(), pngArtifact(t, "a.png"))
	assert.Equal(t, uint64(1), gen)

	first := <-events
	assert.Equal(t, domain.EventArtifactSubmitted, first.Type)
	assert.Equal(t, gen, first.Generation)

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventSceneReady, ev.Type)
		assert.Equal(t, gen, ev.Generation)
		doc, ok := ev.Payload.(*domain.SceneDocument)
		require.True(t, ok)
		assert.Len(t, doc.Objects, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scene_ready")
	}

	assert.Equal(t, domain.PhaseReady, c.Snapshot().Phase)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	c := newController(t, nil)
	_, unsubscribe := c.Subscribe(1)
	defer unsubscribe()

	// the first event fills the buffer, the rest are dropped
	_, err := c.Convert(context.Background(), pngArtifact(t, "a.png"))
	require.NoError(t, err)
	_, err = c.Convert(context.Background(), pngArtifact(t, "b.png"))
	require.NoError(t, err)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newController(t, nil)
	events, unsubscribe := c.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	_, err := c.Convert(context.Background(), pngArtifact(t, "a.png"))
	assert.NoError(t, err)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SVG.Backend = "cairo"
	_, err := New(cfg, nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}
