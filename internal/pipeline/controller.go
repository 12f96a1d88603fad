// Package pipeline orchestrates one conversion at a time: dispatch, adapt,
// serialize and publish. A monotonic generation counter makes the newest
// submission win; results of superseded conversions are discarded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/scene-converter/internal/adapter"
	"github.com/spherical/scene-converter/internal/config"
	"github.com/spherical/scene-converter/internal/dispatch"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/figma"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/pdf"
	"github.com/spherical/scene-converter/internal/scene"
	"github.com/spherical/scene-converter/internal/surface"
	"github.com/spherical/scene-converter/internal/svg"
)

// ErrSuperseded is returned by Convert when a newer submission replaced the
// conversion before it finished.
var ErrSuperseded = errors.New("conversion superseded by a newer submission")

// DefaultEventBuffer is the channel size used by Subscribe when none is given
const DefaultEventBuffer = 100

// State is the observable state of the controller
type State struct {
	Phase         domain.Phase     `json:"phase"`
	Generation    uint64           `json:"generation"`
	ConversionID  string           `json:"conversion_id,omitempty"`
	Artifact      string           `json:"artifact,omitempty"`
	Kind          string           `json:"kind,omitempty"`
	PageCount     int              `json:"page_count,omitempty"`
	PagesRendered int              `json:"pages_rendered,omitempty"`
	Error         string           `json:"error,omitempty"`
	ErrorType     domain.ErrorType `json:"error_type,omitempty"`
	HasScene      bool             `json:"has_scene"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Controller runs conversions and publishes their outcome
type Controller struct {
	adapters   adapter.Registry
	serializer *scene.Serializer
	logger     *observability.Logger

	mu          sync.RWMutex
	generation  uint64
	state       State
	scene       *domain.SceneDocument
	sceneText   []byte
	subscribers map[int]chan domain.StreamEvent
	nextSub     int
}

// Option configures a Controller
type Option func(*options)

type options struct {
	adapters adapter.Registry
	resolver domain.ReferenceResolver
	exporter adapter.Exporter
	opener   domain.DocumentOpener
}

// WithAdapter replaces the adapter used for one kind
func WithAdapter(kind domain.Kind, a adapter.Adapter) Option {
	return func(o *options) { o.adapters[kind] = a }
}

// WithResolver sets the collaborator asked for a file key and node id when a
// fig artifact arrives without one.
func WithResolver(r domain.ReferenceResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithExporter replaces the remote export client
func WithExporter(e adapter.Exporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithDocumentOpener replaces the paginated document opener
func WithDocumentOpener(op domain.DocumentOpener) Option {
	return func(o *options) { o.opener = op }
}

// New builds a controller with the adapters described by cfg
func New(cfg *config.Config, logger *observability.Logger, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	o := &options{adapters: adapter.Registry{}}
	for _, opt := range opts {
		opt(o)
	}

	rasterizer, err := svg.New(cfg.SVG.Backend)
	if err != nil {
		return nil, err
	}
	if o.exporter == nil {
		o.exporter = figma.NewClient(cfg.Figma, figma.WithLogger(logger.WithComponent("figma")))
	}
	if o.opener == nil {
		o.opener = pdf.NewOpener(logger.WithComponent("pdf"))
	}

	renderer := surface.NewRenderer()
	maxPixels := cfg.SVG.MaxPixels
	vector := adapter.NewVector(rasterizer, renderer, cfg.SVG.Scale, logger).WithMaxPixels(maxPixels)
	defaults := adapter.Registry{
		domain.KindStill:    adapter.NewStill(renderer, logger).WithMaxPixels(maxPixels),
		domain.KindVector:   vector,
		domain.KindDocument: adapter.NewDocument(o.opener, renderer, cfg.Document.RenderWorkers, logger).WithMaxPixels(maxPixels),
		domain.KindRemote:   adapter.NewRemote(o.exporter, o.resolver, vector, logger),
	}
	for kind, a := range o.adapters {
		defaults[kind] = a
	}

	return &Controller{
		adapters:    defaults,
		serializer:  scene.NewSerializer(),
		logger:      logger.WithComponent("pipeline"),
		state:       State{Phase: domain.PhaseIdle, UpdatedAt: time.Now()},
		subscribers: make(map[int]chan domain.StreamEvent),
	}, nil
}

// Submit starts a conversion in the background and returns its generation.
// Any conversion still running is superseded.
func (c *Controller) Submit(ctx context.Context, artifact domain.Artifact) uint64 {
	gen, id := c.begin(artifact)
	go func() {
		_, _ = c.run(ctx, gen, id, artifact)
	}()
	return gen
}

// Convert runs a conversion synchronously under the same generation guard
// as Submit. It returns ErrSuperseded when a newer submission won.
func (c *Controller) Convert(ctx context.Context, artifact domain.Artifact) (*domain.SceneDocument, error) {
	gen, id := c.begin(artifact)
	return c.run(ctx, gen, id, artifact)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Scene returns the last successful scene document, or nil
func (c *Controller) Scene() *domain.SceneDocument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scene
}

// SceneText returns the current scene document as JSON text
func (c *Controller) SceneText() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sceneText == nil {
		return "", false
	}
	return string(c.sceneText), true
}

// Subscribe registers an event channel. The returned func unsubscribes and
// closes the channel. Slow subscribers lose events rather than block.
func (c *Controller) Subscribe(buffer int) (<-chan domain.StreamEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ch := make(chan domain.StreamEvent, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) begin(artifact domain.Artifact) (uint64, string) {
	id := uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	gen := c.generation
	c.state = State{
		Phase:        domain.PhaseIdle,
		Generation:   gen,
		ConversionID: id,
		Artifact:     artifact.Name,
		HasScene:     c.scene != nil,
		UpdatedAt:    time.Now(),
	}
	c.emitLocked(domain.StreamEvent{
		Type:       domain.EventArtifactSubmitted,
		Generation: gen,
		Payload:    artifact.Name,
		Timestamp:  time.Now(),
	})
	return gen, id
}

func (c *Controller) run(ctx context.Context, gen uint64, id string, artifact domain.Artifact) (doc *domain.SceneDocument, err error) {
	log := c.logger.WithConversion(id, gen)
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Conversion panicked")
			doc = nil
			err = c.fail(gen, log, domain.RenderError("Failed to render artifact", fmt.Errorf("panic: %v", r)))
		}
	}()

	kind, err := dispatch.Classify(artifact.MediaType)
	if err != nil {
		log.Warn().Str("media_type", artifact.MediaType).Msg("Unsupported artifact")
		return nil, c.fail(gen, log, err)
	}
	log.Info().Str("artifact", artifact.Name).Str("kind", kind.String()).Msg("Converting artifact")

	c.update(gen, func(s *State) {
		s.Kind = kind.String()
		if kind == domain.KindDocument {
			s.Phase = domain.PhaseDocumentPreview
		}
	})

	a, err := c.adapters.For(kind)
	if err != nil {
		return nil, c.fail(gen, log, err)
	}

	surfaces, err := a.Convert(ctx, artifact, adapter.Progress{
		OnPageCount: func(total int) {
			c.update(gen, func(s *State) { s.PageCount = total })
			c.emit(gen, domain.StreamEvent{Type: domain.EventPageCount, PageCount: total})
		},
		OnPageRendered: func(done, total int) {
			c.update(gen, func(s *State) { s.PagesRendered = done })
			c.emit(gen, domain.StreamEvent{Type: domain.EventPageRendered, PageNumber: done, PageCount: total})
		},
	})
	if err != nil {
		return nil, c.fail(gen, log, err)
	}

	doc, err = c.serializer.Serialize(surfaces)
	if err != nil {
		return nil, c.fail(gen, log, err)
	}
	text, err := doc.MarshalText()
	if err != nil {
		return nil, c.fail(gen, log, domain.EncodeError("Failed to marshal scene document", err))
	}

	if !c.publish(gen, doc, text) {
		log.Debug().Msg("Discarding result of superseded conversion")
		return nil, ErrSuperseded
	}
	log.Info().
		Int("layers", len(doc.Objects)).
		Dur("duration", time.Since(startTime)).
		Msg("Scene ready")
	return doc, nil
}

// publish installs the scene if gen is still current
func (c *Controller) publish(gen uint64, doc *domain.SceneDocument, text []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.scene = doc
	c.sceneText = text
	c.state.Phase = domain.PhaseReady
	c.state.HasScene = true
	c.state.Error, c.state.ErrorType = "", ""
	c.state.UpdatedAt = time.Now()
	c.emitLocked(domain.StreamEvent{
		Type:       domain.EventSceneReady,
		Generation: gen,
		PageCount:  len(doc.Objects),
		Payload:    doc,
		Timestamp:  time.Now(),
	})
	return true
}

// fail records err as the outcome of gen. The previous scene is kept.
func (c *Controller) fail(gen uint64, log *observability.Logger, err error) error {
	var errType domain.ErrorType
	var de *domain.DomainError
	if errors.As(err, &de) {
		errType = de.Type
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		log.Debug().Err(err).Msg("Discarding failure of superseded conversion")
		return ErrSuperseded
	}
	log.Error().Err(err).Str("error_type", string(errType)).Msg("Conversion failed")

	c.state.Phase = domain.PhaseFailed
	c.state.Error = domain.UserMessage(err)
	c.state.ErrorType = errType
	c.state.UpdatedAt = time.Now()
	c.emitLocked(domain.StreamEvent{
		Type:       domain.EventConversionFailed,
		Generation: gen,
		Payload:    c.state.Error,
		Timestamp:  time.Now(),
	})
	return err
}

func (c *Controller) update(gen uint64, fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	fn(&c.state)
	c.state.UpdatedAt = time.Now()
}

func (c *Controller) emit(gen uint64, event domain.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	event.Generation = gen
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.emitLocked(event)
}

// emitLocked sends to every subscriber without blocking. c.mu must be held.
func (c *Controller) emitLocked(event domain.StreamEvent) {
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			c.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}
