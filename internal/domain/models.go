package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// StageID is the fixed identifier of the target scene.
const StageID = "canvasId"

// LayerTypeBitmap is the only layer type the serializer emits.
const LayerTypeBitmap = "Bitmap"

// Kind is the closed set of artifact kinds the dispatcher recognizes.
type Kind int

const (
	KindUnknown Kind = iota
	KindStill
	KindVector
	KindDocument
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindVector:
		return "vector"
	case KindDocument:
		return "document"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// RemoteReference identifies a node in a design-tool file.
type RemoteReference struct {
	FileKey string
	NodeID  string
}

// Artifact is the opaque input of one conversion
type Artifact struct {
	Name      string
	MediaType string // declared media type or bare extension
	Data      []byte
	Reference *RemoteReference // only used by remote artifacts
}

// Layer describes a single rasterized layer of a scene
type Layer struct {
	Type string `json:"type"`
	Src  string `json:"src"`
}

// SceneDocument is the canonical output of a conversion
type SceneDocument struct {
	StageID string  `json:"stageId"`
	Objects []Layer `json:"objects"`
}

// MarshalText renders the document as 2-space indented JSON without HTML escaping.
func (d *SceneDocument) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Phase is the observable state of the pipeline controller
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseDocumentPreview Phase = "document-preview"
	PhaseReady           Phase = "ready"
	PhaseFailed          Phase = "failed"
)

// EventType represents the type of stream event
type EventType string

const (
	EventArtifactSubmitted EventType = "artifact_submitted"
	EventPageCount         EventType = "page_count"
	EventPageRendered      EventType = "page_rendered"
	EventSceneReady        EventType = "scene_ready"
	EventConversionFailed  EventType = "conversion_failed"
)

// StreamEvent represents an event emitted during a conversion
type StreamEvent struct {
	Type       EventType   `json:"type"`
	Generation uint64      `json:"generation"`
	PageNumber int         `json:"page_number,omitempty"`
	PageCount  int         `json:"page_count,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // *SceneDocument or failure reason
	Timestamp  time.Time   `json:"timestamp"`
}
