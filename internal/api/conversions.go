package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/spherical/scene-converter/internal/dispatch"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/pipeline"
)

// ConversionHandler accepts artifacts and serves the current scene.
type ConversionHandler struct {
	logger     *observability.Logger
	controller *pipeline.Controller
	maxBytes   int64
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(logger *observability.Logger, controller *pipeline.Controller, maxBytes int64) *ConversionHandler {
	return &ConversionHandler{
		logger:     logger.WithComponent("api"),
		controller: controller,
		maxBytes:   maxBytes,
	}
}

// SubmissionDTO is returned for accepted asynchronous conversions.
type SubmissionDTO struct {
	Generation uint64 `json:"generation"`
	Status     string `json:"status"`
}

// Create handles POST /api/v1/conversions. The body is the raw artifact and
// Content-Type its declared media type. With ?wait=true the scene is
// returned in the response; otherwise the conversion runs in the background.
func (h *ConversionHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "artifact too large", "")
			return
		}
		h.writeError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}

	artifact := domain.Artifact{
		Name:      r.Header.Get("X-File-Name"),
		MediaType: declaredMediaType(r),
		Data:      data,
	}
	q := r.URL.Query()
	if key, node := q.Get("fileKey"), q.Get("nodeId"); key != "" || node != "" {
		artifact.Reference = &domain.RemoteReference{FileKey: key, NodeID: node}
	}

	h.logger.Info().
		Str("artifact", artifact.Name).
		Str("media_type", artifact.MediaType).
		Int("bytes", len(data)).
		Msg("Artifact submitted")

	if q.Get("wait") != "true" {
		// the conversion outlives the request
		gen := h.controller.Submit(context.WithoutCancel(r.Context()), artifact)
		h.writeJSON(w, http.StatusAccepted, SubmissionDTO{Generation: gen, Status: "accepted"})
		return
	}

	doc, err := h.controller.Convert(r.Context(), artifact)
	if err != nil {
		if errors.Is(err, pipeline.ErrSuperseded) {
			h.writeError(w, http.StatusConflict, "conversion superseded", "")
			return
		}
		h.writeDomainError(w, err)
		return
	}
	text, err := doc.MarshalText()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to encode scene", "")
		return
	}
	writeScene(w, text)
}

// Scene handles GET /api/v1/scene.
func (h *ConversionHandler) Scene(w http.ResponseWriter, r *http.Request) {
	text, ok := h.controller.SceneText()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no scene available", "")
		return
	}
	writeScene(w, []byte(text))
}

// State handles GET /api/v1/state.
func (h *ConversionHandler) State(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// declaredMediaType prefers Content-Type and falls back to the file name.
func declaredMediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "" || strings.EqualFold(ct, "application/octet-stream") {
		if name := r.Header.Get("X-File-Name"); name != "" {
			return dispatch.MediaTypeForFile(name)
		}
	}
	return ct
}

func statusFor(err error) int {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Type {
	case domain.ErrorTypeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case domain.ErrorTypeDecode, domain.ErrorTypeRender:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeRemoteUnavailable:
		return http.StatusBadGateway
	case domain.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeScene(w http.ResponseWriter, text []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(text)
}

func (h *ConversionHandler) writeDomainError(w http.ResponseWriter, err error) {
	detail := ""
	var de *domain.DomainError
	if errors.As(err, &de) {
		detail = string(de.Type)
	}
	h.writeError(w, statusFor(err), domain.UserMessage(err), detail)
}

func (h *ConversionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ConversionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	_ = json.NewEncoder(w).Encode(resp)
}
