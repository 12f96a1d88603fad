package adapter

import (
	"context"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
	"github.com/spherical/scene-converter/internal/surface"
)

// Exporter fetches the SVG export of one design node
type Exporter interface {
	ExportSVG(ctx context.Context, ref domain.RemoteReference) ([]byte, error)
}

// Remote exports a design node as SVG and hands the markup to the vector adapter
type Remote struct {
	exporter Exporter
	resolver domain.ReferenceResolver
	vector   *Vector
	logger   *observability.Logger
}

// NewRemote creates a remote-reference adapter. resolver may be nil, in
// which case every artifact must carry its own reference.
func NewRemote(exporter Exporter, resolver domain.ReferenceResolver, vector *Vector, logger *observability.Logger) *Remote {
	return &Remote{
		exporter: exporter,
		resolver: resolver,
		vector:   vector,
		logger:   logger.WithComponent("remote"),
	}
}

// Convert resolves the reference, exports the node and renders one surface
func (r *Remote) Convert(ctx context.Context, artifact domain.Artifact, _ Progress) ([]*surface.Surface, error) {
	ref, err := r.reference(ctx, artifact)
	if err != nil {
		return nil, err
	}

	r.logger.Info().Str("file_key", ref.FileKey).Str("node_id", ref.NodeID).Msg("Exporting remote node")
	markup, err := r.exporter.ExportSVG(ctx, *ref)
	if err != nil {
		return nil, err
	}
	return r.vector.ConvertMarkup(ctx, markup)
}

func (r *Remote) reference(ctx context.Context, artifact domain.Artifact) (*domain.RemoteReference, error) {
	ref := artifact.Reference
	if (ref == nil || ref.FileKey == "" || ref.NodeID == "") && r.resolver != nil {
		resolved, err := r.resolver.ResolveReference(ctx, artifact)
		if err != nil {
			return nil, err
		}
		ref = resolved
	}
	if ref == nil || ref.FileKey == "" || ref.NodeID == "" {
		return nil, domain.ValidationError("a file key and node id are required for fig artifacts", nil)
	}
	return ref, nil
}
