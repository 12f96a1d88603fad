package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spherical/scene-converter/internal/domain"
)

// promptResolver asks for the file key and node id on the terminal when a
// fig artifact is converted without --file-key/--node-id.
type promptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptResolver(in io.Reader, out io.Writer) *promptResolver {
	return &promptResolver{in: bufio.NewReader(in), out: out}
}

// ResolveReference implements domain.ReferenceResolver.
func (p *promptResolver) ResolveReference(ctx context.Context, artifact domain.Artifact) (*domain.RemoteReference, error) {
	ref := &domain.RemoteReference{}
	if artifact.Reference != nil {
		*ref = *artifact.Reference
	}

	var err error
	if ref.FileKey == "" {
		if ref.FileKey, err = p.ask(ctx, "Figma file key"); err != nil {
			return nil, err
		}
	}
	if ref.NodeID == "" {
		if ref.NodeID, err = p.ask(ctx, "Node id"); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (p *promptResolver) ask(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", domain.ValidationError(fmt.Sprintf("%s is required", strings.ToLower(label)), err)
	}
	return strings.TrimSpace(line), nil
}
