package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/scene-converter/internal/dispatch"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/pipeline"
	"github.com/spherical/scene-converter/pkg/converter"
)

// newConvertCmd creates the convert subcommand.
func newConvertCmd() *cobra.Command {
	var (
		mediaType string
		fileKey   string
		nodeID    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert one artifact into a scene document",
		Long: `Convert rasterizes the given file and writes the scene document as JSON.

The media type is derived from the file extension unless --type is given.
For .fig files the node is exported from Figma; --file-key and --node-id
select it, and are asked for interactively when omitted.`,
		Example: `  scene-converter convert brochure.pdf -o scene.json
  scene-converter convert logo.svg
  scene-converter convert board.fig --file-key abc123 --node-id 1:2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var ref *domain.RemoteReference
			if fileKey != "" || nodeID != "" {
				ref = &domain.RemoteReference{FileKey: fileKey, NodeID: nodeID}
			}

			client, err := converter.NewClientWithConfig(cfg, logger,
				pipeline.WithResolver(newPromptResolver(cmd.InOrStdin(), os.Stderr)))
			if err != nil {
				return err
			}

			artifact, err := converter.ReadArtifact(args[0], mediaType, ref)
			if err != nil {
				ui.Error("%s", domain.UserMessage(err))
				return err
			}

			text, err := runConversion(ctx, client, artifact)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(text))
				return err
			}
			if err := os.WriteFile(output, append(text, '\n'), 0o644); err != nil {
				return domain.IOError("Failed to write output file", err)
			}
			ui.Success("Scene written to %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "declared media type (default: from file extension)")
	cmd.Flags().StringVar(&fileKey, "file-key", "", "Figma file key (fig only)")
	cmd.Flags().StringVar(&nodeID, "node-id", "", "Figma node id (fig only)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: stdout)")

	return cmd
}

// runConversion submits the artifact and renders progress until the scene is
// ready, returning its JSON text.
func runConversion(ctx context.Context, client *converter.Client, artifact converter.Artifact) ([]byte, error) {
	startTime := time.Now()
	ui.Step("Converting %s", artifact.Name)

	var spin *Spinner
	// documents get a page bar; an unresolved fig reference prompts on stderr
	kind, err := dispatch.Classify(artifact.MediaType)
	needsPrompt := kind == domain.KindRemote && (artifact.Reference == nil || artifact.Reference.FileKey == "" || artifact.Reference.NodeID == "")
	if err == nil && kind != domain.KindDocument && !needsPrompt {
		spin = ui.NewSpinner(fmt.Sprintf("Rendering %s", kind))
		spin.Start()
	}
	defer spin.Stop()

	events, err := client.Process(ctx, artifact)
	if err != nil {
		return nil, err
	}

	var bar *PageBar
	for event := range events {
		switch event.Type {
		case converter.EventPageCount:
			ui.Info("Document has %d pages", event.PageCount)
			bar = ui.NewPageBar(event.PageCount)

		case converter.EventPageRendered:
			bar.Set(event.PageNumber)

		case converter.EventSceneReady:
			bar.Finish()
			spin.Stop()
			doc, ok := event.Payload.(*converter.SceneDocument)
			if !ok {
				return nil, domain.EncodeError("Unexpected scene payload", nil)
			}
			ui.Success("%d layer(s) in %v", len(doc.Objects), time.Since(startTime).Round(time.Millisecond))
			text, err := doc.MarshalText()
			if err != nil {
				return nil, domain.EncodeError("Failed to marshal scene document", err)
			}
			return text, nil

		case converter.EventConversionFailed:
			spin.Stop()
			msg := fmt.Sprint(event.Payload)
			ui.Error("%s", msg)
			state := client.State()
			return nil, domain.NewError(state.ErrorType, msg, nil)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("conversion ended without a result")
}
