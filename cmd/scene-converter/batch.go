package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/pkg/converter"
)

// newBatchCmd creates the batch subcommand.
func newBatchCmd() *cobra.Command {
	var (
		outDir   string
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Convert several artifacts, one scene document per file",
		Long: `Batch converts each file in turn and writes <name>.scene.json into the
output directory. Files that fail are reported and skipped unless --fail-fast
is set. Figma files are not supported in batch mode.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return domain.IOError("Failed to create output directory", err)
			}

			client, err := converter.NewClientWithConfig(cfg, logger)
			if err != nil {
				return err
			}

			progress := ui.NewBatchProgress(len(args))
			var failed []string
			written := make(map[string]string) // target -> source
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					progress.Close()
					return err
				}

				target := scenePath(path, outDir)
				if prev, ok := written[target]; ok {
					err = domain.ValidationError(
						fmt.Sprintf("%s would overwrite the scene of %s", filepath.Base(target), prev), nil)
				} else {
					err = convertOne(ctx, client, path, target)
				}
				progress.Increment()
				if err != nil {
					logger.Error().Err(err).Str("file", path).Msg("Conversion failed")
					failed = append(failed, fmt.Sprintf("%s: %s", path, domain.UserMessage(err)))
					if failFast {
						progress.Close()
						return err
					}
					continue
				}
				written[target] = path
				logger.Debug().Str("file", path).Str("output", target).Msg("Scene written")
			}
			progress.Close()

			for _, f := range failed {
				ui.Error("%s", f)
			}
			ui.Success("%d of %d file(s) converted into %s", len(args)-len(failed), len(args), outDir)
			if len(failed) > 0 {
				return errors.New("some files failed to convert")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "d", ".", "directory for the scene documents")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failure")

	return cmd
}

// scenePath names the scene document written for path
func scenePath(path, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(outDir, base+".scene.json")
}

func convertOne(ctx context.Context, client *converter.Client, path, target string) error {
	artifact, err := converter.ReadArtifact(path, "", nil)
	if err != nil {
		return err
	}
	doc, err := client.Convert(ctx, artifact)
	if err != nil {
		return err
	}
	text, err := doc.MarshalText()
	if err != nil {
		return domain.EncodeError("Failed to marshal scene document", err)
	}

	if err := os.WriteFile(target, append(text, '\n'), 0o644); err != nil {
		return domain.IOError("Failed to write output file", err)
	}
	return nil
}
