package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/pipeline"
)

// extensions maps an output format to its file suffix.
var extensions = map[string]string{
	pipeline.FormatSVG:      ".svg",
	pipeline.FormatJSON:     ".layout.json",
	pipeline.FormatDOT:      ".dot",
	pipeline.FormatGraphviz: ".graphviz.svg",
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output     string
		formatsStr string
		noCache    bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [payload]",
		Short: "Render the visible tree to SVG, DOT, Graphviz or JSON",
		Long: `Render the visible part of a sensor forest.

Formats:
  svg       the computed layout with connector curves
  json      placements, curves and extents (same as 'layout')
  dot       Graphviz source of the visible tree
  graphviz  the visible tree laid out and drawn by Graphviz

With several formats, --output is used as a base path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), json, dot, graphviz (comma-separated)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show type and value lines in labels")
	cmd.Flags().StringVar(&opts.Title, "title", "", "document title")
	bindPayloadFlags(cmd, &opts)
	bindStateFlags(cmd, &opts)
	bindLayoutFlags(cmd, &opts)

	return cmd
}

// basePath derives the base output path. A known format extension on
// output is stripped.
func basePath(output, input string) string {
	if output == "" {
		return outputPath("", input, "")
	}
	for _, format := range []string{pipeline.FormatGraphviz, pipeline.FormatSVG, pipeline.FormatJSON, pipeline.FormatDOT} {
		if ext := extensions[format]; strings.HasSuffix(output, ext) {
			return strings.TrimSuffix(output, ext)
		}
	}
	return strings.TrimSuffix(output, filepath.Ext(output))
}

// outputFiles maps each format to the file it is written to.
func outputFiles(formats []string, output, input string) map[string]string {
	files := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" {
		files[formats[0]] = output
		return files
	}
	base := basePath(output, input)
	for _, f := range formats {
		files[f] = base + extensions[f]
	}
	return files
}

func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	payload, err := c.readPayload(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = logger
	setCLIDefaults(&opts, cfg, input)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", strings.Join(opts.Formats, ", ")))
	spinner.Start()

	res, err := runner.Execute(ctx, payload, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	files := outputFiles(opts.Formats, output, input)
	printSuccess("Rendered %s", plural(len(files), "file"))
	for _, format := range opts.Formats {
		path := files[format]
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write output %s: %w", path, err)
		}
		printFile(path)
	}
	printStats(res.CacheInfo.RenderHit,
		plural(res.Stats.Visible, "visible node"),
		plural(len(res.Curves), "curve"),
		string(res.Layout.Mode),
	)
	logger.Debug("render timings",
		"normalize", res.Stats.NormalizeTime,
		"layout", res.Stats.LayoutTime,
		"render", res.Stats.RenderTime)

	return nil
}
