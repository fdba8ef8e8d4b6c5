package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/pipeline"
)

// layoutCommand creates the layout command for computing placements.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "layout [payload]",
		Short: "Compute placements and connector curves for the visible tree",
		Long: `Compute the layout of the visible part of a sensor forest.

Visibility is built from flags: --expand, --expand-all and --levels open nodes,
--spread focuses one subtree and --search keeps matching leaves and their
ancestors. The output is a JSON document (same format as 'render -f json')
with placements, connector curves and canvas extents.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	bindPayloadFlags(cmd, &opts)
	bindStateFlags(cmd, &opts)
	bindLayoutFlags(cmd, &opts)

	return cmd
}

// runLayout normalizes the payload, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
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

	opts.Logger = loggerFromContext(ctx)
	setCLIDefaults(&opts, cfg, input)
	opts.Formats = []string{pipeline.FormatJSON}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Computing %s layout...", opts.Mode))
	spinner.Start()

	res, err := runner.Execute(ctx, payload, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	path := outputPath(output, input, ".layout.json")
	if err := os.WriteFile(path, res.Artifacts[pipeline.FormatJSON], 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	printSuccess("Layout complete")
	printFile(path)
	printStats(res.CacheInfo.LayoutHit,
		plural(res.Stats.Visible, "visible node"),
		plural(len(res.Curves), "curve"),
		fmt.Sprintf("%.0f×%.0f", res.Layout.Width, res.Layout.Height),
	)
	if crumb := res.State.Breadcrumb(res.Forest); len(crumb) > 0 {
		printDetail("%s", formatBreadcrumb(crumb))
	}
	printNewline()
	printNextStep("Render", appName+" render "+input)

	return nil
}
