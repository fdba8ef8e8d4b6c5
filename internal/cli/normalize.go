package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/tree"
)

// normalizeCommand creates the normalize command.
func (c *CLI) normalizeCommand() *cobra.Command {
	var (
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "normalize [payload]",
		Short: "Write the canonical forest of a payload",
		Long: `Normalize a sensor hierarchy payload into the canonical forest.

Accepted shapes are nested objects, flat node maps, slash-separated tag paths,
arrays of objects and CSV tag sheets with a TagName column. Use "-" to read the
payload from stdin and --selector to pick the tree out of an API envelope.

The output is a nested node map that every other command accepts as input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNormalize(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.forest.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	bindPayloadFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runNormalize(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	logger := loggerFromContext(ctx)

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

	opts.Format = payloadFormat(opts.Format, input)
	opts.Logger = logger

	prog := newProgress(logger)
	f, shape, cacheHit, err := runner.NormalizeWithCacheInfo(ctx, payload, opts)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", input, err)
	}
	prog.done(fmt.Sprintf("Normalized %s payload into %s", shape, plural(f.Len(), "node")))

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode forest: %w", err)
	}
	path := outputPath(output, input, ".forest.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	if f.Empty() {
		printWarning("Payload produced an empty forest")
	} else {
		printSuccess("Normalized %s payload", shape)
	}
	printFile(path)
	printStats(cacheHit, forestParts(tree.ComputeStats(f))...)
	printNewline()
	printNextStep("Lay out", appName+" layout --levels 2 "+path)

	return nil
}
