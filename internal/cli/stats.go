package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/tree"
)

// statsReport is the --json output of the stats command.
type statsReport struct {
	Shape       string     `json:"shape"`
	Tree        tree.Stats `json:"tree"`
	Visible     int        `json:"visible"`
	Breadcrumb  []string   `json:"breadcrumb"`
	CanExpand   bool       `json:"can_expand_next"`
	CanCollapse bool       `json:"can_collapse_prev"`
}

// statsCommand creates the stats command.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "stats [payload]",
		Short: "Print node counts and sensor status totals",
		Long: `Print the size of a sensor forest and how many sensors are online,
warning or offline. Status values "ok" and "0" count as online and "warn"
as warning; anything else is offline.

State flags (--levels, --expand, --search, ...) add the number of visible
nodes and the breadcrumb of the focus.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStats(cmd.Context(), args[0], opts, asJSON, noCache)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	bindPayloadFlags(cmd, &opts)
	bindStateFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runStats(ctx context.Context, input string, opts pipeline.Options, asJSON, noCache bool) error {
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
	opts.Format = payloadFormat(opts.Format, input)
	if err := opts.ValidateForState(); err != nil {
		return err
	}

	f, shape, cacheHit, err := runner.NormalizeWithCacheInfo(ctx, payload, opts)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", input, err)
	}
	st := pipeline.ApplyState(f, opts)

	report := statsReport{
		Shape:       shape.String(),
		Tree:        tree.ComputeStats(f),
		Visible:     len(st.VisibleNodes(f)),
		Breadcrumb:  st.Breadcrumb(f),
		CanExpand:   st.CanExpandNext(f),
		CanCollapse: st.CanCollapsePrev(f),
	}
	if report.Breadcrumb == nil {
		report.Breadcrumb = []string{}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report, cacheHit)
	return nil
}

func printReport(r statsReport, cached bool) {
	fmt.Println(StyleTitle.Render("Sensor forest"))
	printKeyValue("Shape", r.Shape)
	printKeyValue("Nodes", strconv.Itoa(r.Tree.Nodes))
	printKeyValue("Roots", strconv.Itoa(r.Tree.Roots))
	printKeyValue("Levels", strconv.Itoa(r.Tree.Depth))
	printKeyValue("Visible", strconv.Itoa(r.Visible))
	if len(r.Breadcrumb) > 0 {
		printKeyValue("Focus", formatBreadcrumb(r.Breadcrumb))
	}
	printNewline()

	fmt.Println(StyleTitle.Render("Sensors"))
	printKeyValue("Total", strconv.Itoa(r.Tree.Sensors))
	printKeyValue("Online", statusStyle(tree.StatusOnline).Render(strconv.Itoa(r.Tree.Online)))
	printKeyValue("Warning", statusStyle(tree.StatusWarning).Render(strconv.Itoa(r.Tree.Warning)))
	printKeyValue("Offline", statusStyle(tree.StatusOffline).Render(strconv.Itoa(r.Tree.Offline)))
	printNewline()

	var controls []string
	if r.CanExpand {
		controls = append(controls, "expand next level")
	}
	if r.CanCollapse {
		controls = append(controls, "collapse previous level")
	}
	printStats(cached, controls...)
}
