package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// =============================================================================
// Layout
// =============================================================================

// Layout places the visible nodes of f in the mode and viewport of opts.
func Layout(ctx context.Context, f *tree.Forest, st *visibility.State, opts Options) layout.Result {
	hooks := observability.Pipeline()
	visible := len(st.VisibleNodes(f))
	hooks.OnLayoutStart(ctx, opts.Mode, visible)
	start := time.Now()

	res := layout.Compute(f, st, opts.LayoutOptions())

	hooks.OnLayoutComplete(ctx, opts.Mode, len(res.Nodes), time.Since(start), nil)
	return res
}

// =============================================================================
// Connectors
// =============================================================================

// Connect derives connector curves from the placements of res.
func Connect(ctx context.Context, f *tree.Forest, st *visibility.State, res layout.Result, cfg layout.Config) []connector.Curve {
	return ConnectBoxes(ctx, f, st, res.Mode, connector.FromLayout(res), cfg)
}

// ConnectBoxes derives connector curves from boxes measured by the host.
func ConnectBoxes(ctx context.Context, f *tree.Forest, st *visibility.State, mode layout.Mode, boxes connector.BoxProvider, cfg layout.Config) []connector.Curve {
	start := time.Now()
	curves := connector.ComputeWithConfig(f, st, mode, boxes, cfg)
	observability.Pipeline().OnConnect(ctx, string(mode), len(curves), time.Since(start))
	return curves
}
