package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/render/nodelink"
	"github.com/matzehuels/sensortree/pkg/render/svg"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Document is the json artifact: the placements and curves of one layout.
type Document struct {
	Mode   layout.Mode        `json:"mode"`
	Width  float64            `json:"width"`
	Height float64            `json:"height"`
	Nodes  []layout.Placement `json:"nodes"`
	Curves []connector.Curve  `json:"curves"`
}

// Render produces one artifact per requested format.
func Render(ctx context.Context, f *tree.Forest, st *visibility.State, res layout.Result, curves []connector.Curve, opts Options) (map[string][]byte, error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	artifacts := make(map[string][]byte, len(opts.Formats))
	var err error
	for _, format := range opts.Formats {
		var data []byte
		data, err = renderFormat(ctx, f, st, res, curves, format, opts)
		if err != nil {
			err = fmt.Errorf("render %s: %w", format, err)
			break
		}
		artifacts[format] = data
	}

	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func renderFormat(ctx context.Context, f *tree.Forest, st *visibility.State, res layout.Result, curves []connector.Curve, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		doc := Document{Mode: res.Mode, Width: res.Width, Height: res.Height, Nodes: res.Nodes, Curves: curves}
		if doc.Nodes == nil {
			doc.Nodes = []layout.Placement{}
		}
		if doc.Curves == nil {
			doc.Curves = []connector.Curve{}
		}
		return json.MarshalIndent(doc, "", "  ")
	case FormatSVG:
		svgOpts := []svg.Option{svg.WithCurves(curves)}
		if opts.Title != "" {
			svgOpts = append(svgOpts, svg.WithTitle(opts.Title))
		}
		if opts.Detailed {
			svgOpts = append(svgOpts, svg.WithMeta())
		}
		return svg.Render(f, st, res, svgOpts...), nil
	case FormatDOT:
		return []byte(nodelink.ToDOT(f, st, nodelink.Options{Mode: res.Mode, Detailed: opts.Detailed})), nil
	case FormatGraphviz:
		dot := nodelink.ToDOT(f, st, nodelink.Options{Mode: res.Mode, Detailed: opts.Detailed})
		return nodelink.RenderSVG(ctx, dot)
	default:
		return nil, ValidateFormat(format)
	}
}
