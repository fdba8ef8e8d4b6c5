package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Mode picks the rank direction: left-to-right for horizontal,
	// top-to-bottom for vertical.
	Mode layout.Mode

	// Detailed adds type, status and value lines to labels.
	Detailed bool
}

var statusFill = map[string]string{
	tree.StatusOnline:  "#f0fff4",
	tree.StatusWarning: "#fffaf0",
	tree.StatusOffline: "#fff5f5",
}

// ToDOT converts the visible part of a forest to Graphviz DOT. Only edges
// from expanded parents are emitted, matching the connectors a host draws.
func ToDOT(f *tree.Forest, st *visibility.State, opts Options) string {
	rankdir := "LR"
	if opts.Mode == layout.Vertical {
		rankdir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	visible := st.VisibleNodes(f)
	for _, v := range visible {
		n, ok := f.Node(v.ID)
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, st, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	for _, v := range visible {
		if v.ParentID == "" || !st.IsExpanded(v.ParentID) {
			continue
		}
		attrs := ""
		if v.ParentActive {
			attrs = " [penwidth=2, color=\"#2b6cb0\"]"
		}
		fmt.Fprintf(&buf, "  %q -> %q%s;\n", v.ParentID, v.ID, attrs)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *tree.Node, detailed bool) string {
	if !detailed {
		return n.Name
	}
	parts := []string{n.Name, n.Type}
	if n.Status != "" {
		parts = append(parts, "status: "+tree.NormalizeStatus(n.Status))
	}
	if v := n.ValueString(); v != "" {
		parts = append(parts, "value: "+v)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *tree.Node, st *visibility.State, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, detailed))}
	if n.Status != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", statusFill[tree.NormalizeStatus(n.Status)]))
	}
	if st.Highlighted(n.ID) {
		attrs = append(attrs, "penwidth=2.5", "color=\"#2b6cb0\"")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using the embedded Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz root element with one whose
// viewBox starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
