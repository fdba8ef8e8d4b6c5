// Package svg writes a computed layout as a standalone SVG document.
package svg

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

const styles = `
    .node rect { fill: #ffffff; stroke: #4a5568; stroke-width: 1.5; rx: 8; }
    .node.special rect { stroke: #2b6cb0; stroke-width: 2.5; }
    .node.active rect { fill: #ebf8ff; }
    .node.status-online rect { fill: #f0fff4; stroke: #2f855a; }
    .node.status-warning rect { fill: #fffaf0; stroke: #c05621; }
    .node.status-offline rect { fill: #fff5f5; stroke: #c53030; }
    .node text { font-family: sans-serif; font-size: 14px; fill: #1a202c; }
    .node text.meta { font-size: 11px; fill: #4a5568; }
    .curve { fill: none; stroke: #a0aec0; stroke-width: 1.5; }
    .curve.special { stroke: #2b6cb0; stroke-width: 2; }`

// Option configures rendering.
type Option func(*renderer)

type renderer struct {
	curves []connector.Curve
	title  string
	meta   bool
}

// WithCurves draws connector curves under the boxes.
func WithCurves(c []connector.Curve) Option { return func(r *renderer) { r.curves = c } }

// WithTitle sets the document title.
func WithTitle(t string) Option { return func(r *renderer) { r.title = t } }

// WithMeta adds the type and value line below each name.
func WithMeta() Option { return func(r *renderer) { r.meta = true } }

// Render writes the placements of res as SVG. Node text comes from f and
// highlight classes from st.
func Render(f *tree.Forest, st *visibility.State, res layout.Result, opts ...Option) []byte {
	var r renderer
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%.0f" height="%.0f" data-mode="%s">`+"\n",
		num(res.Width), num(res.Height), res.Width, res.Height, res.Mode)
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", html.EscapeString(r.title))
	}
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", styles)

	buf.WriteString("  <g class=\"curves\">\n")
	for _, c := range r.curves {
		class := "curve"
		if c.Special {
			class += " special"
		}
		fmt.Fprintf(&buf, "    <path class=%q d=%q data-from=%q data-to=%q/>\n",
			class, c.Path(), html.EscapeString(c.From), html.EscapeString(c.To))
	}
	buf.WriteString("  </g>\n")

	buf.WriteString("  <g class=\"nodes\">\n")
	for _, p := range res.Nodes {
		n, ok := f.Node(p.ID)
		if !ok {
			continue
		}
		writeNode(&buf, n, p, st, r.meta)
	}
	buf.WriteString("  </g>\n")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *tree.Node, p layout.Placement, st *visibility.State, meta bool) {
	classes := []string{"node", "type-" + tree.Slug(p.Type)}
	if p.Special {
		classes = append(classes, "special")
	}
	if st != nil && st.Active() == p.ID {
		classes = append(classes, "active")
	}
	if n.Status != "" {
		classes = append(classes, "status-"+tree.NormalizeStatus(n.Status))
	}

	fmt.Fprintf(buf, "    <g class=%q id=%q>\n", strings.Join(classes, " "), "node-"+html.EscapeString(p.ID))
	fmt.Fprintf(buf, "      <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\"/>\n",
		num(p.X), num(p.Y), num(p.Width), num(p.Height))

	cx := p.CenterX()
	if !meta {
		fmt.Fprintf(buf, "      <text x=\"%s\" y=\"%s\" text-anchor=\"middle\" dominant-baseline=\"middle\">%s</text>\n",
			num(cx), num(p.CenterY()), html.EscapeString(n.Name))
	} else {
		fmt.Fprintf(buf, "      <text x=\"%s\" y=\"%s\" text-anchor=\"middle\">%s</text>\n",
			num(cx), num(p.CenterY()-4), html.EscapeString(n.Name))
		line := n.Type
		if v := n.ValueString(); v != "" {
			line += " · " + v
		}
		fmt.Fprintf(buf, "      <text class=\"meta\" x=\"%s\" y=\"%s\" text-anchor=\"middle\">%s</text>\n",
			num(cx), num(p.CenterY()+14), html.EscapeString(line))
	}
	buf.WriteString("    </g>\n")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
